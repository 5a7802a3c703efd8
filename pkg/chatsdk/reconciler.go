package chatsdk

import (
	"errors"
	"sort"
	"sync"
)

// ErrAlreadySeeded reports a second Seed call after messages have been
// admitted. Seeding replaces the whole sequence; it is not a merge.
var ErrAlreadySeeded = errors.New("chatsdk: reconciler already seeded")

// Reconciler merges three message sources into one sequence: the history
// snapshot loaded at session open, live broadcast events, and locally-sent
// messages awaiting durable confirmation. The exposed sequence is always
// ordered by CreatedAt ascending with ties broken by insertion order, and
// never contains duplicate ids.
//
// The load-bearing rule is self-echo suppression: a live message from the
// session's own device is dropped, because the sender already admitted it
// via OnLocalSend. Without this every self-sent message would render twice.
type Reconciler struct {
	mu sync.Mutex

	deviceID string
	seeded   bool
	admitted bool

	entries []Message
	byID    map[string]int // message id -> index into entries
}

// NewReconciler creates a reconciler for a session owned by deviceID.
func NewReconciler(deviceID string) *Reconciler {
	return &Reconciler{
		deviceID: deviceID,
		byID:     make(map[string]int),
	}
}

// Seed replaces the entire sequence with the history snapshot. It must be
// called exactly once, at session open, before any live or local message is
// admitted; afterwards it returns ErrAlreadySeeded.
func (r *Reconciler) Seed(history []Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seeded || r.admitted {
		return ErrAlreadySeeded
	}
	r.seeded = true

	for _, msg := range history {
		r.admit(msg)
	}
	return nil
}

// OnLiveMessage admits a message from the live channel. Idempotent on
// message id (reconnects replay overlapping history), and a no-op for
// messages from the session's own device.
func (r *Reconciler) OnLiveMessage(msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.admitted = true

	if _, ok := r.byID[msg.ID]; ok {
		return
	}
	if msg.DeviceID == r.deviceID {
		return
	}

	r.admit(msg)
}

// OnLocalSend admits a locally-originated message under its temporary id so
// it renders immediately, ahead of durable confirmation.
func (r *Reconciler) OnLocalSend(msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.admitted = true

	if _, ok := r.byID[msg.ID]; ok {
		return
	}

	msg.Pending = true
	r.admit(msg)
}

// ResolveLocalSend swaps a pending message's temporary id for the
// store-assigned one. Content and position are unchanged.
func (r *Reconciler) ResolveLocalSend(tempID, finalID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.byID[tempID]
	if !ok {
		return
	}

	delete(r.byID, tempID)
	r.entries[i].ID = finalID
	r.entries[i].Pending = false
	r.byID[finalID] = i
}

// MarkFailed flags a pending message whose append was rejected so the UI
// can show it as unsent and offer a manual retry.
func (r *Reconciler) MarkFailed(tempID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i, ok := r.byID[tempID]; ok {
		r.entries[i].Pending = false
		r.entries[i].Failed = true
	}
}

// Remove drops a message (typically a failed local send the caller chose to
// discard rather than retry).
func (r *Reconciler) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.byID[id]
	if !ok {
		return
	}

	delete(r.byID, id)
	r.entries = append(r.entries[:i], r.entries[i+1:]...)
	for j := i; j < len(r.entries); j++ {
		r.byID[r.entries[j].ID] = j
	}
}

// Current returns the reconciled sequence, oldest first.
func (r *Reconciler) Current() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Message, len(r.entries))
	copy(out, r.entries)
	return out
}

// admit inserts at the sorted position. Callers hold r.mu.
func (r *Reconciler) admit(msg Message) {
	// Insert after every entry that sorts at or before this one, so equal
	// timestamps keep insertion order.
	i := sort.Search(len(r.entries), func(i int) bool {
		return r.entries[i].CreatedAt.After(msg.CreatedAt)
	})

	r.entries = append(r.entries, Message{})
	copy(r.entries[i+1:], r.entries[i:])
	r.entries[i] = msg

	for j := i; j < len(r.entries); j++ {
		r.byID[r.entries[j].ID] = j
	}
}
