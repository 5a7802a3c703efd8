package chatsdk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
)

// State is the lifecycle phase of a Session's live channel.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateError      State = "error"
	StateClosed     State = "closed"
)

const (
	defaultReconnectInterval = 5 * time.Second
	defaultOpenTimeout       = 10 * time.Second

	// defaultReadTimeout bounds silence on the live channel. The server
	// pings every 54 seconds, so a healthy connection always carries a
	// frame inside this window; past it the connection is treated as dead.
	defaultReadTimeout = 60 * time.Second

	// localIDPrefix marks a client-assigned temporary message id. The server
	// never issues ids with this prefix, so the two spaces cannot collide.
	localIDPrefix = "local-"
)

// ErrSessionClosed reports an operation on a session after Close. Closed is
// terminal; create a new Session to rejoin the room.
var ErrSessionClosed = errors.New("chatsdk: session closed")

// SessionConfig configures a Session. Client, DeviceID and Room are
// required; everything else has a working default.
type SessionConfig struct {
	Client   *Client
	DeviceID string
	Room     RoomRef

	// OnChange is invoked (on the session's goroutines) whenever the state
	// or the message sequence changes. Callbacks must be fast; read the new
	// values with State() and Messages().
	OnChange func()

	// HistoryLimit caps the snapshot fetched at open. Zero means the server
	// default.
	HistoryLimit int

	// ReconnectInterval is the fixed delay between reconnect attempts after
	// a transport drop. Defaults to 5 seconds.
	ReconnectInterval time.Duration

	// ReadTimeout is how long the live channel may stay silent before the
	// connection is dropped and rebuilt. Defaults to 60 seconds.
	ReadTimeout time.Duration

	// Dialer overrides the websocket dialer, mainly for tests.
	Dialer *websocket.Dialer
}

// Session owns one room's live channel: it mints the capability token,
// loads the history snapshot, holds the websocket subscription, and feeds
// everything through a Reconciler. All methods are safe for concurrent use.
type Session struct {
	cfg SessionConfig
	rec *Reconciler

	mu      sync.Mutex
	state   State
	running bool
	conn    *websocket.Conn
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSession creates a session in StateIdle. Nothing happens until Open.
func NewSession(cfg SessionConfig) *Session {
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = defaultReconnectInterval
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	return &Session{
		cfg:   cfg,
		rec:   NewReconciler(cfg.DeviceID),
		state: StateIdle,
	}
}

// Open starts the connection supervisor. It returns immediately; progress
// is reported through OnChange. Calling Open on a running session is a
// no-op, and on a closed session returns ErrSessionClosed.
func (s *Session) Open() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		s.supervise(ctx)
	}()
	return nil
}

// Close tears the session down. Idempotent; after Close the session stays
// in StateClosed and cannot be reopened.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	cancel := s.cancel
	conn := s.conn
	done := s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	if done != nil {
		<-done
	}
	s.notify()
}

// Resume nudges the session after the host app returns to the foreground.
// If the session thinks it is open but has been idle longer than the ping
// window, the connection is likely half-dead; dropping it makes the
// supervisor rebuild a fresh snapshot immediately instead of waiting for a
// read timeout.
func (s *Session) Resume(idleFor time.Duration) {
	s.mu.Lock()
	conn := s.conn
	open := s.state == StateOpen
	s.mu.Unlock()

	if open && conn != nil && idleFor > defaultOpenTimeout {
		conn.Close()
	}
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Messages returns the reconciled sequence, oldest first.
func (s *Session) Messages() []Message {
	return s.rec.Current()
}

// Send performs an optimistic send: the message is admitted to the local
// sequence under a temporary id right away, and the durable append runs in
// the background. Returns false (and sends nothing) when the session is not
// open or the text is empty after trimming.
func (s *Session) Send(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	tempID := localIDPrefix + ulid.Make().String()
	s.rec.OnLocalSend(Message{
		ID:        tempID,
		RoomType:  s.cfg.Room.Type,
		RoomID:    s.cfg.Room.ID,
		DeviceID:  s.cfg.DeviceID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	})
	s.notify()

	go s.settleSend(tempID, text)
	return true
}

// settleSend runs the durable append for one optimistic send and resolves
// or fails the temporary entry.
func (s *Session) settleSend(tempID, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultOpenTimeout)
	defer cancel()

	msg, err := s.cfg.Client.Append(ctx, s.cfg.DeviceID, s.cfg.Room, text)
	if err != nil {
		s.rec.MarkFailed(tempID)
		s.notify()
		return
	}

	s.rec.ResolveLocalSend(tempID, msg.ID)
	s.notify()
}

// supervise runs connection attempts until the context is cancelled or the
// room denies access. Every failure waits the fixed reconnect interval; no
// backoff growth and no attempt cap.
func (s *Session) supervise(ctx context.Context) {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, s.runOnce(ctx)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(s.cfg.ReconnectInterval)),
		backoff.WithMaxElapsedTime(0),
	)

	// Only access denial and Close end the loop. Denial parks the session
	// in StateError; Close has already set StateClosed.
	if err != nil && errors.Is(err, ErrAccessDenied) {
		s.setState(StateError)
		s.notify()
	}
}

// runOnce performs one full connection attempt: mint a token, fetch the
// history snapshot and dial the live channel concurrently, wait for the
// subscribe acknowledgement, then pump live events until the connection
// drops. A nil return never happens before cancellation; the error tells
// the supervisor whether to retry.
func (s *Session) runOnce(ctx context.Context) error {
	s.setState(StateConnecting)
	s.notify()

	grant, err := s.cfg.Client.MintToken(ctx, s.cfg.DeviceID, s.cfg.Room)
	if err != nil {
		if errors.Is(err, ErrAccessDenied) {
			return backoff.Permanent(err)
		}
		return s.fail(ctx, err)
	}

	// The snapshot fetch and the websocket dial are independent round
	// trips; overlap them so open latency is the slower of the two, not
	// the sum.
	type historyResult struct {
		msgs []Message
		err  error
	}
	historyCh := make(chan historyResult, 1)
	go func() {
		msgs, err := s.cfg.Client.FetchRecent(ctx, s.cfg.DeviceID, s.cfg.Room, s.cfg.HistoryLimit)
		historyCh <- historyResult{msgs: msgs, err: err}
	}()

	wsURL := s.cfg.Client.WebsocketURL(s.cfg.DeviceID, grant.Token, s.cfg.Room)
	conn, _, err := s.cfg.Dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		<-historyCh
		return s.fail(ctx, fmt.Errorf("chatsdk: dial live channel: %w", err))
	}

	if err := awaitSubscribed(conn); err != nil {
		conn.Close()
		<-historyCh
		return s.fail(ctx, err)
	}

	history := <-historyCh
	if history.err != nil {
		conn.Close()
		return s.fail(ctx, history.err)
	}

	if seedErr := s.rec.Seed(history.msgs); seedErr != nil {
		// Already seeded: this is a reconnect. Replay the snapshot through
		// the live path so the id-dedup absorbs the overlap and only
		// messages missed during the outage are admitted.
		for _, msg := range history.msgs {
			s.rec.OnLiveMessage(msg)
		}
	}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		conn.Close()
		return backoff.Permanent(ErrSessionClosed)
	}
	s.conn = conn
	s.state = StateOpen
	s.mu.Unlock()
	s.notify()

	err = s.pump(conn)

	s.mu.Lock()
	s.conn = nil
	s.mu.Unlock()
	conn.Close()

	return s.fail(ctx, err)
}

// pump reads live events until the connection drops. The read deadline is
// refreshed on every frame, including the server's pings, so a half-open
// connection surfaces as a read timeout instead of blocking until the OS
// gives up on the socket.
func (s *Session) pump(conn *websocket.Conn) error {
	if err := conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
		return fmt.Errorf("chatsdk: set read deadline: %w", err)
	}
	conn.SetPingHandler(func(payload string) error {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		err := conn.WriteControl(websocket.PongMessage, []byte(payload), time.Now().Add(time.Second))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	for {
		var event wsEvent
		if err := conn.ReadJSON(&event); err != nil {
			return fmt.Errorf("chatsdk: live channel read: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		if event.Type == eventMessageNew && event.Message != nil {
			s.rec.OnLiveMessage(*event.Message)
			s.notify()
		}
	}
}

// fail classifies an attempt error: cancellation (Close) is permanent,
// anything else schedules the fixed-interval retry via StateError.
func (s *Session) fail(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return backoff.Permanent(ctx.Err())
	}
	s.setState(StateError)
	s.notify()
	return err
}

// setState transitions the lifecycle phase unless the session has been
// closed, which is terminal.
func (s *Session) setState(next State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.state = next
}

func (s *Session) notify() {
	if s.cfg.OnChange != nil {
		s.cfg.OnChange()
	}
}

// awaitSubscribed reads frames until the server acknowledges the room
// subscription. The session is not open until this ack arrives.
func awaitSubscribed(conn *websocket.Conn) error {
	deadline := time.Now().Add(defaultOpenTimeout)
	if err := conn.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("chatsdk: set deadline: %w", err)
	}
	defer conn.SetReadDeadline(time.Time{})

	for {
		var event wsEvent
		if err := conn.ReadJSON(&event); err != nil {
			return fmt.Errorf("chatsdk: await subscribe ack: %w", err)
		}
		if event.Type == eventSubscribed {
			return nil
		}
	}
}
