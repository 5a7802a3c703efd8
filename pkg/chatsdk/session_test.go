package chatsdk

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// fakeRoomServer is an in-process stand-in for the chat service: token
// mint, history reads, durable appends and the websocket live channel.
type fakeRoomServer struct {
	t      *testing.T
	server *httptest.Server

	upgrader websocket.Upgrader

	mu        sync.Mutex
	denyMint  bool
	mintCalls int
	nextID    int
	history   []Message
	conns     []*websocket.Conn

	// connCh delivers each accepted live connection to the test.
	connCh chan *websocket.Conn
}

func newFakeRoomServer(t *testing.T) *fakeRoomServer {
	t.Helper()

	f := &fakeRoomServer{
		t:      t,
		connCh: make(chan *websocket.Conn, 4),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/rooms/token", f.handleMint)
	mux.HandleFunc("GET /v1/rooms/{type}/{id}/messages", f.handleHistory)
	mux.HandleFunc("POST /v1/rooms/{type}/{id}/messages", f.handleAppend)
	mux.HandleFunc("GET /v1/rooms/{type}/{id}/ws", f.handleWS)

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.close)
	return f
}

func (f *fakeRoomServer) close() {
	f.mu.Lock()
	conns := f.conns
	f.conns = nil
	f.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
	f.server.Close()
}

func (f *fakeRoomServer) handleMint(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.mintCalls++
	deny := f.denyMint
	f.mu.Unlock()

	if deny {
		ErrAccessDenied.WriteError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(RoomGrant{
		Token:       "tok",
		DisplayName: "tester",
		ExpiresIn:   3600,
	})
}

func (f *fakeRoomServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	history := make([]Message, len(f.history))
	copy(history, f.history)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(history)
}

func (f *fakeRoomServer) handleAppend(w http.ResponseWriter, r *http.Request) {
	var req appendRequest
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))

	msg := f.appendMessage(req.DeviceID, req.Text)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(msg)
}

func (f *fakeRoomServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	require.NoError(f.t, conn.WriteJSON(wsEvent{Type: eventSubscribed}))

	f.mu.Lock()
	f.conns = append(f.conns, conn)
	f.mu.Unlock()
	f.connCh <- conn
}

// appendMessage persists a message and returns it with a server id.
func (f *fakeRoomServer) appendMessage(deviceID, text string) Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	msg := Message{
		ID:        fmt.Sprintf("m%d", f.nextID),
		RoomType:  RoomTypeGroup,
		RoomID:    "grp_1",
		DeviceID:  deviceID,
		Username:  "tester",
		Text:      text,
		CreatedAt: time.Date(2026, 8, 1, 12, 0, f.nextID, 0, time.UTC),
	}
	f.history = append(f.history, msg)
	return msg
}

func (f *fakeRoomServer) push(conn *websocket.Conn, msg Message) {
	require.NoError(f.t, conn.WriteJSON(wsEvent{Type: eventMessageNew, Message: &msg}))
}

func (f *fakeRoomServer) mints() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mintCalls
}

// stateRecorder collects the change notifications a session emits.
type stateRecorder struct {
	session *Session

	mu     sync.Mutex
	states []State
	signal chan struct{}
}

func newStateRecorder() *stateRecorder {
	return &stateRecorder{signal: make(chan struct{}, 64)}
}

func (r *stateRecorder) onChange() {
	r.mu.Lock()
	r.states = append(r.states, r.session.State())
	r.mu.Unlock()

	select {
	case r.signal <- struct{}{}:
	default:
	}
}

func (r *stateRecorder) waitFor(t *testing.T, want State) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if r.session.State() == want {
			return
		}
		select {
		case <-r.signal:
		case <-deadline:
			t.Fatalf("timed out waiting for state %q, at %q", want, r.session.State())
		}
	}
}

func (r *stateRecorder) waitForMessages(t *testing.T, count int) []Message {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		msgs := r.session.Messages()
		if len(msgs) >= count {
			return msgs
		}
		select {
		case <-r.signal:
		case <-deadline:
			t.Fatalf("timed out waiting for %d messages, have %d", count, len(msgs))
		}
	}
}

func newTestSession(t *testing.T, f *fakeRoomServer) (*Session, *stateRecorder) {
	t.Helper()
	return newSessionWithReadTimeout(t, f, 0)
}

func newSessionWithReadTimeout(t *testing.T, f *fakeRoomServer, timeout time.Duration) (*Session, *stateRecorder) {
	t.Helper()

	rec := newStateRecorder()
	session := NewSession(SessionConfig{
		Client:            NewClient(f.server.URL),
		DeviceID:          "dev_a",
		Room:              RoomRef{Type: RoomTypeGroup, ID: "grp_1"},
		OnChange:          rec.onChange,
		ReconnectInterval: 25 * time.Millisecond,
		ReadTimeout:       timeout,
	})
	rec.session = session
	t.Cleanup(session.Close)
	return session, rec
}

func TestSessionOpenSeedsHistoryAndReceivesLive(t *testing.T) {
	f := newFakeRoomServer(t)
	f.appendMessage("dev_b", "earlier")

	session, rec := newTestSession(t, f)
	require.NoError(t, session.Open())

	rec.waitFor(t, StateOpen)
	conn := <-f.connCh

	msgs := rec.waitForMessages(t, 1)
	require.Equal(t, "earlier", msgs[0].Text)

	f.push(conn, f.appendMessage("dev_b", "live one"))

	msgs = rec.waitForMessages(t, 2)
	require.Equal(t, "live one", msgs[1].Text)
}

func TestSessionSendOptimisticThenResolved(t *testing.T) {
	f := newFakeRoomServer(t)
	session, rec := newTestSession(t, f)
	require.NoError(t, session.Open())
	rec.waitFor(t, StateOpen)
	<-f.connCh

	require.True(t, session.Send("hello"))

	msgs := rec.waitForMessages(t, 1)
	require.Equal(t, "hello", msgs[0].Text)

	// The temporary id gives way to the store-assigned one.
	deadline := time.After(5 * time.Second)
	for {
		msgs = session.Messages()
		if len(msgs) == 1 && !msgs[0].Pending {
			break
		}
		select {
		case <-rec.signal:
		case <-deadline:
			t.Fatal("send never resolved")
		}
	}
	require.Equal(t, "m1", msgs[0].ID)
	require.False(t, msgs[0].Failed)
}

func TestSessionSendRequiresOpen(t *testing.T) {
	f := newFakeRoomServer(t)
	session, _ := newTestSession(t, f)

	require.False(t, session.Send("too early"))
	require.False(t, session.Send(""))
}

func TestSessionSendRejectsWhitespaceOnly(t *testing.T) {
	f := newFakeRoomServer(t)
	session, rec := newTestSession(t, f)
	require.NoError(t, session.Open())
	rec.waitFor(t, StateOpen)
	<-f.connCh

	require.False(t, session.Send("   \t "))
	require.Empty(t, session.Messages())

	// Padding is stripped before the optimistic copy is admitted, so the
	// local sequence matches what the store persists.
	require.True(t, session.Send("  hi  "))
	msgs := rec.waitForMessages(t, 1)
	require.Equal(t, "hi", msgs[0].Text)
}

func TestSessionReconnectsWithoutDuplicates(t *testing.T) {
	f := newFakeRoomServer(t)
	f.appendMessage("dev_b", "first")

	session, rec := newTestSession(t, f)
	require.NoError(t, session.Open())
	rec.waitFor(t, StateOpen)
	conn := <-f.connCh

	rec.waitForMessages(t, 1)

	// A message lands while connected, then the transport drops.
	f.push(conn, f.appendMessage("dev_b", "second"))
	rec.waitForMessages(t, 2)
	conn.Close()

	rec.waitFor(t, StateError)
	rec.waitFor(t, StateOpen)
	<-f.connCh

	// The reconnect snapshot overlaps everything already held; nothing
	// duplicates and ordering holds.
	msgs := rec.waitForMessages(t, 2)
	require.Len(t, msgs, 2)
	require.Equal(t, "first", msgs[0].Text)
	require.Equal(t, "second", msgs[1].Text)
	require.GreaterOrEqual(t, f.mints(), 2)
}

func TestSessionStalledConnectionReconnects(t *testing.T) {
	f := newFakeRoomServer(t)
	f.appendMessage("dev_b", "first")

	session, rec := newSessionWithReadTimeout(t, f, 100*time.Millisecond)
	require.NoError(t, session.Open())
	rec.waitFor(t, StateOpen)
	<-f.connCh
	rec.waitForMessages(t, 1)

	// The server goes silent without closing the socket. The read deadline
	// turns the stall into an ordinary transport drop and the supervisor
	// rebuilds instead of blocking on the dead connection.
	rec.waitFor(t, StateError)
	rec.waitFor(t, StateOpen)
	<-f.connCh

	msgs := rec.waitForMessages(t, 1)
	require.Len(t, msgs, 1)
	require.Equal(t, "first", msgs[0].Text)
	require.GreaterOrEqual(t, f.mints(), 2)
}

func TestSessionPingsHoldOffReadTimeout(t *testing.T) {
	f := newFakeRoomServer(t)
	session, rec := newSessionWithReadTimeout(t, f, 250*time.Millisecond)
	require.NoError(t, session.Open())
	rec.waitFor(t, StateOpen)
	conn := <-f.connCh

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)) != nil {
					return
				}
			case <-stop:
				return
			}
		}
	}()

	// Pings alone refresh the deadline; the connection stays up well past
	// the timeout window.
	time.Sleep(time.Second)
	require.Equal(t, StateOpen, session.State())
	require.Equal(t, 1, f.mints())
}

func TestSessionAccessDeniedIsTerminal(t *testing.T) {
	f := newFakeRoomServer(t)
	f.denyMint = true

	session, rec := newTestSession(t, f)
	require.NoError(t, session.Open())

	rec.waitFor(t, StateError)

	// Denial stops the retry loop; the mint count stays put.
	time.Sleep(150 * time.Millisecond)
	require.Equal(t, 1, f.mints())
	require.Equal(t, StateError, session.State())
}

func TestSessionCloseIsTerminal(t *testing.T) {
	f := newFakeRoomServer(t)
	session, rec := newTestSession(t, f)
	require.NoError(t, session.Open())
	rec.waitFor(t, StateOpen)
	<-f.connCh

	session.Close()
	require.Equal(t, StateClosed, session.State())
	require.ErrorIs(t, session.Open(), ErrSessionClosed)
	require.False(t, session.Send("after close"))
}

func TestSessionOpenIdempotent(t *testing.T) {
	f := newFakeRoomServer(t)
	session, rec := newTestSession(t, f)

	require.NoError(t, session.Open())
	require.NoError(t, session.Open())
	rec.waitFor(t, StateOpen)
	<-f.connCh

	require.Equal(t, 1, f.mints())
}
