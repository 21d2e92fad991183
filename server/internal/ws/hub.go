package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mirrormap/mirrormap/pkg/wire"
	"github.com/mirrormap/mirrormap/server/internal/docstore"
	"github.com/mirrormap/mirrormap/server/internal/metrics"
)

const (
	// writeTimeout bounds any single write to a client connection.
	writeTimeout = 10 * time.Second

	// pongWait is the silence window after which a connection that has
	// not answered a ping is considered dead.
	pongWait = 60 * time.Second

	// pingPeriod spaces the server's ping frames. It has to stay under
	// pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-session outgoing frame buffer depth.
	sendBufSize = 16

	// attachTimeout bounds how long a fresh connection may sit before
	// completing the attach handshake.
	attachTimeout = 10 * time.Second

	// maxMessageSize bounds a single client frame. Ops are small; anything
	// bigger is a broken client.
	maxMessageSize = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// All origins are accepted; origin policy belongs to the reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub manages WebSocket sessions attached to documents. Each applied op is
// broadcast as an event to every other session on the same document.
type Hub struct {
	store   *docstore.Store
	metrics *metrics.Set

	mu       sync.RWMutex
	sessions map[*session]struct{}
	docs     map[string]map[*session]struct{} // doc name → attached sessions
	nextID   uint64

	onDocCreated func(doc string)
}

// session represents one attached client connection.
type session struct {
	conn *websocket.Conn
	id   string
	doc  string

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(conn *websocket.Conn, id, doc string) *session {
	return &session{
		conn: conn,
		id:   id,
		doc:  doc,
		send: make(chan []byte, sendBufSize),
		done: make(chan struct{}),
	}
}

func (c *session) close() { c.closeOnce.Do(func() { close(c.done) }) }

// trySend queues data without blocking. False means the buffer is full.
func (c *session) trySend(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// New creates a Hub backed by st, counting into m.
func New(st *docstore.Store, m *metrics.Set) *Hub {
	return &Hub{
		store:    st,
		metrics:  m,
		sessions: make(map[*session]struct{}),
		docs:     make(map[string]map[*session]struct{}),
	}
}

// OnDocCreated registers fn to run when a first attach creates a document.
// Set before the hub starts serving.
func (h *Hub) OnDocCreated(fn func(doc string)) { h.onDocCreated = fn }

// Count returns the number of currently attached sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Run blocks until ctx is cancelled, then closes all active sessions.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.RLock()
	targets := make([]*session, 0, len(h.sessions))
	for c := range h.sessions {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.release(c)
	}
}

// ServeHTTP upgrades the connection, runs the attach handshake and serves
// the session. Blocks until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade failures write their own HTTP response.
		return
	}

	doc, err := readAttach(conn)
	if err != nil {
		slog.Warn("ws: attach failed", "remote", r.RemoteAddr, "err", err)
		writeError(conn, "bad_attach", err.Error())
		conn.Close()
		return
	}

	snap, created := h.store.Attach(doc)
	if created {
		h.metrics.DocCreated()
		slog.Info("ws: created document", "doc", doc)
		if h.onDocCreated != nil {
			h.onDocCreated(doc)
		}
	}

	c := newSession(conn, h.mintID(), doc)
	h.register(c)
	defer h.release(c)

	c.trySend(frame(wire.ServerMessage{Type: wire.MsgHello, Session: c.id}))
	c.trySend(frame(wire.ServerMessage{
		Type:    wire.MsgSnapshot,
		Doc:     snap.Doc,
		Rev:     snap.Rev,
		Objects: snap.Objects,
	}))
	h.announce(doc, wire.ServerMessage{
		Type:     wire.MsgPresence,
		Joined:   c.id,
		Sessions: h.sessionList(doc),
	})

	slog.Info("ws: session attached", "doc", doc, "session", c.id, "rev", snap.Rev)

	go c.writePump()
	h.readPump(c) // blocks until the connection closes
}

// --- frames -----------------------------------------------------------------

// readAttach consumes and validates the first client frame.
func readAttach(conn *websocket.Conn) (string, error) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(attachTimeout))

	_, data, err := conn.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("read attach: %w", err)
	}
	var msg wire.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", fmt.Errorf("decode attach: %w", err)
	}
	if msg.Type != wire.MsgAttach {
		return "", fmt.Errorf("first frame is %q, want %q", msg.Type, wire.MsgAttach)
	}
	if msg.Doc == "" {
		return "", errors.New("attach without document name")
	}
	return msg.Doc, nil
}

// frame marshals a server message. wire structs always encode.
func frame(msg wire.ServerMessage) []byte {
	data, _ := json.Marshal(msg)
	return data
}

func errorFrame(code, message string) []byte {
	return frame(wire.ServerMessage{Type: wire.MsgError, Code: code, Message: message})
}

// writeError writes an error frame directly, for connections that die
// before their write pump exists.
func writeError(conn *websocket.Conn, code, message string) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	conn.WriteMessage(websocket.TextMessage, errorFrame(code, message)) //nolint:errcheck
}

// --- session lifecycle ------------------------------------------------------

func (h *Hub) mintID() string {
	h.mu.Lock()
	h.nextID++
	n := h.nextID
	h.mu.Unlock()
	return fmt.Sprintf("s%d", n)
}

func (h *Hub) register(c *session) {
	h.mu.Lock()
	h.sessions[c] = struct{}{}
	peers := h.docs[c.doc]
	if peers == nil {
		peers = make(map[*session]struct{})
		h.docs[c.doc] = peers
	}
	peers[c] = struct{}{}
	h.mu.Unlock()
}

// release detaches the session everywhere: hub maps, store accounting and
// a presence broadcast to whoever is left. Safe to call more than once.
func (h *Hub) release(c *session) {
	h.mu.Lock()
	_, ok := h.sessions[c]
	if ok {
		delete(h.sessions, c)
		peers := h.docs[c.doc]
		delete(peers, c)
		if len(peers) == 0 {
			delete(h.docs, c.doc)
		}
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	c.close()
	h.store.Detach(c.doc)
	h.announce(c.doc, wire.ServerMessage{
		Type:     wire.MsgPresence,
		Left:     c.id,
		Sessions: h.sessionList(c.doc),
	})
	slog.Info("ws: session detached", "doc", c.doc, "session", c.id)
}

// sessionList returns the IDs attached to doc, sorted.
func (h *Hub) sessionList(doc string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.docs[doc]))
	for c := range h.docs[doc] {
		out = append(out, c.id)
	}
	sort.Strings(out)
	return out
}

// --- op handling ------------------------------------------------------------

// apply runs one op through the store and broadcasts the resulting event
// to every other session on the document.
func (h *Hub) apply(c *session, op wire.Op) {
	ev, err := h.store.Apply(c.doc, op, c.id)
	switch {
	case errors.Is(err, docstore.ErrNoChange):
		// Nothing mutated, nothing to tell anyone.
		return
	case err != nil:
		h.metrics.OpRejected()
		slog.Warn("ws: rejected op", "doc", c.doc, "session", c.id, "kind", op.Kind, "err", err)
		c.trySend(errorFrame(errCode(err), err.Error()))
		return
	}

	h.metrics.OpApplied(string(op.Kind))
	n := h.broadcast(c.doc, frame(wire.ServerMessage{Type: wire.MsgEvent, Event: &ev}), c)
	h.metrics.EventsBroadcast(n)
}

// errCode maps store errors to wire error codes.
func errCode(err error) string {
	switch {
	case errors.Is(err, docstore.ErrUnknownDoc):
		return "unknown_doc"
	case errors.Is(err, docstore.ErrUnknownObject):
		return "unknown_object"
	case errors.Is(err, docstore.ErrObjectExists):
		return "object_exists"
	case errors.Is(err, docstore.ErrKindMismatch):
		return "kind_mismatch"
	case errors.Is(err, docstore.ErrOutOfRange):
		return "out_of_range"
	default:
		return "bad_op"
	}
}

// broadcast queues data to every session on doc except the given one and
// returns how many deliveries were queued. Sessions whose buffer is full
// are disconnected rather than allowed to stall the rest.
func (h *Hub) broadcast(doc string, data []byte, except *session) int {
	h.mu.RLock()
	targets := make([]*session, 0, len(h.docs[doc]))
	for c := range h.docs[doc] {
		if c != except {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if c.trySend(data) {
			sent++
			continue
		}
		slog.Warn("ws: disconnecting slow session", "doc", doc, "session", c.id)
		h.release(c)
	}
	return sent
}

// announce broadcasts a presence change to everyone on doc, the subject
// included.
func (h *Hub) announce(doc string, msg wire.ServerMessage) {
	h.broadcast(doc, frame(msg), nil)
}

// --- pumps ------------------------------------------------------------------

// readPump decodes client frames and applies ops until the connection
// closes. Runs on the handler goroutine.
func (h *Hub) readPump(c *session) {
	defer c.conn.Close()
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg wire.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("ws: dropping malformed frame", "session", c.id, "err", err)
			c.trySend(errorFrame("bad_message", "malformed frame"))
			continue
		}

		switch msg.Type {
		case wire.MsgOp:
			if msg.Op == nil {
				c.trySend(errorFrame("bad_op", "op frame without op"))
				continue
			}
			h.apply(c, *msg.Op)
		case wire.MsgAttach:
			// One document per connection.
			c.trySend(errorFrame("already_attached", "session is attached to "+c.doc))
		default:
			slog.Warn("ws: unknown frame type", "session", c.id, "type", msg.Type)
		}
	}
}

// writePump drains the session's send channel and keeps the ping schedule.
// Runs in its own goroutine per session; owns all post-handshake writes.
func (c *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")) //nolint:errcheck
			return

		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
