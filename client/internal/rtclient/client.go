package rtclient

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

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorilla/websocket"

	"github.com/mirrormap/mirrormap/client/internal/realtime"
	"github.com/mirrormap/mirrormap/client/internal/signal"
	"github.com/mirrormap/mirrormap/pkg/wire"
)

const (
	// writeTimeout bounds any single frame write to the server.
	writeTimeout = 10 * time.Second

	// pongWait is the silence window after which the server is
	// considered gone.
	pongWait = 60 * time.Second

	// pingPeriod spaces outgoing ping frames. It has to stay under
	// pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the outgoing op buffer depth; ops block rather
	// than drop once it fills.
	sendBufSize = 16

	// maxMessageSize bounds a single server message. Snapshots of
	// large documents dominate, ops are small.
	maxMessageSize = 1 << 20

	// defaultHandshakeTimeout bounds the attach round trip when the
	// dial context carries no deadline of its own.
	defaultHandshakeTimeout = 10 * time.Second
)

// ErrClosed reports an operation on a client whose session has ended.
var ErrClosed = errors.New("rtclient: client is closed")

// Options configures Dial.
type Options struct {
	// Endpoint is the ws:// or wss:// URL of the server's sync endpoint.
	Endpoint string

	// Doc is the document to attach to. The server creates it on first
	// attach.
	Doc string

	// APIKey, when set, is sent on the upgrade request in AuthHeader.
	APIKey string

	// AuthHeader names the header carrying APIKey. Empty means
	// "X-API-Key".
	AuthHeader string

	// HandshakeTimeout bounds the websocket dial and attach handshake.
	HandshakeTimeout time.Duration
}

// PresenceEvent reports a change in the set of sessions attached to
// the document. Joined or Left name the session that moved; Sessions
// is the resulting peer set, excluding this client.
type PresenceEvent struct {
	Joined   string
	Left     string
	Sessions []string
}

// Client is one attached session. All methods are safe for concurrent
// use.
type Client struct {
	opts    Options
	conn    *websocket.Conn
	session string

	mu        sync.Mutex
	rev       uint64
	objects   map[string]*object
	mapWatch  map[string]map[uint64]func(realtime.MapEvent)
	listWatch map[string]map[uint64]func(realtime.ListEvent)
	textWatch map[string]map[uint64]func(realtime.TextEvent)
	nextWatch uint64
	nextObj   int
	failure   error

	peers    mapset.Set[string]
	presence signal.Signal[PresenceEvent]
	events   signal.Signal[wire.Event]

	send      chan []byte
	done      chan struct{}
	writeDone chan struct{}
	closeOnce sync.Once
}

// Dial connects to the server, attaches to the document and returns a
// live client once the snapshot has been applied.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if opts.Endpoint == "" {
		return nil, errors.New("rtclient: endpoint is required")
	}
	if opts.Doc == "" {
		return nil, errors.New("rtclient: doc is required")
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}

	dialer := websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout}
	header := http.Header{}
	if opts.APIKey != "" {
		name := opts.AuthHeader
		if name == "" {
			name = "X-API-Key"
		}
		header.Set(name, opts.APIKey)
	}
	conn, _, err := dialer.DialContext(ctx, opts.Endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", opts.Endpoint, err)
	}

	c := &Client{
		opts:      opts,
		conn:      conn,
		objects:   make(map[string]*object),
		mapWatch:  make(map[string]map[uint64]func(realtime.MapEvent)),
		listWatch: make(map[string]map[uint64]func(realtime.ListEvent)),
		textWatch: make(map[string]map[uint64]func(realtime.TextEvent)),
		peers:     mapset.NewSet[string](),
		send:      make(chan []byte, sendBufSize),
		done:      make(chan struct{}),
		writeDone: make(chan struct{}),
	}
	if err := c.handshake(); err != nil {
		conn.Close()
		return nil, err
	}

	go c.writePump()
	go c.readPump()

	slog.Info("rtclient: attached", "doc", opts.Doc, "session", c.session, "rev", c.Rev())
	return c, nil
}

// Doc returns the attached document name.
func (c *Client) Doc() string { return c.opts.Doc }

// Rev returns the latest server revision the replica has seen.
func (c *Client) Rev() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rev
}

// Peers returns the other sessions attached to the document, sorted.
func (c *Client) Peers() []string {
	out := c.peers.ToSlice()
	sort.Strings(out)
	return out
}

// PresenceChanged exposes the peer-set signal. Handlers run on the
// read-pump goroutine.
func (c *Client) PresenceChanged() *signal.Signal[PresenceEvent] { return &c.presence }

// Events exposes every remote change applied to the replica, with
// displaced state (old values, removed text) already filled in. Own
// ops do not appear; they were observed at the local apply. Handlers
// run on the read-pump goroutine.
func (c *Client) Events() *signal.Signal[wire.Event] { return &c.events }

// Close ends the session, waiting for the write pump to flush any
// queued ops and send the close frame. Safe to call more than once.
func (c *Client) Close() error {
	c.shutdown()
	<-c.writeDone
	return nil
}

// Done closes when the session ends, whether by Close or by a
// connection failure.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err reports why the session ended, nil for a clean Close.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failure
}

// --- handshake --------------------------------------------------------------

// handshake sends the attach request and consumes server messages
// until both the hello and the snapshot have arrived.
func (c *Client) handshake() error {
	deadline := time.Now().Add(c.opts.HandshakeTimeout)

	attach, err := json.Marshal(wire.ClientMessage{Type: wire.MsgAttach, Doc: c.opts.Doc})
	if err != nil {
		return fmt.Errorf("encode attach: %w", err)
	}
	c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, attach); err != nil {
		return fmt.Errorf("send attach: %w", err)
	}

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(deadline)
	var haveHello, haveSnapshot bool
	for !haveHello || !haveSnapshot {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("attach handshake: %w", err)
		}
		var msg wire.ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return fmt.Errorf("attach handshake: %w", err)
		}
		switch msg.Type {
		case wire.MsgHello:
			c.session = msg.Session
			haveHello = true
		case wire.MsgSnapshot:
			c.loadSnapshot(msg)
			haveSnapshot = true
		case wire.MsgPresence:
			c.applyPresence(msg)
		case wire.MsgError:
			return fmt.Errorf("server rejected attach: %s (%s)", msg.Message, msg.Code)
		}
	}
	return nil
}

// --- pumps ------------------------------------------------------------------

// readPump decodes server messages and applies them until the
// connection ends. Runs in its own goroutine.
func (c *Client) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(err)
			return
		}
		var msg wire.ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("rtclient: dropping malformed server message", "err", err)
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg wire.ServerMessage) {
	switch msg.Type {
	case wire.MsgEvent:
		if msg.Event == nil {
			slog.Warn("rtclient: event message without event body")
			return
		}
		c.applyEvent(*msg.Event)
	case wire.MsgPresence:
		c.applyPresence(msg)
	case wire.MsgSnapshot:
		// Not part of the normal flow after attach; treat it as a
		// resync and rebuild the replica.
		slog.Warn("rtclient: mid-session snapshot — resyncing replica", "rev", msg.Rev)
		c.loadSnapshot(msg)
	case wire.MsgError:
		slog.Warn("rtclient: server error", "code", msg.Code, "message", msg.Message)
	default:
		slog.Warn("rtclient: unknown server message type", "type", msg.Type)
	}
}

// writePump forwards queued ops to the connection and keeps the ping
// schedule. Runs in its own goroutine; owns all post-handshake writes.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		close(c.writeDone)
	}()

	for {
		select {
		case <-c.done:
			// Drain queued ops before the close frame so a Close right
			// after a write does not drop it. Messages are ordered, so
			// the server applies them before it sees the close.
			for {
				select {
				case msg := <-c.send:
					c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
						return
					}
				default:
					c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					c.conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")) //nolint:errcheck
					return
				}
			}

		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.fail(err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.fail(err)
				return
			}
		}
	}
}

// enqueue queues one op for the write pump, blocking while the buffer
// is full.
func (c *Client) enqueue(op wire.Op) error {
	data, err := json.Marshal(wire.ClientMessage{Type: wire.MsgOp, Op: &op})
	if err != nil {
		return fmt.Errorf("encode op: %w", err)
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// fail records the first connection error and ends the session.
func (c *Client) fail(err error) {
	select {
	case <-c.done:
		// Already closing; the read error is just the fallout.
	default:
		c.mu.Lock()
		if c.failure == nil {
			c.failure = err
		}
		c.mu.Unlock()
		slog.Warn("rtclient: connection lost", "doc", c.opts.Doc, "err", err)
	}
	c.shutdown()
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}

// --- presence ---------------------------------------------------------------

func (c *Client) applyPresence(msg wire.ServerMessage) {
	if len(msg.Sessions) > 0 {
		c.peers.Clear()
		for _, s := range msg.Sessions {
			if s != c.session {
				c.peers.Add(s)
			}
		}
	}
	if msg.Joined != "" && msg.Joined != c.session {
		c.peers.Add(msg.Joined)
	}
	if msg.Left != "" {
		c.peers.Remove(msg.Left)
	}
	c.presence.Emit(PresenceEvent{Joined: msg.Joined, Left: msg.Left, Sessions: c.Peers()})
}
