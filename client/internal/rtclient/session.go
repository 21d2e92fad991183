package rtclient

import (
	"fmt"

	"github.com/mirrormap/mirrormap/client/internal/realtime"
	"github.com/mirrormap/mirrormap/pkg/wire"
)

var _ realtime.Session = (*Client)(nil)

// ID returns the session identifier the server assigned at attach.
func (c *Client) ID() string { return c.session }

// Root returns the document's root map, which always exists.
func (c *Client) Root() (realtime.RemoteMap, error) {
	return c.Map(wire.RootObjectID)
}

// Map resolves a shared map by object ID.
func (c *Client) Map(id string) (realtime.RemoteMap, error) {
	if err := c.lookup(id, wire.KindMap); err != nil {
		return nil, err
	}
	return &remoteMap{c: c, id: id}, nil
}

// List resolves a shared list by object ID.
func (c *Client) List(id string) (realtime.RemoteList, error) {
	if err := c.lookup(id, wire.KindList); err != nil {
		return nil, err
	}
	return &remoteList{c: c, id: id}, nil
}

// Text resolves a shared text buffer by object ID.
func (c *Client) Text(id string) (realtime.RemoteText, error) {
	if err := c.lookup(id, wire.KindText); err != nil {
		return nil, err
	}
	return &remoteText{c: c, id: id}, nil
}

// CreateMap mints a fresh shared map in the document.
func (c *Client) CreateMap() (realtime.RemoteMap, error) {
	id, err := c.create(wire.KindMap)
	if err != nil {
		return nil, err
	}
	return &remoteMap{c: c, id: id}, nil
}

// CreateList mints a fresh shared list in the document.
func (c *Client) CreateList() (realtime.RemoteList, error) {
	id, err := c.create(wire.KindList)
	if err != nil {
		return nil, err
	}
	return &remoteList{c: c, id: id}, nil
}

// CreateText mints a fresh shared text buffer in the document.
func (c *Client) CreateText() (realtime.RemoteText, error) {
	id, err := c.create(wire.KindText)
	if err != nil {
		return nil, err
	}
	return &remoteText{c: c, id: id}, nil
}

func (c *Client) lookup(id string, kind wire.ObjectKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	obj, ok := c.objects[id]
	if !ok {
		return fmt.Errorf("rtclient: no object %q in document %q", id, c.opts.Doc)
	}
	if obj.kind != kind {
		return fmt.Errorf("rtclient: object %q is a %s, not a %s", id, obj.kind, kind)
	}
	return nil
}

// create registers the object locally, then ships the create op. The ID
// is session-prefixed so concurrent creates across sessions never
// collide.
func (c *Client) create(kind wire.ObjectKind) (string, error) {
	select {
	case <-c.done:
		return "", ErrClosed
	default:
	}
	c.mu.Lock()
	c.nextObj++
	id := fmt.Sprintf("%s/%d", c.session, c.nextObj)
	c.objects[id] = newObject(kind)
	c.mu.Unlock()

	if err := c.enqueue(wire.Op{Kind: wire.OpCreate, Object: id, NewKind: kind}); err != nil {
		return "", err
	}
	return id, nil
}

// --- remote handles ---------------------------------------------------------

type remoteMap struct {
	c  *Client
	id string
}

func (m *remoteMap) ID() string { return m.id }

func (m *remoteMap) Entries() ([]wire.MapEntry, uint64, error) {
	m.c.mu.Lock()
	defer m.c.mu.Unlock()
	obj, ok := m.c.objects[m.id]
	if !ok {
		return nil, 0, fmt.Errorf("rtclient: no object %q", m.id)
	}
	out := make([]wire.MapEntry, 0, len(obj.order))
	for _, k := range obj.order {
		out = append(out, wire.MapEntry{Key: k, Value: obj.entries[k]})
	}
	return out, m.c.rev, nil
}

func (m *remoteMap) Set(key string, v wire.Value) error {
	return m.c.localOp(wire.Op{Kind: wire.OpSet, Object: m.id, Key: key, Value: v})
}

func (m *remoteMap) Delete(key string) error {
	return m.c.localOp(wire.Op{Kind: wire.OpDelete, Object: m.id, Key: key})
}

func (m *remoteMap) Watch(fn func(realtime.MapEvent)) (func(), error) {
	m.c.mu.Lock()
	defer m.c.mu.Unlock()
	if _, ok := m.c.objects[m.id]; !ok {
		return nil, fmt.Errorf("rtclient: no object %q", m.id)
	}
	m.c.nextWatch++
	wid := m.c.nextWatch
	if m.c.mapWatch[m.id] == nil {
		m.c.mapWatch[m.id] = make(map[uint64]func(realtime.MapEvent))
	}
	m.c.mapWatch[m.id][wid] = fn
	c, id := m.c, m.id
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.mapWatch[id], wid)
	}, nil
}

type remoteList struct {
	c  *Client
	id string
}

func (l *remoteList) ID() string { return l.id }

func (l *remoteList) Items() ([]wire.Value, uint64, error) {
	l.c.mu.Lock()
	defer l.c.mu.Unlock()
	obj, ok := l.c.objects[l.id]
	if !ok {
		return nil, 0, fmt.Errorf("rtclient: no object %q", l.id)
	}
	return append([]wire.Value(nil), obj.items...), l.c.rev, nil
}

func (l *remoteList) Insert(i int, v wire.Value) error {
	return l.c.localOp(wire.Op{Kind: wire.OpListInsert, Object: l.id, Index: i, Value: v})
}

func (l *remoteList) Append(v wire.Value) error {
	return l.c.localOp(wire.Op{Kind: wire.OpListInsert, Object: l.id, Index: -1, Value: v})
}

func (l *remoteList) Set(i int, v wire.Value) error {
	return l.c.localOp(wire.Op{Kind: wire.OpListSet, Object: l.id, Index: i, Value: v})
}

func (l *remoteList) Remove(i int) error {
	return l.c.localOp(wire.Op{Kind: wire.OpListRemove, Object: l.id, Index: i})
}

func (l *remoteList) Watch(fn func(realtime.ListEvent)) (func(), error) {
	l.c.mu.Lock()
	defer l.c.mu.Unlock()
	if _, ok := l.c.objects[l.id]; !ok {
		return nil, fmt.Errorf("rtclient: no object %q", l.id)
	}
	l.c.nextWatch++
	wid := l.c.nextWatch
	if l.c.listWatch[l.id] == nil {
		l.c.listWatch[l.id] = make(map[uint64]func(realtime.ListEvent))
	}
	l.c.listWatch[l.id][wid] = fn
	c, id := l.c, l.id
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listWatch[id], wid)
	}, nil
}

type remoteText struct {
	c  *Client
	id string
}

func (t *remoteText) ID() string { return t.id }

func (t *remoteText) Snapshot() (string, uint64, error) {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	obj, ok := t.c.objects[t.id]
	if !ok {
		return "", 0, fmt.Errorf("rtclient: no object %q", t.id)
	}
	return string(obj.text), t.c.rev, nil
}

func (t *remoteText) Insert(pos int, s string) error {
	return t.c.localOp(wire.Op{Kind: wire.OpTextInsert, Object: t.id, Pos: pos, Text: s})
}

func (t *remoteText) Remove(start, end int) error {
	return t.c.localOp(wire.Op{Kind: wire.OpTextRemove, Object: t.id, Pos: start, End: end})
}

func (t *remoteText) SetText(s string) error {
	return t.c.localOp(wire.Op{Kind: wire.OpTextSet, Object: t.id, Text: s})
}

func (t *remoteText) Watch(fn func(realtime.TextEvent)) (func(), error) {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if _, ok := t.c.objects[t.id]; !ok {
		return nil, fmt.Errorf("rtclient: no object %q", t.id)
	}
	t.c.nextWatch++
	wid := t.c.nextWatch
	if t.c.textWatch[t.id] == nil {
		t.c.textWatch[t.id] = make(map[uint64]func(realtime.TextEvent))
	}
	t.c.textWatch[t.id][wid] = fn
	c, id := t.c, t.id
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.textWatch[id], wid)
	}, nil
}
