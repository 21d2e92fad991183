package realtime

import (
	"fmt"
	"sync"

	"github.com/mirrormap/mirrormap/pkg/wire"
)

// The fakes below stand in for the backend. Local writes through the
// remote interface fire Local events synchronously, the way the real
// client applies its own ops; the remote* helpers simulate changes
// made by another session, sequenced with advancing revisions.

type fakeSession struct {
	id string

	mu    sync.Mutex
	maps  map[string]*fakeMap
	lists map[string]*fakeList
	texts map[string]*fakeText
	next  int
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		id:    "s1",
		maps:  make(map[string]*fakeMap),
		lists: make(map[string]*fakeList),
		texts: make(map[string]*fakeText),
	}
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) Map(id string) (RemoteMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.maps[id]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("no map %q", id)
}

func (s *fakeSession) List(id string) (RemoteList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.lists[id]; ok {
		return l, nil
	}
	return nil, fmt.Errorf("no list %q", id)
}

func (s *fakeSession) Text(id string) (RemoteText, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.texts[id]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("no text %q", id)
}

func (s *fakeSession) CreateMap() (RemoteMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	m := newFakeMap(fmt.Sprintf("%s/%d", s.id, s.next))
	s.maps[m.id] = m
	return m, nil
}

func (s *fakeSession) CreateList() (RemoteList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	l := newFakeList(fmt.Sprintf("%s/%d", s.id, s.next))
	s.lists[l.id] = l
	return l, nil
}

func (s *fakeSession) CreateText() (RemoteText, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	t := newFakeText(fmt.Sprintf("%s/%d", s.id, s.next))
	s.texts[t.id] = t
	return t, nil
}

// --- fake map ---

type fakeMap struct {
	id string

	mu       sync.Mutex
	entries  map[string]wire.Value
	order    []string
	rev      uint64
	watchers map[int]func(MapEvent)
	nextW    int

	failSet      error  // next Set returns this
	afterEntries func() // runs after Entries captures its snapshot
}

func newFakeMap(id string) *fakeMap {
	return &fakeMap{
		id:       id,
		entries:  make(map[string]wire.Value),
		watchers: make(map[int]func(MapEvent)),
	}
}

func (m *fakeMap) ID() string { return m.id }

func (m *fakeMap) Entries() ([]wire.MapEntry, uint64, error) {
	m.mu.Lock()
	out := make([]wire.MapEntry, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, wire.MapEntry{Key: k, Value: m.entries[k]})
	}
	rev := m.rev
	hook := m.afterEntries
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	return out, rev, nil
}

func (m *fakeMap) Set(key string, v wire.Value) error {
	m.mu.Lock()
	if m.failSet != nil {
		err := m.failSet
		m.failSet = nil
		m.mu.Unlock()
		return err
	}
	old := m.store(key, v)
	m.mu.Unlock()
	m.notify(MapEvent{Key: key, Old: old, New: v, Local: true})
	return nil
}

func (m *fakeMap) Delete(key string) error {
	m.mu.Lock()
	old, existed := m.remove(key)
	m.mu.Unlock()
	if existed {
		m.notify(MapEvent{Key: key, Old: old, Local: true})
	}
	return nil
}

func (m *fakeMap) Watch(fn func(MapEvent)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextW++
	id := m.nextW
	m.watchers[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.watchers, id)
	}, nil
}

// remoteSet simulates another session writing key.
func (m *fakeMap) remoteSet(key string, v wire.Value) {
	m.mu.Lock()
	old := m.store(key, v)
	m.rev++
	rev := m.rev
	m.mu.Unlock()
	m.notify(MapEvent{Key: key, Old: old, New: v, Rev: rev})
}

// remoteDelete simulates another session deleting key.
func (m *fakeMap) remoteDelete(key string) {
	m.mu.Lock()
	old, existed := m.remove(key)
	m.rev++
	rev := m.rev
	m.mu.Unlock()
	if existed {
		m.notify(MapEvent{Key: key, Old: old, Rev: rev})
	}
}

func (m *fakeMap) watcherCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watchers)
}

func (m *fakeMap) value(key string) (wire.Value, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	return v, ok
}

func (m *fakeMap) store(key string, v wire.Value) wire.Value {
	old, existed := m.entries[key]
	m.entries[key] = v
	if !existed {
		m.order = append(m.order, key)
	}
	return old
}

func (m *fakeMap) remove(key string) (wire.Value, bool) {
	old, existed := m.entries[key]
	if !existed {
		return wire.Absent, false
	}
	delete(m.entries, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return old, true
}

func (m *fakeMap) notify(ev MapEvent) {
	m.mu.Lock()
	fns := make([]func(MapEvent), 0, len(m.watchers))
	for _, fn := range m.watchers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// --- fake list ---

type fakeList struct {
	id string

	mu       sync.Mutex
	items    []wire.Value
	rev      uint64
	watchers map[int]func(ListEvent)
	nextW    int
}

func newFakeList(id string) *fakeList {
	return &fakeList{id: id, watchers: make(map[int]func(ListEvent))}
}

func (l *fakeList) ID() string { return l.id }

func (l *fakeList) Items() ([]wire.Value, uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]wire.Value, len(l.items))
	copy(out, l.items)
	return out, l.rev, nil
}

func (l *fakeList) Insert(i int, v wire.Value) error {
	l.mu.Lock()
	if i < 0 || i > len(l.items) {
		l.mu.Unlock()
		return fmt.Errorf("insert at %d with length %d", i, len(l.items))
	}
	l.items = append(l.items, wire.Absent)
	copy(l.items[i+1:], l.items[i:])
	l.items[i] = v
	l.mu.Unlock()
	l.notify(ListEvent{Kind: ListEventInsert, Index: i, New: v, Local: true})
	return nil
}

func (l *fakeList) Append(v wire.Value) error {
	l.mu.Lock()
	i := len(l.items)
	l.items = append(l.items, v)
	l.mu.Unlock()
	l.notify(ListEvent{Kind: ListEventInsert, Index: i, New: v, Local: true})
	return nil
}

func (l *fakeList) Set(i int, v wire.Value) error {
	l.mu.Lock()
	if i < 0 || i >= len(l.items) {
		l.mu.Unlock()
		return fmt.Errorf("set at %d with length %d", i, len(l.items))
	}
	old := l.items[i]
	l.items[i] = v
	l.mu.Unlock()
	l.notify(ListEvent{Kind: ListEventSet, Index: i, Old: old, New: v, Local: true})
	return nil
}

func (l *fakeList) Remove(i int) error {
	l.mu.Lock()
	if i < 0 || i >= len(l.items) {
		l.mu.Unlock()
		return fmt.Errorf("remove at %d with length %d", i, len(l.items))
	}
	old := l.items[i]
	l.items = append(l.items[:i], l.items[i+1:]...)
	l.mu.Unlock()
	l.notify(ListEvent{Kind: ListEventRemove, Index: i, Old: old, Local: true})
	return nil
}

func (l *fakeList) Watch(fn func(ListEvent)) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextW++
	id := l.nextW
	l.watchers[id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.watchers, id)
	}, nil
}

func (l *fakeList) remoteInsert(i int, v wire.Value) {
	l.mu.Lock()
	l.items = append(l.items, wire.Absent)
	copy(l.items[i+1:], l.items[i:])
	l.items[i] = v
	l.rev++
	rev := l.rev
	l.mu.Unlock()
	l.notify(ListEvent{Kind: ListEventInsert, Index: i, New: v, Rev: rev})
}

func (l *fakeList) remoteRemove(i int) {
	l.mu.Lock()
	old := l.items[i]
	l.items = append(l.items[:i], l.items[i+1:]...)
	l.rev++
	rev := l.rev
	l.mu.Unlock()
	l.notify(ListEvent{Kind: ListEventRemove, Index: i, Old: old, Rev: rev})
}

func (l *fakeList) remoteSet(i int, v wire.Value) {
	l.mu.Lock()
	old := l.items[i]
	l.items[i] = v
	l.rev++
	rev := l.rev
	l.mu.Unlock()
	l.notify(ListEvent{Kind: ListEventSet, Index: i, Old: old, New: v, Rev: rev})
}

func (l *fakeList) watcherCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.watchers)
}

func (l *fakeList) notify(ev ListEvent) {
	l.mu.Lock()
	fns := make([]func(ListEvent), 0, len(l.watchers))
	for _, fn := range l.watchers {
		fns = append(fns, fn)
	}
	l.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// --- fake text ---

type fakeText struct {
	id string

	mu       sync.Mutex
	runes    []rune
	rev      uint64
	watchers map[int]func(TextEvent)
	nextW    int
}

func newFakeText(id string) *fakeText {
	return &fakeText{id: id, watchers: make(map[int]func(TextEvent))}
}

func (t *fakeText) ID() string { return t.id }

func (t *fakeText) Snapshot() (string, uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.runes), t.rev, nil
}

func (t *fakeText) Insert(pos int, s string) error {
	t.mu.Lock()
	ins := []rune(s)
	t.runes = append(t.runes[:pos], append(ins, t.runes[pos:]...)...)
	t.mu.Unlock()
	t.notify(TextEvent{Kind: TextEventInsert, Pos: pos, End: pos + len(ins), Text: s, Local: true})
	return nil
}

func (t *fakeText) Remove(start, end int) error {
	t.mu.Lock()
	removed := string(t.runes[start:end])
	t.runes = append(t.runes[:start], t.runes[end:]...)
	t.mu.Unlock()
	t.notify(TextEvent{Kind: TextEventRemove, Pos: start, End: end, Text: removed, Local: true})
	return nil
}

func (t *fakeText) SetText(s string) error {
	t.mu.Lock()
	t.runes = []rune(s)
	t.mu.Unlock()
	t.notify(TextEvent{Kind: TextEventSet, Text: s, Local: true})
	return nil
}

func (t *fakeText) Watch(fn func(TextEvent)) (func(), error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextW++
	id := t.nextW
	t.watchers[id] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.watchers, id)
	}, nil
}

func (t *fakeText) remoteInsert(pos int, s string) {
	t.mu.Lock()
	ins := []rune(s)
	t.runes = append(t.runes[:pos], append(ins, t.runes[pos:]...)...)
	t.rev++
	rev := t.rev
	t.mu.Unlock()
	t.notify(TextEvent{Kind: TextEventInsert, Pos: pos, End: pos + len(ins), Text: s, Rev: rev})
}

func (t *fakeText) remoteRemove(start, end int) {
	t.mu.Lock()
	removed := string(t.runes[start:end])
	t.runes = append(t.runes[:start], t.runes[end:]...)
	t.rev++
	rev := t.rev
	t.mu.Unlock()
	t.notify(TextEvent{Kind: TextEventRemove, Pos: start, End: end, Text: removed, Rev: rev})
}

func (t *fakeText) remoteSetText(s string) {
	t.mu.Lock()
	t.runes = []rune(s)
	t.rev++
	rev := t.rev
	t.mu.Unlock()
	t.notify(TextEvent{Kind: TextEventSet, Text: s, Rev: rev})
}

func (t *fakeText) watcherCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.watchers)
}

func (t *fakeText) text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.runes)
}

func (t *fakeText) notify(ev TextEvent) {
	t.mu.Lock()
	fns := make([]func(TextEvent), 0, len(t.watchers))
	for _, fn := range t.watchers {
		fns = append(fns, fn)
	}
	t.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// mustJSON builds a wire value or panics; test input only.
func mustJSON(v any) wire.Value {
	wv, err := wire.JSONValue(v)
	if err != nil {
		panic(err)
	}
	return wv
}
