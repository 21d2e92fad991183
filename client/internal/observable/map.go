package observable

import (
	"sync"

	"github.com/mirrormap/mirrormap/client/internal/signal"
)

// MapChangeType classifies a single map mutation.
type MapChangeType string

const (
	// MapAdded reports a key that had no previous value.
	MapAdded MapChangeType = "add"
	// MapChanged reports a key whose value was replaced.
	MapChanged MapChangeType = "change"
	// MapRemoved reports a key that was deleted.
	MapRemoved MapChangeType = "remove"
)

// MapChange describes one mutation of a Map. Old is nil for adds and
// New is nil for removes; HadOld and HasNew disambiguate a stored nil
// from an absent entry.
type MapChange struct {
	Type   MapChangeType
	Key    string
	Old    any
	New    any
	HadOld bool
	HasNew bool
}

// Map is an insertion-ordered observable map from string keys to
// arbitrary values. All methods are safe for concurrent use. Change
// handlers run on the mutating goroutine with no internal lock held.
type Map struct {
	mu       sync.Mutex
	entries  map[string]any
	order    []string
	disposed bool
	changed  signal.Signal[MapChange]
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{entries: make(map[string]any)}
}

// Changed exposes the mutation signal.
func (m *Map) Changed() *signal.Signal[MapChange] { return &m.changed }

// --- reads ---

// Get returns the value stored under key.
func (m *Map) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	return ok
}

// Len returns the number of entries.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Keys returns the keys in insertion order. Re-setting an existing key
// keeps its original position.
func (m *Map) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Values returns the values in key insertion order.
func (m *Map) Values() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]any, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, m.entries[k])
	}
	return out
}

// --- writes ---

// Set stores value under key and returns the prior value, if any. The
// change emits as an add when the key was absent and a change when it
// was present. Setting on a disposed map is a no-op.
func (m *Map) Set(key string, value any) (old any, existed bool) {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return nil, false
	}
	old, existed = m.entries[key]
	m.entries[key] = value
	if !existed {
		m.order = append(m.order, key)
	}
	m.mu.Unlock()

	ch := MapChange{Type: MapAdded, Key: key, New: value, HasNew: true}
	if existed {
		ch.Type = MapChanged
		ch.Old = old
		ch.HadOld = true
	}
	m.changed.Emit(ch)
	return old, existed
}

// Delete removes key and returns the value it held. Deleting an absent
// key emits nothing.
func (m *Map) Delete(key string) (old any, existed bool) {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return nil, false
	}
	old, existed = m.entries[key]
	if existed {
		delete(m.entries, key)
		m.dropKey(key)
	}
	m.mu.Unlock()

	if existed {
		m.changed.Emit(MapChange{Type: MapRemoved, Key: key, Old: old, HadOld: true})
	}
	return old, existed
}

// Clear deletes every entry, one key at a time in insertion order, so
// observers see the same remove sequence a manual teardown would emit.
func (m *Map) Clear() {
	for _, k := range m.Keys() {
		m.Delete(k)
	}
}

// --- lifecycle ---

// Dispose empties the map and rejects further writes. It emits no
// change events and is idempotent.
func (m *Map) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return
	}
	m.disposed = true
	m.entries = make(map[string]any)
	m.order = nil
}

// IsDisposed reports whether Dispose has been called.
func (m *Map) IsDisposed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disposed
}

// dropKey removes key from the order slice. Caller holds mu.
func (m *Map) dropKey(key string) {
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}
