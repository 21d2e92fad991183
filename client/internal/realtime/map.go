package realtime

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/mirrormap/mirrormap/client/internal/convert"
	"github.com/mirrormap/mirrormap/client/internal/observable"
	"github.com/mirrormap/mirrormap/client/internal/signal"
	"github.com/mirrormap/mirrormap/pkg/wire"
)

// MapAdapter presents the observable-map contract over a shared map.
// Reads are served from the local cache; writes go to the remote
// object first and to the cache second, so a failed remote write
// leaves the cache untouched. Values under keys with a registered
// converter cross the wire in converted form; values that are
// themselves adapters cross as references and are re-wrapped into
// child adapters on the way back in.
//
// A detached adapter is usable as a plain local map. Attach merges the
// local state with the remote object: local-only keys are pushed,
// everything the remote holds is pulled with the remote value winning.
type MapAdapter struct {
	mu        sync.Mutex
	conv      *convert.Registry
	session   Session
	remote    RemoteMap
	unwatch   func()
	children  map[string]disposable
	disposed  bool
	buffering bool
	backlog   []MapEvent

	cache *observable.Map
}

// NewMapAdapter returns a detached, empty adapter. A nil registry gets
// the JSON fallback for every key.
func NewMapAdapter(conv *convert.Registry) *MapAdapter {
	if conv == nil {
		conv = convert.NewRegistry()
	}
	return &MapAdapter{
		conv:     conv,
		children: make(map[string]disposable),
		cache:    observable.NewMap(),
	}
}

// Changed exposes the map's mutation signal. Remote and local changes
// emit through the same signal, classified add, change or remove by
// the presence of the old and new value.
func (a *MapAdapter) Changed() *signal.Signal[observable.MapChange] { return a.cache.Changed() }

// --- reads ---

// Get returns the cached value under key.
func (a *MapAdapter) Get(key string) (any, bool) { return a.cache.Get(key) }

// Has reports whether key is present in the cache.
func (a *MapAdapter) Has(key string) bool { return a.cache.Has(key) }

// Len returns the number of cached entries.
func (a *MapAdapter) Len() int { return a.cache.Len() }

// Keys returns the cached keys in insertion order.
func (a *MapAdapter) Keys() []string { return a.cache.Keys() }

// Values returns the cached values in key insertion order.
func (a *MapAdapter) Values() []any { return a.cache.Values() }

// --- writes ---

// Set stores value under key and returns the value it replaced, if
// any. Attached, the write goes to the remote map first; the change
// signal fires once the cache reflects it.
func (a *MapAdapter) Set(key string, value any) (old any, err error) {
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return nil, ErrDisposed
	}
	remote := a.remote
	a.mu.Unlock()

	if remote != nil {
		wv, err := a.outgoing(key, value)
		if err != nil {
			return nil, err
		}
		if err := remote.Set(key, wv); err != nil {
			return nil, fmt.Errorf("remote set %q: %w", key, err)
		}
	}
	old, _ = a.cache.Set(key, value)
	return old, nil
}

// Delete removes key from the remote map and the cache, returning the
// cached value it held. Deleting an absent key is a no-op.
func (a *MapAdapter) Delete(key string) (old any, err error) {
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return nil, ErrDisposed
	}
	remote := a.remote
	a.mu.Unlock()

	if !a.cache.Has(key) {
		return nil, nil
	}
	if remote != nil {
		if err := remote.Delete(key); err != nil {
			return nil, fmt.Errorf("remote delete %q: %w", key, err)
		}
	}
	old, _ = a.cache.Delete(key)
	return old, nil
}

// Clear deletes every key one at a time, in insertion order, so
// observers receive one remove per key.
func (a *MapAdapter) Clear() error {
	for _, k := range a.cache.Keys() {
		if _, err := a.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// --- lifecycle ---

// Attach binds the adapter to a live remote map. The watch registers
// before the snapshot read; events that race the snapshot are buffered
// and replayed afterwards, with the snapshot revision deciding which
// of them it already contains. Keys present only locally are written
// to the remote object; every remote entry is then pulled into the
// cache, overwriting local values and emitting the corresponding
// change events. Attach can succeed at most once.
func (a *MapAdapter) Attach(session Session, remote RemoteMap) error {
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return ErrDisposed
	}
	if a.remote != nil {
		a.mu.Unlock()
		return ErrAttached
	}
	a.session = session
	a.remote = remote
	a.buffering = true
	a.mu.Unlock()

	unwatch, err := remote.Watch(a.onRemote)
	if err != nil {
		a.detach(nil)
		return fmt.Errorf("watch remote map: %w", err)
	}
	a.mu.Lock()
	a.unwatch = unwatch
	a.mu.Unlock()

	entries, rev, err := remote.Entries()
	if err != nil {
		a.detach(unwatch)
		return fmt.Errorf("read remote entries: %w", err)
	}

	remoteKeys := make(map[string]bool, len(entries))
	for _, e := range entries {
		remoteKeys[e.Key] = true
	}
	for _, key := range a.cache.Keys() {
		if remoteKeys[key] {
			continue
		}
		local, _ := a.cache.Get(key)
		wv, err := a.outgoing(key, local)
		if err != nil {
			a.detach(unwatch)
			return fmt.Errorf("push local key %q: %w", key, err)
		}
		if err := remote.Set(key, wv); err != nil {
			a.detach(unwatch)
			return fmt.Errorf("push local key %q: %w", key, err)
		}
	}

	for _, e := range entries {
		v, err := a.incoming(e.Key, e.Value)
		if err != nil {
			a.detach(unwatch)
			return fmt.Errorf("populate key %q: %w", e.Key, err)
		}
		a.cache.Set(e.Key, v)
	}

	a.drain(rev)
	return nil
}

// Dispose detaches the remote watch, disposes any child adapters and
// empties the cache. No change events fire. Dispose is idempotent and
// further mutations return ErrDisposed.
func (a *MapAdapter) Dispose() {
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return
	}
	a.disposed = true
	unwatch := a.unwatch
	children := a.children
	a.unwatch = nil
	a.remote = nil
	a.session = nil
	a.children = nil
	a.backlog = nil
	a.buffering = false
	a.mu.Unlock()

	if unwatch != nil {
		unwatch()
	}
	for _, child := range children {
		child.Dispose()
	}
	a.cache.Dispose()
}

// IsDisposed reports whether Dispose has been called.
func (a *MapAdapter) IsDisposed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.disposed
}

// Link would bind this adapter to mirror another. The semantics were
// never defined and no backend supports it; it always fails.
func (a *MapAdapter) Link(other *MapAdapter) error { return ErrLinkUnsupported }

// Unlink undoes Link. Since Link never succeeds there is nothing to
// undo; Unlink is a documented no-op.
func (a *MapAdapter) Unlink() {}

// detach rolls back a failed Attach.
func (a *MapAdapter) detach(unwatch func()) {
	a.mu.Lock()
	a.session = nil
	a.remote = nil
	a.unwatch = nil
	a.backlog = nil
	a.buffering = false
	a.mu.Unlock()
	if unwatch != nil {
		unwatch()
	}
}

// --- remote change handling ---

// onRemote receives one remote change. During Attach the event goes to
// the backlog; afterwards it applies immediately.
func (a *MapAdapter) onRemote(ev MapEvent) {
	a.mu.Lock()
	if a.buffering && !a.disposed {
		a.backlog = append(a.backlog, ev)
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()
	a.apply(ev)
}

// drain replays buffered events in arrival order, skipping those the
// snapshot at rev already contained, then switches to direct delivery.
func (a *MapAdapter) drain(rev uint64) {
	for {
		a.mu.Lock()
		if len(a.backlog) == 0 {
			a.buffering = false
			a.mu.Unlock()
			return
		}
		batch := a.backlog
		a.backlog = nil
		a.mu.Unlock()

		for _, ev := range batch {
			if ev.Rev <= rev {
				continue
			}
			a.apply(ev)
		}
	}
}

// apply folds one remote change into the cache. Events from this
// session's own writes are skipped: the mutating call already updated
// the cache. Undecodable values are dropped with a warning; the cache
// keeps its previous entry until a readable change arrives.
func (a *MapAdapter) apply(ev MapEvent) {
	if ev.Local {
		return
	}
	a.mu.Lock()
	disposed := a.disposed
	a.mu.Unlock()
	if disposed {
		return
	}

	if ev.New.IsAbsent() {
		a.cache.Delete(ev.Key)
		return
	}
	v, err := a.incoming(ev.Key, ev.New)
	if err != nil {
		slog.Warn("realtime: dropping unreadable remote value", "key", ev.Key, "err", err)
		return
	}
	a.cache.Set(ev.Key, v)
}

// --- value translation ---

// outgoing converts a local value to its wire form. Adapters become
// references; everything else goes through the key's converter.
func (a *MapAdapter) outgoing(key string, v any) (wire.Value, error) {
	if ref, ok, err := refOf(v); ok || err != nil {
		return ref, err
	}
	wv, err := a.conv.For(key).ToRemote(v)
	if err != nil {
		return wire.Absent, fmt.Errorf("convert %q: %w", key, err)
	}
	return wv, nil
}

// incoming converts a wire value to its local form, re-wrapping
// references into child adapters.
func (a *MapAdapter) incoming(key string, v wire.Value) (any, error) {
	if v.IsRef() {
		return a.wrapRef(v)
	}
	out, err := a.conv.For(key).FromRemote(v)
	if err != nil {
		return nil, fmt.Errorf("convert %q: %w", key, err)
	}
	return out, nil
}

// wrapRef resolves a reference into a child adapter, reusing the child
// if this adapter has wrapped the same object before. Children share
// the parent's converter registry and dispose with the parent.
func (a *MapAdapter) wrapRef(v wire.Value) (any, error) {
	a.mu.Lock()
	session := a.session
	existing := a.children[v.Ref]
	a.mu.Unlock()

	if existing != nil {
		return existing, nil
	}
	if session == nil {
		return nil, ErrNotAttached
	}

	child, err := newChild(session, a.conv, v)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	if a.children == nil {
		// Disposed while the child was attaching; cascade now.
		a.mu.Unlock()
		child.Dispose()
		return nil, ErrDisposed
	}
	a.children[v.Ref] = child
	a.mu.Unlock()
	return child, nil
}

// remoteID returns the id of the attached remote object.
func (a *MapAdapter) remoteID() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.remote == nil {
		return "", ErrNotAttached
	}
	return a.remote.ID(), nil
}
