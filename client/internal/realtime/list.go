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

// ListAdapter presents the observable-list contract over a shared
// sequence. One converter covers every item; references held in the
// sequence are re-wrapped into child adapters the same way map values
// are.
//
// Attach merges local state with the remote object: remote items come
// first, local items are appended after them, and both sides end up
// with the same sequence.
type ListAdapter struct {
	mu        sync.Mutex
	conv      convert.Converter
	session   Session
	remote    RemoteList
	unwatch   func()
	children  map[string]disposable
	disposed  bool
	buffering bool
	backlog   []ListEvent

	cache *observable.List
}

// NewListAdapter returns a detached, empty adapter. A nil converter
// means plain JSON items.
func NewListAdapter(conv convert.Converter) *ListAdapter {
	if conv == nil {
		conv = convert.JSON()
	}
	return &ListAdapter{
		conv:     conv,
		children: make(map[string]disposable),
		cache:    observable.NewList(),
	}
}

// Changed exposes the list's mutation signal.
func (a *ListAdapter) Changed() *signal.Signal[observable.ListChange] { return a.cache.Changed() }

// --- reads ---

// Len returns the number of cached items.
func (a *ListAdapter) Len() int { return a.cache.Len() }

// Get returns the cached item at index i.
func (a *ListAdapter) Get(i int) (any, bool) { return a.cache.Get(i) }

// Items returns a copy of the cached sequence.
func (a *ListAdapter) Items() []any { return a.cache.Items() }

// --- writes ---

// Insert places v at index i, writing through to the remote sequence
// first.
func (a *ListAdapter) Insert(i int, v any) error {
	remote, err := a.liveRemote()
	if err != nil {
		return err
	}
	if remote != nil {
		wv, err := a.outgoing(v)
		if err != nil {
			return err
		}
		if err := remote.Insert(i, wv); err != nil {
			return fmt.Errorf("remote insert at %d: %w", i, err)
		}
	}
	return a.cache.Insert(i, v)
}

// Push appends v to the end of the sequence.
func (a *ListAdapter) Push(v any) error {
	remote, err := a.liveRemote()
	if err != nil {
		return err
	}
	if remote != nil {
		wv, err := a.outgoing(v)
		if err != nil {
			return err
		}
		if err := remote.Append(wv); err != nil {
			return fmt.Errorf("remote append: %w", err)
		}
	}
	return a.cache.Insert(a.cache.Len(), v)
}

// Set replaces the item at index i and returns the value it replaced.
func (a *ListAdapter) Set(i int, v any) (old any, err error) {
	remote, err := a.liveRemote()
	if err != nil {
		return nil, err
	}
	if remote != nil {
		wv, err := a.outgoing(v)
		if err != nil {
			return nil, err
		}
		if err := remote.Set(i, wv); err != nil {
			return nil, fmt.Errorf("remote set at %d: %w", i, err)
		}
	}
	return a.cache.Set(i, v)
}

// Remove deletes the item at index i and returns it.
func (a *ListAdapter) Remove(i int) (old any, err error) {
	remote, err := a.liveRemote()
	if err != nil {
		return nil, err
	}
	if remote != nil {
		if err := remote.Remove(i); err != nil {
			return nil, fmt.Errorf("remote remove at %d: %w", i, err)
		}
	}
	return a.cache.Remove(i)
}

// Clear removes every item front to back, one remove per item.
func (a *ListAdapter) Clear() error {
	for a.cache.Len() > 0 {
		if _, err := a.Remove(0); err != nil {
			return err
		}
	}
	return nil
}

// --- lifecycle ---

// Attach binds the adapter to a live remote sequence. The watch
// registers before the snapshot read; racing events buffer and replay
// afterwards, filtered by the snapshot revision. Local items are
// appended to the remote sequence and the remote snapshot is placed
// before them in the cache, so both sides converge on snapshot
// followed by local items.
func (a *ListAdapter) Attach(session Session, remote RemoteList) error {
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
		return fmt.Errorf("watch remote list: %w", err)
	}
	a.mu.Lock()
	a.unwatch = unwatch
	a.mu.Unlock()

	items, rev, err := remote.Items()
	if err != nil {
		a.detach(unwatch)
		return fmt.Errorf("read remote items: %w", err)
	}

	for _, local := range a.cache.Items() {
		wv, err := a.outgoing(local)
		if err != nil {
			a.detach(unwatch)
			return fmt.Errorf("push local item: %w", err)
		}
		if err := remote.Append(wv); err != nil {
			a.detach(unwatch)
			return fmt.Errorf("push local item: %w", err)
		}
	}

	for i, item := range items {
		v, err := a.incoming(item)
		if err != nil {
			a.detach(unwatch)
			return fmt.Errorf("populate item %d: %w", i, err)
		}
		if err := a.cache.Insert(i, v); err != nil {
			a.detach(unwatch)
			return fmt.Errorf("populate item %d: %w", i, err)
		}
	}

	a.drain(rev)
	return nil
}

// Dispose detaches the remote watch, disposes child adapters and
// empties the cache. Idempotent; no change events fire.
func (a *ListAdapter) Dispose() {
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
func (a *ListAdapter) IsDisposed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.disposed
}

// liveRemote returns the remote handle, or ErrDisposed after Dispose.
// A nil handle with nil error means the adapter is detached and the
// write is cache-only.
func (a *ListAdapter) liveRemote() (RemoteList, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disposed {
		return nil, ErrDisposed
	}
	return a.remote, nil
}

// detach rolls back a failed Attach.
func (a *ListAdapter) detach(unwatch func()) {
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

func (a *ListAdapter) onRemote(ev ListEvent) {
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
func (a *ListAdapter) drain(rev uint64) {
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

// apply folds one remote change into the cache. Indexes out of range
// for the cache mean the sequence drifted under concurrent positional
// edits; the change is dropped with a warning and the authoritative
// order returns on the next snapshot.
func (a *ListAdapter) apply(ev ListEvent) {
	if ev.Local {
		return
	}
	a.mu.Lock()
	disposed := a.disposed
	a.mu.Unlock()
	if disposed {
		return
	}

	var err error
	switch ev.Kind {
	case ListEventInsert:
		var v any
		if v, err = a.incoming(ev.New); err == nil {
			i := ev.Index
			if n := a.cache.Len(); i > n {
				i = n
			}
			err = a.cache.Insert(i, v)
		}
	case ListEventSet:
		var v any
		if v, err = a.incoming(ev.New); err == nil {
			_, err = a.cache.Set(ev.Index, v)
		}
	case ListEventRemove:
		_, err = a.cache.Remove(ev.Index)
	}
	if err != nil {
		slog.Warn("realtime: dropping remote list change", "index", ev.Index, "err", err)
	}
}

// --- value translation ---

func (a *ListAdapter) outgoing(v any) (wire.Value, error) {
	if ref, ok, err := refOf(v); ok || err != nil {
		return ref, err
	}
	wv, err := a.conv.ToRemote(v)
	if err != nil {
		return wire.Absent, fmt.Errorf("convert item: %w", err)
	}
	return wv, nil
}

func (a *ListAdapter) incoming(v wire.Value) (any, error) {
	if v.IsRef() {
		return a.wrapRef(v)
	}
	out, err := a.conv.FromRemote(v)
	if err != nil {
		return nil, fmt.Errorf("convert item: %w", err)
	}
	return out, nil
}

// wrapRef resolves a reference into a child adapter, reusing an
// existing child for the same object.
func (a *ListAdapter) wrapRef(v wire.Value) (any, error) {
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

	child, err := newChild(session, nil, v)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	if a.children == nil {
		a.mu.Unlock()
		child.Dispose()
		return nil, ErrDisposed
	}
	a.children[v.Ref] = child
	a.mu.Unlock()
	return child, nil
}

// remoteID returns the id of the attached remote object.
func (a *ListAdapter) remoteID() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.remote == nil {
		return "", ErrNotAttached
	}
	return a.remote.ID(), nil
}
