package realtime

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/mirrormap/mirrormap/client/internal/observable"
	"github.com/mirrormap/mirrormap/client/internal/signal"
)

// TextAdapter presents the observable-text contract over a shared
// text buffer. Offsets are rune offsets on both sides of the wire.
//
// Attach pulls the remote snapshot when the remote buffer has content;
// a local draft only survives into the shared buffer when the remote
// side is still empty.
type TextAdapter struct {
	mu        sync.Mutex
	session   Session
	remote    RemoteText
	unwatch   func()
	disposed  bool
	buffering bool
	backlog   []TextEvent

	cache *observable.Text
}

// NewTextAdapter returns a detached, empty adapter.
func NewTextAdapter() *TextAdapter {
	return &TextAdapter{cache: observable.NewText("")}
}

// Changed exposes the buffer's mutation signal.
func (a *TextAdapter) Changed() *signal.Signal[observable.TextChange] { return a.cache.Changed() }

// Text returns the cached contents.
func (a *TextAdapter) Text() string { return a.cache.Text() }

// Len returns the cached length in runes.
func (a *TextAdapter) Len() int { return a.cache.Len() }

// --- writes ---

// Insert places s at rune offset pos, writing through to the remote
// buffer first.
func (a *TextAdapter) Insert(pos int, s string) error {
	remote, err := a.liveRemote()
	if err != nil {
		return err
	}
	if remote != nil {
		if err := remote.Insert(pos, s); err != nil {
			return fmt.Errorf("remote insert at %d: %w", pos, err)
		}
	}
	return a.cache.Insert(pos, s)
}

// Remove deletes the rune span [start, end) and returns the removed
// text.
func (a *TextAdapter) Remove(start, end int) (string, error) {
	remote, err := a.liveRemote()
	if err != nil {
		return "", err
	}
	if remote != nil {
		if err := remote.Remove(start, end); err != nil {
			return "", fmt.Errorf("remote remove [%d,%d): %w", start, end, err)
		}
	}
	return a.cache.Remove(start, end)
}

// SetText replaces the entire contents.
func (a *TextAdapter) SetText(s string) error {
	remote, err := a.liveRemote()
	if err != nil {
		return err
	}
	if remote != nil {
		if err := remote.SetText(s); err != nil {
			return fmt.Errorf("remote set text: %w", err)
		}
	}
	return a.cache.SetText(s)
}

// --- lifecycle ---

// Attach binds the adapter to a live remote buffer. The watch
// registers before the snapshot read; racing events buffer and replay
// afterwards, filtered by the snapshot revision. A non-empty remote
// snapshot replaces the cache; otherwise a non-empty local draft is
// pushed to the remote buffer.
func (a *TextAdapter) Attach(session Session, remote RemoteText) error {
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
		return fmt.Errorf("watch remote text: %w", err)
	}
	a.mu.Lock()
	a.unwatch = unwatch
	a.mu.Unlock()

	text, rev, err := remote.Snapshot()
	if err != nil {
		a.detach(unwatch)
		return fmt.Errorf("read remote text: %w", err)
	}

	switch {
	case text != "":
		if err := a.cache.SetText(text); err != nil {
			a.detach(unwatch)
			return fmt.Errorf("populate text: %w", err)
		}
	case a.cache.Len() > 0:
		if err := remote.SetText(a.cache.Text()); err != nil {
			a.detach(unwatch)
			return fmt.Errorf("push local text: %w", err)
		}
	}

	a.drain(rev)
	return nil
}

// Dispose detaches the remote watch and empties the buffer.
// Idempotent; no change events fire.
func (a *TextAdapter) Dispose() {
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return
	}
	a.disposed = true
	unwatch := a.unwatch
	a.unwatch = nil
	a.remote = nil
	a.session = nil
	a.backlog = nil
	a.buffering = false
	a.mu.Unlock()

	if unwatch != nil {
		unwatch()
	}
	a.cache.Dispose()
}

// IsDisposed reports whether Dispose has been called.
func (a *TextAdapter) IsDisposed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.disposed
}

func (a *TextAdapter) liveRemote() (RemoteText, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disposed {
		return nil, ErrDisposed
	}
	return a.remote, nil
}

// detach rolls back a failed Attach.
func (a *TextAdapter) detach(unwatch func()) {
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

func (a *TextAdapter) onRemote(ev TextEvent) {
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
func (a *TextAdapter) drain(rev uint64) {
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

// apply folds one remote change into the cache. Offsets out of range
// mean the buffer drifted under concurrent edits; the change is
// dropped with a warning.
func (a *TextAdapter) apply(ev TextEvent) {
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
	case TextEventInsert:
		err = a.cache.Insert(ev.Pos, ev.Text)
	case TextEventRemove:
		_, err = a.cache.Remove(ev.Pos, ev.End)
	case TextEventSet:
		err = a.cache.SetText(ev.Text)
	}
	if err != nil {
		slog.Warn("realtime: dropping remote text change", "pos", ev.Pos, "err", err)
	}
}

// remoteID returns the id of the attached remote object.
func (a *TextAdapter) remoteID() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.remote == nil {
		return "", ErrNotAttached
	}
	return a.remote.ID(), nil
}
