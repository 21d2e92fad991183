package observable

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mirrormap/mirrormap/client/internal/signal"
)

// ErrOutOfRange reports an index outside a container's bounds.
var ErrOutOfRange = errors.New("observable: index out of range")

// ErrDisposed reports a mutation attempted after Dispose.
var ErrDisposed = errors.New("observable: container is disposed")

// ListChangeType classifies a single list mutation.
type ListChangeType string

const (
	ListInserted ListChangeType = "insert"
	ListSet      ListChangeType = "set"
	ListRemoved  ListChangeType = "remove"
)

// ListChange describes one mutation of a List. Old is meaningful for
// set and remove, New for insert and set.
type ListChange struct {
	Type  ListChangeType
	Index int
	Old   any
	New   any
}

// List is an observable sequence of arbitrary values. All methods are
// safe for concurrent use; change handlers run on the mutating
// goroutine with no internal lock held.
type List struct {
	mu       sync.Mutex
	items    []any
	disposed bool
	changed  signal.Signal[ListChange]
}

// NewList returns an empty List.
func NewList() *List {
	return &List{}
}

// Changed exposes the mutation signal.
func (l *List) Changed() *signal.Signal[ListChange] { return &l.changed }

// Len returns the number of items.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Get returns the item at index i.
func (l *List) Get(i int) (any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.items) {
		return nil, false
	}
	return l.items[i], true
}

// Items returns a copy of the list contents.
func (l *List) Items() []any {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]any, len(l.items))
	copy(out, l.items)
	return out
}

// Insert places v at index i, shifting later items right. i may equal
// Len to append.
func (l *List) Insert(i int, v any) error {
	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		return ErrDisposed
	}
	if i < 0 || i > len(l.items) {
		n := len(l.items)
		l.mu.Unlock()
		return fmt.Errorf("insert at %d with length %d: %w", i, n, ErrOutOfRange)
	}
	l.items = append(l.items, nil)
	copy(l.items[i+1:], l.items[i:])
	l.items[i] = v
	l.mu.Unlock()

	l.changed.Emit(ListChange{Type: ListInserted, Index: i, New: v})
	return nil
}

// Push appends v to the end of the list.
func (l *List) Push(v any) error {
	return l.Insert(l.Len(), v)
}

// Set replaces the item at index i and returns the value it replaced.
func (l *List) Set(i int, v any) (old any, err error) {
	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		return nil, ErrDisposed
	}
	if i < 0 || i >= len(l.items) {
		n := len(l.items)
		l.mu.Unlock()
		return nil, fmt.Errorf("set at %d with length %d: %w", i, n, ErrOutOfRange)
	}
	old = l.items[i]
	l.items[i] = v
	l.mu.Unlock()

	l.changed.Emit(ListChange{Type: ListSet, Index: i, Old: old, New: v})
	return old, nil
}

// Remove deletes the item at index i and returns it.
func (l *List) Remove(i int) (old any, err error) {
	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		return nil, ErrDisposed
	}
	if i < 0 || i >= len(l.items) {
		n := len(l.items)
		l.mu.Unlock()
		return nil, fmt.Errorf("remove at %d with length %d: %w", i, n, ErrOutOfRange)
	}
	old = l.items[i]
	l.items = append(l.items[:i], l.items[i+1:]...)
	l.mu.Unlock()

	l.changed.Emit(ListChange{Type: ListRemoved, Index: i, Old: old})
	return old, nil
}

// Clear removes every item, front to back, emitting one remove per
// item with the items in their original order.
func (l *List) Clear() {
	for l.Len() > 0 {
		if _, err := l.Remove(0); err != nil {
			return
		}
	}
}

// Dispose empties the list and rejects further writes. Idempotent.
func (l *List) Dispose() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.disposed {
		return
	}
	l.disposed = true
	l.items = nil
}

// IsDisposed reports whether Dispose has been called.
func (l *List) IsDisposed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.disposed
}
