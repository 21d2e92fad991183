package observable

import (
	"fmt"
	"sync"

	"github.com/mirrormap/mirrormap/client/internal/signal"
)

// TextChangeType classifies a single text mutation.
type TextChangeType string

const (
	TextInserted TextChangeType = "insert"
	TextRemoved  TextChangeType = "remove"
	TextSet      TextChangeType = "set"
)

// TextChange describes one mutation of a Text buffer. Offsets are in
// runes. For inserts, [Start, End) spans the inserted run and Value is
// the inserted text. For removes, [Start, End) is the removed span and
// Value the removed text. For sets, Start is 0, End the new length and
// Value the full replacement.
type TextChange struct {
	Type  TextChangeType
	Start int
	End   int
	Value string
}

// Text is an observable text buffer addressed by rune offsets. All
// methods are safe for concurrent use; change handlers run on the
// mutating goroutine with no internal lock held.
type Text struct {
	mu       sync.Mutex
	runes    []rune
	disposed bool
	changed  signal.Signal[TextChange]
}

// NewText returns a Text holding s.
func NewText(s string) *Text {
	return &Text{runes: []rune(s)}
}

// Changed exposes the mutation signal.
func (t *Text) Changed() *signal.Signal[TextChange] { return &t.changed }

// Text returns the current contents.
func (t *Text) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.runes)
}

// Len returns the length in runes.
func (t *Text) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.runes)
}

// Insert places s at rune offset pos.
func (t *Text) Insert(pos int, s string) error {
	if s == "" {
		return nil
	}
	t.mu.Lock()
	if t.disposed {
		t.mu.Unlock()
		return ErrDisposed
	}
	if pos < 0 || pos > len(t.runes) {
		n := len(t.runes)
		t.mu.Unlock()
		return fmt.Errorf("insert at %d with length %d: %w", pos, n, ErrOutOfRange)
	}
	ins := []rune(s)
	t.runes = append(t.runes[:pos], append(ins, t.runes[pos:]...)...)
	t.mu.Unlock()

	t.changed.Emit(TextChange{Type: TextInserted, Start: pos, End: pos + len(ins), Value: s})
	return nil
}

// Remove deletes the rune span [start, end) and returns the removed
// text. An empty span is a no-op.
func (t *Text) Remove(start, end int) (string, error) {
	t.mu.Lock()
	if t.disposed {
		t.mu.Unlock()
		return "", ErrDisposed
	}
	if start < 0 || end > len(t.runes) || start > end {
		n := len(t.runes)
		t.mu.Unlock()
		return "", fmt.Errorf("remove [%d,%d) with length %d: %w", start, end, n, ErrOutOfRange)
	}
	if start == end {
		t.mu.Unlock()
		return "", nil
	}
	removed := string(t.runes[start:end])
	t.runes = append(t.runes[:start], t.runes[end:]...)
	t.mu.Unlock()

	t.changed.Emit(TextChange{Type: TextRemoved, Start: start, End: end, Value: removed})
	return removed, nil
}

// SetText replaces the entire contents.
func (t *Text) SetText(s string) error {
	t.mu.Lock()
	if t.disposed {
		t.mu.Unlock()
		return ErrDisposed
	}
	t.runes = []rune(s)
	n := len(t.runes)
	t.mu.Unlock()

	t.changed.Emit(TextChange{Type: TextSet, Start: 0, End: n, Value: s})
	return nil
}

// Dispose empties the buffer and rejects further writes. Idempotent.
func (t *Text) Dispose() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed {
		return
	}
	t.disposed = true
	t.runes = nil
}

// IsDisposed reports whether Dispose has been called.
func (t *Text) IsDisposed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.disposed
}
