package observable

import (
	"errors"
	"testing"
)

func collectListChanges(l *List) *[]ListChange {
	changes := &[]ListChange{}
	l.Changed().Connect(func(c ListChange) { *changes = append(*changes, c) })
	return changes
}

func TestListInsertAndGet(t *testing.T) {
	l := NewList()
	changes := collectListChanges(l)

	if err := l.Push("a"); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := l.Push("c"); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := l.Insert(1, "b"); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	items := l.Items()
	if len(items) != 3 || items[0] != "a" || items[1] != "b" || items[2] != "c" {
		t.Fatalf("Items() = %v, want [a b c]", items)
	}
	if v, ok := l.Get(1); !ok || v != "b" {
		t.Errorf("Get(1) = (%v, %v), want (b, true)", v, ok)
	}
	if _, ok := l.Get(3); ok {
		t.Errorf("Get(3) reported ok on length-3 list")
	}
	if len(*changes) != 3 {
		t.Errorf("got %d changes, want 3", len(*changes))
	}
	mid := (*changes)[2]
	if mid.Type != ListInserted || mid.Index != 1 || mid.New != "b" {
		t.Errorf("insert change = %+v, want insert b at 1", mid)
	}
}

func TestListSetReturnsOld(t *testing.T) {
	l := NewList()
	l.Push(1)
	changes := collectListChanges(l)

	old, err := l.Set(0, 2)
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if old != 1 {
		t.Errorf("Set returned old=%v, want 1", old)
	}
	c := (*changes)[0]
	if c.Type != ListSet || c.Old != 1 || c.New != 2 {
		t.Errorf("set change = %+v, want set 1->2", c)
	}
}

func TestListRemoveShiftsLeft(t *testing.T) {
	l := NewList()
	l.Push("x")
	l.Push("y")
	l.Push("z")

	old, err := l.Remove(1)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if old != "y" {
		t.Errorf("Remove returned %v, want y", old)
	}
	items := l.Items()
	if len(items) != 2 || items[0] != "x" || items[1] != "z" {
		t.Errorf("Items() = %v, want [x z]", items)
	}
}

func TestListBoundsErrors(t *testing.T) {
	l := NewList()
	l.Push(0)

	if err := l.Insert(2, "v"); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Insert(2) err = %v, want ErrOutOfRange", err)
	}
	if err := l.Insert(-1, "v"); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Insert(-1) err = %v, want ErrOutOfRange", err)
	}
	if _, err := l.Set(1, "v"); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Set(1) err = %v, want ErrOutOfRange", err)
	}
	if _, err := l.Remove(1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Remove(1) err = %v, want ErrOutOfRange", err)
	}
}

func TestListClearEmitsRemovesInOrder(t *testing.T) {
	l := NewList()
	l.Push("a")
	l.Push("b")
	changes := collectListChanges(l)

	l.Clear()

	if l.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", l.Len())
	}
	if len(*changes) != 2 {
		t.Fatalf("Clear emitted %d changes, want 2", len(*changes))
	}
	if (*changes)[0].Old != "a" || (*changes)[1].Old != "b" {
		t.Errorf("Clear removed %v then %v, want a then b", (*changes)[0].Old, (*changes)[1].Old)
	}
	for _, c := range *changes {
		if c.Type != ListRemoved || c.Index != 0 {
			t.Errorf("clear change = %+v, want remove at index 0", c)
		}
	}
}

func TestListDisposedRejectsWrites(t *testing.T) {
	l := NewList()
	l.Push(1)
	l.Dispose()
	l.Dispose()

	if err := l.Push(2); !errors.Is(err, ErrDisposed) {
		t.Errorf("Push after Dispose err = %v, want ErrDisposed", err)
	}
	if _, err := l.Set(0, 2); !errors.Is(err, ErrDisposed) {
		t.Errorf("Set after Dispose err = %v, want ErrDisposed", err)
	}
	if l.Len() != 0 {
		t.Errorf("Len() after Dispose = %d, want 0", l.Len())
	}
}
