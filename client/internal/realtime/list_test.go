package realtime

import (
	"errors"
	"testing"

	"github.com/mirrormap/mirrormap/client/internal/observable"
)

func attachedList(t *testing.T) (*ListAdapter, *fakeList, *fakeSession) {
	t.Helper()
	sess := newFakeSession()
	rl, err := sess.CreateList()
	if err != nil {
		t.Fatalf("CreateList: %v", err)
	}
	ad := NewListAdapter(nil)
	if err := ad.Attach(sess, rl); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	return ad, rl.(*fakeList), sess
}

func recordListChanges(ad *ListAdapter) *[]observable.ListChange {
	changes := &[]observable.ListChange{}
	ad.Changed().Connect(func(c observable.ListChange) { *changes = append(*changes, c) })
	return changes
}

func TestListAdapterWriteThrough(t *testing.T) {
	ad, fl, _ := attachedList(t)
	changes := recordListChanges(ad)

	if err := ad.Push("a"); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := ad.Insert(0, "start"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := ad.Set(1, "b"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	items := ad.Items()
	if len(items) != 2 || items[0] != "start" || items[1] != "b" {
		t.Fatalf("Items() = %v, want [start b]", items)
	}

	remote, _, err := fl.Items()
	if err != nil {
		t.Fatalf("remote Items: %v", err)
	}
	if len(remote) != 2 {
		t.Fatalf("remote length = %d, want 2", len(remote))
	}
	var s string
	if err := remote[0].Decode(&s); err != nil || s != "start" {
		t.Errorf("remote[0] = %v (%v), want start", s, err)
	}

	// Local echoes from the backend do not double-apply.
	if len(*changes) != 3 {
		t.Errorf("got %d changes, want 3", len(*changes))
	}
}

func TestListAdapterRemove(t *testing.T) {
	ad, fl, _ := attachedList(t)
	ad.Push("x")
	ad.Push("y")
	changes := recordListChanges(ad)

	old, err := ad.Remove(0)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if old != "x" {
		t.Errorf("Remove returned %v, want x", old)
	}
	if remote, _, _ := fl.Items(); len(remote) != 1 {
		t.Errorf("remote length = %d, want 1", len(remote))
	}
	if len(*changes) != 1 || (*changes)[0].Type != observable.ListRemoved {
		t.Errorf("changes = %+v, want one remove", *changes)
	}
}

func TestListAdapterClear(t *testing.T) {
	ad, fl, _ := attachedList(t)
	ad.Push(1)
	ad.Push(2)

	if err := ad.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if ad.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", ad.Len())
	}
	if remote, _, _ := fl.Items(); len(remote) != 0 {
		t.Errorf("remote length after Clear = %d, want 0", len(remote))
	}
}

func TestListAdapterRemoteChanges(t *testing.T) {
	ad, fl, _ := attachedList(t)
	changes := recordListChanges(ad)

	fl.remoteInsert(0, mustJSON("r0"))
	fl.remoteInsert(1, mustJSON("r1"))
	fl.remoteSet(0, mustJSON("r0b"))
	fl.remoteRemove(1)

	items := ad.Items()
	if len(items) != 1 || items[0] != "r0b" {
		t.Errorf("Items() = %v, want [r0b]", items)
	}
	wantTypes := []observable.ListChangeType{
		observable.ListInserted, observable.ListInserted,
		observable.ListSet, observable.ListRemoved,
	}
	if len(*changes) != len(wantTypes) {
		t.Fatalf("got %d changes, want %d", len(*changes), len(wantTypes))
	}
	for i, want := range wantTypes {
		if (*changes)[i].Type != want {
			t.Errorf("change %d type = %q, want %q", i, (*changes)[i].Type, want)
		}
	}
}

func TestListAdapterAttachMergesLocalItems(t *testing.T) {
	sess := newFakeSession()
	rl, _ := sess.CreateList()
	fl := rl.(*fakeList)
	fl.remoteInsert(0, mustJSON("remote0"))
	fl.remoteInsert(1, mustJSON("remote1"))

	ad := NewListAdapter(nil)
	ad.Push("local0")
	if err := ad.Attach(sess, rl); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	items := ad.Items()
	if len(items) != 3 || items[0] != "remote0" || items[1] != "remote1" || items[2] != "local0" {
		t.Errorf("Items() = %v, want remote items then local", items)
	}
	if remote, _, _ := fl.Items(); len(remote) != 3 {
		t.Errorf("remote length = %d, want 3", len(remote))
	}
}

func TestListAdapterOutOfRangeRemoteChangeDropped(t *testing.T) {
	ad, fl, _ := attachedList(t)
	ad.Push("only")

	// Simulates positional drift: the index is beyond the cache.
	fl.notify(ListEvent{Kind: ListEventRemove, Index: 5, Rev: 99})

	if ad.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after dropped change", ad.Len())
	}
}

func TestListAdapterDispose(t *testing.T) {
	ad, fl, _ := attachedList(t)
	ad.Push("v")

	ad.Dispose()
	ad.Dispose()

	if fl.watcherCount() != 0 {
		t.Errorf("remote watchers after Dispose = %d, want 0", fl.watcherCount())
	}
	if err := ad.Push("again"); !errors.Is(err, ErrDisposed) {
		t.Errorf("Push after Dispose err = %v, want ErrDisposed", err)
	}
	if _, err := ad.Remove(0); !errors.Is(err, ErrDisposed) {
		t.Errorf("Remove after Dispose err = %v, want ErrDisposed", err)
	}
	if ad.Len() != 0 {
		t.Errorf("Len() after Dispose = %d, want 0", ad.Len())
	}
}
