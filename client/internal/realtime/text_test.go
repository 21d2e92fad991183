package realtime

import (
	"errors"
	"testing"

	"github.com/mirrormap/mirrormap/client/internal/observable"
)

func attachedText(t *testing.T) (*TextAdapter, *fakeText, *fakeSession) {
	t.Helper()
	sess := newFakeSession()
	rt, err := sess.CreateText()
	if err != nil {
		t.Fatalf("CreateText: %v", err)
	}
	ad := NewTextAdapter()
	if err := ad.Attach(sess, rt); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	return ad, rt.(*fakeText), sess
}

func TestTextAdapterWriteThrough(t *testing.T) {
	ad, ft, _ := attachedText(t)
	changes := &[]observable.TextChange{}
	ad.Changed().Connect(func(c observable.TextChange) { *changes = append(*changes, c) })

	if err := ad.Insert(0, "hello world"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := ad.Remove(5, 11); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	if got := ad.Text(); got != "hello" {
		t.Errorf("Text() = %q, want %q", got, "hello")
	}
	if got := ft.text(); got != "hello" {
		t.Errorf("remote text = %q, want %q", got, "hello")
	}
	// One change per local mutation; the backend echo is skipped.
	if len(*changes) != 2 {
		t.Errorf("got %d changes, want 2", len(*changes))
	}
}

func TestTextAdapterSetText(t *testing.T) {
	ad, ft, _ := attachedText(t)
	if err := ad.SetText("fresh content"); err != nil {
		t.Fatalf("SetText: %v", err)
	}
	if ft.text() != "fresh content" {
		t.Errorf("remote text = %q, want %q", ft.text(), "fresh content")
	}
}

func TestTextAdapterRemoteChanges(t *testing.T) {
	ad, ft, _ := attachedText(t)

	ft.remoteInsert(0, "shared")
	if ad.Text() != "shared" {
		t.Errorf("Text() = %q, want %q", ad.Text(), "shared")
	}
	ft.remoteRemove(0, 2)
	if ad.Text() != "ared" {
		t.Errorf("Text() = %q, want %q", ad.Text(), "ared")
	}
	ft.remoteSetText("reset")
	if ad.Text() != "reset" {
		t.Errorf("Text() = %q, want %q", ad.Text(), "reset")
	}
}

func TestTextAdapterAttachPullsRemote(t *testing.T) {
	sess := newFakeSession()
	rt, _ := sess.CreateText()
	ft := rt.(*fakeText)
	ft.remoteSetText("authoritative")

	ad := NewTextAdapter()
	ad.SetText("local draft")
	if err := ad.Attach(sess, rt); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if ad.Text() != "authoritative" {
		t.Errorf("Text() = %q, want the remote snapshot", ad.Text())
	}
}

func TestTextAdapterAttachPushesDraftToEmptyRemote(t *testing.T) {
	sess := newFakeSession()
	rt, _ := sess.CreateText()

	ad := NewTextAdapter()
	ad.SetText("draft")
	if err := ad.Attach(sess, rt); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if rt.(*fakeText).text() != "draft" {
		t.Errorf("remote text = %q, want the pushed draft", rt.(*fakeText).text())
	}
	if ad.Text() != "draft" {
		t.Errorf("Text() = %q, want draft", ad.Text())
	}
}

func TestTextAdapterDispose(t *testing.T) {
	ad, ft, _ := attachedText(t)
	ad.SetText("content")

	ad.Dispose()
	ad.Dispose()

	if ft.watcherCount() != 0 {
		t.Errorf("remote watchers after Dispose = %d, want 0", ft.watcherCount())
	}
	if err := ad.Insert(0, "x"); !errors.Is(err, ErrDisposed) {
		t.Errorf("Insert after Dispose err = %v, want ErrDisposed", err)
	}
	if ad.Text() != "" {
		t.Errorf("Text() after Dispose = %q, want empty", ad.Text())
	}
}
