package realtime

import (
	"errors"

	"github.com/mirrormap/mirrormap/pkg/wire"
)

var (
	// ErrDisposed reports a mutation on an adapter after Dispose.
	ErrDisposed = errors.New("realtime: adapter is disposed")

	// ErrAttached reports a second Attach on the same adapter.
	ErrAttached = errors.New("realtime: adapter is already attached")

	// ErrNotAttached reports an operation that needs a remote handle
	// on a detached adapter, such as storing one adapter inside
	// another.
	ErrNotAttached = errors.New("realtime: adapter is not attached")

	// ErrLinkUnsupported reports a call to MapAdapter.Link. Linked
	// maps never had defined semantics and are rejected outright.
	ErrLinkUnsupported = errors.New("realtime: linking adapters is not supported")
)

// Session is the collaboration backend boundary. It resolves object
// references observed in remote values and mints fresh shared objects
// for local code to attach adapters to.
type Session interface {
	// ID identifies this session; the backend tags events it caused
	// with it.
	ID() string

	Map(id string) (RemoteMap, error)
	List(id string) (RemoteList, error)
	Text(id string) (RemoteText, error)

	CreateMap() (RemoteMap, error)
	CreateList() (RemoteList, error)
	CreateText() (RemoteText, error)
}

// MapEvent is one remote map change. Absent Old means the key was
// added, absent New means it was removed. Local marks events caused by
// this session's own writes; Rev is the document revision the change
// belongs to, zero for local echoes that have not been sequenced.
type MapEvent struct {
	Key   string
	Old   wire.Value
	New   wire.Value
	Local bool
	Rev   uint64
}

// RemoteMap is a shared map owned by the backend. Snapshot reads
// return the revision they reflect, so a watcher registered before the
// read can discard events the snapshot already contains.
type RemoteMap interface {
	ID() string
	Entries() (entries []wire.MapEntry, rev uint64, err error)
	Set(key string, v wire.Value) error
	Delete(key string) error
	// Watch registers fn for change events and returns the function
	// that unregisters exactly it. Events arrive in revision order.
	Watch(fn func(MapEvent)) (func(), error)
}

// ListEventKind classifies a remote list change.
type ListEventKind int

const (
	ListEventInsert ListEventKind = iota
	ListEventSet
	ListEventRemove
)

// ListEvent is one remote list change.
type ListEvent struct {
	Kind  ListEventKind
	Index int
	Old   wire.Value
	New   wire.Value
	Local bool
	Rev   uint64
}

// RemoteList is a shared sequence owned by the backend.
type RemoteList interface {
	ID() string
	Items() (items []wire.Value, rev uint64, err error)
	Insert(i int, v wire.Value) error
	// Append inserts at the current end of the sequence, whatever
	// that is by the time the write lands.
	Append(v wire.Value) error
	Set(i int, v wire.Value) error
	Remove(i int) error
	Watch(fn func(ListEvent)) (func(), error)
}

// TextEventKind classifies a remote text change.
type TextEventKind int

const (
	TextEventInsert TextEventKind = iota
	TextEventRemove
	TextEventSet
)

// TextEvent is one remote text change. Offsets are rune offsets; Text
// carries the inserted run, the removed run, or the full replacement.
type TextEvent struct {
	Kind  TextEventKind
	Pos   int
	End   int
	Text  string
	Local bool
	Rev   uint64
}

// RemoteText is a shared text buffer owned by the backend.
type RemoteText interface {
	ID() string
	Snapshot() (text string, rev uint64, err error)
	Insert(pos int, s string) error
	Remove(start, end int) error
	SetText(s string) error
	Watch(fn func(TextEvent)) (func(), error)
}

// disposable lets a parent adapter cascade Dispose to the children it
// wrapped around remote references.
type disposable interface {
	Dispose()
}
