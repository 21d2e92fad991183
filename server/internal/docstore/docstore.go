package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mirrormap/mirrormap/pkg/wire"
)

// Sentinel errors surfaced by Apply. The hub maps them to error frames.
var (
	ErrUnknownDoc    = errors.New("docstore: unknown document")
	ErrUnknownObject = errors.New("docstore: unknown object")
	ErrObjectExists  = errors.New("docstore: object already exists")
	ErrKindMismatch  = errors.New("docstore: op does not match object kind")
	ErrOutOfRange    = errors.New("docstore: index out of range")

	// ErrNoChange reports an op that matched no state, like deleting an
	// absent key. Nothing mutated and nothing should broadcast.
	ErrNoChange = errors.New("docstore: op changed nothing")
)

// Snapshot is a point-in-time copy of one document's full state, root
// object first.
type Snapshot struct {
	Doc     string
	Rev     uint64
	Objects []wire.ObjectState
}

// DocInfo summarizes one resident document for the REST API.
type DocInfo struct {
	Name      string    `json:"name"`
	Rev       uint64    `json:"rev"`
	Objects   int       `json:"objects"`
	Sessions  int       `json:"sessions"`
	UpdatedAt time.Time `json:"updated_at"`
}

// document is one resident document. All fields are guarded by the
// store's lock.
type document struct {
	rev      uint64
	objects  map[string]*object
	order    []string // object IDs, root first, then creation order
	sessions int
	touched  time.Time
	dirty    bool
}

func newDocument(now time.Time) *document {
	doc := &document{
		objects: map[string]*object{wire.RootObjectID: newObject(wire.KindMap)},
		order:   []string{wire.RootObjectID},
		touched: now,
	}
	return doc
}

func documentFromSnapshot(snap Snapshot, now time.Time) *document {
	doc := &document{
		rev:     snap.Rev,
		objects: make(map[string]*object, len(snap.Objects)),
		touched: now,
	}
	for _, st := range snap.Objects {
		doc.objects[st.ID] = objectFromState(st)
		doc.order = append(doc.order, st.ID)
	}
	if _, ok := doc.objects[wire.RootObjectID]; !ok {
		doc.objects[wire.RootObjectID] = newObject(wire.KindMap)
		doc.order = append([]string{wire.RootObjectID}, doc.order...)
	}
	return doc
}

// Store is the thread-safe authoritative document store. A background
// goroutine (Run) evicts documents that have sat idle with no attached
// sessions past the configured TTL.
type Store struct {
	mu      sync.RWMutex
	docs    map[string]*document
	ttl     time.Duration
	now     func() time.Time // tests swap this for a fixed clock
	persist *Persist

	onEvict func(doc string)
}

// New creates a Store with the given idle TTL. p may be nil to run
// without persistence.
func New(ttl time.Duration, p *Persist) *Store {
	return &Store{
		docs:    make(map[string]*document),
		ttl:     ttl,
		now:     time.Now,
		persist: p,
	}
}

// OnEvict registers fn to run after each eviction. Set before Run starts.
func (s *Store) OnEvict(fn func(doc string)) { s.onEvict = fn }

// Attach registers one session on the document, creating or reloading
// it as needed, and returns its snapshot. created reports that the
// document existed neither in memory nor on disk.
func (s *Store) Attach(name string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := false
	doc, ok := s.docs[name]
	if !ok {
		doc = s.revive(name)
		if doc == nil {
			doc = newDocument(s.now())
			created = true
		}
		s.docs[name] = doc
	}
	doc.sessions++
	doc.touched = s.now()
	return s.snapshotLocked(name, doc), created
}

// Detach unregisters one session from the document. The document stays
// resident until the eviction loop reaps it.
func (s *Store) Detach(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[name]
	if !ok {
		return
	}
	if doc.sessions > 0 {
		doc.sessions--
	}
	doc.touched = s.now()
}

// Apply validates op against the document's live state, mutates it,
// bumps the revision, and returns the event to broadcast. The event's
// displaced state (old values, removed text) comes from the document,
// never from the op.
func (s *Store) Apply(name string, op wire.Op, origin string) (wire.Event, error) {
	if err := op.Validate(); err != nil {
		return wire.Event{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[name]
	if !ok {
		return wire.Event{}, fmt.Errorf("%w: %q", ErrUnknownDoc, name)
	}

	ev := wire.Event{Kind: op.Kind, Object: op.Object, Key: op.Key, Origin: origin}

	if op.Kind == wire.OpCreate {
		if _, exists := doc.objects[op.Object]; exists {
			return wire.Event{}, fmt.Errorf("%w: %q", ErrObjectExists, op.Object)
		}
		doc.objects[op.Object] = newObject(op.NewKind)
		doc.order = append(doc.order, op.Object)
		ev.NewKind = op.NewKind
	} else {
		obj, ok := doc.objects[op.Object]
		if !ok {
			return wire.Event{}, fmt.Errorf("%w: %q", ErrUnknownObject, op.Object)
		}
		if err := obj.apply(op, &ev); err != nil {
			return wire.Event{}, err
		}
	}

	doc.rev++
	doc.touched = s.now()
	doc.dirty = true
	ev.Rev = doc.rev
	return ev, nil
}

// Snapshot returns the current state of one resident document.
func (s *Store) Snapshot(name string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[name]
	if !ok {
		return Snapshot{}, false
	}
	return s.snapshotLocked(name, doc), true
}

// Info returns the summary of one resident document.
func (s *Store) Info(name string) (DocInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[name]
	if !ok {
		return DocInfo{}, false
	}
	return DocInfo{
		Name:      name,
		Rev:       doc.rev,
		Objects:   len(doc.objects),
		Sessions:  doc.sessions,
		UpdatedAt: doc.touched,
	}, true
}

// Docs lists every resident document, sorted by name.
func (s *Store) Docs() []DocInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DocInfo, 0, len(s.docs))
	for name, doc := range s.docs {
		out = append(out, DocInfo{
			Name:      name,
			Rev:       doc.rev,
			Objects:   len(doc.objects),
			Sessions:  doc.sessions,
			UpdatedAt: doc.touched,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Count returns the number of resident documents.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Evict removes documents with no attached sessions whose last activity
// is older than now minus TTL. Dirty documents are flushed to
// persistence first so the next Attach revives them. Returns the names
// of evicted documents.
func (s *Store) Evict(now time.Time) []string {
	if s.ttl <= 0 {
		return nil
	}

	s.mu.Lock()
	cutoff := now.Add(-s.ttl)
	var evicted []string
	for name, doc := range s.docs {
		if doc.sessions > 0 || doc.touched.After(cutoff) {
			continue
		}
		if s.persist != nil && doc.dirty {
			if err := s.persist.Save(s.snapshotLocked(name, doc)); err != nil {
				slog.Warn("docstore: flush before eviction failed — keeping document",
					"doc", name, "err", err)
				continue
			}
		}
		delete(s.docs, name)
		evicted = append(evicted, name)
	}
	s.mu.Unlock()

	for _, name := range evicted {
		slog.Info("docstore: evicted idle document", "doc", name)
		if s.onEvict != nil {
			s.onEvict(name)
		}
	}
	return evicted
}

// Run starts the background TTL eviction loop. It ticks at half the TTL
// interval (minimum 1 second) so idle documents are reaped promptly.
// Run blocks until ctx is cancelled; with a zero TTL it only waits.
func (s *Store) Run(ctx context.Context) {
	if s.ttl <= 0 {
		<-ctx.Done()
		return
	}
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.Evict(now)
		}
	}
}

// --- persistence ------------------------------------------------------------

// Restore loads every persisted document into memory. Called once at boot.
func (s *Store) Restore() (int, error) {
	if s.persist == nil {
		return 0, nil
	}
	snaps, err := s.persist.LoadAll()
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, snap := range snaps {
		s.docs[snap.Doc] = documentFromSnapshot(snap, s.now())
	}
	return len(snaps), nil
}

// Flush writes every dirty document to persistence. A document is only
// marked clean when the saved revision is still its current one.
func (s *Store) Flush() error {
	if s.persist == nil {
		return nil
	}

	s.mu.RLock()
	var snaps []Snapshot
	for name, doc := range s.docs {
		if doc.dirty {
			snaps = append(snaps, s.snapshotLocked(name, doc))
		}
	}
	s.mu.RUnlock()

	for _, snap := range snaps {
		if err := s.persist.Save(snap); err != nil {
			return fmt.Errorf("flush %q: %w", snap.Doc, err)
		}
		s.mu.Lock()
		if doc, ok := s.docs[snap.Doc]; ok && doc.rev == snap.Rev {
			doc.dirty = false
		}
		s.mu.Unlock()
	}
	return nil
}

// FlushLoop flushes dirty documents every interval until ctx ends, then
// flushes once more on the way out.
func (s *Store) FlushLoop(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := s.Flush(); err != nil {
				slog.Error("docstore: final flush failed", "err", err)
			}
			return
		case <-t.C:
			if err := s.Flush(); err != nil {
				slog.Warn("docstore: periodic flush failed", "err", err)
			}
		}
	}
}

// revive loads one document from persistence. A load failure is logged
// and treated as absent — a corrupt row must not block attach. Caller
// holds mu.
func (s *Store) revive(name string) *document {
	if s.persist == nil {
		return nil
	}
	snap, ok, err := s.persist.Load(name)
	if err != nil {
		slog.Warn("docstore: load from persistence failed — starting fresh",
			"doc", name, "err", err)
		return nil
	}
	if !ok {
		return nil
	}
	slog.Info("docstore: revived document", "doc", name, "rev", snap.Rev)
	return documentFromSnapshot(snap, s.now())
}

// snapshotLocked copies doc's state. Caller holds mu (read or write).
func (s *Store) snapshotLocked(name string, doc *document) Snapshot {
	snap := Snapshot{
		Doc:     name,
		Rev:     doc.rev,
		Objects: make([]wire.ObjectState, 0, len(doc.order)),
	}
	for _, id := range doc.order {
		snap.Objects = append(snap.Objects, doc.objects[id].state(id))
	}
	return snap
}
