package rtclient

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/mirrormap/mirrormap/client/internal/realtime"
	"github.com/mirrormap/mirrormap/pkg/wire"
)

// errUnchanged marks an op that matched no state, like deleting an
// absent key. Nothing applies, nothing dispatches, nothing ships.
var errUnchanged = errors.New("rtclient: op changed nothing")

// object is one composite object in the local replica.
type object struct {
	kind    wire.ObjectKind
	entries map[string]wire.Value
	order   []string
	items   []wire.Value
	text    []rune
}

func newObject(kind wire.ObjectKind) *object {
	o := &object{kind: kind}
	if kind == wire.KindMap {
		o.entries = make(map[string]wire.Value)
	}
	return o
}

func objectFromState(st wire.ObjectState) *object {
	o := newObject(st.Kind)
	switch st.Kind {
	case wire.KindMap:
		for _, e := range st.Entries {
			o.entries[e.Key] = e.Value
			o.order = append(o.order, e.Key)
		}
	case wire.KindList:
		o.items = append([]wire.Value(nil), st.Items...)
	case wire.KindText:
		o.text = []rune(st.Text)
	}
	return o
}

// loadSnapshot replaces the replica with the server's document state.
func (c *Client) loadSnapshot(msg wire.ServerMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.objects = make(map[string]*object, len(msg.Objects))
	for _, st := range msg.Objects {
		c.objects[st.ID] = objectFromState(st)
	}
	if _, ok := c.objects[wire.RootObjectID]; !ok {
		c.objects[wire.RootObjectID] = newObject(wire.KindMap)
	}
	c.rev = msg.Rev
}

// applyEvent folds one server event into the replica and notifies the
// object's watchers. Events for this session's own ops only advance
// the revision: the optimistic local apply already ran.
func (c *Client) applyEvent(ev wire.Event) {
	local := ev.Origin == c.session

	c.mu.Lock()
	if local {
		if ev.Rev > c.rev {
			c.rev = ev.Rev
		}
		c.mu.Unlock()
		return
	}
	if ev.Kind == wire.OpCreate {
		if _, ok := c.objects[ev.Object]; !ok {
			c.objects[ev.Object] = newObject(ev.NewKind)
		}
		if ev.Rev > c.rev {
			c.rev = ev.Rev
		}
		c.mu.Unlock()
		c.events.Emit(ev)
		return
	}
	err := c.mutate(&ev, false)
	if err == nil && ev.Rev > c.rev {
		c.rev = ev.Rev
	}
	fns := c.watchers(ev)
	c.mu.Unlock()

	if err != nil {
		if !errors.Is(err, errUnchanged) {
			slog.Warn("rtclient: dropping unappliable event",
				"kind", ev.Kind, "object", ev.Object, "err", err)
		}
		return
	}
	c.dispatch(ev, fns, false)
	c.events.Emit(ev)
}

// localOp applies one op optimistically, notifies watchers with the
// Local tag, and queues the op for the server.
func (c *Client) localOp(op wire.Op) error {
	if err := op.Validate(); err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	ev := eventFromOp(op, c.session)
	c.mu.Lock()
	if err := c.mutate(&ev, true); err != nil {
		c.mu.Unlock()
		if errors.Is(err, errUnchanged) {
			return nil
		}
		return err
	}
	fns := c.watchers(ev)
	c.mu.Unlock()

	c.dispatch(ev, fns, true)
	return c.enqueue(op)
}

func eventFromOp(op wire.Op, origin string) wire.Event {
	return wire.Event{
		Kind:    op.Kind,
		Object:  op.Object,
		Key:     op.Key,
		Index:   op.Index,
		Pos:     op.Pos,
		End:     op.End,
		New:     op.Value,
		Text:    op.Text,
		NewKind: op.NewKind,
		Origin:  origin,
	}
}

// mutate applies ev to the replica, filling in the displaced state
// (Old, removed text) from the replica itself so watchers always see
// values consistent with what they mirrored. Strict mode rejects
// out-of-range positions; otherwise inserts clamp the way the server
// clamps them. Caller holds mu.
func (c *Client) mutate(ev *wire.Event, strict bool) error {
	obj, ok := c.objects[ev.Object]
	if !ok {
		return fmt.Errorf("no object %q", ev.Object)
	}

	switch ev.Kind {
	case wire.OpSet:
		if obj.kind != wire.KindMap {
			return fmt.Errorf("set on %s object %q", obj.kind, ev.Object)
		}
		old, existed := obj.entries[ev.Key]
		ev.Old = old
		if !existed {
			ev.Old = wire.Absent
			obj.order = append(obj.order, ev.Key)
		}
		obj.entries[ev.Key] = ev.New

	case wire.OpDelete:
		if obj.kind != wire.KindMap {
			return fmt.Errorf("delete on %s object %q", obj.kind, ev.Object)
		}
		old, existed := obj.entries[ev.Key]
		if !existed {
			return errUnchanged
		}
		ev.Old = old
		delete(obj.entries, ev.Key)
		for i, k := range obj.order {
			if k == ev.Key {
				obj.order = append(obj.order[:i], obj.order[i+1:]...)
				break
			}
		}

	case wire.OpListInsert:
		if obj.kind != wire.KindList {
			return fmt.Errorf("linsert on %s object %q", obj.kind, ev.Object)
		}
		i := ev.Index
		if i == -1 {
			i = len(obj.items)
		}
		if i < 0 || i > len(obj.items) {
			if strict {
				return fmt.Errorf("insert at %d with length %d", ev.Index, len(obj.items))
			}
			if i < 0 {
				i = 0
			} else {
				i = len(obj.items)
			}
		}
		ev.Index = i
		obj.items = append(obj.items, wire.Absent)
		copy(obj.items[i+1:], obj.items[i:])
		obj.items[i] = ev.New

	case wire.OpListSet:
		if obj.kind != wire.KindList {
			return fmt.Errorf("lset on %s object %q", obj.kind, ev.Object)
		}
		if ev.Index < 0 || ev.Index >= len(obj.items) {
			return fmt.Errorf("set at %d with length %d", ev.Index, len(obj.items))
		}
		ev.Old = obj.items[ev.Index]
		obj.items[ev.Index] = ev.New

	case wire.OpListRemove:
		if obj.kind != wire.KindList {
			return fmt.Errorf("lremove on %s object %q", obj.kind, ev.Object)
		}
		if ev.Index < 0 || ev.Index >= len(obj.items) {
			return fmt.Errorf("remove at %d with length %d", ev.Index, len(obj.items))
		}
		ev.Old = obj.items[ev.Index]
		obj.items = append(obj.items[:ev.Index], obj.items[ev.Index+1:]...)

	case wire.OpTextInsert:
		if obj.kind != wire.KindText {
			return fmt.Errorf("tinsert on %s object %q", obj.kind, ev.Object)
		}
		pos := ev.Pos
		if pos < 0 || pos > len(obj.text) {
			if strict {
				return fmt.Errorf("insert at %d with length %d", pos, len(obj.text))
			}
			if pos < 0 {
				pos = 0
			} else {
				pos = len(obj.text)
			}
		}
		ins := []rune(ev.Text)
		obj.text = append(obj.text[:pos], append(ins, obj.text[pos:]...)...)
		ev.Pos = pos
		ev.End = pos + len(ins)

	case wire.OpTextRemove:
		if obj.kind != wire.KindText {
			return fmt.Errorf("tremove on %s object %q", obj.kind, ev.Object)
		}
		if ev.Pos < 0 || ev.End > len(obj.text) || ev.Pos > ev.End {
			return fmt.Errorf("remove [%d,%d) with length %d", ev.Pos, ev.End, len(obj.text))
		}
		if ev.Pos == ev.End {
			return errUnchanged
		}
		ev.Text = string(obj.text[ev.Pos:ev.End])
		obj.text = append(obj.text[:ev.Pos], obj.text[ev.End:]...)

	case wire.OpTextSet:
		if obj.kind != wire.KindText {
			return fmt.Errorf("tset on %s object %q", obj.kind, ev.Object)
		}
		obj.text = []rune(ev.Text)
		ev.Pos = 0
		ev.End = len(obj.text)

	default:
		return fmt.Errorf("unknown op kind %q", ev.Kind)
	}
	return nil
}

// dispatchSet carries the callbacks snapshotted for one event.
type dispatchSet struct {
	m []func(realtime.MapEvent)
	l []func(realtime.ListEvent)
	t []func(realtime.TextEvent)
}

// watchers snapshots the callbacks registered for ev's object. Caller
// holds mu.
func (c *Client) watchers(ev wire.Event) dispatchSet {
	var ds dispatchSet
	switch ev.Kind {
	case wire.OpSet, wire.OpDelete:
		for _, fn := range c.mapWatch[ev.Object] {
			ds.m = append(ds.m, fn)
		}
	case wire.OpListInsert, wire.OpListSet, wire.OpListRemove:
		for _, fn := range c.listWatch[ev.Object] {
			ds.l = append(ds.l, fn)
		}
	case wire.OpTextInsert, wire.OpTextRemove, wire.OpTextSet:
		for _, fn := range c.textWatch[ev.Object] {
			ds.t = append(ds.t, fn)
		}
	}
	return ds
}

// dispatch translates ev for the snapshotted callbacks and runs them
// outside any lock.
func (c *Client) dispatch(ev wire.Event, ds dispatchSet, local bool) {
	switch ev.Kind {
	case wire.OpSet, wire.OpDelete:
		me := realtime.MapEvent{Key: ev.Key, Old: ev.Old, New: ev.New, Local: local, Rev: ev.Rev}
		for _, fn := range ds.m {
			fn(me)
		}
	case wire.OpListInsert, wire.OpListSet, wire.OpListRemove:
		le := realtime.ListEvent{
			Kind:  listEventKind(ev.Kind),
			Index: ev.Index,
			Old:   ev.Old,
			New:   ev.New,
			Local: local,
			Rev:   ev.Rev,
		}
		for _, fn := range ds.l {
			fn(le)
		}
	case wire.OpTextInsert, wire.OpTextRemove, wire.OpTextSet:
		te := realtime.TextEvent{
			Kind:  textEventKind(ev.Kind),
			Pos:   ev.Pos,
			End:   ev.End,
			Text:  ev.Text,
			Local: local,
			Rev:   ev.Rev,
		}
		for _, fn := range ds.t {
			fn(te)
		}
	}
}

func listEventKind(k wire.OpKind) realtime.ListEventKind {
	switch k {
	case wire.OpListSet:
		return realtime.ListEventSet
	case wire.OpListRemove:
		return realtime.ListEventRemove
	default:
		return realtime.ListEventInsert
	}
}

func textEventKind(k wire.OpKind) realtime.TextEventKind {
	switch k {
	case wire.OpTextRemove:
		return realtime.TextEventRemove
	case wire.OpTextSet:
		return realtime.TextEventSet
	default:
		return realtime.TextEventInsert
	}
}
