package docstore

import (
	"fmt"

	"github.com/mirrormap/mirrormap/pkg/wire"
)

// object is one composite object within a document.
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

func (o *object) state(id string) wire.ObjectState {
	st := wire.ObjectState{ID: id, Kind: o.kind}
	switch o.kind {
	case wire.KindMap:
		st.Entries = make([]wire.MapEntry, 0, len(o.order))
		for _, k := range o.order {
			st.Entries = append(st.Entries, wire.MapEntry{Key: k, Value: o.entries[k]})
		}
	case wire.KindList:
		st.Items = append([]wire.Value(nil), o.items...)
	case wire.KindText:
		st.Text = string(o.text)
	}
	return st
}

// apply mutates o per the op and fills ev with the displaced state.
// Inserts clamp into range; set and remove reject out-of-range targets,
// since clamping those would silently retarget another element.
func (o *object) apply(op wire.Op, ev *wire.Event) error {
	switch op.Kind {
	case wire.OpSet:
		if o.kind != wire.KindMap {
			return fmt.Errorf("%w: set on %s", ErrKindMismatch, o.kind)
		}
		old, existed := o.entries[op.Key]
		ev.Old = old
		if !existed {
			ev.Old = wire.Absent
			o.order = append(o.order, op.Key)
		}
		o.entries[op.Key] = op.Value
		ev.New = op.Value

	case wire.OpDelete:
		if o.kind != wire.KindMap {
			return fmt.Errorf("%w: delete on %s", ErrKindMismatch, o.kind)
		}
		old, existed := o.entries[op.Key]
		if !existed {
			return ErrNoChange
		}
		ev.Old = old
		delete(o.entries, op.Key)
		for i, k := range o.order {
			if k == op.Key {
				o.order = append(o.order[:i], o.order[i+1:]...)
				break
			}
		}

	case wire.OpListInsert:
		if o.kind != wire.KindList {
			return fmt.Errorf("%w: linsert on %s", ErrKindMismatch, o.kind)
		}
		i := op.Index
		if i == -1 || i > len(o.items) {
			i = len(o.items)
		}
		o.items = append(o.items, wire.Absent)
		copy(o.items[i+1:], o.items[i:])
		o.items[i] = op.Value
		ev.Index = i
		ev.New = op.Value

	case wire.OpListSet:
		if o.kind != wire.KindList {
			return fmt.Errorf("%w: lset on %s", ErrKindMismatch, o.kind)
		}
		if op.Index >= len(o.items) {
			return fmt.Errorf("%w: set at %d with length %d", ErrOutOfRange, op.Index, len(o.items))
		}
		ev.Index = op.Index
		ev.Old = o.items[op.Index]
		o.items[op.Index] = op.Value
		ev.New = op.Value

	case wire.OpListRemove:
		if o.kind != wire.KindList {
			return fmt.Errorf("%w: lremove on %s", ErrKindMismatch, o.kind)
		}
		if op.Index >= len(o.items) {
			return fmt.Errorf("%w: remove at %d with length %d", ErrOutOfRange, op.Index, len(o.items))
		}
		ev.Index = op.Index
		ev.Old = o.items[op.Index]
		o.items = append(o.items[:op.Index], o.items[op.Index+1:]...)

	case wire.OpTextInsert:
		if o.kind != wire.KindText {
			return fmt.Errorf("%w: tinsert on %s", ErrKindMismatch, o.kind)
		}
		pos := op.Pos
		if pos > len(o.text) {
			pos = len(o.text)
		}
		ins := []rune(op.Text)
		o.text = append(o.text[:pos], append(ins, o.text[pos:]...)...)
		ev.Pos = pos
		ev.End = pos + len(ins)
		ev.Text = op.Text

	case wire.OpTextRemove:
		if o.kind != wire.KindText {
			return fmt.Errorf("%w: tremove on %s", ErrKindMismatch, o.kind)
		}
		if op.Pos > len(o.text) {
			return fmt.Errorf("%w: remove from %d with length %d", ErrOutOfRange, op.Pos, len(o.text))
		}
		end := op.End
		if end > len(o.text) {
			end = len(o.text)
		}
		if op.Pos == end {
			return ErrNoChange
		}
		ev.Pos = op.Pos
		ev.End = end
		ev.Text = string(o.text[op.Pos:end])
		o.text = append(o.text[:op.Pos], o.text[end:]...)

	case wire.OpTextSet:
		if o.kind != wire.KindText {
			return fmt.Errorf("%w: tset on %s", ErrKindMismatch, o.kind)
		}
		o.text = []rune(op.Text)
		ev.Pos = 0
		ev.End = len(o.text)
		ev.Text = op.Text

	default:
		return fmt.Errorf("docstore: unhandled op kind %q", op.Kind)
	}
	return nil
}
