package realtime

import (
	"fmt"

	"github.com/mirrormap/mirrormap/client/internal/convert"
	"github.com/mirrormap/mirrormap/pkg/wire"
)

// newChild builds and attaches the adapter for a referenced object.
// The reference's kind discriminant picks the adapter type; child maps
// inherit conv so key converters apply at every nesting level.
func newChild(session Session, conv *convert.Registry, v wire.Value) (disposable, error) {
	switch v.Kind {
	case wire.KindMap:
		rm, err := session.Map(v.Ref)
		if err != nil {
			return nil, fmt.Errorf("resolve map %q: %w", v.Ref, err)
		}
		ad := NewMapAdapter(conv)
		if err := ad.Attach(session, rm); err != nil {
			return nil, fmt.Errorf("attach child map %q: %w", v.Ref, err)
		}
		return ad, nil
	case wire.KindList:
		rl, err := session.List(v.Ref)
		if err != nil {
			return nil, fmt.Errorf("resolve list %q: %w", v.Ref, err)
		}
		ad := NewListAdapter(nil)
		if err := ad.Attach(session, rl); err != nil {
			return nil, fmt.Errorf("attach child list %q: %w", v.Ref, err)
		}
		return ad, nil
	case wire.KindText:
		rt, err := session.Text(v.Ref)
		if err != nil {
			return nil, fmt.Errorf("resolve text %q: %w", v.Ref, err)
		}
		ad := NewTextAdapter()
		if err := ad.Attach(session, rt); err != nil {
			return nil, fmt.Errorf("attach child text %q: %w", v.Ref, err)
		}
		return ad, nil
	}
	return nil, fmt.Errorf("reference %q has unknown kind %q", v.Ref, v.Kind)
}

// refOf returns the wire reference for a value that is itself an
// adapter. ok is false when v is not an adapter.
func refOf(v any) (ref wire.Value, ok bool, err error) {
	switch ad := v.(type) {
	case *MapAdapter:
		id, err := ad.remoteID()
		if err != nil {
			return wire.Absent, true, err
		}
		return wire.RefValue(wire.KindMap, id), true, nil
	case *ListAdapter:
		id, err := ad.remoteID()
		if err != nil {
			return wire.Absent, true, err
		}
		return wire.RefValue(wire.KindList, id), true, nil
	case *TextAdapter:
		id, err := ad.remoteID()
		if err != nil {
			return wire.Absent, true, err
		}
		return wire.RefValue(wire.KindText, id), true, nil
	}
	return wire.Absent, false, nil
}
