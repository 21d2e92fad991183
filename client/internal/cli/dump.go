package cli

import (
	"context"
	"fmt"

	"github.com/sanity-io/litter"

	"github.com/mirrormap/mirrormap/client/internal/realtime"
	"github.com/mirrormap/mirrormap/pkg/wire"
)

// DumpCmd prints the whole document: the root map with every
// reference expanded in place.
type DumpCmd struct{}

func (c *DumpCmd) Execute(_ []string) error {
	sess, err := dialSession(context.Background())
	if err != nil {
		return err
	}
	defer closeSession()

	root, err := sess.Root()
	if err != nil {
		return err
	}
	tree, err := dumpMap(sess, root, map[string]bool{})
	if err != nil {
		return err
	}

	fmt.Printf("%s @ rev %d\n", sess.Doc(), sess.Rev())
	fmt.Println(litter.Sdump(tree))
	return nil
}

// dumpMap renders a remote map as plain Go values, expanding
// references depth-first.
func dumpMap(s realtime.Session, m realtime.RemoteMap, seen map[string]bool) (map[string]any, error) {
	seen[m.ID()] = true
	entries, _, err := m.Entries()
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(entries))
	for _, e := range entries {
		v, err := dumpValue(s, e.Value, seen)
		if err != nil {
			return nil, err
		}
		out[e.Key] = v
	}
	return out, nil
}

func dumpList(s realtime.Session, l realtime.RemoteList, seen map[string]bool) ([]any, error) {
	seen[l.ID()] = true
	items, _, err := l.Items()
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(items))
	for _, it := range items {
		v, err := dumpValue(s, it, seen)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// dumpValue renders one value. A reference already expanded elsewhere
// in the tree renders as its kind:id marker instead, so cyclic
// documents terminate.
func dumpValue(s realtime.Session, v wire.Value, seen map[string]bool) (any, error) {
	switch {
	case v.IsAbsent():
		return nil, nil

	case v.IsRef():
		if seen[v.Ref] {
			return renderValue(v), nil
		}
		switch v.Kind {
		case wire.KindMap:
			rm, err := s.Map(v.Ref)
			if err != nil {
				return nil, err
			}
			return dumpMap(s, rm, seen)
		case wire.KindList:
			rl, err := s.List(v.Ref)
			if err != nil {
				return nil, err
			}
			return dumpList(s, rl, seen)
		case wire.KindText:
			rt, err := s.Text(v.Ref)
			if err != nil {
				return nil, err
			}
			seen[v.Ref] = true
			text, _, err := rt.Snapshot()
			if err != nil {
				return nil, err
			}
			return text, nil
		}
		return renderValue(v), nil

	default:
		var out any
		if err := v.Decode(&out); err != nil {
			return nil, err
		}
		return out, nil
	}
}
