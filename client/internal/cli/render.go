package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mirrormap/mirrormap/pkg/wire"
)

// parseValue interprets raw as a wire value: valid JSON is stored
// as-is, anything else becomes a JSON string. `ctl set -k n -v 42`
// stores a number, `-v hello` stores "hello".
func parseValue(raw string) (wire.Value, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" && json.Valid([]byte(trimmed)) {
		return wire.Value{Type: wire.TypeJSON, JSON: json.RawMessage(trimmed)}, nil
	}
	return wire.JSONValue(raw)
}

// renderValue formats a wire value for terminal output: JSON payloads
// verbatim, references as kind:id.
func renderValue(v wire.Value) string {
	switch {
	case v.IsAbsent():
		return "<absent>"
	case v.IsRef():
		return fmt.Sprintf("%s:%s", v.Kind, v.Ref)
	default:
		return string(v.JSON)
	}
}

// renderEvent formats one document event as a line: revision, origin,
// op, and its target.
func renderEvent(ev wire.Event) string {
	switch ev.Kind {
	case wire.OpSet:
		return fmt.Sprintf("rev %d %s: set %s.%s = %s",
			ev.Rev, ev.Origin, ev.Object, ev.Key, renderValue(ev.New))
	case wire.OpDelete:
		return fmt.Sprintf("rev %d %s: delete %s.%s (was %s)",
			ev.Rev, ev.Origin, ev.Object, ev.Key, renderValue(ev.Old))
	case wire.OpListInsert:
		return fmt.Sprintf("rev %d %s: insert %s[%d] = %s",
			ev.Rev, ev.Origin, ev.Object, ev.Index, renderValue(ev.New))
	case wire.OpListSet:
		return fmt.Sprintf("rev %d %s: set %s[%d] = %s (was %s)",
			ev.Rev, ev.Origin, ev.Object, ev.Index, renderValue(ev.New), renderValue(ev.Old))
	case wire.OpListRemove:
		return fmt.Sprintf("rev %d %s: remove %s[%d] (was %s)",
			ev.Rev, ev.Origin, ev.Object, ev.Index, renderValue(ev.Old))
	case wire.OpTextInsert:
		return fmt.Sprintf("rev %d %s: text %s insert %q at %d",
			ev.Rev, ev.Origin, ev.Object, ev.Text, ev.Pos)
	case wire.OpTextRemove:
		return fmt.Sprintf("rev %d %s: text %s remove %q [%d,%d)",
			ev.Rev, ev.Origin, ev.Object, ev.Text, ev.Pos, ev.End)
	case wire.OpTextSet:
		return fmt.Sprintf("rev %d %s: text %s set %q",
			ev.Rev, ev.Origin, ev.Object, ev.Text)
	case wire.OpCreate:
		return fmt.Sprintf("rev %d %s: create %s %s",
			ev.Rev, ev.Origin, ev.NewKind, ev.Object)
	}
	return fmt.Sprintf("rev %d %s: %s %s", ev.Rev, ev.Origin, ev.Kind, ev.Object)
}
