package wire

import "fmt"

// OpKind discriminates mutation operations.
type OpKind string

const (
	// Map ops.
	OpSet    OpKind = "set"
	OpDelete OpKind = "delete"

	// List ops.
	OpListInsert OpKind = "linsert"
	OpListSet    OpKind = "lset"
	OpListRemove OpKind = "lremove"

	// Text ops.
	OpTextInsert OpKind = "tinsert"
	OpTextRemove OpKind = "tremove"
	OpTextSet    OpKind = "tset"

	// OpCreate allocates a new composite object inside the document. The
	// object ID is minted by the creating client (session-prefixed, so IDs
	// never collide across sessions). Creation replicates to other
	// sessions ahead of any reference to the object, but produces no
	// observable change on the containers that might later hold it.
	OpCreate OpKind = "create"
)

// Op is one client-originated mutation, addressed to a composite object
// within the attached document.
type Op struct {
	Kind   OpKind `json:"kind"`
	Object string `json:"object"`

	// Map fields.
	Key string `json:"key,omitempty"`

	// List fields. Index addresses the slot for linsert/lset/lremove; an
	// linsert index of -1 appends at whatever the length is when the op
	// is applied.
	Index int `json:"index,omitempty"`

	// Text fields. Pos is the rune offset for tinsert; Pos/End bound the
	// removed range for tremove (half-open, rune offsets).
	Pos int `json:"pos,omitempty"`
	End int `json:"end,omitempty"`

	// Value carries the payload for set/linsert/lset. Text carries the
	// payload for tinsert/tset.
	Value Value  `json:"value,omitempty"`
	Text  string `json:"text,omitempty"`

	// Create fields: the kind and client-minted ID of the new object.
	NewKind ObjectKind `json:"new_kind,omitempty"`
}

// Validate checks structural constraints on the op before it is applied.
// Range checks against live object state happen in the document store;
// Validate only rejects ops that are malformed regardless of state.
func (o Op) Validate() error {
	if o.Object == "" {
		return fmt.Errorf("wire: op %q without object id", o.Kind)
	}

	switch o.Kind {
	case OpSet:
		if o.Key == "" {
			return fmt.Errorf("wire: set op without key")
		}
		if o.Value.IsAbsent() {
			return fmt.Errorf("wire: set op without value")
		}
		return o.Value.Validate()

	case OpDelete:
		if o.Key == "" {
			return fmt.Errorf("wire: delete op without key")
		}
		return nil

	case OpListInsert, OpListSet:
		low := 0
		if o.Kind == OpListInsert {
			low = -1 // append form
		}
		if o.Index < low {
			return fmt.Errorf("wire: %s op with negative index %d", o.Kind, o.Index)
		}
		if o.Value.IsAbsent() {
			return fmt.Errorf("wire: %s op without value", o.Kind)
		}
		return o.Value.Validate()

	case OpListRemove:
		if o.Index < 0 {
			return fmt.Errorf("wire: lremove op with negative index %d", o.Index)
		}
		return nil

	case OpTextInsert:
		if o.Pos < 0 {
			return fmt.Errorf("wire: tinsert op with negative position %d", o.Pos)
		}
		return nil

	case OpTextRemove:
		if o.Pos < 0 || o.End < o.Pos {
			return fmt.Errorf("wire: tremove op with invalid range [%d, %d)", o.Pos, o.End)
		}
		return nil

	case OpTextSet:
		return nil

	case OpCreate:
		if !o.NewKind.Valid() {
			return fmt.Errorf("wire: create op with unknown kind %q", o.NewKind)
		}
		return nil
	}
	return fmt.Errorf("wire: unknown op kind %q", o.Kind)
}

// Event is the server's broadcast record of one applied op. Old and New are
// absent when the op did not displace or produce a value (for example Old on
// a fresh set, New on a delete).
type Event struct {
	Kind   OpKind `json:"kind"`
	Object string `json:"object"`

	Key   string `json:"key,omitempty"`
	Index int    `json:"index,omitempty"`
	Pos   int    `json:"pos,omitempty"`
	End   int    `json:"end,omitempty"`

	Old  Value  `json:"old,omitempty"`
	New  Value  `json:"new,omitempty"`
	Text string `json:"text,omitempty"`

	// NewKind names the object kind for create events.
	NewKind ObjectKind `json:"new_kind,omitempty"`

	// Origin is the session that issued the op. A client compares it to its
	// own session ID to distinguish local echoes from remote changes.
	Origin string `json:"origin"`

	// Rev is the document revision after applying the op.
	Rev uint64 `json:"rev"`
}
