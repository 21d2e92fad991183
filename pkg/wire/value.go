package wire

import (
	"encoding/json"
	"fmt"
)

// ObjectKind identifies a composite collaborative object type.
type ObjectKind string

const (
	KindMap  ObjectKind = "map"
	KindList ObjectKind = "list"
	KindText ObjectKind = "text"
)

// Valid reports whether k is one of the three composite kinds.
func (k ObjectKind) Valid() bool {
	switch k {
	case KindMap, KindList, KindText:
		return true
	}
	return false
}

// ValueType is the explicit discriminant of a Value.
type ValueType string

const (
	// TypeAbsent marks a missing value (deleted key, unset slot). It is the
	// zero Value and is never transmitted with a payload.
	TypeAbsent ValueType = ""

	// TypeJSON marks a primitive payload: any JSON document supplied by the
	// host application.
	TypeJSON ValueType = "json"

	// TypeRef marks a reference to a composite object owned by the document.
	TypeRef ValueType = "ref"
)

// Value is the tagged representation of a single map entry, list item, or op
// payload. Exactly one of the payload fields is meaningful, selected by Type.
type Value struct {
	Type ValueType       `json:"type,omitempty"`
	JSON json.RawMessage `json:"json,omitempty"`
	Kind ObjectKind      `json:"kind,omitempty"`
	Ref  string          `json:"ref,omitempty"`
}

// Absent is the zero Value, representing no value at all.
var Absent = Value{}

// JSONValue marshals v into a TypeJSON Value.
func JSONValue(v any) (Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Absent, fmt.Errorf("wire: encode value: %w", err)
	}
	return Value{Type: TypeJSON, JSON: raw}, nil
}

// RefValue builds a TypeRef Value pointing at the composite object id.
func RefValue(kind ObjectKind, id string) Value {
	return Value{Type: TypeRef, Kind: kind, Ref: id}
}

// IsAbsent reports whether v carries no value.
func (v Value) IsAbsent() bool { return v.Type == TypeAbsent }

// IsRef reports whether v references a composite object.
func (v Value) IsRef() bool { return v.Type == TypeRef }

// Decode unmarshals a TypeJSON payload into out. It fails on absent and ref
// values: callers must dispatch on Type first.
func (v Value) Decode(out any) error {
	if v.Type != TypeJSON {
		return fmt.Errorf("wire: decode %q value as JSON", v.Type)
	}
	return json.Unmarshal(v.JSON, out)
}

// Validate checks the discriminant and its payload agree.
func (v Value) Validate() error {
	switch v.Type {
	case TypeAbsent:
		if len(v.JSON) != 0 || v.Ref != "" {
			return fmt.Errorf("wire: absent value carries a payload")
		}
	case TypeJSON:
		if !json.Valid(v.JSON) {
			return fmt.Errorf("wire: invalid JSON payload")
		}
	case TypeRef:
		if v.Ref == "" {
			return fmt.Errorf("wire: ref value without object id")
		}
		if !v.Kind.Valid() {
			return fmt.Errorf("wire: ref value with unknown kind %q", v.Kind)
		}
	default:
		return fmt.Errorf("wire: unknown value type %q", v.Type)
	}
	return nil
}

// Equal reports whether two values are identical on the wire. JSON payloads
// compare byte-wise after compaction-free marshalling, which is sufficient
// because both sides only ever store what they received or produced.
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type {
		return false
	}
	switch v.Type {
	case TypeJSON:
		return string(v.JSON) == string(o.JSON)
	case TypeRef:
		return v.Kind == o.Kind && v.Ref == o.Ref
	}
	return true
}

// MapEntry is one key/value pair of a map object, in insertion order.
type MapEntry struct {
	Key   string `json:"key"`
	Value Value  `json:"value"`
}

// ObjectState is the full state of one composite object, as carried in a
// document snapshot. Entries is set for maps, Items for lists, Text for texts.
type ObjectState struct {
	ID      string     `json:"id"`
	Kind    ObjectKind `json:"kind"`
	Entries []MapEntry `json:"entries,omitempty"`
	Items   []Value    `json:"items,omitempty"`
	Text    string     `json:"text,omitempty"`
}

// RootObjectID is the well-known ID of every document's root map.
const RootObjectID = "root"
