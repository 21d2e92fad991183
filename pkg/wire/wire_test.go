package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJSONValue_RoundTrip(t *testing.T) {
	v, err := JSONValue(map[string]int{"answer": 42})
	assert.NoError(t, err)
	assert.Equal(t, TypeJSON, v.Type)

	var out map[string]int
	assert.NoError(t, v.Decode(&out))
	assert.Equal(t, 42, out["answer"])
}

func TestValue_AbsentIsZero(t *testing.T) {
	var v Value
	assert.True(t, v.IsAbsent())
	assert.True(t, Absent.IsAbsent())
	assert.NoError(t, v.Validate())
}

func TestValue_DecodeRejectsNonJSON(t *testing.T) {
	assert.Error(t, Absent.Decode(&struct{}{}))
	assert.Error(t, RefValue(KindMap, "s1/1").Decode(&struct{}{}))
}

func TestValue_Validate(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		ok   bool
	}{
		{"json", Value{Type: TypeJSON, JSON: json.RawMessage(`"hi"`)}, true},
		{"json invalid payload", Value{Type: TypeJSON, JSON: json.RawMessage(`{`)}, false},
		{"ref map", RefValue(KindMap, "s1/7"), true},
		{"ref text", RefValue(KindText, "s2/1"), true},
		{"ref without id", Value{Type: TypeRef, Kind: KindList}, false},
		{"ref unknown kind", Value{Type: TypeRef, Kind: "blob", Ref: "s1/1"}, false},
		{"absent with payload", Value{JSON: json.RawMessage(`1`)}, false},
		{"unknown type", Value{Type: "proto"}, false},
	}
	for _, tc := range cases {
		err := tc.v.Validate()
		if tc.ok {
			assert.NoError(t, err, tc.name)
		} else {
			assert.Error(t, err, tc.name)
		}
	}
}

func TestValue_Equal(t *testing.T) {
	a, _ := JSONValue("x")
	b, _ := JSONValue("x")
	c, _ := JSONValue("y")
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(Absent))
	assert.True(t, Absent.Equal(Value{}))
	assert.True(t, RefValue(KindList, "s/1").Equal(RefValue(KindList, "s/1")))
	assert.False(t, RefValue(KindList, "s/1").Equal(RefValue(KindMap, "s/1")))
}

func TestOp_Validate(t *testing.T) {
	val, _ := JSONValue(1)

	cases := []struct {
		name string
		op   Op
		ok   bool
	}{
		{"set", Op{Kind: OpSet, Object: RootObjectID, Key: "k", Value: val}, true},
		{"set without object", Op{Kind: OpSet, Key: "k", Value: val}, false},
		{"set without key", Op{Kind: OpSet, Object: RootObjectID, Value: val}, false},
		{"set without value", Op{Kind: OpSet, Object: RootObjectID, Key: "k"}, false},
		{"delete", Op{Kind: OpDelete, Object: RootObjectID, Key: "k"}, true},
		{"delete without key", Op{Kind: OpDelete, Object: RootObjectID}, false},
		{"linsert", Op{Kind: OpListInsert, Object: "s/1", Index: 0, Value: val}, true},
		{"linsert append form", Op{Kind: OpListInsert, Object: "s/1", Index: -1, Value: val}, true},
		{"linsert negative index", Op{Kind: OpListInsert, Object: "s/1", Index: -2, Value: val}, false},
		{"lset append form rejected", Op{Kind: OpListSet, Object: "s/1", Index: -1, Value: val}, false},
		{"lremove", Op{Kind: OpListRemove, Object: "s/1", Index: 2}, true},
		{"tinsert", Op{Kind: OpTextInsert, Object: "s/2", Pos: 3, Text: "abc"}, true},
		{"tremove inverted range", Op{Kind: OpTextRemove, Object: "s/2", Pos: 4, End: 2}, false},
		{"tset", Op{Kind: OpTextSet, Object: "s/2", Text: "all new"}, true},
		{"create", Op{Kind: OpCreate, Object: "s/3", NewKind: KindList}, true},
		{"create bad kind", Op{Kind: OpCreate, Object: "s/3", NewKind: "queue"}, false},
		{"unknown kind", Op{Kind: "merge", Object: "s/1"}, false},
	}
	for _, tc := range cases {
		err := tc.op.Validate()
		if tc.ok {
			assert.NoError(t, err, tc.name)
		} else {
			assert.Error(t, err, tc.name)
		}
	}
}

// The envelope must survive a round trip with the value discriminant intact —
// a ref must never come back looking like a primitive.
func TestServerMessage_EventRoundTrip(t *testing.T) {
	old, _ := JSONValue("before")
	msg := ServerMessage{
		Type: MsgEvent,
		Event: &Event{
			Kind:   OpSet,
			Object: RootObjectID,
			Key:    "cursor",
			Old:    old,
			New:    RefValue(KindText, "s9/4"),
			Origin: "s9",
			Rev:    17,
		},
	}

	raw, err := json.Marshal(msg)
	assert.NoError(t, err)

	var back ServerMessage
	assert.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, MsgEvent, back.Type)
	assert.Equal(t, TypeJSON, back.Event.Old.Type)
	assert.Equal(t, TypeRef, back.Event.New.Type)
	assert.Equal(t, KindText, back.Event.New.Kind)
	assert.Equal(t, "s9", back.Event.Origin)
}
