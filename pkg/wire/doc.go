// Package wire defines the JSON protocol shared by the mirrormap client and
// server: tagged values, mutation ops, change events, and the websocket
// message envelopes that carry them.
//
// Values are a tagged variant keyed on an explicit Type discriminant —
// absent, a primitive JSON payload, or a reference to a composite object
// (map, list, or text). Nothing in the protocol is dispatched on value shape.
//
// Ops flow client→server and are discriminated by Kind; the server answers
// each applied op with an Event broadcast to every session attached to the
// document except the originator. Event.Origin carries the acting session ID
// so a client can recognise its own changes when they echo through other
// paths.
package wire
