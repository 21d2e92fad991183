// Package observable provides in-memory containers that announce their
// own mutations: an insertion-ordered Map, a List, and a Text buffer.
//
// Each container owns a typed changed signal. Mutations classify
// themselves (add, change, remove for maps; insert, set, remove for
// lists and text) and the change record carries enough state for an
// observer to mirror the container without re-reading it. Handlers run
// synchronously on the mutating goroutine, after the container's lock
// has been released.
//
//   - Map: Set, Get, Has, Delete, Clear, Keys, Values, Len, Changed
//   - List: Insert, Set, Remove, Get, Items, Clear, Len, Changed
//   - Text: Insert, Remove, SetText, Text, Len, Changed
//
// The realtime adapters present this same contract over a shared
// document; code written against these containers works unchanged
// against their collaborative counterparts.
package observable
