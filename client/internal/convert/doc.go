// Package convert translates between domain values and their wire
// representation.
//
// A Converter is a bidirectional transform. The Registry assigns
// converters per map key, falling back to plain JSON for keys with no
// registration. Typed builds a converter that round-trips a single Go
// type, so callers get concrete structs back instead of raw decoded
// maps.
//
// Converters only ever see primitive wire values. References to shared
// sub-objects are resolved by the realtime adapters before conversion
// applies.
package convert
