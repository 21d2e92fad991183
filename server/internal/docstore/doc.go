// Package docstore holds the authoritative state of every open document.
//
// A document is a set of composite objects — insertion-ordered maps,
// lists, rune-addressed texts — rooted at the well-known "root" map,
// plus a revision counter that increments on every applied op. Apply
// validates an op against live object state, mutates, and returns the
// event the hub broadcasts; the displaced state (old values, removed
// text) is filled in from the document so every client sees consistent
// events regardless of what the op claimed.
//
// Documents with no attached sessions are evicted after a TTL by the
// Run loop. With persistence configured (SQLite via Persist), evicted
// and periodically-flushed documents survive restarts: Attach reloads
// them from disk on demand and Restore preloads everything at boot.
package docstore
