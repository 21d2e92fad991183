// Package notify delivers document lifecycle events to configured webhook
// targets. Repeat events for the same document are suppressed within a
// cooldown window; delivery runs asynchronously and never blocks the caller.
package notify
