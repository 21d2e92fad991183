// Package ws implements the sync endpoint for mirrormap-server.
//
// Hub upgrades connections at /ws/docs, runs the attach handshake (hello,
// snapshot, presence), applies op frames through the document store, and
// fans the resulting events out to every other session on the same
// document. The sender never receives its own event back; it has already
// applied the op locally.
//
// Per-connection I/O follows the split-pump shape: readPump decodes frames
// on the handler goroutine, writePump owns all writes and the ping
// schedule. A session that cannot drain its send buffer is disconnected
// rather than allowed to stall the broadcast path.
//
// The upgrader accepts every origin; CORS restrictions belong at the
// reverse proxy.
package ws
