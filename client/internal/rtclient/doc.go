// Package rtclient is the websocket session to a sync server. It
// maintains a local replica of one document and implements the backend
// boundary the realtime adapters attach to.
//
// Dial performs the attach handshake (hello, snapshot, presence) and
// starts a read pump and a write pump. Local mutations apply to the
// replica synchronously, fire watch callbacks tagged Local, and queue
// the op for the server; changes from other sessions arrive as
// sequenced events on the read pump, apply to the replica, and fire
// the same callbacks untagged. The server never echoes a session's own
// ops back to it.
//
//   - Dial, Close, Done, Err
//   - Root, Map, List, Text, CreateMap, CreateList, CreateText
//   - Peers, PresenceChanged
//
// The client does not reconnect. When the connection drops, Done
// closes, Err reports why, and the caller decides whether to dial
// again.
package rtclient
