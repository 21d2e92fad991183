// Package realtime mirrors shared collaborative objects into local
// observable containers.
//
// An adapter owns a local cache and a handle to one remote object. It
// is constructed detached and empty; Attach binds it to a live remote
// handle, populates the cache from the remote snapshot, and registers
// one watch for remote changes. Every local mutation writes through to
// the remote object first, then updates the cache, which emits the
// change to observers. Remote changes that did not originate from this
// session flow the other way: cache update, then the same observer
// signal. Events tagged as local by the backend are skipped, since the
// mutating call already applied them.
//
//   - MapAdapter: the observable-map surface over a shared map, with
//     per-key value converters and composite re-wrapping
//   - ListAdapter: the observable-list surface over a shared sequence
//   - TextAdapter: the observable-text surface over shared text
//   - Session, RemoteMap, RemoteList, RemoteText: the injected
//     backend boundary, satisfied by rtclient
//
// Adapters never reconnect, retry, or resolve conflicts. The backend
// owns consistency; adapters own bookkeeping.
package realtime
