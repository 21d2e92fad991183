// Package signal provides a small typed event source used by the
// observable containers and the realtime adapters.
//
// A Signal fans a value out to every connected handler, synchronously,
// on the goroutine that calls Emit. Each Connect returns a Connection
// that detaches exactly that handler, so independent consumers never
// interfere with each other's subscriptions.
//
//   - Signal[T]: Connect, Emit, ConnectionCount
//   - Connection: Disconnect (idempotent, nil-safe)
package signal
