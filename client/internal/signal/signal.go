package signal

import "sync"

// Signal delivers values of type T to connected handlers. The zero
// value is ready to use. Handlers run synchronously, in connect order,
// on the goroutine that calls Emit; the signal's lock is not held
// while they run, so a handler may connect or disconnect freely.
type Signal[T any] struct {
	mu       sync.Mutex
	nextID   uint64
	handlers []handler[T]
}

type handler[T any] struct {
	id uint64
	fn func(T)
}

// Connection represents one connected handler on a Signal.
type Connection struct {
	once   sync.Once
	detach func()
}

// Disconnect removes the handler from its signal. Calling it more than
// once, or on a nil Connection, is a no-op. A handler disconnected
// while an Emit is in flight may still observe that emission.
func (c *Connection) Disconnect() {
	if c == nil {
		return
	}
	c.once.Do(c.detach)
}

// Connect registers fn and returns the connection that detaches it.
func (s *Signal[T]) Connect(fn func(T)) *Connection {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.handlers = append(s.handlers, handler[T]{id: id, fn: fn})
	s.mu.Unlock()

	return &Connection{detach: func() { s.remove(id) }}
}

// Emit delivers v to every handler connected at the time of the call.
// Handlers connected during delivery do not see v.
func (s *Signal[T]) Emit(v T) {
	s.mu.Lock()
	snapshot := make([]handler[T], len(s.handlers))
	copy(snapshot, s.handlers)
	s.mu.Unlock()

	for _, h := range snapshot {
		h.fn(v)
	}
}

// ConnectionCount reports how many handlers are currently connected.
func (s *Signal[T]) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}

func (s *Signal[T]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, h := range s.handlers {
		if h.id == id {
			s.handlers = append(s.handlers[:i], s.handlers[i+1:]...)
			return
		}
	}
}
