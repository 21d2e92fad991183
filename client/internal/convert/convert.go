package convert

import (
	"fmt"
	"sync"

	"github.com/mirrormap/mirrormap/pkg/wire"
)

// Converter transforms a domain value to its wire form and back.
// Implementations must be symmetric: FromRemote(ToRemote(v)) yields a
// value equivalent to v.
type Converter interface {
	ToRemote(v any) (wire.Value, error)
	FromRemote(v wire.Value) (any, error)
}

// Func adapts two closures into a Converter.
type Func struct {
	To   func(any) (wire.Value, error)
	From func(wire.Value) (any, error)
}

func (f Func) ToRemote(v any) (wire.Value, error)   { return f.To(v) }
func (f Func) FromRemote(v wire.Value) (any, error) { return f.From(v) }

// JSON returns the default converter: values marshal to JSON on the
// way out and decode to generic Go values (map[string]any, []any,
// float64, string, bool, nil) on the way in.
func JSON() Converter {
	return Func{
		To: wire.JSONValue,
		From: func(v wire.Value) (any, error) {
			if v.IsAbsent() {
				return nil, nil
			}
			if v.IsRef() {
				return nil, fmt.Errorf("convert: cannot decode %s reference %q as JSON", v.Kind, v.Ref)
			}
			var out any
			if err := v.Decode(&out); err != nil {
				return nil, err
			}
			return out, nil
		},
	}
}

// Typed returns a converter that round-trips values of a single Go
// type T via JSON. ToRemote rejects values of any other type.
func Typed[T any]() Converter {
	return Func{
		To: func(v any) (wire.Value, error) {
			tv, ok := v.(T)
			if !ok {
				var want T
				return wire.Absent, fmt.Errorf("convert: got %T, want %T", v, want)
			}
			return wire.JSONValue(tv)
		},
		From: func(v wire.Value) (any, error) {
			var out T
			if err := v.Decode(&out); err != nil {
				return nil, err
			}
			return out, nil
		},
	}
}

// Registry maps key names to converters. Keys without a registration
// use the fallback, which defaults to JSON. The zero value is not
// usable; call NewRegistry.
type Registry struct {
	mu       sync.RWMutex
	byKey    map[string]Converter
	fallback Converter
}

// NewRegistry returns a Registry with the JSON fallback.
func NewRegistry() *Registry {
	return &Registry{
		byKey:    make(map[string]Converter),
		fallback: JSON(),
	}
}

// Register assigns c to key, replacing any previous registration.
func (r *Registry) Register(key string, c Converter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey[key] = c
}

// SetFallback replaces the converter used for unregistered keys.
func (r *Registry) SetFallback(c Converter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = c
}

// For returns the converter responsible for key.
func (r *Registry) For(key string) Converter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.byKey[key]; ok {
		return c
	}
	return r.fallback
}
