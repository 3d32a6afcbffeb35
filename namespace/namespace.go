package namespace

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

type (
	// Namespace is a lazily-initialized, string-keyed state bag.
	//
	// The zero value is ready to use. All methods are safe to call on a nil
	// receiver, in which case reads behave as if the namespace were empty,
	// and writes are discarded.
	//
	// Namespace is safe for concurrent use, though the components in this
	// module only ever access it from a single (event loop) goroutine.
	Namespace struct {
		values map[string]any
		mu     sync.RWMutex
	}
)

// New returns an empty Namespace. It exists for symmetry, with the zero
// value being equally valid.
func New() *Namespace { return new(Namespace) }

// Get returns the value stored at key, or nil if it was never set.
func (x *Namespace) Get(key string) any {
	v, _ := x.Lookup(key)
	return v
}

// Lookup returns the value stored at key, and whether the key was ever set.
// A key that was cleared (set to nil) reports ok.
func (x *Namespace) Lookup(key string) (v any, ok bool) {
	if x == nil {
		return nil, false
	}
	x.mu.RLock()
	v, ok = x.values[key]
	x.mu.RUnlock()
	return
}

// Set stores v at key, allocating the underlying map on first use.
func (x *Namespace) Set(key string, v any) {
	if x == nil {
		return
	}
	x.mu.Lock()
	if x.values == nil {
		x.values = make(map[string]any)
	}
	x.values[key] = v
	x.mu.Unlock()
}

// Clear sets key to nil. The key itself is retained.
func (x *Namespace) Clear(key string) { x.Set(key, nil) }

// String returns the value at key as a string. Values that are not strings
// are formatted using fmt, and nil yields the empty string.
func (x *Namespace) String(key string) string {
	switch v := x.Get(key).(type) {
	case nil:
		return ``
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Truthy reports whether the value at key would be truthy, per JavaScript
// semantics, for the value types stored by this module. Unknown non-nil
// types are treated as truthy.
func (x *Namespace) Truthy(key string) bool {
	switch v := x.Get(key).(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ``
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0 && !math.IsNaN(v)
	default:
		return true
	}
}

// Keys returns every key ever set, sorted.
func (x *Namespace) Keys() []string {
	if x == nil {
		return nil
	}
	x.mu.RLock()
	keys := make([]string, 0, len(x.values))
	for k := range x.values {
		keys = append(keys, k)
	}
	x.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Snapshot returns a shallow copy of the namespace contents.
func (x *Namespace) Snapshot() map[string]any {
	if x == nil {
		return nil
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	m := make(map[string]any, len(x.values))
	for k, v := range x.values {
		m[k] = v
	}
	return m
}
