package glue

import (
	"fmt"
	"strings"
)

// GetPath reads a dotted path, e.g. "page.info.title", from nested maps.
func GetPath(obj map[string]any, path string) (any, bool) {
	if obj == nil || path == `` {
		return nil, false
	}
	keys := strings.Split(path, `.`)
	var cur any = obj
	for _, k := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[k]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// SetPath writes value at a dotted path, creating intermediate maps as
// needed. It fails if an intermediate value exists, but isn't a map.
func SetPath(obj map[string]any, path string, value any) error {
	if obj == nil {
		return fmt.Errorf(`glue: set %q: nil object`, path)
	}
	if path == `` {
		return fmt.Errorf(`glue: set: empty path`)
	}
	keys := strings.Split(path, `.`)
	cur := obj
	for i, k := range keys[:len(keys)-1] {
		if k == `` {
			return fmt.Errorf(`glue: set %q: empty segment`, path)
		}
		next, exists := cur[k]
		if !exists || next == nil {
			m := make(map[string]any)
			cur[k] = m
			cur = m
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf(`glue: set %q: %q is a %T`, path, strings.Join(keys[:i+1], `.`), next)
		}
		cur = m
	}
	last := keys[len(keys)-1]
	if last == `` {
		return fmt.Errorf(`glue: set %q: empty segment`, path)
	}
	cur[last] = value
	return nil
}
