// Package metadata is the annotation substrate shared by modules, classes,
// controllers and route handlers.
//
// Every definition object owns its own Map and exposes it through Target, so
// there is no process-wide annotation table: a value defined on one target is
// never visible from another, and nothing is inherited implicitly.
//
//	metadata.Define("roles", []string{"admin"}, route)
//	roles, ok := metadata.Get("roles", route)
package metadata

import "sync"

// ── Well-known keys ───────────────────────────────────────────────────────────

const (
	GuardsKey       = "__guards__"
	PipesKey        = "__pipes__"
	InterceptorsKey = "__interceptors__"
	FiltersKey      = "__filters__"
	CatchKey        = "__catch__"
	RouteParamsKey  = "__route_params__"
	RouteArgsKey    = "__route_args__"
	ControllerKey   = "__controller__"
	InjectableKey   = "__injectable__"
	MiddlewareKey   = "__middleware__"
	PathKey         = "__path__"
	MethodKey       = "__method__"
	HTTPCodeKey     = "__http_code__"
	RedirectKey     = "__redirect__"
	HeadersKey      = "__headers__"
)

// ── Map ───────────────────────────────────────────────────────────────────────

// Map is an ordered-by-key-insertion annotation bag. The zero value is ready to use.
type Map struct {
	mu     sync.RWMutex
	values map[string]any
	keys   []string
}

// Target is anything that carries metadata.
type Target interface {
	Metadata() *Map
}

func (m *Map) set(key string, value any) {
	if m.values == nil {
		m.values = make(map[string]any)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Keys returns the defined keys in first-definition order.
func (m *Map) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// ── Operations ────────────────────────────────────────────────────────────────

func bag(target Target) *Map {
	if target == nil {
		return nil
	}
	return target.Metadata()
}

// Define stores value under key on target, replacing any previous value.
func Define(key string, value any, target Target) {
	m := bag(target)
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(key, value)
}

// Get returns the value stored under key on target.
func Get(key string, target Target) (any, bool) {
	m := bag(target)
	if m == nil {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

// Append adds values to the list stored under key, keeping earlier entries first.
// A non-list value already stored under key is kept as the first element.
func Append(key string, values []any, target Target) {
	m := bag(target)
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var list []any
	switch prev := m.values[key].(type) {
	case nil:
	case []any:
		list = append(list, prev...)
	default:
		list = append(list, prev)
	}
	m.set(key, append(list, values...))
}

// List returns the entries appended under key that are of type T.
func List[T any](key string, target Target) []T {
	v, ok := Get(key, target)
	if !ok {
		return nil
	}
	items, _ := v.([]any)
	out := make([]T, 0, len(items))
	for _, item := range items {
		if t, ok := item.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

// Values returns the raw list appended under key.
func Values(key string, target Target) []any {
	v, ok := Get(key, target)
	if !ok {
		return nil
	}
	items, _ := v.([]any)
	out := make([]any, len(items))
	copy(out, items)
	return out
}

// GetAs returns the value under key asserted to T.
func GetAs[T any](key string, target Target) (T, bool) {
	var zero T
	v, ok := Get(key, target)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
