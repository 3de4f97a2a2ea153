package metadata

import "github.com/google/uuid"

// Reflector reads metadata from the targets exposed by an execution context.
// The application registers one as a global provider so guards can inject it.
//
//	roles := reflector.GetAllAndMerge("roles", ctx.Handler(), ctx.Class())
type Reflector struct{}

// NewReflector returns a Reflector.
func NewReflector() *Reflector { return &Reflector{} }

// Get returns the value under key on target, or nil.
func (r *Reflector) Get(key string, target Target) any {
	v, _ := Get(key, target)
	return v
}

// GetAll returns the value under key for every target, nil where absent.
func (r *Reflector) GetAll(key string, targets ...Target) []any {
	out := make([]any, len(targets))
	for i, t := range targets {
		out[i] = r.Get(key, t)
	}
	return out
}

// GetAllAndOverride returns the first non-nil value in target order.
func (r *Reflector) GetAllAndOverride(key string, targets ...Target) any {
	for _, t := range targets {
		if v := r.Get(key, t); v != nil {
			return v
		}
	}
	return nil
}

// GetAllAndMerge flattens slice values and collects scalars across targets.
func (r *Reflector) GetAllAndMerge(key string, targets ...Target) []any {
	var out []any
	for _, t := range targets {
		switch v := r.Get(key, t).(type) {
		case nil:
		case []any:
			out = append(out, v...)
		case []string:
			for _, s := range v {
				out = append(out, s)
			}
		default:
			out = append(out, v)
		}
	}
	return out
}

// ── Decorators ────────────────────────────────────────────────────────────────

// Decorator is a typed metadata key.
//
//	var Roles = metadata.CreateDecorator[[]string]()
//	Roles.Apply([]string{"admin"}, route)
//	roles, _ := Roles.Get(ctx.Handler())
type Decorator[T any] struct {
	Key string
}

// CreateDecorator returns a Decorator with a generated unique key, or key when given.
func CreateDecorator[T any](key ...string) *Decorator[T] {
	k := "decorator:" + uuid.NewString()
	if len(key) > 0 && key[0] != "" {
		k = key[0]
	}
	return &Decorator[T]{Key: k}
}

// Apply defines value on each target.
func (d *Decorator[T]) Apply(value T, targets ...Target) {
	for _, t := range targets {
		Define(d.Key, value, t)
	}
}

// Get reads the decorator value from target.
func (d *Decorator[T]) Get(target Target) (T, bool) {
	return GetAs[T](d.Key, target)
}

// GetAllAndOverride reads the first target carrying the decorator.
func (d *Decorator[T]) GetAllAndOverride(targets ...Target) (T, bool) {
	for _, t := range targets {
		if v, ok := d.Get(t); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// SetMetadata defines key on every target. It is the untyped form of Decorator.Apply.
func SetMetadata(key string, value any, targets ...Target) {
	for _, t := range targets {
		Define(key, value, t)
	}
}
