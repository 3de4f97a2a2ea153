package container

import (
	"context"
	"fmt"
	"reflect"

	"github.com/zengzjie/nest-source/framework/metadata"
)

var (
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
)

// ── Class ─────────────────────────────────────────────────────────────────────

// Class is the declarative definition of an injectable type: its constructor,
// the dependency token of every constructor parameter and its property
// injections. A Class is its own provider, keyed by the constructor's result type.
//
//	var CatsService = container.Injectable(NewCatsService).
//	    Inject(1, "CONFIG").
//	    Property("Logger", container.TypeToken[*zap.Logger]())
type Class struct {
	name     string
	ctor     reflect.Value
	out      reflect.Type
	params   []reflect.Type
	hasErr   bool
	injects  map[int]Token
	optional map[int]bool
	props    []propertyDep
	meta     metadata.Map
}

type propertyDep struct {
	field    string
	token    Token
	optional bool
}

// Injectable builds a Class from a constructor returning T or (T, error).
// It panics when ctor has any other shape.
func Injectable(ctor any) *Class {
	v := reflect.ValueOf(ctor)
	if v.Kind() != reflect.Func || v.IsNil() {
		panic(fmt.Sprintf("container: Injectable expects a constructor func, got %T", ctor))
	}
	t := v.Type()
	if t.IsVariadic() {
		panic(fmt.Sprintf("container: variadic constructor %s is not injectable", t))
	}

	c := &Class{
		ctor:     v,
		injects:  make(map[int]Token),
		optional: make(map[int]bool),
	}
	switch {
	case t.NumOut() == 1 && t.Out(0) != errorType:
	case t.NumOut() == 2 && t.Out(1) == errorType:
		c.hasErr = true
	default:
		panic(fmt.Sprintf("container: constructor %s must return T or (T, error)", t))
	}
	c.out = t.Out(0)
	c.name = c.out.String()
	c.params = make([]reflect.Type, t.NumIn())
	for i := range c.params {
		c.params[i] = t.In(i)
	}
	metadata.Define(metadata.InjectableKey, true, c)
	return c
}

// Struct builds a Class that allocates a zero *T; dependencies arrive through Property.
func Struct[T any]() *Class {
	return Injectable(func() *T { return new(T) })
}

// Inject overrides the dependency token of the constructor parameter at index.
func (c *Class) Inject(index int, token Token) *Class {
	c.checkIndex(index)
	c.injects[index] = token
	return c
}

// Optional marks the constructor parameter at index as optional: it receives
// its zero value when no provider is visible.
func (c *Class) Optional(index int) *Class {
	c.checkIndex(index)
	c.optional[index] = true
	return c
}

// Property assigns the provider for token onto the exported field of every
// constructed instance.
func (c *Class) Property(field string, token Token) *Class {
	c.props = append(c.props, propertyDep{field: field, token: token})
	return c
}

// OptionalProperty is Property that leaves the field untouched when token is not visible.
func (c *Class) OptionalProperty(field string, token Token) *Class {
	c.props = append(c.props, propertyDep{field: field, token: token, optional: true})
	return c
}

// Named overrides the display name used in logs.
func (c *Class) Named(name string) *Class {
	c.name = name
	return c
}

func (c *Class) checkIndex(index int) {
	if index < 0 || index >= len(c.params) {
		panic(fmt.Sprintf("container: %s has no constructor parameter %d", c.name, index))
	}
}

// Name returns the display name of the class.
func (c *Class) Name() string { return c.name }

// Token returns the class-reference token: the constructor's result type.
func (c *Class) Token() Token { return c.out }

// Type returns the constructed type.
func (c *Class) Type() reflect.Type { return c.out }

// ProvideToken implements Provider.
func (c *Class) ProvideToken() Token { return c.out }

// Class implements ControllerClass.
func (c *Class) Class() *Class { return c }

// Metadata implements metadata.Target.
func (c *Class) Metadata() *metadata.Map { return &c.meta }

// Dependencies returns the token of every constructor parameter, explicit
// injections taking precedence over the inferred parameter type.
func (c *Class) Dependencies() []Token {
	deps := make([]Token, len(c.params))
	for i, p := range c.params {
		if tok, ok := c.injects[i]; ok {
			deps[i] = tok
			continue
		}
		deps[i] = p
	}
	return deps
}

func (c *Class) construct(args []reflect.Value) (any, error) {
	out := c.ctor.Call(args)
	if c.hasErr && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	return out[0].Interface(), nil
}

func (c *Class) String() string { return c.name }
