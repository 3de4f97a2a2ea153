package container

import (
	"context"
	"fmt"
	"reflect"
)

// ── Instantiation ─────────────────────────────────────────────────────────────

// instantiateAll builds every registered definition in registration order,
// then every multi-token declaration.
func (c *Container) instantiateAll(ctx context.Context) error {
	for _, tok := range c.defOrder {
		if _, err := c.instance(ctx, tok); err != nil {
			return err
		}
	}
	for _, tok := range []Token{AppGuard, AppPipe, AppFilter, AppInterceptor} {
		var built []Enhancer
		for _, def := range c.multi[tok] {
			v, err := c.build(ctx, def)
			if err != nil {
				return err
			}
			built = append(built, Enhancer{Instance: v, Class: providerClass(def.provider), Module: def.owner})
		}
		c.enhancers[tok] = built
	}
	return nil
}

// resolveToken returns the instance for token as seen from module m.
func (c *Container) resolveToken(ctx context.Context, token Token, m *Module, optional bool) (any, bool, error) {
	tok := normalize(token)
	if tok == contextType {
		return ctx, true, nil
	}
	if !validToken(tok) {
		return nil, false, &ResolutionError{Token: token, Module: moduleName(m), Err: ErrInvalidToken}
	}
	if !c.visible(tok, m) {
		if optional {
			return nil, false, nil
		}
		return nil, false, &ResolutionError{Token: tok, Module: moduleName(m), Path: c.path(), Err: ErrUnknownDependency}
	}
	v, err := c.instance(ctx, tok)
	return v, err == nil, err
}

// instance returns the singleton for tok, building it on first request.
func (c *Container) instance(ctx context.Context, tok Token) (any, error) {
	if v, ok := c.instances[tok]; ok {
		return v, nil
	}
	def, ok := c.definitions[tok]
	if !ok {
		return nil, &ResolutionError{Token: tok, Path: c.path(), Err: ErrUnknownDependency}
	}
	for _, t := range c.stack {
		if t == tok {
			return nil, &ResolutionError{Token: tok, Module: moduleName(def.owner), Path: append(c.path(), tok), Err: ErrCircularDependency}
		}
	}
	if c.sealed {
		return nil, ErrSealed
	}

	c.stack = append(c.stack, tok)
	v, err := c.build(ctx, def)
	c.stack = c.stack[:len(c.stack)-1]
	if err != nil {
		return nil, err
	}
	c.instances[tok] = v
	return v, nil
}

func (c *Container) path() []Token {
	return append([]Token(nil), c.stack...)
}

// build produces the value of one declaration inside its owning module.
func (c *Container) build(ctx context.Context, def *definition) (any, error) {
	switch p := def.provider.(type) {
	case *Class:
		return c.instantiate(ctx, p, def.owner)
	case ClassProvider:
		return c.instantiate(ctx, p.UseClass, def.owner)
	case ValueProvider:
		return p.UseValue, nil
	case FactoryProvider:
		return c.callFactory(ctx, p, def.owner)
	case ExistingProvider:
		v, _, err := c.resolveToken(ctx, p.UseExisting, def.owner, false)
		return v, err
	}
	return nil, fmt.Errorf("%w: unsupported provider %T", ErrInvalidProvider, def.provider)
}

// instantiate resolves the constructor arguments of class inside module m,
// calls the constructor and applies property injection to the new instance.
func (c *Container) instantiate(ctx context.Context, class *Class, m *Module) (any, error) {
	deps := class.Dependencies()
	args := make([]reflect.Value, len(deps))
	for i, tok := range deps {
		if _, explicit := class.injects[i]; !explicit && class.params[i] == contextType {
			args[i] = reflect.ValueOf(ctx)
			continue
		}
		v, _, err := c.resolveToken(ctx, tok, m, class.optional[i])
		if err != nil {
			return nil, fmt.Errorf("container: constructing %s: %w", class.Name(), err)
		}
		arg, err := argument(v, class.params[i])
		if err != nil {
			return nil, fmt.Errorf("container: constructing %s, parameter %d: %w", class.Name(), i, err)
		}
		args[i] = arg
	}

	inst, err := class.construct(args)
	if err != nil {
		return nil, fmt.Errorf("container: constructing %s: %w", class.Name(), err)
	}
	if err := c.injectProperties(ctx, class, inst, m); err != nil {
		return nil, err
	}
	return inst, nil
}

// injectProperties assigns every property dependency on the instance itself.
func (c *Container) injectProperties(ctx context.Context, class *Class, inst any, m *Module) error {
	if len(class.props) == 0 {
		return nil
	}
	rv := reflect.ValueOf(inst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: %s has property injections but is not a struct pointer", ErrInvalidProvider, class.Name())
	}
	elem := rv.Elem()
	for _, prop := range class.props {
		field := elem.FieldByName(prop.field)
		if !field.IsValid() || !field.CanSet() {
			return fmt.Errorf("%w: %s has no settable field %q", ErrInvalidProvider, class.Name(), prop.field)
		}
		v, found, err := c.resolveToken(ctx, prop.token, m, prop.optional)
		if err != nil {
			return fmt.Errorf("container: injecting %s.%s: %w", class.Name(), prop.field, err)
		}
		if !found {
			continue
		}
		arg, err := argument(v, field.Type())
		if err != nil {
			return fmt.Errorf("container: injecting %s.%s: %w", class.Name(), prop.field, err)
		}
		field.Set(arg)
	}
	return nil
}

// callFactory resolves the inject list against the owning module, then the
// global set, and calls the factory. The returned value is complete when
// stored: a factory that needs to wait does so before returning.
func (c *Container) callFactory(ctx context.Context, p FactoryProvider, m *Module) (any, error) {
	fn := reflect.ValueOf(p.UseFactory)
	if fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: factory for %s is %T", ErrInvalidProvider, TokenName(p.Provide), p.UseFactory)
	}
	ft := fn.Type()

	offset := 0
	if ft.NumIn() > 0 && ft.In(0) == contextType && len(p.Inject) == ft.NumIn()-1 {
		offset = 1
	}
	if ft.IsVariadic() || ft.NumIn()-offset != len(p.Inject) {
		return nil, fmt.Errorf("%w: factory for %s takes %d arguments, inject lists %d",
			ErrInvalidProvider, TokenName(p.Provide), ft.NumIn()-offset, len(p.Inject))
	}

	args := make([]reflect.Value, ft.NumIn())
	if offset == 1 {
		args[0] = reflect.ValueOf(ctx)
	}
	for i, entry := range p.Inject {
		tok, optional := injectEntry(entry)
		v, _, err := c.resolveToken(ctx, tok, m, optional)
		if err != nil {
			return nil, fmt.Errorf("container: factory %s: %w", TokenName(p.Provide), err)
		}
		arg, err := argument(v, ft.In(i+offset))
		if err != nil {
			return nil, fmt.Errorf("container: factory %s, argument %d: %w", TokenName(p.Provide), i, err)
		}
		args[i+offset] = arg
	}

	out := fn.Call(args)
	switch {
	case len(out) == 1 && ft.Out(0) != errorType:
		return out[0].Interface(), nil
	case len(out) == 2 && ft.Out(1) == errorType:
		if !out[1].IsNil() {
			return nil, fmt.Errorf("container: factory %s: %w", TokenName(p.Provide), out[1].Interface().(error))
		}
		return out[0].Interface(), nil
	}
	return nil, fmt.Errorf("%w: factory for %s must return T or (T, error)", ErrInvalidProvider, TokenName(p.Provide))
}

// argument converts a resolved value into a call argument of type t.
func argument(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if rv.Kind() == t.Kind() && rv.Type().ConvertibleTo(t) {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %s as %s", rv.Type(), t)
}

func moduleName(m *Module) string {
	if m == nil {
		return ""
	}
	return m.Name()
}

// ── Classes outside the registry ──────────────────────────────────────────────

// ResolveClass returns an instance of class as seen from module m. When the
// class token is a visible provider its singleton is returned; otherwise the
// class is built once and cached. A nil m falls back to the module that
// declared the class, then the root module.
func (c *Container) ResolveClass(ctx context.Context, class *Class, m *Module) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m == nil {
		if owner, ok := c.namespaces[class]; ok {
			m = owner
		} else {
			m = c.root
		}
	}
	if c.visible(class.Token(), m) {
		if def, ok := c.definitions[class.Token()]; ok && providerClass(def.provider) == class {
			return c.instance(ctx, class.Token())
		}
	}
	if v, ok := c.classCache[class]; ok {
		return v, nil
	}
	if c.sealed {
		return nil, ErrSealed
	}
	if _, ok := c.namespaces[class]; !ok {
		c.namespaces[class] = m
	}
	v, err := c.instantiate(ctx, class, m)
	if err != nil {
		return nil, err
	}
	c.classCache[class] = v
	return v, nil
}
