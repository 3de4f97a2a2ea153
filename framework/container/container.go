package container

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ── Registry state ────────────────────────────────────────────────────────────

// definition is one provider declaration together with the module that declared it.
type definition struct {
	provider Provider
	owner    *Module
	index    int
}

type declSite struct {
	owner *Module
	index int
}

// moduleState is the effective view of a module for one container: its
// declared lists plus everything merged in from dynamic modules.
type moduleState struct {
	module      *Module
	imports     []any
	providers   []Provider
	controllers []ControllerClass
	exports     []any
	global      bool

	tokens tokenSet

	scanning      bool
	importsDone   int
	providersDone int
}

// ControllerRef is a controller together with the module that declared it.
// Definition is what the module listed, Class its injectable class.
type ControllerRef struct {
	Definition ControllerClass
	Class      *Class
	Module     *Module
}

// ── Container ─────────────────────────────────────────────────────────────────

// Container holds everything built during bootstrap: the instance registry,
// the per-module provider index, the global provider set and the namespace
// association of every class. It is populated once by Bootstrap and is
// read-only after Seal.
type Container struct {
	mu     sync.RWMutex
	logger *zap.Logger

	root    *Module
	modules map[*Module]*moduleState
	order   []*Module

	// token → first declaration
	definitions map[Token]*definition
	defOrder    []Token

	// token → built instance
	instances map[Token]any

	// tokens visible from every module
	global tokenSet

	// multi token → declarations / built instances
	multi     map[Token][]*definition
	multiSeen map[declSite]bool
	enhancers map[Token][]Enhancer

	// class → declaring module
	namespaces map[*Class]*Module

	// classes built outside the registry (controllers, enhancers)
	classCache map[*Class]any

	// tokens currently being built
	stack []Token

	sealed bool
}

// New creates an empty container. A nil logger is replaced by zap.NewNop().
func New(logger *zap.Logger) *Container {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Container{
		logger:      logger,
		modules:     make(map[*Module]*moduleState),
		definitions: make(map[Token]*definition),
		instances:   make(map[Token]any),
		multi:       make(map[Token][]*definition),
		multiSeen:   make(map[declSite]bool),
		enhancers:   make(map[Token][]Enhancer),
		namespaces:  make(map[*Class]*Module),
		classCache:  make(map[*Class]any),
	}
}

// state returns the effective view of m, creating it from the declaration on first use.
func (c *Container) state(m *Module) *moduleState {
	if st, ok := c.modules[m]; ok {
		return st
	}
	st := &moduleState{
		module:      m,
		imports:     append([]any(nil), m.imports...),
		providers:   append([]Provider(nil), m.providers...),
		controllers: append([]ControllerClass(nil), m.controllers...),
		exports:     append([]any(nil), m.exports...),
		global:      m.global,
	}
	c.modules[m] = st
	c.order = append(c.order, m)
	return st
}

// ── Bootstrap ─────────────────────────────────────────────────────────────────

// Provide registers providers directly into the global set before Bootstrap.
// The application uses it for its default providers (config, logger, reflector).
func (c *Container) Provide(providers ...Provider) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		return ErrSealed
	}
	host := c.internalModule()
	st := c.state(host)
	for _, p := range providers {
		st.providers = append(st.providers, p)
		if err := c.addProvider(definition{provider: p, owner: host, index: len(st.providers) - 1}, host, true); err != nil {
			return err
		}
	}
	st.providersDone = len(st.providers)
	return nil
}

var internalModule = NewModule("InternalCoreModule").Global()

func (c *Container) internalModule() *Module { return internalModule }

// Bootstrap scans the module tree rooted at root and builds every registered
// provider. Any configuration error aborts the whole pass.
func (c *Container) Bootstrap(ctx context.Context, root *Module) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		return ErrSealed
	}
	if root == nil {
		return fmt.Errorf("%w: nil root module", ErrInvalidImport)
	}
	c.root = root

	if err := c.initProviders(ctx, root); err != nil {
		return err
	}
	if err := c.instantiateAll(ctx); err != nil {
		return err
	}
	for _, m := range c.order {
		if m == internalModule {
			continue
		}
		c.logger.Info("module dependencies initialized", zap.String("module", m.Name()))
	}
	return nil
}

// Seal ends the bootstrap pass. Later calls to Provide, Bootstrap and
// ResolveClass for unbuilt classes fail with ErrSealed.
func (c *Container) Seal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sealed = true
}

// Sealed reports whether Seal has been called.
func (c *Container) Sealed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sealed
}

// ── Lookups ───────────────────────────────────────────────────────────────────

// Root returns the root module of the last Bootstrap.
func (c *Container) Root() *Module {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.root
}

// Get returns the instance registered under token, regardless of visibility.
func (c *Container) Get(token Token) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.instances[normalize(token)]
	return v, ok
}

// Visible reports whether token can be injected inside module m.
func (c *Container) Visible(token Token, m *Module) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.visible(normalize(token), m)
}

func (c *Container) visible(token Token, m *Module) bool {
	if c.global.has(token) {
		return true
	}
	if m == nil {
		return false
	}
	st, ok := c.modules[m]
	return ok && st.tokens.has(token)
}

// ModuleTokens lists the tokens visible inside m, in registration order.
func (c *Container) ModuleTokens(m *Module) []Token {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.modules[m]
	if !ok {
		return nil
	}
	return st.tokens.list()
}

// GlobalTokens lists the globally visible tokens, in registration order.
func (c *Container) GlobalTokens() []Token {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.global.list()
}

// Enhancer is one built declaration of a multi token. Class is the class
// it was built from, nil for value, factory and existing providers; its
// metadata carries restrictions such as the types a filter catches.
type Enhancer struct {
	Instance any
	Class    *Class
	Module   *Module
}

// Enhancers returns the instances aggregated under a multi token such as AppGuard.
func (c *Container) Enhancers(token Token) []any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]any, 0, len(c.enhancers[token]))
	for _, e := range c.enhancers[token] {
		out = append(out, e.Instance)
	}
	return out
}

// EnhancerEntries is Enhancers with the declaring class and module of each instance.
func (c *Container) EnhancerEntries(token Token) []Enhancer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Enhancer, len(c.enhancers[token]))
	copy(out, c.enhancers[token])
	return out
}

// Controllers lists every controller in module scan order.
func (c *Container) Controllers() []ControllerRef {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []ControllerRef
	for _, m := range c.order {
		for _, ctrl := range c.modules[m].controllers {
			out = append(out, ControllerRef{Definition: ctrl, Class: ctrl.Class(), Module: m})
		}
	}
	return out
}

// Modules lists every scanned module in scan order.
func (c *Container) Modules() []*Module {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Module, 0, len(c.order))
	for _, m := range c.order {
		if m != internalModule {
			out = append(out, m)
		}
	}
	return out
}

// ModuleOf returns the module a class was declared in.
func (c *Container) ModuleOf(class *Class) (*Module, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.namespaces[class]
	return m, ok
}

// ── Generic helpers ───────────────────────────────────────────────────────────

// Resolve returns the instance under token asserted to T.
//
//	svc, err := container.Resolve[*CatsService](c, container.TypeToken[*CatsService]())
func Resolve[T any](c *Container, token Token) (T, error) {
	var zero T
	v, ok := c.Get(token)
	if !ok {
		return zero, &ResolutionError{Token: token, Err: ErrUnknownDependency}
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("container: %s is %T, not %T", TokenName(token), v, zero)
	}
	return t, nil
}

// MustResolve is Resolve that panics on failure.
func MustResolve[T any](c *Container, token Token) T {
	t, err := Resolve[T](c, token)
	if err != nil {
		panic(err)
	}
	return t
}
