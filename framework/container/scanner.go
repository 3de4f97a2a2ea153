package container

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/zengzjie/nest-source/framework/metadata"
)

// ── Import resolution ─────────────────────────────────────────────────────────

type resolvedImport struct {
	module  *Module
	dynamic *DynamicModule
}

// awaitImports turns an import list into modules. Pending modules run
// concurrently; the results keep declaration order and nothing is merged
// until every one of them has settled.
func (c *Container) awaitImports(ctx context.Context, owner *Module, imports []any) ([]resolvedImport, error) {
	out := make([]resolvedImport, len(imports))
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	await := func(i int, pending PendingModule) {
		g.Go(func() error {
			dm, err := pending(gctx)
			if err != nil {
				return fmt.Errorf("container: dynamic import %d of %s: %w", i, owner.Name(), err)
			}
			out[i] = resolvedImport{dynamic: dm}
			return nil
		})
	}

	var invalid error
scan:
	for i, imp := range imports {
		switch v := imp.(type) {
		case *Module:
			if v == nil {
				invalid = fmt.Errorf("%w: nil import in %s", ErrInvalidImport, owner.Name())
				break scan
			}
			out[i] = resolvedImport{module: v}
		case *DynamicModule:
			out[i] = resolvedImport{dynamic: v}
		case ForwardReference:
			m := v.fn()
			if m == nil {
				invalid = fmt.Errorf("%w: forward reference in %s resolved to nil", ErrInvalidImport, owner.Name())
				break scan
			}
			out[i] = resolvedImport{module: m}
		case PendingModule:
			await(i, v)
		case func(context.Context) (*DynamicModule, error):
			await(i, v)
		default:
			invalid = invalidImport(owner, imp)
			break scan
		}
	}

	// pending modules already started must settle before out is dropped
	if invalid != nil {
		cancel()
		_ = g.Wait()
		return nil, invalid
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, r := range out {
		if r.dynamic != nil {
			if r.dynamic.Module == nil {
				return nil, fmt.Errorf("%w: dynamic import %d of %s has no module", ErrInvalidImport, i, owner.Name())
			}
			out[i].module = r.dynamic.Module
		}
		if out[i].module == nil {
			return nil, fmt.Errorf("%w: dynamic import %d of %s produced nothing", ErrInvalidImport, i, owner.Name())
		}
	}
	return out, nil
}

func invalidImport(owner *Module, imp any) error {
	if t, ok := imp.(metadata.Target); ok {
		if _, isCtrl := metadata.Get(metadata.ControllerKey, t); isCtrl {
			return fmt.Errorf("%w: controller %v imported by %s", ErrInvalidImport, imp, owner.Name())
		}
		if _, isInj := metadata.Get(metadata.InjectableKey, t); isInj {
			return fmt.Errorf("%w: injectable %v imported by %s", ErrInvalidImport, imp, owner.Name())
		}
	}
	return fmt.Errorf("%w: %T imported by %s", ErrInvalidImport, imp, owner.Name())
}

// merge adds a dynamic module's lists to the effective view of its module.
func (c *Container) merge(dm *DynamicModule) {
	st := c.state(dm.Module)
	st.imports = append(st.imports, dm.Imports...)
	st.providers = append(st.providers, dm.Providers...)
	st.controllers = append(st.controllers, dm.Controllers...)
	st.exports = append(st.exports, dm.Exports...)
	if dm.Global {
		st.global = true
	}
}

// ── Scanning ──────────────────────────────────────────────────────────────────

// initProviders registers a module's imports and then its own providers.
// It only processes entries added since the previous call, so a module
// reached through several import paths is scanned once, and entries merged
// later by a dynamic module are still picked up.
func (c *Container) initProviders(ctx context.Context, m *Module) error {
	st := c.state(m)
	if st.scanning {
		return nil
	}
	st.scanning = true
	defer func() { st.scanning = false }()

	for st.importsDone < len(st.imports) {
		batch := st.imports[st.importsDone:]
		st.importsDone = len(st.imports)

		imports, err := c.awaitImports(ctx, m, batch)
		if err != nil {
			return err
		}
		for _, imp := range imports {
			if imp.dynamic != nil {
				c.merge(imp.dynamic)
			}
			if err := c.registerProvidersFromModule(ctx, imp.module, []*Module{m}); err != nil {
				return err
			}
		}
	}

	for st.providersDone < len(st.providers) {
		i := st.providersDone
		st.providersDone++
		if err := c.addProvider(definition{provider: st.providers[i], owner: m, index: i}, m, false); err != nil {
			return err
		}
	}
	return nil
}

// registerProvidersFromModule propagates what m makes available into the
// chain of importing modules: value providers unconditionally, everything
// else only when exported. Providers of a global module go to the global set.
func (c *Container) registerProvidersFromModule(ctx context.Context, m *Module, chain []*Module) error {
	for _, p := range chain {
		if p == m {
			return nil
		}
	}
	if err := c.initProviders(ctx, m); err != nil {
		return err
	}
	st := c.state(m)
	chain = append([]*Module{m}, chain...)

	publish := func(d definition) error {
		for _, target := range chain {
			if err := c.addProvider(d, target, st.global); err != nil {
				return err
			}
		}
		return nil
	}

	for i, p := range st.providers {
		if isValueProvider(p) {
			if err := publish(definition{provider: p, owner: m, index: i}); err != nil {
				return err
			}
		}
	}

	for _, export := range st.exports {
		if em, ok := exportedModule(export); ok {
			if err := c.registerProvidersFromModule(ctx, em, chain); err != nil {
				return err
			}
			continue
		}

		found := false
		for i, p := range st.providers {
			if matchesExport(p, export) {
				found = true
				if err := publish(definition{provider: p, owner: m, index: i}); err != nil {
					return err
				}
			}
		}
		if found {
			continue
		}

		// Re-export of a token the module received from one of its imports.
		tok := normalize(export)
		if !validToken(tok) || !c.visible(tok, m) {
			return fmt.Errorf("%w: %s from %s", ErrUnknownExport, TokenName(export), m.Name())
		}
		for _, target := range chain[1:] {
			if st.global {
				c.global.add(tok)
				continue
			}
			c.state(target).tokens.add(tok)
		}
	}
	return nil
}

func exportedModule(export any) (*Module, bool) {
	switch v := export.(type) {
	case *Module:
		return v, v != nil
	case ForwardReference:
		m := v.fn()
		return m, m != nil
	}
	return nil, false
}

// addProvider records a declaration and makes its token visible in m, or
// globally. The first declaration of a token wins; later ones only add
// visibility. Multi tokens collect every declaration site once.
func (c *Container) addProvider(d definition, m *Module, global bool) error {
	if d.provider == nil {
		return fmt.Errorf("%w: nil provider in %s", ErrInvalidProvider, d.owner.Name())
	}
	if err := validateProvider(d.provider); err != nil {
		return fmt.Errorf("%w (module %s)", err, d.owner.Name())
	}
	tok := normalize(d.provider.ProvideToken())
	if !validToken(tok) {
		return fmt.Errorf("%w: %s in %s", ErrInvalidToken, TokenName(tok), d.owner.Name())
	}
	if class := providerClass(d.provider); class != nil {
		if _, ok := c.namespaces[class]; !ok {
			c.namespaces[class] = d.owner
		}
	}

	if isMulti(tok) {
		site := declSite{owner: d.owner, index: d.index}
		if !c.multiSeen[site] {
			c.multiSeen[site] = true
			def := d
			c.multi[tok] = append(c.multi[tok], &def)
		}
		return nil
	}

	if _, ok := c.definitions[tok]; !ok {
		def := d
		c.definitions[tok] = &def
		c.defOrder = append(c.defOrder, tok)
	}
	if global {
		c.global.add(tok)
		return nil
	}
	c.state(m).tokens.add(tok)
	return nil
}

func validateProvider(p Provider) error {
	switch v := p.(type) {
	case *Class:
		if v == nil {
			return fmt.Errorf("%w: nil class", ErrInvalidProvider)
		}
	case ClassProvider:
		if v.UseClass == nil {
			return fmt.Errorf("%w: ClassProvider %s without UseClass", ErrInvalidProvider, TokenName(v.Provide))
		}
	case FactoryProvider:
		if v.UseFactory == nil {
			return fmt.Errorf("%w: FactoryProvider %s without UseFactory", ErrInvalidProvider, TokenName(v.Provide))
		}
	case ExistingProvider:
		if !validToken(normalize(v.UseExisting)) {
			return fmt.Errorf("%w: ExistingProvider %s aliases an invalid token", ErrInvalidProvider, TokenName(v.Provide))
		}
	case ValueProvider:
	default:
		return fmt.Errorf("%w: unsupported provider %T", ErrInvalidProvider, p)
	}
	return nil
}
