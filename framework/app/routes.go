package app

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/zengzjie/nest-source/framework/container"
	"github.com/zengzjie/nest-source/framework/pipeline"
	"github.com/zengzjie/nest-source/framework/routing"
)

// ── Middleware ───────────────────────────────────────────────────────────────

type boundMiddleware struct {
	binding *routing.MiddlewareBinding
	chain   []func(http.Handler) http.Handler
}

// consumers runs each module's configure function and resolves the
// middleware it bound.
func (a *Application) consumers(ctx context.Context) ([]boundMiddleware, error) {
	var out []boundMiddleware
	for _, m := range a.container.Modules() {
		fn, ok := routing.ConfigureOf(m)
		if !ok {
			continue
		}
		consumer := &routing.MiddlewareConsumer{}
		fn(consumer)
		for _, b := range consumer.Bindings() {
			bm := boundMiddleware{binding: b}
			for _, entry := range b.Middleware {
				mw, err := a.middlewareOf(ctx, m, entry)
				if err != nil {
					return nil, fmt.Errorf("app: middleware in %s: %w", m.Name(), err)
				}
				bm.chain = append(bm.chain, mw)
			}
			out = append(out, bm)
		}
	}
	return out, nil
}

func (a *Application) middlewareOf(ctx context.Context, m *container.Module, entry any) (func(http.Handler) http.Handler, error) {
	inst, _, err := a.instance(ctx, m, entry)
	if err != nil {
		return nil, err
	}
	switch mw := inst.(type) {
	case func(http.Handler) http.Handler:
		return mw, nil
	case routing.Middleware:
		return mw.Use, nil
	}
	return nil, fmt.Errorf("%T is not a middleware", inst)
}

// wrap applies every binding matching the route, first binding outermost.
func wrap(h http.Handler, method, path string, mws []boundMiddleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if !mws[i].binding.Matches(method, path) {
			continue
		}
		chain := mws[i].chain
		for j := len(chain) - 1; j >= 0; j-- {
			h = chain[j](h)
		}
	}
	return h
}

// ── Controllers ──────────────────────────────────────────────────────────────

func (a *Application) mountController(ctx context.Context, ref container.ControllerRef, global *enhancers, mws []boundMiddleware) error {
	def, ok := ref.Definition.(*routing.ControllerDef)
	if !ok {
		return fmt.Errorf("app: %v in %s is not a routing controller", ref.Class, ref.Module.Name())
	}
	inst, err := a.container.ResolveClass(ctx, ref.Class, ref.Module)
	if err != nil {
		return err
	}
	ctrl, err := a.scoped(ctx, ref.Module, def)
	if err != nil {
		return fmt.Errorf("app: %s: %w", def, err)
	}

	for _, rd := range def.RouteDefs() {
		rt, err := a.buildRoute(ctx, ref.Module, def, rd, inst, global, ctrl)
		if err != nil {
			return fmt.Errorf("app: %s %s: %w", def, rd, err)
		}
		local := routing.JoinPath(def.Prefix(), rd.Path())
		h := wrap(a.executor.Handler(rt), rd.Method(), local, mws)
		a.router.Method(rd.Method(), rt.Path, h)
		a.routes = append(a.routes, rt)

		method := rd.Method()
		if method == "" {
			method = "ALL"
		}
		a.logger.Info("mapped route",
			zap.String("controller", def.String()),
			zap.String("method", method),
			zap.String("path", rt.Path),
		)
	}
	return nil
}

func (a *Application) buildRoute(ctx context.Context, m *container.Module, def *routing.ControllerDef, rd *routing.RouteDef, inst any, global, ctrl *enhancers) (*pipeline.Route, error) {
	rt, err := pipeline.NewRoute(rd.Method(), routing.JoinPath(a.prefix, def.Prefix(), rd.Path()), inst, rd.Handler())
	if err != nil {
		return nil, err
	}
	rt.Controller = def
	rt.Definition = rd

	method, err := a.scoped(ctx, m, rd)
	if err != nil {
		return nil, err
	}
	e := merge(global, ctrl, method)
	rt.Guards = e.guards
	rt.Pipes = e.pipes
	rt.Interceptors = e.interceptors
	rt.Filters = e.filters

	for i, decl := range rd.ParamDecls() {
		if decl == nil {
			continue
		}
		if decl.Kind == pipeline.KindCustom {
			rt.Factories = append(rt.Factories, &pipeline.BoundFactory{Index: i, ParamFactoryDecl: decl.Factory})
			continue
		}
		ps, err := a.resolvePipes(ctx, m, decl.Pipes)
		if err != nil {
			return nil, err
		}
		rt.Params = append(rt.Params, &pipeline.BoundParam{Index: i, Kind: decl.Kind, Key: decl.Key, Pipes: ps})

		if decl.Kind == pipeline.KindResponse || decl.Kind == pipeline.KindNext {
			if decl.Passthrough {
				if rt.Mode == pipeline.ModeAuto {
					rt.Mode = pipeline.ModePassthrough
				}
			} else {
				rt.Mode = pipeline.ModeManual
			}
		}
	}

	rt.HTTPCode = rd.HTTPCode()
	rt.Redirect = rd.RedirectTo()
	rt.Headers = rd.Headers()
	if err := rt.Validate(); err != nil {
		return nil, err
	}
	return rt, nil
}
