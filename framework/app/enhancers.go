package app

import (
	"context"
	"fmt"

	"github.com/zengzjie/nest-source/framework/container"
	"github.com/zengzjie/nest-source/framework/metadata"
	"github.com/zengzjie/nest-source/framework/pipeline"
)

// enhancers is one resolved list of each enhancer kind.
type enhancers struct {
	guards       []pipeline.Guard
	pipes        []pipeline.Pipe
	interceptors []pipeline.Interceptor
	filters      []pipeline.FilterBinding
}

// globals resolves the application-level enhancers followed by the ones
// registered under the App* multi tokens.
func (a *Application) globals(ctx context.Context) (*enhancers, error) {
	root := a.container.Root()
	interceptors := a.interceptors
	if a.metrics != nil {
		interceptors = append([]any{a.metrics}, interceptors...)
	}

	e, err := a.resolveEnhancers(ctx, root,
		append(append([]any(nil), a.guards...), a.provided(container.AppGuard)...),
		append(append([]any(nil), a.pipes...), a.provided(container.AppPipe)...),
		append(append([]any(nil), interceptors...), a.provided(container.AppInterceptor)...),
		append(append([]any(nil), a.filters...), a.provided(container.AppFilter)...),
	)
	if err != nil {
		return nil, fmt.Errorf("app: global enhancers: %w", err)
	}
	return e, nil
}

// built is an enhancer the container already instantiated, kept with its
// class so that class metadata such as catch restrictions still applies.
type built struct {
	instance any
	class    *container.Class
}

func (a *Application) provided(token container.Token) []any {
	var out []any
	for _, e := range a.container.EnhancerEntries(token) {
		out = append(out, built{instance: e.Instance, class: e.Class})
	}
	return out
}

// scoped resolves the enhancers declared on target in module m.
func (a *Application) scoped(ctx context.Context, m *container.Module, target metadata.Target) (*enhancers, error) {
	return a.resolveEnhancers(ctx, m,
		metadata.Values(metadata.GuardsKey, target),
		metadata.Values(metadata.PipesKey, target),
		metadata.Values(metadata.InterceptorsKey, target),
		metadata.Values(metadata.FiltersKey, target),
	)
}

func (a *Application) resolveEnhancers(ctx context.Context, m *container.Module, guards, pipes, interceptors, filters []any) (*enhancers, error) {
	e := &enhancers{}
	for _, entry := range guards {
		inst, _, err := a.instance(ctx, m, entry)
		if err != nil {
			return nil, err
		}
		g, ok := inst.(pipeline.Guard)
		if !ok {
			return nil, fmt.Errorf("%T is not a guard", inst)
		}
		e.guards = append(e.guards, g)
	}
	ps, err := a.resolvePipes(ctx, m, pipes)
	if err != nil {
		return nil, err
	}
	e.pipes = ps
	for _, entry := range interceptors {
		inst, _, err := a.instance(ctx, m, entry)
		if err != nil {
			return nil, err
		}
		i, ok := inst.(pipeline.Interceptor)
		if !ok {
			return nil, fmt.Errorf("%T is not an interceptor", inst)
		}
		e.interceptors = append(e.interceptors, i)
	}
	for _, entry := range filters {
		inst, class, err := a.instance(ctx, m, entry)
		if err != nil {
			return nil, err
		}
		f, ok := inst.(pipeline.ExceptionFilter)
		if !ok {
			return nil, fmt.Errorf("%T is not an exception filter", inst)
		}
		var meta metadata.Target
		if class != nil {
			meta = class
		}
		e.filters = append(e.filters, pipeline.BindFilter(f, meta))
	}
	return e, nil
}

func (a *Application) resolvePipes(ctx context.Context, m *container.Module, entries []any) ([]pipeline.Pipe, error) {
	var out []pipeline.Pipe
	for _, entry := range entries {
		inst, _, err := a.instance(ctx, m, entry)
		if err != nil {
			return nil, err
		}
		p, ok := inst.(pipeline.Pipe)
		if !ok {
			return nil, fmt.Errorf("%T is not a pipe", inst)
		}
		out = append(out, p)
	}
	return out, nil
}

// instance turns an enhancer entry into an instance. Classes are built in
// module m with its visibility; anything else is used as is.
func (a *Application) instance(ctx context.Context, m *container.Module, entry any) (any, *container.Class, error) {
	if b, ok := entry.(built); ok {
		return b.instance, b.class, nil
	}
	class, ok := entry.(*container.Class)
	if !ok {
		return entry, nil, nil
	}
	inst, err := a.container.ResolveClass(ctx, class, m)
	if err != nil {
		return nil, nil, err
	}
	return inst, class, nil
}

// merge concatenates enhancer lists for one route: guards, pipes and
// interceptors run global first; filters are tried controller, method, then global.
func merge(global, ctrl, method *enhancers) *enhancers {
	return &enhancers{
		guards:       concat(global.guards, ctrl.guards, method.guards),
		pipes:        concat(global.pipes, ctrl.pipes, method.pipes),
		interceptors: concat(global.interceptors, ctrl.interceptors, method.interceptors),
		filters:      concat(ctrl.filters, method.filters, global.filters),
	}
}

func concat[T any](lists ...[]T) []T {
	var out []T
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
