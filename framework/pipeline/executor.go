package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"reflect"

	"go.uber.org/zap"

	gohttp "github.com/zengzjie/nest-source/framework/http"
)

// Stage is one step of the request pipeline.
type Stage func() error

// Run executes stages in order and stops at the first error.
func Run(stages ...Stage) error {
	for _, s := range stages {
		if err := s(); err != nil {
			return err
		}
	}
	return nil
}

// ── Executor ──────────────────────────────────────────────────────────────────

// Executor serves routes: guards, parameters and pipes, the interceptor
// chain around the handler, then response framing. An error from any stage
// is handed once to the route's exception filters.
type Executor struct {
	logger   *zap.Logger
	fallback ExceptionFilter
	notFound http.Handler
}

// NewExecutor returns an executor whose last-resort filter is the default filter.
func NewExecutor(logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		logger:   logger,
		fallback: NewDefaultExceptionFilter(logger),
		notFound: http.NotFoundHandler(),
	}
}

// SetNotFound sets the handler NextFunc falls through to.
func (e *Executor) SetNotFound(h http.Handler) {
	if h != nil {
		e.notFound = h
	}
}

// Handler returns the http.Handler serving rt.
func (e *Executor) Handler(rt *Route) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, req := gohttp.Attach(r)
		c := &executionContext{
			route: rt,
			req:   req,
			res:   gohttp.NewResponse(w, r),
		}
		c.next = func(err error) {
			if err != nil {
				e.dispatch(c, err)
				return
			}
			e.notFound.ServeHTTP(c.res.Raw(), c.req.Raw())
		}

		if err := e.serve(c); err != nil {
			e.dispatch(c, err)
		}
	})
}

func (e *Executor) serve(c *executionContext) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("pipeline: panic serving %s %s: %v", c.route.Method, c.route.Path, p)
		}
	}()

	rt := c.route
	var (
		values []any
		result any
	)
	return Run(
		func() error { return RunGuards(c, rt.Guards) },
		func() (err error) {
			values, err = e.resolve(c, false)
			return err
		},
		func() (err error) {
			result, err = Compose(c, rt.Interceptors, func() (any, error) {
				return e.invoke(c, values)
			}).Handle()
			return err
		},
		func() error { return e.respond(c, result) },
	)
}

// ── Parameters ────────────────────────────────────────────────────────────────

// resolve computes the argument values. With late set it only fills the
// upload parameters, which are read once the interceptors have run.
//
// When the handler has custom factory parameters, factory values and raw
// built-in values are merged by index and no pipe runs.
func (e *Executor) resolve(c *executionContext, late bool) ([]any, error) {
	values := make([]any, len(c.route.ParamTypes))
	if err := e.fill(c, values, late); err != nil {
		return nil, err
	}
	return values, nil
}

func (e *Executor) fill(c *executionContext, values []any, late bool) error {
	rt := c.route
	ctx := c.Context()

	if len(rt.Factories) > 0 {
		taken := make(map[int]bool, len(rt.Factories))
		if !late {
			for _, f := range rt.Factories {
				v, err := f.Factory(f.Data, c)
				if err != nil {
					return err
				}
				values[f.Index] = v
				taken[f.Index] = true
			}
		} else {
			for _, f := range rt.Factories {
				taken[f.Index] = true
			}
		}
		for _, p := range rt.Params {
			if p == nil || taken[p.Index] || p.Kind.late() != late {
				continue
			}
			v, err := extract(c, p)
			if err != nil {
				return err
			}
			values[p.Index] = v
		}
		return nil
	}

	for _, p := range rt.Params {
		if p == nil || p.Kind.late() != late {
			continue
		}
		raw, err := extract(c, p)
		if err != nil {
			return err
		}
		if p.Kind.transport() {
			values[p.Index] = raw
			continue
		}
		meta := ArgumentMetadata{Type: p.Kind.ParamType(), Metatype: rt.ParamTypes[p.Index], Data: p.Key}
		v, err := RunPipes(ctx, raw, meta, rt.Pipes, p.Pipes)
		if err != nil {
			return err
		}
		values[p.Index] = v
	}
	return nil
}

var requestContextType = reflect.TypeOf((*context.Context)(nil)).Elem()

// invoke fills the upload parameters, converts every value to its parameter
// type and calls the handler.
func (e *Executor) invoke(c *executionContext, values []any) (any, error) {
	rt := c.route
	if err := e.fill(c, values, true); err != nil {
		return nil, err
	}

	declared := make([]bool, len(values))
	for _, p := range rt.Params {
		if p != nil {
			declared[p.Index] = true
		}
	}
	for _, f := range rt.Factories {
		declared[f.Index] = true
	}

	args := make([]reflect.Value, len(values))
	for i, v := range values {
		t := rt.ParamTypes[i]
		if !declared[i] && t == requestContextType {
			args[i] = reflect.ValueOf(c.Context())
			continue
		}
		arg, err := argument(v, t)
		if err != nil {
			return nil, fmt.Errorf("pipeline: %s argument %d: %w", rt.HandlerName, i, err)
		}
		args[i] = arg
	}
	return rt.call(args)
}

// ── Response ──────────────────────────────────────────────────────────────────

func (e *Executor) respond(c *executionContext, result any) error {
	rt, res := c.route, c.res

	for _, h := range rt.Headers {
		res.SetHeader(h.Name, h.Value)
	}

	switch r := result.(type) {
	case gohttp.Redirect:
		if r.URL != "" {
			res.Redirect(r.StatusCode, r.URL)
			return nil
		}
	case *gohttp.Redirect:
		if r != nil && r.URL != "" {
			res.Redirect(r.StatusCode, r.URL)
			return nil
		}
	}
	if rt.Redirect != nil {
		res.Redirect(rt.Redirect.StatusCode, rt.Redirect.URL)
		return nil
	}

	if rt.Mode == ModeManual || res.Written() {
		return nil
	}
	res.Send(rt.Status(), result)
	return nil
}

// ── Exceptions ────────────────────────────────────────────────────────────────

// dispatch hands err to the first matching filter of the route, falling back
// to the default filter.
func (e *Executor) dispatch(c *executionContext, err error) {
	for _, b := range c.route.Filters {
		if !b.Matches(err) {
			continue
		}
		if ferr := e.catch(b.Filter, err, c); ferr != nil {
			e.fallback.Catch(ferr, c)
		}
		return
	}
	e.fallback.Catch(err, c)
}

func (e *Executor) catch(f ExceptionFilter, err error, c *executionContext) (out error) {
	defer func() {
		if p := recover(); p != nil {
			out = fmt.Errorf("pipeline: panic in exception filter: %v", p)
		}
	}()
	return f.Catch(err, c)
}
