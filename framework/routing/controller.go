package routing

import (
	"fmt"
	"net/http"

	"github.com/zengzjie/nest-source/framework/container"
	gohttp "github.com/zengzjie/nest-source/framework/http"
	"github.com/zengzjie/nest-source/framework/metadata"
	"github.com/zengzjie/nest-source/framework/pipeline"
)

// ── Controller ───────────────────────────────────────────────────────────────

// ControllerDef declares a controller: its injectable class, path prefix,
// routes and controller-level enhancers.
//
//	var CatsController = routing.Controller("cats", NewCatsController).
//	    UseGuards(RolesGuard).
//	    Routes(
//	        routing.Get(":id", (*CatsController).FindOne).
//	            Params(pipeline.Param("id", pipes.ParseInt())),
//	        routing.Post("", (*CatsController).Create).
//	            Params(pipeline.Body("", pipes.NewValidationPipe())),
//	    )
type ControllerDef struct {
	class  *container.Class
	prefix string
	routes []*RouteDef
}

// Controller declares a controller built by ctor, a constructor or a
// *container.Class.
func Controller(prefix string, ctor any) *ControllerDef {
	class, ok := ctor.(*container.Class)
	if !ok {
		class = container.Injectable(ctor)
	}
	c := &ControllerDef{class: class, prefix: prefix}
	metadata.Define(metadata.ControllerKey, true, c)
	metadata.Define(metadata.PathKey, prefix, c)
	return c
}

func (c *ControllerDef) Class() *container.Class { return c.class }
func (c *ControllerDef) Metadata() *metadata.Map { return c.class.Metadata() }
func (c *ControllerDef) Prefix() string          { return c.prefix }
func (c *ControllerDef) String() string          { return c.class.Name() }
func (c *ControllerDef) RouteDefs() []*RouteDef  { return c.routes }
func (c *ControllerDef) Routes(routes ...*RouteDef) *ControllerDef {
	c.routes = append(c.routes, routes...)
	return c
}

// Inject overrides the token of constructor parameter index.
func (c *ControllerDef) Inject(index int, token container.Token) *ControllerDef {
	c.class.Inject(index, token)
	return c
}

// UseGuards appends controller-level guards: pipeline.Guard values or
// classes resolved in the controller's module.
func (c *ControllerDef) UseGuards(guards ...any) *ControllerDef {
	metadata.Append(metadata.GuardsKey, guards, c)
	return c
}

func (c *ControllerDef) UsePipes(pipes ...any) *ControllerDef {
	metadata.Append(metadata.PipesKey, pipes, c)
	return c
}

func (c *ControllerDef) UseInterceptors(interceptors ...any) *ControllerDef {
	metadata.Append(metadata.InterceptorsKey, interceptors, c)
	return c
}

func (c *ControllerDef) UseFilters(filters ...any) *ControllerDef {
	metadata.Append(metadata.FiltersKey, filters, c)
	return c
}

// SetMetadata attaches a custom value readable with a metadata.Reflector.
func (c *ControllerDef) SetMetadata(key string, value any) *ControllerDef {
	metadata.Define(key, value, c)
	return c
}

// ── Routes ───────────────────────────────────────────────────────────────────

// RouteDef declares one handler of a controller. The handler is a method
// expression such as (*CatsController).FindOne, or a plain function.
type RouteDef struct {
	method  string
	path    string
	handler any
	params  []*pipeline.ParamDecl
	meta    metadata.Map
}

func route(method, path string, handler any) *RouteDef {
	r := &RouteDef{method: method, path: path, handler: handler}
	metadata.Define(metadata.MethodKey, method, r)
	metadata.Define(metadata.PathKey, path, r)
	return r
}

func Get(path string, handler any) *RouteDef     { return route(http.MethodGet, path, handler) }
func Post(path string, handler any) *RouteDef    { return route(http.MethodPost, path, handler) }
func Put(path string, handler any) *RouteDef     { return route(http.MethodPut, path, handler) }
func Patch(path string, handler any) *RouteDef   { return route(http.MethodPatch, path, handler) }
func Delete(path string, handler any) *RouteDef  { return route(http.MethodDelete, path, handler) }
func Options(path string, handler any) *RouteDef { return route(http.MethodOptions, path, handler) }
func Head(path string, handler any) *RouteDef    { return route(http.MethodHead, path, handler) }

// All matches every method.
func All(path string, handler any) *RouteDef { return route("", path, handler) }

func (r *RouteDef) Metadata() *metadata.Map           { return &r.meta }
func (r *RouteDef) Method() string                    { return r.method }
func (r *RouteDef) Path() string                      { return r.path }
func (r *RouteDef) Handler() any                      { return r.handler }
func (r *RouteDef) ParamDecls() []*pipeline.ParamDecl { return r.params }
func (r *RouteDef) String() string                    { return fmt.Sprintf("%s %s", r.method, r.path) }

// Params declares the source of each handler parameter, in order. A nil entry
// leaves that parameter undecorated.
func (r *RouteDef) Params(decls ...*pipeline.ParamDecl) *RouteDef {
	r.params = append(r.params, decls...)
	metadata.Define(metadata.RouteParamsKey, r.params, r)

	custom := make(map[int]*pipeline.ParamFactoryDecl)
	for i, d := range r.params {
		if d != nil && d.Kind == pipeline.KindCustom {
			custom[i] = d.Factory
		}
	}
	if len(custom) > 0 {
		metadata.Define(metadata.RouteArgsKey, custom, r)
	}
	return r
}

// HttpCode sets the success status.
func (r *RouteDef) HttpCode(status int) *RouteDef {
	metadata.Define(metadata.HTTPCodeKey, status, r)
	return r
}

// Redirect answers with a redirect; a zero status means 302. A handler can
// still override it by returning a gohttp.Redirect.
func (r *RouteDef) Redirect(url string, status int) *RouteDef {
	metadata.Define(metadata.RedirectKey, &gohttp.Redirect{URL: url, StatusCode: status}, r)
	return r
}

// Header sets a response header.
func (r *RouteDef) Header(name, value string) *RouteDef {
	metadata.Append(metadata.HeadersKey, []any{pipeline.Header{Name: name, Value: value}}, r)
	return r
}

func (r *RouteDef) UseGuards(guards ...any) *RouteDef {
	metadata.Append(metadata.GuardsKey, guards, r)
	return r
}

func (r *RouteDef) UsePipes(pipes ...any) *RouteDef {
	metadata.Append(metadata.PipesKey, pipes, r)
	return r
}

func (r *RouteDef) UseInterceptors(interceptors ...any) *RouteDef {
	metadata.Append(metadata.InterceptorsKey, interceptors, r)
	return r
}

func (r *RouteDef) UseFilters(filters ...any) *RouteDef {
	metadata.Append(metadata.FiltersKey, filters, r)
	return r
}

func (r *RouteDef) SetMetadata(key string, value any) *RouteDef {
	metadata.Define(key, value, r)
	return r
}

// HTTPCode returns the declared success status, zero when unset.
func (r *RouteDef) HTTPCode() int {
	code, _ := metadata.GetAs[int](metadata.HTTPCodeKey, r)
	return code
}

// RedirectTo returns the declared redirect, if any.
func (r *RouteDef) RedirectTo() *gohttp.Redirect {
	rd, _ := metadata.GetAs[*gohttp.Redirect](metadata.RedirectKey, r)
	return rd
}

// Headers returns the declared response headers.
func (r *RouteDef) Headers() []pipeline.Header {
	return metadata.List[pipeline.Header](metadata.HeadersKey, r)
}
