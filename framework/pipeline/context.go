package pipeline

import (
	"context"
	"net/http"

	gohttp "github.com/zengzjie/nest-source/framework/http"
	"github.com/zengzjie/nest-source/framework/metadata"
)

// ContextType names the transport a context was created for. Only HTTP is
// implemented; the other values exist so enhancers can branch on them.
type ContextType string

const (
	HTTPContext ContextType = "http"
	WSContext   ContextType = "ws"
	RPCContext  ContextType = "rpc"
)

// NextFunc hands the request on: a nil error falls through to the router's
// not-found handler, a non-nil error goes to the exception filters.
type NextFunc func(err error)

// HTTPArgumentsHost exposes the transport objects of an HTTP request.
type HTTPArgumentsHost interface {
	Request() *gohttp.Request
	Response() *gohttp.Response
	Next() NextFunc
}

// ArgumentsHost is what exception filters receive.
type ArgumentsHost interface {
	Type() ContextType
	SwitchToHTTP() HTTPArgumentsHost
	Context() context.Context
}

// RouteInfo identifies the matched route.
type RouteInfo struct {
	Method string
	Path   string
}

// ExecutionContext is what guards, interceptors and custom parameter
// factories receive: the arguments host plus the controller and handler
// definitions, whose metadata can be read with a metadata.Reflector.
type ExecutionContext interface {
	ArgumentsHost
	Class() metadata.Target
	Handler() metadata.Target
	Route() RouteInfo
}

// ── implementation ────────────────────────────────────────────────────────────

type executionContext struct {
	route *Route
	req   *gohttp.Request
	res   *gohttp.Response
	next  NextFunc
}

func (c *executionContext) Type() ContextType               { return HTTPContext }
func (c *executionContext) SwitchToHTTP() HTTPArgumentsHost { return c }
func (c *executionContext) Context() context.Context        { return c.req.Context() }
func (c *executionContext) Request() *gohttp.Request        { return c.req }
func (c *executionContext) Response() *gohttp.Response      { return c.res }
func (c *executionContext) Next() NextFunc                  { return c.next }
func (c *executionContext) Class() metadata.Target          { return c.route.Controller }
func (c *executionContext) Handler() metadata.Target        { return c.route.Definition }
func (c *executionContext) Route() RouteInfo {
	return RouteInfo{Method: c.route.Method, Path: c.route.Path}
}

// NewExecutionContext builds a context for route from a raw request. It is
// used by tests and by callers that drive enhancers outside the executor.
func NewExecutionContext(route *Route, w http.ResponseWriter, r *http.Request) ExecutionContext {
	r, req := gohttp.Attach(r)
	return &executionContext{
		route: route,
		req:   req,
		res:   gohttp.NewResponse(w, r),
		next:  func(error) {},
	}
}
