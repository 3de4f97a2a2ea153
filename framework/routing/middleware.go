package routing

import (
	"net/http"
	"strings"

	"github.com/zengzjie/nest-source/framework/container"
	"github.com/zengzjie/nest-source/framework/metadata"
)

// Middleware is a class-based middleware. Middleware bound through a
// consumer may also be a plain func(http.Handler) http.Handler, or a
// *container.Class whose instance implements Middleware.
type Middleware interface {
	Use(next http.Handler) http.Handler
}

// MiddlewareFunc adapts a chi-style middleware to Middleware.
type MiddlewareFunc func(http.Handler) http.Handler

func (f MiddlewareFunc) Use(next http.Handler) http.Handler { return f(next) }

// RouteInfo selects routes by path and method. An empty method matches
// every method; a path ending in "*" matches by prefix.
type RouteInfo struct {
	Path   string
	Method string
}

func (ri RouteInfo) matches(method, path string) bool {
	if ri.Method != "" && ri.Method != method {
		return false
	}
	p := ri.Path
	switch {
	case p == "/*" || p == "*":
		return true
	case strings.HasSuffix(p, "/*"):
		base := strings.TrimSuffix(p, "/*")
		return path == base || strings.HasPrefix(path, base+"/")
	case strings.HasSuffix(p, "*"):
		return strings.HasPrefix(path, strings.TrimSuffix(p, "*"))
	}
	return path == p
}

// ── Consumer ─────────────────────────────────────────────────────────────────

// ConfigureFunc binds middleware for a module's routes.
type ConfigureFunc func(consumer *MiddlewareConsumer)

// Configure attaches fn to module m. It runs once at bootstrap.
//
//	routing.Configure(CatsModule, func(c *routing.MiddlewareConsumer) {
//	    c.Apply(LoggerMiddleware).Exclude("cats/health").ForRoutes(CatsController)
//	})
func Configure(m *container.Module, fn ConfigureFunc) *container.Module {
	metadata.Define(metadata.MiddlewareKey, fn, m)
	return m
}

// ConfigureOf returns the function attached to m by Configure.
func ConfigureOf(m *container.Module) (ConfigureFunc, bool) {
	return metadata.GetAs[ConfigureFunc](metadata.MiddlewareKey, m)
}

// MiddlewareConsumer collects middleware bindings.
type MiddlewareConsumer struct {
	bindings []*MiddlewareBinding
}

// Apply starts a binding for mw, applied in the given order.
func (c *MiddlewareConsumer) Apply(mw ...any) *MiddlewareBinding {
	b := &MiddlewareBinding{consumer: c, Middleware: mw}
	return b
}

// Bindings returns the completed bindings in declaration order.
func (c *MiddlewareConsumer) Bindings() []*MiddlewareBinding { return c.bindings }

// MiddlewareBinding is middleware together with the routes it applies to.
type MiddlewareBinding struct {
	consumer   *MiddlewareConsumer
	Middleware []any
	Routes     []RouteInfo
	Excluded   []RouteInfo
}

// Exclude skips the given routes: path strings, RouteInfo values or controllers.
func (b *MiddlewareBinding) Exclude(routes ...any) *MiddlewareBinding {
	b.Excluded = append(b.Excluded, routeInfos(routes)...)
	return b
}

// ForRoutes completes the binding for the given routes: path strings,
// RouteInfo values or controllers.
func (b *MiddlewareBinding) ForRoutes(routes ...any) *MiddlewareConsumer {
	b.Routes = append(b.Routes, routeInfos(routes)...)
	b.consumer.bindings = append(b.consumer.bindings, b)
	return b.consumer
}

// Matches reports whether the binding applies to a route. path is the route
// pattern without the global prefix.
func (b *MiddlewareBinding) Matches(method, path string) bool {
	for _, ex := range b.Excluded {
		if ex.matches(method, path) {
			return false
		}
	}
	for _, ri := range b.Routes {
		if ri.matches(method, path) {
			return true
		}
	}
	return false
}

func routeInfos(routes []any) []RouteInfo {
	var out []RouteInfo
	for _, r := range routes {
		switch v := r.(type) {
		case string:
			out = append(out, RouteInfo{Path: normalizeInfo(v)})
		case RouteInfo:
			v.Path = normalizeInfo(v.Path)
			out = append(out, v)
		case *ControllerDef:
			base := JoinPath(v.Prefix())
			out = append(out, RouteInfo{Path: base}, RouteInfo{Path: strings.TrimSuffix(base, "/") + "/*"})
		}
	}
	return out
}

func normalizeInfo(p string) string {
	if p == "*" || p == "/*" {
		return "/*"
	}
	star := strings.HasSuffix(p, "*")
	p = JoinPath(strings.TrimSuffix(p, "*"))
	if star {
		if strings.HasSuffix(p, "/") {
			return p + "*"
		}
		return p + "/*"
	}
	return p
}
