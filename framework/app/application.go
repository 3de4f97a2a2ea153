// Package app assembles an application from a root module: it bootstraps the
// container, resolves controllers and enhancers, builds one pipeline route per
// handler and serves them over chi.
//
//	application, err := app.New(AppModule)
//	application.UseGlobalPipes(pipes.NewValidationPipe())
//	err = application.Listen(ctx, ":3000")
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zengzjie/nest-source/framework/config"
	"github.com/zengzjie/nest-source/framework/container"
	gohttp "github.com/zengzjie/nest-source/framework/http"
	"github.com/zengzjie/nest-source/framework/logger"
	"github.com/zengzjie/nest-source/framework/metrics"
	"github.com/zengzjie/nest-source/framework/pipeline"
	"github.com/zengzjie/nest-source/framework/providers"
	"github.com/zengzjie/nest-source/framework/routing"
)

// ErrNotInitialized is returned by calls that need Init first.
var ErrNotInitialized = errors.New("app: not initialized")

// Application is the top-level object: the container, the router and the
// global enhancers. Global configuration must happen before Init.
type Application struct {
	root   *container.Module
	config *config.Config
	logger *zap.Logger

	container *container.Container
	executor  *pipeline.Executor
	router    *routing.Router
	metrics   *metrics.Metrics

	guards       []any
	pipes        []any
	interceptors []any
	filters      []any
	middleware   []func(http.Handler) http.Handler
	prefix       string
	static       []staticDir

	mu          sync.Mutex
	initialized bool
	routes      []*pipeline.Route
	server      *http.Server
}

type staticDir struct{ prefix, dir string }

// Option configures New.
type Option func(*Application)

// WithConfig uses cfg instead of loading the environment.
func WithConfig(cfg *config.Config) Option { return func(a *Application) { a.config = cfg } }

// WithLogger uses l instead of building one from the configuration.
func WithLogger(l *zap.Logger) Option { return func(a *Application) { a.logger = l } }

// New prepares an application for root. Configuration is loaded from the
// environment unless WithConfig is given.
func New(root *container.Module, opts ...Option) (*Application, error) {
	a := &Application{root: root}
	for _, opt := range opts {
		opt(a)
	}
	if a.config == nil {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		a.config = cfg
	}
	if a.logger == nil {
		l, err := logger.New(a.config.App.Env, a.config.Log)
		if err != nil {
			return nil, err
		}
		a.logger = l
	}
	a.prefix = a.config.HTTP.GlobalPrefix
	a.container = container.New(a.logger)
	a.executor = pipeline.NewExecutor(a.logger)
	return a, nil
}

// ── Global configuration ─────────────────────────────────────────────────────

// UseGlobalGuards adds guards run before every handler. Entries are
// pipeline.Guard values or classes resolved in the root module.
func (a *Application) UseGlobalGuards(guards ...any) *Application {
	a.guards = append(a.guards, guards...)
	return a
}

func (a *Application) UseGlobalPipes(pipes ...any) *Application {
	a.pipes = append(a.pipes, pipes...)
	return a
}

func (a *Application) UseGlobalInterceptors(interceptors ...any) *Application {
	a.interceptors = append(a.interceptors, interceptors...)
	return a
}

func (a *Application) UseGlobalFilters(filters ...any) *Application {
	a.filters = append(a.filters, filters...)
	return a
}

// Use adds router-level middleware, run for every request before routing.
func (a *Application) Use(mw ...func(http.Handler) http.Handler) *Application {
	a.middleware = append(a.middleware, mw...)
	return a
}

// SetGlobalPrefix prefixes every route path.
func (a *Application) SetGlobalPrefix(prefix string) *Application {
	a.prefix = prefix
	return a
}

// UseStaticAssets serves dir under prefix.
func (a *Application) UseStaticAssets(prefix, dir string) *Application {
	a.static = append(a.static, staticDir{prefix: routing.JoinPath(prefix), dir: dir})
	return a
}

// ── Lifecycle ────────────────────────────────────────────────────────────────

// Init bootstraps the module tree and mounts every route. It runs once;
// the container is sealed afterwards.
func (a *Application) Init(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.initialized {
		return nil
	}

	opts := routing.RouterOptions{Logger: a.logger}
	if a.config.HTTP.CORSEnabled {
		opts.CORS = routing.DefaultCORS(a.config.HTTP.CORSOrigins)
	}
	a.router = routing.New(opts)
	a.router.Middleware(a.middleware...)

	defaults := providers.Framework(a.config, a.logger, a.router)
	if a.config.Metrics.Enabled {
		a.metrics = metrics.New(namespace(a.config.App.Name))
		defaults = append(defaults, container.ValueProvider{
			Provide:  container.TypeToken[*metrics.Metrics](),
			UseValue: a.metrics,
		})
	}
	if err := a.container.Provide(defaults...); err != nil {
		return err
	}
	if err := a.container.Bootstrap(ctx, a.root); err != nil {
		return err
	}

	g, err := a.globals(ctx)
	if err != nil {
		return err
	}
	mws, err := a.consumers(ctx)
	if err != nil {
		return err
	}
	for _, ref := range a.container.Controllers() {
		if err := a.mountController(ctx, ref, g, mws); err != nil {
			return err
		}
	}

	if a.metrics != nil {
		a.router.Method(http.MethodGet, routing.JoinPath(a.config.Metrics.Path), a.metrics.Handler())
	}
	for _, s := range a.static {
		a.router.Static(s.prefix, s.dir)
	}
	a.router.NotFound(notFound)
	a.executor.SetNotFound(http.HandlerFunc(notFound))

	a.container.Seal()
	a.initialized = true
	a.logger.Info("application initialized", zap.Int("routes", len(a.routes)))
	return nil
}

func notFound(w http.ResponseWriter, r *http.Request) {
	he := gohttp.NotFound(fmt.Sprintf("Cannot %s %s", r.Method, r.URL.Path))
	gohttp.NewResponse(w, r).JSON(he.Status(), he.Body())
}

// namespace turns the application name into a Prometheus namespace.
func namespace(name string) string {
	ns := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return '_'
	}, name)
	if ns == "" || (ns[0] >= '0' && ns[0] <= '9') {
		ns = "app_" + ns
	}
	return ns
}

// Handler returns the application's http.Handler. Init must have run.
func (a *Application) Handler() http.Handler {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.router == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, ErrNotInitialized.Error(), http.StatusServiceUnavailable)
		})
	}
	return a.router
}

// Listen initializes the application if needed and serves on addr until ctx
// is cancelled, then shuts down gracefully.
func (a *Application) Listen(ctx context.Context, addr string) error {
	if err := a.Init(ctx); err != nil {
		return err
	}
	if addr == "" {
		addr = a.config.Addr()
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	a.mu.Lock()
	a.server = srv
	a.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting server",
			zap.String("address", addr),
			zap.String("app", a.config.App.Name),
			zap.String("environment", a.config.App.Env),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("app: listen on %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return a.Close(shutdownCtx)
}

// Close shuts the server down, if one is running, and flushes the logger.
func (a *Application) Close(ctx context.Context) error {
	a.mu.Lock()
	srv := a.server
	a.server = nil
	a.mu.Unlock()

	if srv != nil {
		a.logger.Info("shutting down server")
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("app: shutdown: %w", err)
		}
	}
	_ = a.logger.Sync()
	return nil
}

// ── Accessors ────────────────────────────────────────────────────────────────

// Get returns the instance registered under token.
func (a *Application) Get(token container.Token) (any, error) {
	return container.Resolve[any](a.container, token)
}

func (a *Application) Container() *container.Container { return a.container }
func (a *Application) Config() *config.Config          { return a.config }
func (a *Application) Logger() *zap.Logger             { return a.logger }

// Routes returns the mounted routes in mount order.
func (a *Application) Routes() []*pipeline.Route {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*pipeline.Route(nil), a.routes...)
}
