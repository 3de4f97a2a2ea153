package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zengzjie/nest-source/framework/container"
	gohttp "github.com/zengzjie/nest-source/framework/http"
	"github.com/zengzjie/nest-source/framework/http/validation"
	"github.com/zengzjie/nest-source/framework/metadata"
	"github.com/zengzjie/nest-source/framework/pipeline"
	"github.com/zengzjie/nest-source/framework/pipes"
	"github.com/zengzjie/nest-source/framework/routing"
	"github.com/zengzjie/nest-source/framework/upload"
)

// ── Config module ────────────────────────────────────────────────────────────

// ConfigModule publishes "CONFIG" once ForRoot has finished loading.
var ConfigModule = container.NewModule("ConfigModule")

// ForRoot simulates an asynchronous configuration source.
func ForRoot(values map[string]string, delay time.Duration) container.PendingModule {
	return func(ctx context.Context) (*container.DynamicModule, error) {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return &container.DynamicModule{
			Module:    ConfigModule,
			Providers: []container.Provider{container.ValueProvider{Provide: "CONFIG", UseValue: values}},
			Exports:   []any{"CONFIG"},
			Global:    true,
		}, nil
	}
}

// ── Cats service ─────────────────────────────────────────────────────────────

type Cat struct {
	ID    int    `json:"id"`
	Name  string `json:"name" validate:"required,min=2,max=50"`
	Age   int    `json:"age" validate:"gte=0,lte=30"`
	Breed string `json:"breed" validate:"omitempty,oneof=persian siamese tabby"`
}

type CatsService struct {
	mu     sync.RWMutex
	cats   []Cat
	nextID int
	owner  string
}

func NewCatsService(cfg map[string]string) *CatsService {
	return &CatsService{nextID: 1, owner: cfg["owner"]}
}

var CatsServiceClass = container.Injectable(NewCatsService).Inject(0, "CONFIG").Named("CatsService")

var ErrCatNotFound = errors.New("cat not found")

func (s *CatsService) Create(c Cat) Cat {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.nextID
	s.nextID++
	s.cats = append(s.cats, c)
	return c
}

func (s *CatsService) FindAll() []Cat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Cat{}, s.cats...)
}

func (s *CatsService) FindOne(id int) (Cat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.cats {
		if c.ID == id {
			return c, nil
		}
	}
	return Cat{}, ErrCatNotFound
}

// ── Cats controller ──────────────────────────────────────────────────────────

type CatsController struct {
	cats *CatsService
}

func NewCatsController(cats *CatsService) *CatsController { return &CatsController{cats: cats} }

func (c *CatsController) FindAll() []Cat { return c.cats.FindAll() }

func (c *CatsController) FindOne(id int) (Cat, error) {
	cat, err := c.cats.FindOne(id)
	if errors.Is(err, ErrCatNotFound) {
		return Cat{}, gohttp.NotFound("Cat not found")
	}
	return cat, err
}

func (c *CatsController) Create(cat Cat) Cat { return c.cats.Create(cat) }

func (c *CatsController) Photo(id int, file *gohttp.UploadedFile) map[string]any {
	return map[string]any{"id": id, "file": file.OriginalName, "size": file.Size}
}

func (c *CatsController) Owner(user string) map[string]string {
	return map[string]string{"owner": c.cats.owner, "user": user}
}

// Roles marks the roles a route requires.
var Roles = metadata.CreateDecorator[[]string]("roles")

// User reads the caller set by AuthMiddleware.
var User = pipeline.CreateParamDecorator(func(_ any, ctx pipeline.ExecutionContext) (any, error) {
	u, _ := ctx.SwitchToHTTP().Request().Get("user")
	return u, nil
})

var CatsControllerDef = routing.Controller("cats", NewCatsController).
	UseFilters(NotFoundFilter).
	Routes(
		routing.Get("", (*CatsController).FindAll),
		routing.Get("owner", (*CatsController).Owner).Params(User(nil)),
		routing.Get(":id", (*CatsController).FindOne).
			Params(pipeline.Param("id", pipes.ParseInt())),
		withRoles(routing.Post("", (*CatsController).Create).
			Params(pipeline.Body("")), "admin"),
		routing.Post(":id/photo", (*CatsController).Photo).
			UseInterceptors(upload.FileInterceptor("photo")).
			Params(
				pipeline.Param("id", pipes.ParseInt()),
				pipeline.UploadedFile(pipes.ParseFile(
					validation.MaxFileSize{MaxSize: 2 << 20},
					validation.FileType{Pattern: "^image/"},
				)),
			),
	)

func withRoles(r *routing.RouteDef, roles ...string) *routing.RouteDef {
	Roles.Apply(roles, r)
	return r
}

var CatsModule = routing.Configure(
	container.NewModule("CatsModule").
		Imports(upload.Module).
		Providers(CatsServiceClass).
		Controllers(CatsControllerDef),
	func(c *routing.MiddlewareConsumer) {
		c.Apply(AuthMiddleware).
			Exclude(routing.RouteInfo{Path: "cats", Method: http.MethodGet}).
			ForRoutes(CatsControllerDef)
	},
)

// ── Enhancers ────────────────────────────────────────────────────────────────

// RolesGuard compares the route's roles with the X-Role header.
type RolesGuard struct {
	reflector *metadata.Reflector
}

func NewRolesGuard(r *metadata.Reflector) *RolesGuard { return &RolesGuard{reflector: r} }

func (g *RolesGuard) CanActivate(ctx pipeline.ExecutionContext) (bool, error) {
	roles, ok := Roles.GetAllAndOverride(ctx.Handler(), ctx.Class())
	if !ok || len(roles) == 0 {
		return true, nil
	}
	role := ctx.SwitchToHTTP().Request().Header("X-Role")
	for _, r := range roles {
		if r == role {
			return true, nil
		}
	}
	return false, nil
}

// LoggingInterceptor logs how long each handler took.
type LoggingInterceptor struct {
	logger *zap.Logger
}

func NewLoggingInterceptor(l *zap.Logger) *LoggingInterceptor { return &LoggingInterceptor{logger: l} }

func (i *LoggingInterceptor) Intercept(ctx pipeline.ExecutionContext, next pipeline.CallHandler) (any, error) {
	start := time.Now()
	v, err := next.Handle()
	route := ctx.Route()
	i.logger.Debug("handled",
		zap.String("method", route.Method),
		zap.String("route", route.Path),
		zap.Duration("took", time.Since(start)),
		zap.Error(err),
	)
	return v, err
}

// NotFoundFilter answers 404s with the request path attached.
var NotFoundFilter = pipeline.Catch(pipeline.FilterFunc(func(err error, host pipeline.ArgumentsHost) error {
	he, _ := gohttp.AsHTTPException(err)
	if he == nil || he.Status() != http.StatusNotFound {
		return err
	}
	h := host.SwitchToHTTP()
	h.Response().JSON(http.StatusNotFound, map[string]any{
		"statusCode": http.StatusNotFound,
		"message":    he.Message(),
		"path":       h.Request().Path(),
	})
	return nil
}), (*gohttp.HTTPException)(nil))

// AuthMiddleware requires a bearer token and records it as the caller.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, req := gohttp.Attach(r)
		token := req.BearerToken()
		if token == "" {
			gohttp.NewResponse(w, r).Error(http.StatusUnauthorized, "Unauthorized")
			return
		}
		req.Set("user", token)
		next.ServeHTTP(w, r)
	})
}
