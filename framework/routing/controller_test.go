package routing_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/zengzjie/nest-source/framework/container"
	"github.com/zengzjie/nest-source/framework/metadata"
	"github.com/zengzjie/nest-source/framework/pipeline"
	"github.com/zengzjie/nest-source/framework/routing"
)

type catsController struct{}

func newCatsController() *catsController { return &catsController{} }

func (c *catsController) FindAll() []string { return nil }

func TestController_Metadata(t *testing.T) {
	guard := pipeline.GuardFunc(func(pipeline.ExecutionContext) (bool, error) { return true, nil })

	findAll := routing.Get(":id", (*catsController).FindAll).
		HttpCode(http.StatusAccepted).
		Header("Cache-Control", "none").
		Redirect("/docs", 0).
		UseGuards(guard).
		SetMetadata("roles", []string{"admin"})
	ctrl := routing.Controller("cats", newCatsController).UseGuards(guard).Routes(findAll)

	if _, ok := metadata.Get(metadata.ControllerKey, ctrl); !ok {
		t.Error("controller key not defined")
	}
	if _, ok := metadata.Get(metadata.ControllerKey, ctrl.Class()); !ok {
		t.Error("controller metadata not shared with the class")
	}
	if ctrl.Prefix() != "cats" || len(ctrl.RouteDefs()) != 1 {
		t.Errorf("unexpected controller %q with %d routes", ctrl.Prefix(), len(ctrl.RouteDefs()))
	}
	if got := len(metadata.Values(metadata.GuardsKey, ctrl)); got != 1 {
		t.Errorf("controller guards: got %d want 1", got)
	}

	if findAll.HTTPCode() != http.StatusAccepted {
		t.Errorf("HTTPCode: got %d", findAll.HTTPCode())
	}
	if rd := findAll.RedirectTo(); rd == nil || rd.URL != "/docs" {
		t.Errorf("RedirectTo: got %+v", rd)
	}
	if h := findAll.Headers(); len(h) != 1 || h[0].Value != "none" {
		t.Errorf("Headers: got %+v", h)
	}
	roles := metadata.NewReflector().Get("roles", findAll)
	if r, ok := roles.([]string); !ok || r[0] != "admin" {
		t.Errorf("roles: got %v", roles)
	}
}

func TestRouteDef_ParamsMetadata(t *testing.T) {
	user := pipeline.CreateParamDecorator(func(any, pipeline.ExecutionContext) (any, error) { return "u", nil })
	rd := routing.Get(":id", (*catsController).FindAll).Params(pipeline.Param("id"), nil, user("name"))

	decls, ok := metadata.GetAs[[]*pipeline.ParamDecl](metadata.RouteParamsKey, rd)
	if !ok || len(decls) != 3 {
		t.Fatalf("route params: got %d declarations", len(decls))
	}
	custom, ok := metadata.GetAs[map[int]*pipeline.ParamFactoryDecl](metadata.RouteArgsKey, rd)
	if !ok || len(custom) != 1 || custom[2] == nil {
		t.Fatalf("route args: got %v", custom)
	}
	if custom[2].Data != "name" {
		t.Errorf("factory data: got %v want %q", custom[2].Data, "name")
	}
}

func TestController_AcceptsClass(t *testing.T) {
	class := container.Injectable(newCatsController).Named("Cats")
	ctrl := routing.Controller("", class)
	if ctrl.Class() != class {
		t.Error("expected the given class to be used")
	}
	if ctrl.String() != "Cats" {
		t.Errorf("String: got %q", ctrl.String())
	}
}

func TestController_IsRejectedAsImport(t *testing.T) {
	ctrl := routing.Controller("cats", newCatsController)
	root := container.NewModule("AppModule").Imports(ctrl)

	err := container.New(nil).Bootstrap(context.Background(), root)
	if err == nil {
		t.Fatal("expected an invalid import error")
	}
}

// ── Middleware consumer ──────────────────────────────────────────────────────

func TestMiddlewareConsumer_Matching(t *testing.T) {
	ctrl := routing.Controller("cats", newCatsController)
	noop := routing.MiddlewareFunc(func(h http.Handler) http.Handler { return h })

	c := &routing.MiddlewareConsumer{}
	c.Apply(noop).Exclude(routing.RouteInfo{Path: "cats/health", Method: http.MethodGet}).ForRoutes(ctrl)
	c.Apply(noop).ForRoutes("dogs*", routing.RouteInfo{Path: "birds", Method: http.MethodPost})

	bs := c.Bindings()
	if len(bs) != 2 {
		t.Fatalf("Bindings: got %d want 2", len(bs))
	}

	tests := []struct {
		binding int
		method  string
		path    string
		want    bool
	}{
		{0, http.MethodGet, "/cats", true},
		{0, http.MethodGet, "/cats/{id}", true},
		{0, http.MethodGet, "/cats/health", false},
		{0, http.MethodPost, "/cats/health", true},
		{0, http.MethodGet, "/catsup", false},
		{1, http.MethodGet, "/dogs/{id}", true},
		{1, http.MethodPost, "/birds", true},
		{1, http.MethodGet, "/birds", false},
	}
	for _, tt := range tests {
		if got := bs[tt.binding].Matches(tt.method, tt.path); got != tt.want {
			t.Errorf("binding %d %s %s: got %v want %v", tt.binding, tt.method, tt.path, got, tt.want)
		}
	}
}

func TestConfigure_StoresFunc(t *testing.T) {
	m := container.NewModule("CatsModule")
	called := false
	routing.Configure(m, func(*routing.MiddlewareConsumer) { called = true })

	fn, ok := routing.ConfigureOf(m)
	if !ok {
		t.Fatal("configure func not stored")
	}
	fn(&routing.MiddlewareConsumer{})
	if !called {
		t.Error("configure func not called")
	}
}

func TestRouteDef_Verbs(t *testing.T) {
	handler := (*catsController).FindAll
	cases := map[string]*routing.RouteDef{
		http.MethodGet:     routing.Get("", handler),
		http.MethodPost:    routing.Post("", handler),
		http.MethodPut:     routing.Put("", handler),
		http.MethodPatch:   routing.Patch("", handler),
		http.MethodDelete:  routing.Delete("", handler),
		http.MethodOptions: routing.Options("", handler),
		http.MethodHead:    routing.Head("", handler),
		"":                 routing.All("", handler),
	}
	for want, rd := range cases {
		if rd.Method() != want {
			t.Errorf("got %q want %q", rd.Method(), want)
		}
	}
}
