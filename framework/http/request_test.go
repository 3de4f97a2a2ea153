package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	gohttp "github.com/zengzjie/nest-source/framework/http"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func newJSONRequest(t *testing.T, body string) *gohttp.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return gohttp.NewRequest(req)
}

func newFormRequest(t *testing.T, values url.Values) *gohttp.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return gohttp.NewRequest(req)
}

// ── Body ─────────────────────────────────────────────────────────────────────

func TestRequest_BindJSON(t *testing.T) {
	type user struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}

	req := newJSONRequest(t, `{"name":"Alice","email":"alice@example.com"}`)

	var u user
	if err := req.Bind(&u); err != nil {
		t.Fatalf("Bind error: %v", err)
	}
	if u.Name != "Alice" {
		t.Errorf("Name: got %q want %q", u.Name, "Alice")
	}
	if u.Email != "alice@example.com" {
		t.Errorf("Email: got %q want %q", u.Email, "alice@example.com")
	}
}

func TestRequest_BindJSON_EmptyBody(t *testing.T) {
	req := newJSONRequest(t, "")
	var v any
	if err := req.Bind(&v); err == nil {
		t.Error("expected error for empty body, got nil")
	}
}

func TestRequest_Body_InvalidJSON(t *testing.T) {
	req := newJSONRequest(t, `{bad json}`)
	if _, err := req.Body(); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestRequest_Body_ParsedOnce(t *testing.T) {
	req := newJSONRequest(t, `{"name":"Tom"}`)

	v, err := req.BodyValue("name")
	if err != nil || v != "Tom" {
		t.Fatalf("BodyValue: got %v, %v", v, err)
	}
	var out struct {
		Name string `json:"name"`
	}
	if err := req.Bind(&out); err != nil || out.Name != "Tom" {
		t.Errorf("Bind after BodyValue: got %q, %v", out.Name, err)
	}
}

func TestRequest_Body_Form(t *testing.T) {
	req := newFormRequest(t, url.Values{"name": {"Bob"}, "tags": {"a", "b"}})

	body, err := req.Body()
	if err != nil {
		t.Fatalf("Body: %v", err)
	}
	m := body.(map[string]any)
	if m["name"] != "Bob" {
		t.Errorf("name: got %v want Bob", m["name"])
	}
	if tags, ok := m["tags"].([]string); !ok || len(tags) != 2 {
		t.Errorf("tags: got %v", m["tags"])
	}
}

// ── Input helpers ────────────────────────────────────────────────────────────

func TestRequest_Query(t *testing.T) {
	req := gohttp.NewRequest(httptest.NewRequest(http.MethodGet, "/?page=2&tag=a&tag=b", nil))

	if got := req.Query("page"); got != "2" {
		t.Errorf("page: got %v want 2", got)
	}
	if got := req.Query("missing"); got != nil {
		t.Errorf("missing: got %v want nil", got)
	}
	if got, ok := req.Query("tag").([]string); !ok || len(got) != 2 {
		t.Errorf("tag: got %v", req.Query("tag"))
	}
}

func TestRequest_RouteParams(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/cats/7", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "7")
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))

	req := gohttp.NewRequest(r)
	if got := req.RouteParam("id"); got != "7" {
		t.Errorf("RouteParam: got %q want 7", got)
	}
	if got := req.RouteParams(); got["id"] != "7" {
		t.Errorf("RouteParams: got %v", got)
	}
}

func TestRequest_IP_StripsPort(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"

	if got := gohttp.NewRequest(r).IP(); got != "10.0.0.1" {
		t.Errorf("IP: got %q want 10.0.0.1", got)
	}
}

func TestRequest_BearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer abc")

	if got := gohttp.NewRequest(r).BearerToken(); got != "abc" {
		t.Errorf("BearerToken: got %q want abc", got)
	}
}

// ── Attach ───────────────────────────────────────────────────────────────────

func TestAttach_SharesRequest(t *testing.T) {
	r, req := gohttp.Attach(httptest.NewRequest(http.MethodGet, "/", nil))
	req.Set("user", "alice")
	req.Session()["visits"] = 1

	again := gohttp.Of(r)
	if again != req {
		t.Fatal("Of: expected the attached request")
	}
	if v, _ := again.Get("user"); v != "alice" {
		t.Errorf("user: got %v want alice", v)
	}
	if again.Session()["visits"] != 1 {
		t.Errorf("session: got %v", again.Session())
	}
}
