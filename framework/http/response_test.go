package http_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	gohttp "github.com/zengzjie/nest-source/framework/http"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func newResponse(t *testing.T) (*gohttp.Response, *httptest.ResponseRecorder) {
	t.Helper()
	rr := httptest.NewRecorder()
	return gohttp.NewResponse(rr, httptest.NewRequest(http.MethodGet, "/", nil)), rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&m); err != nil {
		t.Fatalf("decodeJSON: %v", err)
	}
	return m
}

// ── Send ─────────────────────────────────────────────────────────────────────

func TestResponse_JSON(t *testing.T) {
	res, rr := newResponse(t)
	res.JSON(http.StatusOK, map[string]any{"key": "val"})

	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q want application/json", ct)
	}
	if m := decodeJSON(t, rr); m["key"] != "val" {
		t.Errorf("body key: got %v want val", m["key"])
	}
	if !res.Written() {
		t.Error("Written: got false after JSON")
	}
}

func TestResponse_Send_String(t *testing.T) {
	res, rr := newResponse(t)
	res.Send(http.StatusCreated, "hello")

	if rr.Code != http.StatusCreated || rr.Body.String() != "hello" {
		t.Errorf("got %d %q", rr.Code, rr.Body.String())
	}
}

func TestResponse_Send_Nil(t *testing.T) {
	res, rr := newResponse(t)
	res.Send(http.StatusOK, nil)

	if rr.Code != http.StatusOK || rr.Body.Len() != 0 {
		t.Errorf("got %d %q", rr.Code, rr.Body.String())
	}
}

func TestResponse_Written_FalseInitially(t *testing.T) {
	res, _ := newResponse(t)
	if res.Written() {
		t.Error("Written: got true before any write")
	}
}

func TestResponse_RawWritesAreTracked(t *testing.T) {
	res, _ := newResponse(t)
	_, _ = res.Raw().Write([]byte("manual"))
	if !res.Written() {
		t.Error("Written: got false after raw write")
	}
}

// ── Redirects ────────────────────────────────────────────────────────────────

func TestResponse_Redirect_DefaultsTo302(t *testing.T) {
	res, rr := newResponse(t)
	res.Redirect(0, "/login")

	if rr.Code != http.StatusFound {
		t.Errorf("status: got %d want 302", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location: got %q want /login", loc)
	}
}

// ── HTTPException ────────────────────────────────────────────────────────────

func TestHTTPException_StringResponse(t *testing.T) {
	err := gohttp.Forbidden("Forbidden resource")

	if err.Status() != http.StatusForbidden {
		t.Errorf("status: got %d want 403", err.Status())
	}
	body := err.Body().(map[string]any)
	if body["message"] != "Forbidden resource" || body["statusCode"] != http.StatusForbidden {
		t.Errorf("body: got %v", body)
	}
}

func TestHTTPException_DefaultMessage(t *testing.T) {
	if got := gohttp.NotFound().Message(); got != "Not Found" {
		t.Errorf("message: got %q want Not Found", got)
	}
}

func TestHTTPException_ObjectResponseEchoed(t *testing.T) {
	payload := map[string]any{"message": "custom", "code": "E42"}
	err := gohttp.NewHTTPException(payload, http.StatusConflict)

	if err.Message() != "custom" {
		t.Errorf("message: got %q want custom", err.Message())
	}
	if body := err.Body().(map[string]any); body["code"] != "E42" {
		t.Errorf("body: got %v", body)
	}
}

func TestAsHTTPException_Wrapped(t *testing.T) {
	cause := errors.New("db down")
	wrapped := errors.Join(errors.New("outer"), gohttp.BadGateway().WithCause(cause))

	he, ok := gohttp.AsHTTPException(wrapped)
	if !ok || he.Status() != http.StatusBadGateway {
		t.Fatalf("AsHTTPException: got %v %v", he, ok)
	}
	if !errors.Is(he, cause) {
		t.Error("Unwrap: cause not found")
	}
}
