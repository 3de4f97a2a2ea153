package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// ── Response ─────────────────────────────────────────────────────────────────

// Response wraps http.ResponseWriter and remembers whether anything was sent,
// so the pipeline never writes a second response.
type Response struct {
	w middleware.WrapResponseWriter
	r *http.Request
}

// NewResponse wraps a ResponseWriter for the request r.
func NewResponse(w http.ResponseWriter, r *http.Request) *Response {
	if ww, ok := w.(middleware.WrapResponseWriter); ok {
		return &Response{w: ww, r: r}
	}
	return &Response{w: middleware.NewWrapResponseWriter(w, r.ProtoMajor), r: r}
}

// Raw returns the tracking ResponseWriter. Handlers that write through it
// are detected by Written.
func (res *Response) Raw() http.ResponseWriter { return res.w }

// Written reports whether a status line or body bytes were sent.
func (res *Response) Written() bool {
	return res.w.Status() != 0 || res.w.BytesWritten() > 0
}

// StatusCode returns the status sent, or 0.
func (res *Response) StatusCode() int { return res.w.Status() }

// SetHeader sets a response header.
func (res *Response) SetHeader(name, value string) {
	res.w.Header().Set(name, value)
}

// ── Bodies ────────────────────────────────────────────────────────────────────

// JSON sends a JSON response.
//
//	res.JSON(http.StatusOK, map[string]any{"message": "ok"})
func (res *Response) JSON(status int, data any) {
	res.w.Header().Set("Content-Type", "application/json")
	res.w.WriteHeader(status)
	_ = json.NewEncoder(res.w).Encode(data)
}

// Text sends a plain-text response.
func (res *Response) Text(status int, s string) {
	res.w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	res.w.WriteHeader(status)
	_, _ = res.w.Write([]byte(s))
}

// Send writes v the way a handler result is framed: strings as text, byte
// slices as octet-stream, nil as an empty body, anything else as JSON.
func (res *Response) Send(status int, v any) {
	switch body := v.(type) {
	case nil:
		res.w.WriteHeader(status)
	case string:
		res.Text(status, body)
	case []byte:
		if res.w.Header().Get("Content-Type") == "" {
			res.w.Header().Set("Content-Type", "application/octet-stream")
		}
		res.w.WriteHeader(status)
		_, _ = res.w.Write(body)
	default:
		res.JSON(status, v)
	}
}

// NoContent sends 204 with no body.
func (res *Response) NoContent() {
	res.w.WriteHeader(http.StatusNoContent)
}

// Error sends {"statusCode": status, "message": message}.
func (res *Response) Error(status int, message string) {
	res.JSON(status, envelope{"statusCode": status, "message": message})
}

// ── Redirects ────────────────────────────────────────────────────────────────

// Redirect is a handler result that makes the pipeline answer with a redirect.
//
//	return gohttp.Redirect{URL: "https://docs.example.com"}, nil
type Redirect struct {
	URL        string
	StatusCode int
}

// Redirect performs an HTTP redirect; a zero status means 302.
//
//	res.Redirect(http.StatusFound, "/dashboard")
func (res *Response) Redirect(status int, url string) {
	if status == 0 {
		status = http.StatusFound
	}
	http.Redirect(res.w, res.r, url, status)
}

// ── Helpers ──────────────────────────────────────────────────────────────────

type envelope map[string]any
