package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

const maxMemory = 32 << 20 // 32 MB

// Request wraps *http.Request with the accessors the parameter resolver
// needs. One Request is attached to each incoming request so middleware,
// guards and handlers share the same session, values and uploaded files.
type Request struct {
	raw *http.Request

	mu        sync.Mutex
	rawBody   []byte
	bodyRead  bool
	body      any
	bodyErr   error
	bodyDone  bool
	session   map[string]any
	values    map[string]any
	file      *UploadedFile
	files     []*UploadedFile
	fileField map[string][]*UploadedFile
}

type requestKey struct{}

// NewRequest wraps a standard *http.Request.
func NewRequest(r *http.Request) *Request {
	return &Request{raw: r}
}

// Attach stores a new Request in r's context and returns both.
func Attach(r *http.Request) (*http.Request, *Request) {
	if req, ok := FromContext(r.Context()); ok {
		return r, req
	}
	req := NewRequest(r)
	r = r.WithContext(context.WithValue(r.Context(), requestKey{}, req))
	req.raw = r
	return r, req
}

// FromContext returns the Request attached to ctx.
func FromContext(ctx context.Context) (*Request, bool) {
	req, ok := ctx.Value(requestKey{}).(*Request)
	return req, ok
}

// Of returns the Request attached to r, or wraps r when none is attached.
func Of(r *http.Request) *Request {
	if req, ok := FromContext(r.Context()); ok {
		req.raw = r
		return req
	}
	return NewRequest(r)
}

// Middleware attaches a Request to every incoming request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, _ = Attach(r)
		next.ServeHTTP(w, r)
	})
}

// Raw returns the underlying *http.Request.
func (req *Request) Raw() *http.Request { return req.raw }

// Context returns the request context.
func (req *Request) Context() context.Context { return req.raw.Context() }

// ── Body ─────────────────────────────────────────────────────────────────────

func (req *Request) readBody() ([]byte, error) {
	if req.bodyRead {
		return req.rawBody, nil
	}
	req.bodyRead = true
	if req.raw.Body == nil {
		return nil, nil
	}
	defer req.raw.Body.Close()
	b, err := io.ReadAll(req.raw.Body)
	if err != nil {
		return nil, err
	}
	req.rawBody = b
	req.raw.Body = io.NopCloser(bytes.NewReader(b))
	return b, nil
}

// Body returns the parsed body: a decoded JSON value, or a map of form
// fields. An empty body yields nil.
func (req *Request) Body() (any, error) {
	req.mu.Lock()
	defer req.mu.Unlock()
	if req.bodyDone {
		return req.body, req.bodyErr
	}
	req.bodyDone = true
	req.body, req.bodyErr = req.parseBody()
	return req.body, req.bodyErr
}

func (req *Request) parseBody() (any, error) {
	ct := req.ContentType()
	switch {
	case strings.Contains(ct, "multipart/form-data"):
		if err := req.raw.ParseMultipartForm(maxMemory); err != nil {
			return nil, err
		}
		return formMap(req.raw.MultipartForm.Value), nil
	case strings.Contains(ct, "application/x-www-form-urlencoded"):
		b, err := req.readBody()
		if err != nil {
			return nil, err
		}
		values, err := url.ParseQuery(string(b))
		if err != nil {
			return nil, err
		}
		return formMap(values), nil
	default:
		b, err := req.readBody()
		if err != nil || len(bytes.TrimSpace(b)) == 0 {
			return nil, err
		}
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

// BodyValue returns one top-level field of an object body.
func (req *Request) BodyValue(key string) (any, error) {
	body, err := req.Body()
	if err != nil {
		return nil, err
	}
	m, ok := body.(map[string]any)
	if !ok {
		return nil, nil
	}
	return m[key], nil
}

// Bind decodes the body into v.
// JSON fields map via `json:"name"`; form fields go through the same JSON round-trip.
func (req *Request) Bind(v any) error {
	body, err := req.Body()
	if err != nil {
		return err
	}
	if body == nil {
		return errors.New("empty request body")
	}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// formMap flattens form values: single values become strings, repeated ones stay lists.
func formMap(values map[string][]string) map[string]any {
	m := make(map[string]any, len(values))
	for k, vals := range values {
		if len(vals) == 1 {
			m[k] = vals[0]
		} else {
			m[k] = vals
		}
	}
	return m
}

// ── Input helpers ────────────────────────────────────────────────────────────

// Query returns a query-string value, or nil when the key is absent.
func (req *Request) Query(key string) any {
	vals, ok := req.raw.URL.Query()[key]
	if !ok || len(vals) == 0 {
		return nil
	}
	if len(vals) == 1 {
		return vals[0]
	}
	return vals
}

// QueryAll returns the whole query string.
func (req *Request) QueryAll() url.Values { return req.raw.URL.Query() }

// RouteParam returns a URL route parameter (chi).
func (req *Request) RouteParam(key string) string {
	return chi.URLParam(req.raw, key)
}

// RouteParams returns every URL route parameter of the matched route.
func (req *Request) RouteParams() map[string]string {
	out := make(map[string]string)
	rctx := chi.RouteContext(req.raw.Context())
	if rctx == nil {
		return out
	}
	for i, k := range rctx.URLParams.Keys {
		if k == "*" {
			continue
		}
		out[k] = rctx.URLParams.Values[i]
	}
	return out
}

// Header returns a request header value.
func (req *Request) Header(key string) string {
	return req.raw.Header.Get(key)
}

// Headers returns all request headers.
func (req *Request) Headers() http.Header { return req.raw.Header }

// BearerToken extracts the token from Authorization: Bearer <token>.
func (req *Request) BearerToken() string {
	auth := req.raw.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// IP returns the client IP without port (respects the RealIP middleware).
func (req *Request) IP() string {
	addr := req.raw.RemoteAddr
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// Method returns the HTTP method.
func (req *Request) Method() string { return req.raw.Method }

// Path returns the URL path.
func (req *Request) Path() string { return req.raw.URL.Path }

// ContentType returns the Content-Type header value.
func (req *Request) ContentType() string {
	return req.raw.Header.Get("Content-Type")
}

// ── Session and values ───────────────────────────────────────────────────────

// Session returns the session map populated by session middleware; never nil.
func (req *Request) Session() map[string]any {
	req.mu.Lock()
	defer req.mu.Unlock()
	if req.session == nil {
		req.session = make(map[string]any)
	}
	return req.session
}

// SetSession replaces the session map.
func (req *Request) SetSession(s map[string]any) {
	req.mu.Lock()
	defer req.mu.Unlock()
	req.session = s
}

// Set stores a request-scoped value, for example the authenticated user.
func (req *Request) Set(key string, v any) {
	req.mu.Lock()
	defer req.mu.Unlock()
	if req.values == nil {
		req.values = make(map[string]any)
	}
	req.values[key] = v
}

// Get reads a request-scoped value.
func (req *Request) Get(key string) (any, bool) {
	req.mu.Lock()
	defer req.mu.Unlock()
	v, ok := req.values[key]
	return v, ok
}

// ── File uploads ─────────────────────────────────────────────────────────────

// File returns the single uploaded file stored by an upload interceptor.
func (req *Request) File() *UploadedFile {
	req.mu.Lock()
	defer req.mu.Unlock()
	return req.file
}

// Files returns the uploaded files stored by an upload interceptor.
func (req *Request) Files() []*UploadedFile {
	req.mu.Lock()
	defer req.mu.Unlock()
	return req.files
}

// FileFields returns uploaded files grouped by field name, when an
// interceptor accepted several named fields.
func (req *Request) FileFields() map[string][]*UploadedFile {
	req.mu.Lock()
	defer req.mu.Unlock()
	return req.fileField
}

// SetFile stores the single uploaded file.
func (req *Request) SetFile(f *UploadedFile) {
	req.mu.Lock()
	defer req.mu.Unlock()
	req.file = f
}

// SetFiles stores the uploaded files.
func (req *Request) SetFiles(files []*UploadedFile) {
	req.mu.Lock()
	defer req.mu.Unlock()
	req.files = files
}

// SetFileFields stores uploaded files grouped by field and their flattened list.
func (req *Request) SetFileFields(fields map[string][]*UploadedFile) {
	req.mu.Lock()
	defer req.mu.Unlock()
	req.fileField = fields
	req.files = nil
	for _, files := range fields {
		req.files = append(req.files, files...)
	}
}

// MultipartFiles parses the multipart form and returns the raw file headers by field.
func (req *Request) MultipartFiles(limit int64) (map[string][]*multipart.FileHeader, error) {
	if limit <= 0 {
		limit = maxMemory
	}
	if err := req.raw.ParseMultipartForm(limit); err != nil {
		return nil, err
	}
	if req.raw.MultipartForm == nil {
		return nil, errors.New("no multipart form")
	}
	return req.raw.MultipartForm.File, nil
}
