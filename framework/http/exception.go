package http

import (
	"errors"
	"net/http"
)

// ── HTTPException ────────────────────────────────────────────────────────────

// HTTPException is an error that knows the response it should produce.
// A string response becomes {"statusCode", "message"}; any other response
// (a map or struct) is sent verbatim by the default exception filter.
//
//	return nil, gohttp.NotFound("cat not found")
//	return nil, gohttp.NewHTTPException(map[string]any{"code": "E42"}, http.StatusConflict)
type HTTPException struct {
	status   int
	response any
	cause    error
}

// NewHTTPException builds an exception with an explicit status.
func NewHTTPException(response any, status int) *HTTPException {
	return &HTTPException{status: status, response: response}
}

func (e *HTTPException) Error() string { return e.Message() }

// Status returns the HTTP status code.
func (e *HTTPException) Status() int { return e.status }

// Response returns the response payload as given.
func (e *HTTPException) Response() any { return e.response }

// Unwrap returns the cause, if any.
func (e *HTTPException) Unwrap() error { return e.cause }

// WithCause attaches the underlying error.
func (e *HTTPException) WithCause(err error) *HTTPException {
	e.cause = err
	return e
}

// Message derives a message from a string response or a "message" entry.
func (e *HTTPException) Message() string {
	switch r := e.response.(type) {
	case string:
		if r != "" {
			return r
		}
	case map[string]any:
		if m, ok := r["message"].(string); ok {
			return m
		}
	}
	return http.StatusText(e.status)
}

// Body is what the default exception filter writes.
func (e *HTTPException) Body() any {
	switch e.response.(type) {
	case nil, string:
		return map[string]any{"statusCode": e.status, "message": e.Message()}
	}
	return e.response
}

// ── Constructors ─────────────────────────────────────────────────────────────

func exception(status int, response []any) *HTTPException {
	if len(response) == 0 || response[0] == nil {
		return NewHTTPException(http.StatusText(status), status)
	}
	return NewHTTPException(response[0], status)
}

func BadRequest(response ...any) *HTTPException {
	return exception(http.StatusBadRequest, response)
}

func Unauthorized(response ...any) *HTTPException {
	return exception(http.StatusUnauthorized, response)
}

func Forbidden(response ...any) *HTTPException {
	return exception(http.StatusForbidden, response)
}

func NotFound(response ...any) *HTTPException {
	return exception(http.StatusNotFound, response)
}

func RequestTimeout(response ...any) *HTTPException {
	return exception(http.StatusRequestTimeout, response)
}

func PayloadTooLarge(response ...any) *HTTPException {
	return exception(http.StatusRequestEntityTooLarge, response)
}

func UnprocessableEntity(response ...any) *HTTPException {
	return exception(http.StatusUnprocessableEntity, response)
}

func InternalServerError(response ...any) *HTTPException {
	return exception(http.StatusInternalServerError, response)
}

func BadGateway(response ...any) *HTTPException {
	return exception(http.StatusBadGateway, response)
}

// AsHTTPException finds an *HTTPException in err's chain.
func AsHTTPException(err error) (*HTTPException, bool) {
	var he *HTTPException
	ok := errors.As(err, &he)
	return he, ok
}
