package pipeline

import (
	"errors"
	"net/http"
	"reflect"

	"go.uber.org/zap"

	gohttp "github.com/zengzjie/nest-source/framework/http"
	"github.com/zengzjie/nest-source/framework/metadata"
)

// ExceptionFilter turns an error into a response. Returning an error hands
// that error to the default filter.
type ExceptionFilter interface {
	Catch(err error, host ArgumentsHost) error
}

// FilterFunc adapts a function to ExceptionFilter.
type FilterFunc func(err error, host ArgumentsHost) error

func (f FilterFunc) Catch(err error, host ArgumentsHost) error { return f(err, host) }

// ── Catch restrictions ────────────────────────────────────────────────────────

// Catches restricts target to the dynamic types of the given errors.
// Pass a typed nil pointer or a zero value:
//
//	pipeline.Catches(NotFoundFilterClass, (*gohttp.HTTPException)(nil))
func Catches(target metadata.Target, exceptions ...error) {
	types := make([]any, 0, len(exceptions))
	for _, e := range exceptions {
		if t := reflect.TypeOf(e); t != nil {
			types = append(types, t)
		}
	}
	metadata.Append(metadata.CatchKey, types, target)
}

// CatchTypes returns the restriction recorded on target.
func CatchTypes(target metadata.Target) []reflect.Type {
	return metadata.List[reflect.Type](metadata.CatchKey, target)
}

// CatchFilter is an ExceptionFilter carrying its own metadata.
type CatchFilter struct {
	ExceptionFilter
	meta metadata.Map
}

func (f *CatchFilter) Metadata() *metadata.Map { return &f.meta }

// Catch wraps filter so it only handles the given error types.
//
//	pipeline.Catch(pipeline.FilterFunc(notFound), (*gohttp.HTTPException)(nil))
func Catch(filter ExceptionFilter, exceptions ...error) *CatchFilter {
	cf := &CatchFilter{ExceptionFilter: filter}
	Catches(cf, exceptions...)
	return cf
}

// FilterBinding is a resolved filter together with its restriction.
type FilterBinding struct {
	Filter  ExceptionFilter
	Catches []reflect.Type
}

// BindFilter reads the restriction from meta, or from the filter itself.
func BindFilter(filter ExceptionFilter, meta metadata.Target) FilterBinding {
	b := FilterBinding{Filter: filter}
	if meta != nil {
		b.Catches = CatchTypes(meta)
	}
	if t, ok := filter.(metadata.Target); ok && len(b.Catches) == 0 {
		b.Catches = CatchTypes(t)
	}
	return b
}

// Matches reports whether the binding handles err. An unrestricted binding
// matches everything.
func (b FilterBinding) Matches(err error) bool {
	if len(b.Catches) == 0 {
		return true
	}
	return matchChain(err, b.Catches)
}

func matchChain(err error, types []reflect.Type) bool {
	if err == nil {
		return false
	}
	et := reflect.TypeOf(err)
	for _, t := range types {
		if et == t || (t.Kind() == reflect.Interface && et.Implements(t)) {
			return true
		}
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if matchChain(e, types) {
				return true
			}
		}
		return false
	}
	return matchChain(errors.Unwrap(err), types)
}

// ── Default filter ────────────────────────────────────────────────────────────

// DefaultExceptionFilter is the last filter of every route. HTTP exceptions
// produce their own body; anything else becomes a generic 500 and is logged.
type DefaultExceptionFilter struct {
	logger *zap.Logger
}

// NewDefaultExceptionFilter returns the catch-all filter.
func NewDefaultExceptionFilter(logger *zap.Logger) *DefaultExceptionFilter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultExceptionFilter{logger: logger}
}

func (f *DefaultExceptionFilter) Catch(err error, host ArgumentsHost) error {
	res := host.SwitchToHTTP().Response()
	req := host.SwitchToHTTP().Request()

	if res.Written() {
		f.logger.Warn("exception after response was sent",
			zap.Error(err),
			zap.String("path", req.Path()),
		)
		return nil
	}

	if he, ok := gohttp.AsHTTPException(err); ok {
		res.JSON(he.Status(), he.Body())
		return nil
	}

	f.logger.Error("unhandled exception",
		zap.Error(err),
		zap.String("method", req.Method()),
		zap.String("path", req.Path()),
	)
	res.JSON(http.StatusInternalServerError, map[string]any{
		"statusCode": http.StatusInternalServerError,
		"message":    "Internal server error",
	})
	return nil
}
