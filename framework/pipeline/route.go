package pipeline

import (
	"fmt"
	"net/http"
	"reflect"
	"runtime"
	"sort"

	gohttp "github.com/zengzjie/nest-source/framework/http"
	"github.com/zengzjie/nest-source/framework/metadata"
)

var (
	errorType       = reflect.TypeOf((*error)(nil)).Elem()
	rawRequestType  = reflect.TypeOf((**http.Request)(nil)).Elem()
	rawResponseType = reflect.TypeOf((*http.ResponseWriter)(nil)).Elem()
)

// ResponseMode says who sends the response.
type ResponseMode int

const (
	// ModeAuto frames the handler result into a response.
	ModeAuto ResponseMode = iota
	// ModeManual leaves the response to the handler, which injected the response or next.
	ModeManual
	// ModePassthrough injects the response and still frames the result.
	ModePassthrough
)

// Header is a response header declared on a route.
type Header struct {
	Name  string
	Value string
}

// Route is the immutable entry built for one method and path at bootstrap.
// Enhancer lists are already merged: Guards, Pipes and Interceptors are
// global ++ controller ++ method; Filters are controller ++ method ++ global.
type Route struct {
	Method string
	Path   string

	Controller metadata.Target
	Definition metadata.Target

	Instance    any
	Handler     reflect.Value
	HandlerName string
	ParamTypes  []reflect.Type
	receiver    bool

	Guards       []Guard
	Pipes        []Pipe
	Interceptors []Interceptor
	Filters      []FilterBinding

	Params    []*BoundParam
	Factories []*BoundFactory

	HTTPCode int
	Redirect *gohttp.Redirect
	Headers  []Header
	Mode     ResponseMode
}

// NewRoute binds handler for method and path. handler is either a method
// expression whose receiver accepts instance, or a plain function. It must
// return nothing, a value, an error, or (value, error).
func NewRoute(method, path string, instance any, handler any) (*Route, error) {
	hv := reflect.ValueOf(handler)
	if hv.Kind() != reflect.Func || hv.IsNil() {
		return nil, fmt.Errorf("pipeline: handler for %s %s is %T, not a func", method, path, handler)
	}
	ht := hv.Type()
	if ht.IsVariadic() {
		return nil, fmt.Errorf("pipeline: handler for %s %s is variadic", method, path)
	}
	switch ht.NumOut() {
	case 0, 1:
	case 2:
		if ht.Out(1) != errorType {
			return nil, fmt.Errorf("pipeline: handler for %s %s must return (T, error)", method, path)
		}
	default:
		return nil, fmt.Errorf("pipeline: handler for %s %s returns too many values", method, path)
	}

	rt := &Route{
		Method:      method,
		Path:        path,
		Instance:    instance,
		Handler:     hv,
		HandlerName: runtime.FuncForPC(hv.Pointer()).Name(),
	}
	start := 0
	if instance != nil && ht.NumIn() > 0 && reflect.TypeOf(instance).AssignableTo(ht.In(0)) {
		rt.receiver = true
		start = 1
	}
	for i := start; i < ht.NumIn(); i++ {
		rt.ParamTypes = append(rt.ParamTypes, ht.In(i))
	}
	return rt, nil
}

// Validate checks that every declaration addresses an existing parameter and
// that no parameter is declared twice.
func (r *Route) Validate() error {
	seen := make(map[int]bool)
	for _, p := range r.Params {
		if p == nil {
			continue
		}
		if p.Index < 0 || p.Index >= len(r.ParamTypes) {
			return fmt.Errorf("pipeline: %s %s declares parameter %d but %s takes %d",
				r.Method, r.Path, p.Index, r.HandlerName, len(r.ParamTypes))
		}
		if seen[p.Index] {
			return fmt.Errorf("pipeline: %s %s declares parameter %d twice", r.Method, r.Path, p.Index)
		}
		seen[p.Index] = true
	}
	for _, f := range r.Factories {
		if f.Index < 0 || f.Index >= len(r.ParamTypes) {
			return fmt.Errorf("pipeline: %s %s declares parameter %d but %s takes %d",
				r.Method, r.Path, f.Index, r.HandlerName, len(r.ParamTypes))
		}
		if seen[f.Index] {
			return fmt.Errorf("pipeline: %s %s declares parameter %d twice", r.Method, r.Path, f.Index)
		}
		seen[f.Index] = true
	}
	sort.SliceStable(r.Factories, func(i, j int) bool { return r.Factories[i].Index < r.Factories[j].Index })
	return nil
}

// Status is the success status: the declared code, 201 for POST, else 200.
func (r *Route) Status() int {
	switch {
	case r.HTTPCode != 0:
		return r.HTTPCode
	case r.Method == http.MethodPost:
		return http.StatusCreated
	}
	return http.StatusOK
}

// call invokes the handler. A panic is returned as an error so that it
// reaches the exception filters like any other failure.
func (r *Route) call(args []reflect.Value) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			if e, ok := p.(error); ok {
				err = fmt.Errorf("pipeline: panic in %s: %w", r.HandlerName, e)
				return
			}
			err = fmt.Errorf("pipeline: panic in %s: %v", r.HandlerName, p)
		}
	}()

	if r.receiver {
		args = append([]reflect.Value{reflect.ValueOf(r.Instance)}, args...)
	}
	out := r.Handler.Call(args)
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if r.Handler.Type().Out(0) == errorType {
			if out[0].IsNil() {
				return nil, nil
			}
			return nil, out[0].Interface().(error)
		}
		return out[0].Interface(), nil
	}
	if !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	return out[0].Interface(), nil
}

// argument converts a resolved value into a call argument of type t.
func argument(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	switch x := v.(type) {
	case *gohttp.Request:
		if t == rawRequestType {
			return reflect.ValueOf(x.Raw()), nil
		}
	case *gohttp.Response:
		if t == rawResponseType {
			return reflect.ValueOf(x.Raw()), nil
		}
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if rv.Kind() == t.Kind() && rv.Type().ConvertibleTo(t) {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %s as %s", rv.Type(), t)
}
