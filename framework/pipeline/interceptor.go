package pipeline

import "sync"

// CallHandler runs the rest of the interceptor chain and the handler.
type CallHandler interface {
	Handle() (any, error)
}

// Interceptor wraps the handler call. It may act before calling
// next.Handle, transform the value afterwards, or return without calling it.
//
//	func (l *Logging) Intercept(ctx pipeline.ExecutionContext, next pipeline.CallHandler) (any, error) {
//	    start := time.Now()
//	    v, err := next.Handle()
//	    l.logger.Info("handled", zap.Duration("took", time.Since(start)))
//	    return v, err
//	}
type Interceptor interface {
	Intercept(ctx ExecutionContext, next CallHandler) (any, error)
}

// InterceptorFunc adapts a function to Interceptor.
type InterceptorFunc func(ctx ExecutionContext, next CallHandler) (any, error)

func (f InterceptorFunc) Intercept(ctx ExecutionContext, next CallHandler) (any, error) {
	return f(ctx, next)
}

// onceHandler runs fn on the first Handle and replays its result afterwards.
type onceHandler struct {
	once sync.Once
	fn   func() (any, error)
	val  any
	err  error
}

func (h *onceHandler) Handle() (any, error) {
	h.once.Do(func() { h.val, h.err = h.fn() })
	return h.val, h.err
}

// Compose folds interceptors around final so that interceptors[0] is the
// outermost layer.
func Compose(ctx ExecutionContext, interceptors []Interceptor, final func() (any, error)) CallHandler {
	var next CallHandler = &onceHandler{fn: final}
	for i := len(interceptors) - 1; i >= 0; i-- {
		ic, inner := interceptors[i], next
		next = &onceHandler{fn: func() (any, error) { return ic.Intercept(ctx, inner) }}
	}
	return next
}
