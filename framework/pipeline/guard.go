package pipeline

import gohttp "github.com/zengzjie/nest-source/framework/http"

// Guard decides whether the handler may run.
type Guard interface {
	CanActivate(ctx ExecutionContext) (bool, error)
}

// GuardFunc adapts a function to Guard.
type GuardFunc func(ctx ExecutionContext) (bool, error)

func (f GuardFunc) CanActivate(ctx ExecutionContext) (bool, error) { return f(ctx) }

// StreamGuard adapts a guard that answers on a channel. The first value
// received decides; a closed channel denies; a cancelled request context
// returns the context's error.
type StreamGuard func(ctx ExecutionContext) <-chan bool

func (f StreamGuard) CanActivate(ctx ExecutionContext) (bool, error) {
	ch := f(ctx)
	select {
	case ok, open := <-ch:
		return ok && open, nil
	case <-ctx.Context().Done():
		return false, ctx.Context().Err()
	}
}

// RunGuards evaluates guards in order. The first denial stops evaluation
// with a Forbidden exception.
func RunGuards(ctx ExecutionContext, guards []Guard) error {
	for _, g := range guards {
		ok, err := g.CanActivate(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return gohttp.Forbidden("Forbidden resource")
		}
	}
	return nil
}
