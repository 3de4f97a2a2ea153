package pipeline

import (
	"context"
	"reflect"

	gohttp "github.com/zengzjie/nest-source/framework/http"
)

// ParamType is the semantic kind reported to pipes.
type ParamType string

const (
	ParamTypeBody   ParamType = "body"
	ParamTypeQuery  ParamType = "query"
	ParamTypeParam  ParamType = "param"
	ParamTypeCustom ParamType = "custom"
)

// ArgumentMetadata describes the parameter a pipe is transforming.
type ArgumentMetadata struct {
	Type     ParamType
	Metatype reflect.Type
	Data     string
}

// Pipe transforms or validates one argument value.
type Pipe interface {
	Transform(ctx context.Context, value any, meta ArgumentMetadata) (any, error)
}

// PipeFunc adapts a function to Pipe.
type PipeFunc func(ctx context.Context, value any, meta ArgumentMetadata) (any, error)

func (f PipeFunc) Transform(ctx context.Context, value any, meta ArgumentMetadata) (any, error) {
	return f(ctx, value, meta)
}

// RunPipes threads value through pipes in order, each receiving the previous
// output. A rejection that is not already an HTTP exception becomes a bad
// request carrying the pipe's message.
func RunPipes(ctx context.Context, value any, meta ArgumentMetadata, pipes ...[]Pipe) (any, error) {
	for _, chain := range pipes {
		for _, p := range chain {
			v, err := p.Transform(ctx, value, meta)
			if err != nil {
				if _, ok := gohttp.AsHTTPException(err); ok {
					return nil, err
				}
				return nil, gohttp.BadRequest(err.Error()).WithCause(err)
			}
			value = v
		}
	}
	return value, nil
}
