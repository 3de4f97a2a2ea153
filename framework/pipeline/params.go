package pipeline

import (
	"github.com/google/uuid"

	gohttp "github.com/zengzjie/nest-source/framework/http"
)

// ParamKind is the source a built-in parameter declaration reads from.
type ParamKind int

const (
	KindRequest ParamKind = iota
	KindResponse
	KindNext
	KindQuery
	KindHeaders
	KindIP
	KindSession
	KindParam
	KindBody
	KindFile
	KindFiles
	KindCustom
)

var kindNames = [...]string{
	"request", "response", "next", "query", "headers", "ip",
	"session", "param", "body", "file", "files", "custom",
}

func (k ParamKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// ParamType maps the kind onto the type reported to pipes.
func (k ParamKind) ParamType() ParamType {
	switch k {
	case KindBody:
		return ParamTypeBody
	case KindQuery:
		return ParamTypeQuery
	case KindParam:
		return ParamTypeParam
	}
	return ParamTypeCustom
}

// transport reports whether the kind injects a transport object rather than a value.
func (k ParamKind) transport() bool {
	return k == KindRequest || k == KindResponse || k == KindNext
}

// late reports whether the kind is read after the interceptors ran, so that
// upload interceptors can populate the request first.
func (k ParamKind) late() bool {
	return k == KindFile || k == KindFiles
}

// ── Declarations ──────────────────────────────────────────────────────────────

// ParamDecl declares where one handler parameter comes from. A route lists
// one declaration per handler parameter; nil leaves the slot undecorated.
type ParamDecl struct {
	Kind        ParamKind
	Key         string
	Pipes       []any
	Passthrough bool
	Factory     *ParamFactoryDecl
}

// ParamFactory computes a custom parameter value.
type ParamFactory func(data any, ctx ExecutionContext) (any, error)

// ParamFactoryDecl is the custom-factory channel entry of a declaration.
type ParamFactoryDecl struct {
	ID      string
	Factory ParamFactory
	Data    any
}

func Req() *ParamDecl     { return &ParamDecl{Kind: KindRequest} }
func Res() *ParamDecl     { return &ParamDecl{Kind: KindResponse} }
func Next() *ParamDecl    { return &ParamDecl{Kind: KindNext} }
func IP() *ParamDecl      { return &ParamDecl{Kind: KindIP} }
func Session() *ParamDecl { return &ParamDecl{Kind: KindSession} }

// ResPassthrough injects the response but keeps automatic response framing.
func ResPassthrough() *ParamDecl { return &ParamDecl{Kind: KindResponse, Passthrough: true} }

// Query reads one query field, or the whole query when key is empty.
func Query(key string, pipes ...any) *ParamDecl {
	return &ParamDecl{Kind: KindQuery, Key: key, Pipes: pipes}
}

// Headers reads one header, or all headers when key is empty.
func Headers(key string) *ParamDecl { return &ParamDecl{Kind: KindHeaders, Key: key} }

// Param reads one route parameter, or all of them when key is empty.
func Param(key string, pipes ...any) *ParamDecl {
	return &ParamDecl{Kind: KindParam, Key: key, Pipes: pipes}
}

// Body reads one body field, or the whole body when key is empty.
func Body(key string, pipes ...any) *ParamDecl {
	return &ParamDecl{Kind: KindBody, Key: key, Pipes: pipes}
}

// UploadedFile reads the file stored by an upload interceptor.
func UploadedFile(pipes ...any) *ParamDecl { return &ParamDecl{Kind: KindFile, Pipes: pipes} }

// UploadedFiles reads the files stored by an upload interceptor: a slice, or
// a map by field name for multi-field uploads.
func UploadedFiles(pipes ...any) *ParamDecl { return &ParamDecl{Kind: KindFiles, Pipes: pipes} }

// CreateParamDecorator returns a constructor for custom parameter
// declarations backed by factory.
//
//	var User = pipeline.CreateParamDecorator(func(data any, ctx pipeline.ExecutionContext) (any, error) {
//	    u, _ := ctx.SwitchToHTTP().Request().Get("user")
//	    return u, nil
//	})
//
//	routing.Get("/me", (*UsersController).Me).Params(User(nil))
func CreateParamDecorator(factory ParamFactory) func(data any) *ParamDecl {
	return func(data any) *ParamDecl {
		return &ParamDecl{
			Kind: KindCustom,
			Factory: &ParamFactoryDecl{
				ID:      uuid.NewString(),
				Factory: factory,
				Data:    data,
			},
		}
	}
}

// ── Bound parameters ──────────────────────────────────────────────────────────

// BoundParam is a built-in declaration with its parameter-level pipes resolved.
type BoundParam struct {
	Index int
	Kind  ParamKind
	Key   string
	Pipes []Pipe
}

// BoundFactory is a custom declaration bound to its parameter index.
type BoundFactory struct {
	Index int
	*ParamFactoryDecl
}

// extract reads the raw value of a built-in parameter from the request.
func extract(c *executionContext, p *BoundParam) (any, error) {
	req := c.req
	switch p.Kind {
	case KindRequest:
		return req, nil
	case KindResponse:
		return c.res, nil
	case KindNext:
		return c.next, nil
	case KindQuery:
		if p.Key == "" {
			return req.QueryAll(), nil
		}
		return req.Query(p.Key), nil
	case KindHeaders:
		if p.Key == "" {
			return req.Headers(), nil
		}
		if len(req.Headers().Values(p.Key)) == 0 {
			return nil, nil
		}
		return req.Header(p.Key), nil
	case KindIP:
		return req.IP(), nil
	case KindSession:
		return req.Session(), nil
	case KindParam:
		if p.Key == "" {
			return req.RouteParams(), nil
		}
		return req.RouteParam(p.Key), nil
	case KindBody:
		var (
			v   any
			err error
		)
		if p.Key == "" {
			v, err = req.Body()
		} else {
			v, err = req.BodyValue(p.Key)
		}
		if err != nil {
			return nil, gohttp.BadRequest("Invalid request body").WithCause(err)
		}
		return v, nil
	case KindFile:
		if f := req.File(); f != nil {
			return f, nil
		}
		return nil, nil
	case KindFiles:
		if fields := req.FileFields(); fields != nil {
			return fields, nil
		}
		if files := req.Files(); files != nil {
			return files, nil
		}
		return nil, nil
	}
	return nil, nil
}
