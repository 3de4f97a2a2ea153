package upload

import (
	"github.com/zengzjie/nest-source/framework/container"
	gohttp "github.com/zengzjie/nest-source/framework/http"
	"github.com/zengzjie/nest-source/framework/pipeline"
)

// Field is one accepted field of FileFieldsInterceptor.
type Field struct {
	Name     string
	MaxCount int
}

// interceptor is the shared shape of the upload interceptors: options merged
// from the call site and the module, and an accept step run before the handler.
type interceptor struct {
	options Options
	accept  func(o Options, req *gohttp.Request) error
}

func (i *interceptor) Intercept(ctx pipeline.ExecutionContext, next pipeline.CallHandler) (any, error) {
	if err := i.accept(i.options, ctx.SwitchToHTTP().Request()); err != nil {
		return nil, err
	}
	return next.Handle()
}

// class binds an accept step into an injectable class whose constructor
// receives the module options when Register was imported.
func class(name string, local []Options, accept func(Options, *gohttp.Request) error) *container.Class {
	var call Options
	if len(local) > 0 {
		call = local[0]
	}
	ctor := func(module Options) *interceptor {
		return &interceptor{options: call.merge(module), accept: accept}
	}
	return container.Injectable(ctor).Inject(0, ModuleOptions).Optional(0).Named(name)
}

// FileInterceptor accepts a single file from field.
func FileInterceptor(field string, opts ...Options) *container.Class {
	return class("FileInterceptor", opts, func(o Options, req *gohttp.Request) error {
		form, err := o.parse(req)
		if err != nil {
			return err
		}
		for name, headers := range form {
			if name != field || len(headers) > 1 {
				return unexpectedField(name)
			}
		}
		files, err := o.accept(field, form[field])
		if err != nil {
			return err
		}
		if len(files) == 1 {
			req.SetFile(files[0])
		}
		return nil
	})
}

// FilesInterceptor accepts up to maxCount files from field. Zero means no limit.
func FilesInterceptor(field string, maxCount int, opts ...Options) *container.Class {
	return class("FilesInterceptor", opts, func(o Options, req *gohttp.Request) error {
		form, err := o.parse(req)
		if err != nil {
			return err
		}
		for name, headers := range form {
			if name != field || (maxCount > 0 && len(headers) > maxCount) {
				return unexpectedField(name)
			}
		}
		files, err := o.accept(field, form[field])
		if err != nil {
			return err
		}
		req.SetFiles(files)
		return nil
	})
}

// FileFieldsInterceptor accepts files from several named fields. Handlers
// read them grouped by field name.
func FileFieldsInterceptor(fields []Field, opts ...Options) *container.Class {
	allowed := make(map[string]int, len(fields))
	for _, f := range fields {
		allowed[f.Name] = f.MaxCount
	}
	return class("FileFieldsInterceptor", opts, func(o Options, req *gohttp.Request) error {
		form, err := o.parse(req)
		if err != nil {
			return err
		}
		grouped := make(map[string][]*gohttp.UploadedFile, len(form))
		for name, headers := range form {
			limit, ok := allowed[name]
			if !ok || (limit > 0 && len(headers) > limit) {
				return unexpectedField(name)
			}
			files, err := o.accept(name, headers)
			if err != nil {
				return err
			}
			grouped[name] = files
		}
		req.SetFileFields(grouped)
		return nil
	})
}

// AnyFilesInterceptor accepts files from any field.
func AnyFilesInterceptor(opts ...Options) *container.Class {
	return class("AnyFilesInterceptor", opts, func(o Options, req *gohttp.Request) error {
		form, err := o.parse(req)
		if err != nil {
			return err
		}
		var all []*gohttp.UploadedFile
		for name, headers := range form {
			files, err := o.accept(name, headers)
			if err != nil {
				return err
			}
			all = append(all, files...)
		}
		req.SetFiles(all)
		return nil
	})
}

// NoFilesInterceptor accepts text fields only and rejects any file.
func NoFilesInterceptor() *container.Class {
	return class("NoFilesInterceptor", nil, func(o Options, req *gohttp.Request) error {
		form, err := o.parse(req)
		if err != nil {
			return err
		}
		for _, headers := range form {
			if len(headers) > 0 {
				return gohttp.BadRequest("File is not allowed")
			}
		}
		return nil
	})
}
