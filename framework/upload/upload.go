// Package upload accepts multipart file uploads through interceptors.
//
// An interceptor parses the multipart form, optionally writes each file to
// disk and stores the result on the request, where the UploadedFile and
// UploadedFiles parameters read it:
//
//	routing.Post("/avatar", (*UsersController).Avatar).
//	    UseInterceptors(upload.FileInterceptor("avatar")).
//	    Params(pipeline.UploadedFile(pipes.ParseFile(validation.MaxFileSize{MaxSize: 1 << 20})))
//
// Module-wide defaults come from Register:
//
//	container.NewModule("AppModule").Imports(upload.Register(upload.Options{Dest: "./uploads"}))
package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/zengzjie/nest-source/framework/config"
	"github.com/zengzjie/nest-source/framework/container"
	gohttp "github.com/zengzjie/nest-source/framework/http"
)

// ModuleOptions is the token under which Register publishes Options.
var ModuleOptions = container.NewSymbol("UPLOAD_MODULE_OPTIONS")

// Options configures how uploads are accepted and stored.
type Options struct {
	// Dest is the directory files are written to. Empty keeps files in the
	// multipart form, readable through UploadedFile.Open.
	Dest string
	// MaxFileSize rejects larger files with 413. Zero means no limit.
	MaxFileSize int64
	// MaxFiles caps the number of files in one request. Zero means no limit.
	MaxFiles int
	// MaxMemory is the multipart parser's in-memory threshold.
	MaxMemory int64
}

// merge returns o with the zero fields taken from defaults.
func (o Options) merge(defaults Options) Options {
	if o.Dest == "" {
		o.Dest = defaults.Dest
	}
	if o.MaxFileSize == 0 {
		o.MaxFileSize = defaults.MaxFileSize
	}
	if o.MaxFiles == 0 {
		o.MaxFiles = defaults.MaxFiles
	}
	if o.MaxMemory == 0 {
		o.MaxMemory = defaults.MaxMemory
	}
	return o
}

// FromConfig builds Options from the UPLOAD_* environment settings.
func FromConfig(cfg config.UploadConfig) Options {
	return Options{Dest: cfg.Dest, MaxFileSize: cfg.MaxFileSize, MaxMemory: cfg.MaxMemory}
}

// ── Module ───────────────────────────────────────────────────────────────────

// Module is the declaration Register extends.
var Module = container.NewModule("UploadModule")

// Register returns the upload module configured with opts. It exports the
// options and the Service.
func Register(opts Options) *container.DynamicModule {
	return &container.DynamicModule{
		Module: Module,
		Providers: []container.Provider{
			container.FactoryProvider{
				Provide:    ModuleOptions,
				UseFactory: func() Options { return opts },
			},
			ServiceClass,
		},
		Exports: []any{ModuleOptions, ServiceClass},
	}
}

// Service exposes the module options to application code.
type Service struct {
	options Options
}

// ServiceClass builds a Service from the registered options, if any.
var ServiceClass = container.Injectable(NewService).Inject(0, ModuleOptions).Optional(0)

func NewService(opts Options) *Service { return &Service{options: opts} }

func (s *Service) Options() Options { return s.options }

// ── Storage ──────────────────────────────────────────────────────────────────

// accept turns the file headers of one field into uploaded files, enforcing
// the size limit and writing to disk when a destination is configured.
func (o Options) accept(field string, headers []*multipart.FileHeader) ([]*gohttp.UploadedFile, error) {
	files := make([]*gohttp.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		f := gohttp.NewUploadedFile(field, fh)
		if o.MaxFileSize > 0 && f.Size > o.MaxFileSize {
			return nil, gohttp.PayloadTooLarge(fmt.Sprintf("File too large: %s", f.OriginalName))
		}
		if o.Dest != "" {
			if err := o.store(f); err != nil {
				return nil, err
			}
		}
		files = append(files, f)
	}
	return files, nil
}

func (o Options) store(f *gohttp.UploadedFile) error {
	if err := os.MkdirAll(o.Dest, 0o755); err != nil {
		return fmt.Errorf("upload: create %s: %w", o.Dest, err)
	}
	src, err := f.Header.Open()
	if err != nil {
		return fmt.Errorf("upload: open %s: %w", f.OriginalName, err)
	}
	defer src.Close()

	path := filepath.Join(o.Dest, uuid.NewString()+filepath.Ext(f.OriginalName))
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("upload: create %s: %w", path, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("upload: write %s: %w", path, err)
	}
	f.Path = path
	return nil
}

// parse reads the multipart form. A request that is not multipart has no files.
func (o Options) parse(req *gohttp.Request) (map[string][]*multipart.FileHeader, error) {
	form, err := req.MultipartFiles(o.MaxMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, gohttp.BadRequest("Multipart: malformed request").WithCause(err)
	}
	if o.MaxFiles > 0 {
		n := 0
		for _, headers := range form {
			n += len(headers)
		}
		if n > o.MaxFiles {
			return nil, gohttp.PayloadTooLarge("Too many files")
		}
	}
	return form, nil
}

func unexpectedField(field string) error {
	return gohttp.BadRequest(fmt.Sprintf("Unexpected field: %s", field))
}
