package pipes

import (
	"context"

	gohttp "github.com/zengzjie/nest-source/framework/http"
	"github.com/zengzjie/nest-source/framework/http/validation"
	"github.com/zengzjie/nest-source/framework/pipeline"
)

// ParseFilePipe checks uploaded files against validators. It accepts a
// single file, a slice of files, or the per-field map of a multi-field
// upload, and returns the value unchanged.
type ParseFilePipe struct {
	Validators     []validation.FileValidator
	FileIsRequired bool
}

// ParseFile requires a file and runs validators on each one.
func ParseFile(validators ...validation.FileValidator) *ParseFilePipe {
	return &ParseFilePipe{Validators: validators, FileIsRequired: true}
}

func (p *ParseFilePipe) Transform(_ context.Context, value any, _ pipeline.ArgumentMetadata) (any, error) {
	files := collect(value)
	if len(files) == 0 {
		if p.FileIsRequired {
			return nil, gohttp.BadRequest("File is required")
		}
		return value, nil
	}
	for _, f := range files {
		for _, v := range p.Validators {
			if !v.IsValid(f) {
				return nil, gohttp.BadRequest(v.ErrorMessage(f))
			}
		}
	}
	return value, nil
}

func collect(value any) []*gohttp.UploadedFile {
	switch v := value.(type) {
	case *gohttp.UploadedFile:
		if v != nil {
			return []*gohttp.UploadedFile{v}
		}
	case []*gohttp.UploadedFile:
		return v
	case map[string][]*gohttp.UploadedFile:
		var all []*gohttp.UploadedFile
		for _, files := range v {
			all = append(all, files...)
		}
		return all
	}
	return nil
}
