// Package validation holds the file validators used by the file parsing pipe.
//
//	pipes.NewParseFilePipe(
//	    validation.MaxFileSize{MaxSize: 1 << 20},
//	    validation.FileType{Pattern: "image/(png|jpeg)"},
//	)
package validation

import (
	"fmt"
	"regexp"

	gohttp "github.com/zengzjie/nest-source/framework/http"
)

// FileValidator checks one uploaded file.
type FileValidator interface {
	IsValid(f *gohttp.UploadedFile) bool
	ErrorMessage(f *gohttp.UploadedFile) string
}

// ── MaxFileSize ──────────────────────────────────────────────────────────────

// MaxFileSize rejects files larger than MaxSize bytes.
type MaxFileSize struct {
	MaxSize int64
	Message string
}

func (v MaxFileSize) IsValid(f *gohttp.UploadedFile) bool {
	return f != nil && f.Size <= v.MaxSize
}

func (v MaxFileSize) ErrorMessage(f *gohttp.UploadedFile) string {
	if v.Message != "" {
		return v.Message
	}
	return fmt.Sprintf("Validation failed (expected size is less than %d)", v.MaxSize)
}

// ── FileType ─────────────────────────────────────────────────────────────────

// FileType accepts files whose MIME type matches Pattern, a regular expression
// or a plain MIME type.
type FileType struct {
	Pattern string
	Message string
}

func (v FileType) IsValid(f *gohttp.UploadedFile) bool {
	if f == nil || f.MIMEType == "" {
		return false
	}
	re, err := regexp.Compile(v.Pattern)
	if err != nil {
		return f.MIMEType == v.Pattern
	}
	return re.MatchString(f.MIMEType)
}

func (v FileType) ErrorMessage(f *gohttp.UploadedFile) string {
	if v.Message != "" {
		return v.Message
	}
	return fmt.Sprintf("Validation failed (expected type is %s)", v.Pattern)
}
