package http

import (
	"mime/multipart"
	"os"
)

// UploadedFile is one file accepted by an upload interceptor.
type UploadedFile struct {
	FieldName    string
	OriginalName string
	MIMEType     string
	Size         int64
	// Path is set when the file was stored on disk.
	Path   string
	Header *multipart.FileHeader
}

// NewUploadedFile describes a multipart file header.
func NewUploadedFile(field string, fh *multipart.FileHeader) *UploadedFile {
	return &UploadedFile{
		FieldName:    field,
		OriginalName: fh.Filename,
		MIMEType:     fh.Header.Get("Content-Type"),
		Size:         fh.Size,
		Header:       fh,
	}
}

// Open returns the file contents, from disk when stored there.
func (f *UploadedFile) Open() (multipart.File, error) {
	if f.Path != "" {
		return os.Open(f.Path)
	}
	return f.Header.Open()
}
