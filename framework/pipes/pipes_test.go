package pipes

import (
	"context"
	"net/http"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gohttp "github.com/zengzjie/nest-source/framework/http"
	"github.com/zengzjie/nest-source/framework/http/validation"
	"github.com/zengzjie/nest-source/framework/pipeline"
)

var ctx = context.Background()

func meta[T any]() pipeline.ArgumentMetadata {
	return pipeline.ArgumentMetadata{Type: pipeline.ParamTypeParam, Metatype: reflect.TypeOf((*T)(nil)).Elem()}
}

func assertBadRequest(t *testing.T, err error, msg string) {
	t.Helper()
	he, ok := gohttp.AsHTTPException(err)
	require.True(t, ok, "expected HTTPException, got %v", err)
	assert.Equal(t, http.StatusBadRequest, he.Status())
	if msg != "" {
		assert.Equal(t, msg, he.Message())
	}
}

func TestParseInt(t *testing.T) {
	p := ParseInt()

	v, err := p.Transform(ctx, "42", meta[int]())
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = p.Transform(ctx, "-7", meta[int64]())
	require.NoError(t, err)
	assert.Equal(t, int64(-7), v)

	v, err = p.Transform(ctx, float64(3), meta[any]())
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	v, err = p.Transform(ctx, nil, meta[int]())
	require.NoError(t, err)
	assert.Nil(t, v)

	for _, bad := range []any{"abc", "4.2", "", " 1", float64(1.5), true} {
		_, err := p.Transform(ctx, bad, meta[int]())
		assertBadRequest(t, err, "Validation failed (numeric string is expected)")
	}
}

func TestParseIntTargetRange(t *testing.T) {
	p := ParseInt()
	cases := []struct {
		name  string
		value any
		meta  pipeline.ArgumentMetadata
		want  any
		fails bool
	}{
		{name: "int8 in range", value: "-128", meta: meta[int8](), want: int8(-128)},
		{name: "int8 overflow", value: "300", meta: meta[int8](), fails: true},
		{name: "int16 overflow", value: float64(40000), meta: meta[int16](), fails: true},
		{name: "uint", value: "7", meta: meta[uint](), want: uint(7)},
		{name: "uint8 max", value: "255", meta: meta[uint8](), want: uint8(255)},
		{name: "uint8 overflow", value: "256", meta: meta[uint8](), fails: true},
		{name: "uint negative", value: "-1", meta: meta[uint32](), fails: true},
		{name: "int64 overflow", value: "9223372036854775808", meta: meta[int64](), fails: true},
		{name: "huge float", value: float64(1e19), meta: meta[int64](), fails: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := p.Transform(ctx, tc.value, tc.meta)
			if tc.fails {
				assertBadRequest(t, err, "Validation failed (numeric string is expected)")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, v)
		})
	}
}

func TestParseFloatTargetRange(t *testing.T) {
	_, err := ParseFloat().Transform(ctx, "1e300", meta[float32]())
	assertBadRequest(t, err, "Validation failed (numeric string is expected)")

	v, err := ParseFloat().Transform(ctx, "1.5", meta[float32]())
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), v)
}

func TestParseFloat(t *testing.T) {
	p := ParseFloat()

	v, err := p.Transform(ctx, "1.25", meta[float64]())
	require.NoError(t, err)
	assert.Equal(t, 1.25, v)

	v, err = p.Transform(ctx, "2", meta[float32]())
	require.NoError(t, err)
	assert.Equal(t, float32(2), v)

	_, err = p.Transform(ctx, "one", meta[float64]())
	assertBadRequest(t, err, "Validation failed (numeric string is expected)")
}

func TestParseBool(t *testing.T) {
	p := ParseBool()
	cases := map[any]bool{"true": true, "false": false, true: true, nil: false}
	for in, want := range cases {
		v, err := p.Transform(ctx, in, meta[bool]())
		require.NoError(t, err)
		assert.Equal(t, want, v, "input %v", in)
	}

	_, err := p.Transform(ctx, "yes", meta[bool]())
	assertBadRequest(t, err, "Validation failed (boolean string is expected)")
}

type role string

const (
	roleAdmin role = "admin"
	roleUser  role = "user"
)

func TestParseEnum(t *testing.T) {
	p := ParseEnum(roleAdmin, roleUser)

	v, err := p.Transform(ctx, "admin", meta[role]())
	require.NoError(t, err)
	assert.Equal(t, roleAdmin, v)

	_, err = p.Transform(ctx, "root", meta[role]())
	assertBadRequest(t, err, "Validation failed (enum string is expected)")

	assert.Panics(t, func() { ParseEnum() })
}

func TestParseUUID(t *testing.T) {
	id := uuid.NewString()

	v, err := ParseUUID().Transform(ctx, id, meta[string]())
	require.NoError(t, err)
	assert.Equal(t, id, v)

	_, err = ParseUUID().Transform(ctx, "not-a-uuid", meta[string]())
	assertBadRequest(t, err, "Validation failed (UUID string is expected)")

	_, err = ParseUUID(3).Transform(ctx, id, meta[string]())
	assertBadRequest(t, err, "")

	_, err = ParseUUID(0).Transform(ctx, id, meta[string]())
	assert.NoError(t, err)
}

func TestDefaultValueBeforeParser(t *testing.T) {
	v, err := pipeline.RunPipes(ctx, nil, meta[int](), []pipeline.Pipe{DefaultValue("10"), ParseInt()})
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	v, err = pipeline.RunPipes(ctx, "3", meta[int](), []pipeline.Pipe{DefaultValue("10"), ParseInt()})
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

// ── ValidationPipe ───────────────────────────────────────────────────────────

type createCatDto struct {
	Name string `json:"name" validate:"required"`
	Age  int    `json:"age" validate:"gte=0,lte=30"`
}

func TestValidationPipeDecodesStruct(t *testing.T) {
	p := NewValidationPipe()

	v, err := p.Transform(ctx, map[string]any{"name": "Tom", "age": float64(3)}, meta[createCatDto]())
	require.NoError(t, err)
	assert.Equal(t, createCatDto{Name: "Tom", Age: 3}, v)

	v, err = p.Transform(ctx, map[string]any{"name": "Tom"}, meta[*createCatDto]())
	require.NoError(t, err)
	assert.Equal(t, &createCatDto{Name: "Tom"}, v)
}

func TestValidationPipeReportsFields(t *testing.T) {
	_, err := NewValidationPipe().Transform(ctx, map[string]any{"age": float64(99)}, meta[createCatDto]())

	he, ok := gohttp.AsHTTPException(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, he.Status())
	body := he.Body().(map[string]any)
	assert.ElementsMatch(t, []string{"name is required", "age must be less than or equal to 30"}, body["message"])
}

func TestValidationPipeIgnoresScalars(t *testing.T) {
	v, err := NewValidationPipe().Transform(ctx, "raw", meta[string]())
	require.NoError(t, err)
	assert.Equal(t, "raw", v)
}

func TestValidationPipeSkipsCustomParams(t *testing.T) {
	file := &gohttp.UploadedFile{FieldName: "photo"}
	m := pipeline.ArgumentMetadata{Type: pipeline.ParamTypeCustom, Metatype: reflect.TypeOf((**gohttp.UploadedFile)(nil)).Elem()}
	v, err := NewValidationPipe().Transform(ctx, file, m)
	require.NoError(t, err)
	assert.Same(t, file, v)
}

func TestValidationPipeRejectsMismatchedShape(t *testing.T) {
	_, err := NewValidationPipe().Transform(ctx, map[string]any{"name": 5}, meta[createCatDto]())
	assertBadRequest(t, err, "Validation failed")
}

// ── ParseFilePipe ────────────────────────────────────────────────────────────

func TestParseFile(t *testing.T) {
	small := &gohttp.UploadedFile{FieldName: "file", Size: 10, MIMEType: "image/png"}
	big := &gohttp.UploadedFile{FieldName: "file", Size: 5000, MIMEType: "image/png"}
	p := ParseFile(validation.MaxFileSize{MaxSize: 1000}, validation.FileType{Pattern: "image/png"})

	v, err := p.Transform(ctx, small, pipeline.ArgumentMetadata{})
	require.NoError(t, err)
	assert.Same(t, small, v)

	_, err = p.Transform(ctx, []*gohttp.UploadedFile{small, big}, pipeline.ArgumentMetadata{})
	assertBadRequest(t, err, "Validation failed (expected size is less than 1000)")

	_, err = p.Transform(ctx, nil, pipeline.ArgumentMetadata{})
	assertBadRequest(t, err, "File is required")

	optional := &ParseFilePipe{}
	v, err = optional.Transform(ctx, nil, pipeline.ArgumentMetadata{})
	require.NoError(t, err)
	assert.Nil(t, v)
}
