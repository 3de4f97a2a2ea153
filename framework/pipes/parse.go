package pipes

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"

	"github.com/google/uuid"

	gohttp "github.com/zengzjie/nest-source/framework/http"
	"github.com/zengzjie/nest-source/framework/pipeline"
)

var integer = regexp.MustCompile(`^-?\d+$`)

// ── ParseIntPipe ─────────────────────────────────────────────────────────────

// ParseIntPipe converts a decimal string to an integer. The result takes the
// parameter's integer type when it has one, int otherwise.
type ParseIntPipe struct{}

func ParseInt() *ParseIntPipe { return &ParseIntPipe{} }

func (p *ParseIntPipe) Transform(_ context.Context, value any, meta pipeline.ArgumentMetadata) (any, error) {
	if value == nil {
		return nil, nil
	}
	var n int64
	switch v := value.(type) {
	case string:
		if !integer.MatchString(v) {
			return nil, numericExpected()
		}
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, numericExpected()
		}
		n = parsed
	case float64:
		if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
			return nil, numericExpected()
		}
		n = int64(v)
	case int:
		n = int64(v)
	case int64:
		n = v
	case int32:
		n = int64(v)
	default:
		return nil, numericExpected()
	}
	return toInteger(n, meta.Metatype)
}

// toInteger converts n to the parameter's integer type, int when it has
// none. Values the type cannot hold are rejected.
func toInteger(n int64, t reflect.Type) (any, error) {
	if t == nil || !isInt(t.Kind()) && !isUint(t.Kind()) {
		t = reflect.TypeOf((*int)(nil)).Elem()
	}
	zero := reflect.Zero(t)
	if isUint(t.Kind()) {
		if n < 0 || zero.OverflowUint(uint64(n)) {
			return nil, numericExpected()
		}
	} else if zero.OverflowInt(n) {
		return nil, numericExpected()
	}
	return reflect.ValueOf(n).Convert(t).Interface(), nil
}

// ── ParseFloatPipe ───────────────────────────────────────────────────────────

// ParseFloatPipe converts a numeric string to a float.
type ParseFloatPipe struct{}

func ParseFloat() *ParseFloatPipe { return &ParseFloatPipe{} }

func (p *ParseFloatPipe) Transform(_ context.Context, value any, meta pipeline.ArgumentMetadata) (any, error) {
	if value == nil {
		return nil, nil
	}
	var f float64
	switch v := value.(type) {
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsInf(parsed, 0) || math.IsNaN(parsed) {
			return nil, numericExpected()
		}
		f = parsed
	case float64:
		f = v
	case int:
		f = float64(v)
	default:
		return nil, numericExpected()
	}
	if t := meta.Metatype; t != nil && isFloat(t.Kind()) && reflect.Zero(t).OverflowFloat(f) {
		return nil, numericExpected()
	}
	return convertNumber(reflect.ValueOf(f), meta.Metatype, isFloat), nil
}

func numericExpected() error {
	return gohttp.BadRequest("Validation failed (numeric string is expected)")
}

func isInt(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUint(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uint64
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

func convertNumber(v reflect.Value, t reflect.Type, ok func(reflect.Kind) bool) any {
	if t != nil && ok(t.Kind()) {
		return v.Convert(t).Interface()
	}
	return v.Interface()
}

// ── ParseBoolPipe ────────────────────────────────────────────────────────────

// ParseBoolPipe accepts "true", "false" or a bool. A missing value is false.
type ParseBoolPipe struct{}

func ParseBool() *ParseBoolPipe { return &ParseBoolPipe{} }

func (p *ParseBoolPipe) Transform(_ context.Context, value any, _ pipeline.ArgumentMetadata) (any, error) {
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		switch v {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return nil, gohttp.BadRequest("Validation failed (boolean string is expected)")
}

// ── ParseEnumPipe ────────────────────────────────────────────────────────────

// ParseEnumPipe accepts only the listed values and returns the matching
// member, so a string input can become a typed constant.
type ParseEnumPipe struct {
	values []any
}

// ParseEnum panics when no values are given.
//
//	pipes.ParseEnum(RoleAdmin, RoleUser)
func ParseEnum(values ...any) *ParseEnumPipe {
	if len(values) == 0 {
		panic(`pipes: ParseEnum requires the enum values to validate against`)
	}
	return &ParseEnumPipe{values: values}
}

func (p *ParseEnumPipe) Transform(_ context.Context, value any, _ pipeline.ArgumentMetadata) (any, error) {
	if value == nil {
		return nil, nil
	}
	in := fmt.Sprint(value)
	for _, member := range p.values {
		if member == value || fmt.Sprint(member) == in {
			return member, nil
		}
	}
	return nil, gohttp.BadRequest("Validation failed (enum string is expected)")
}

// ── ParseUUIDPipe ────────────────────────────────────────────────────────────

// ParseUUIDPipe accepts a UUID string of the given version. Version 0
// accepts any version.
type ParseUUIDPipe struct {
	Version int
}

// ParseUUID checks for version 4 unless a version is given.
func ParseUUID(version ...int) *ParseUUIDPipe {
	v := 4
	if len(version) > 0 {
		v = version[0]
	}
	return &ParseUUIDPipe{Version: v}
}

func (p *ParseUUIDPipe) Transform(_ context.Context, value any, _ pipeline.ArgumentMetadata) (any, error) {
	if value == nil {
		return nil, nil
	}
	s, ok := value.(string)
	if !ok {
		return nil, uuidExpected()
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, uuidExpected()
	}
	if p.Version != 0 && int(id.Version()) != p.Version {
		return nil, uuidExpected()
	}
	return s, nil
}

func uuidExpected() error {
	return gohttp.BadRequest("Validation failed (UUID string is expected)")
}

// ── DefaultValuePipe ─────────────────────────────────────────────────────────

// DefaultValuePipe replaces a missing value. Place it before a parser.
type DefaultValuePipe struct {
	Value any
}

func DefaultValue(v any) *DefaultValuePipe { return &DefaultValuePipe{Value: v} }

func (p *DefaultValuePipe) Transform(_ context.Context, value any, _ pipeline.ArgumentMetadata) (any, error) {
	if value == nil {
		return p.Value, nil
	}
	if f, ok := value.(float64); ok && math.IsNaN(f) {
		return p.Value, nil
	}
	return value, nil
}
