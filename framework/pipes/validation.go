package pipes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/zengzjie/nest-source/framework/container"
	gohttp "github.com/zengzjie/nest-source/framework/http"
	"github.com/zengzjie/nest-source/framework/pipeline"
)

// ValidationPipeClass lets the validation pipe be bound through the container,
// for example as an AppPipe provider.
var ValidationPipeClass = container.Injectable(NewValidationPipe).Named("ValidationPipe")

// ValidationPipe decodes the value into the parameter's struct type and
// validates it with `validate` struct tags. Parameters that are not structs,
// and custom parameters such as uploaded files, pass through untouched.
//
//	type CreateCatDto struct {
//	    Name string `json:"name" validate:"required"`
//	    Age  int    `json:"age" validate:"gte=0"`
//	}
type ValidationPipe struct {
	validate *validator.Validate
}

func NewValidationPipe() *ValidationPipe {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return &ValidationPipe{validate: v}
}

// Validator exposes the underlying validator so custom rules can be registered.
func (p *ValidationPipe) Validator() *validator.Validate { return p.validate }

func (p *ValidationPipe) Transform(ctx context.Context, value any, meta pipeline.ArgumentMetadata) (any, error) {
	t := meta.Metatype
	if t == nil || meta.Type == pipeline.ParamTypeCustom {
		return value, nil
	}
	ptr := t.Kind() == reflect.Pointer
	if ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return value, nil
	}

	out := reflect.New(t)
	if rv := reflect.ValueOf(value); rv.IsValid() && rv.Type() == out.Type() {
		out = rv
	} else if rv.IsValid() && rv.Type() == t {
		out.Elem().Set(rv)
	} else {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, gohttp.BadRequest("Validation failed").WithCause(err)
		}
		if err := json.Unmarshal(raw, out.Interface()); err != nil {
			return nil, gohttp.BadRequest("Validation failed").WithCause(err)
		}
	}

	if err := p.validate.StructCtx(ctx, out.Interface()); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, gohttp.BadRequest("Validation failed").WithCause(err)
		}
		messages := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			messages = append(messages, message(fe))
		}
		return nil, gohttp.BadRequest(map[string]any{
			"statusCode": http.StatusBadRequest,
			"message":    messages,
			"error":      "Bad Request",
		}).WithCause(err)
	}

	if ptr {
		return out.Interface(), nil
	}
	return out.Elem().Interface(), nil
}

func message(fe validator.FieldError) string {
	field, param := fe.Field(), fe.Param()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	case "email":
		return field + " must be a valid email address"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "uuid4":
		return field + " must be a UUID"
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}
