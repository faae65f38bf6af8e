package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	pkgerrors "github.com/radarprecios/radarprecios-backend/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, key := range []string{"json", "form"} {
			tag := strings.SplitN(f.Tag.Get(key), ",", 2)[0]
			if tag == "-" {
				return ""
			}
			if tag != "" {
				return tag
			}
		}
		return f.Name
	})
	return v
}

// DecodeJSONBody decodes a strict JSON body and validates it.
func DecodeJSONBody(r *http.Request, dest any) error {
	return decodeJSON(r, dest, true)
}

// DecodeJSONBodyAllowUnknown decodes a JSON body ignoring fields dest does
// not declare. Partial updates use it so clients can echo whole rows back.
func DecodeJSONBodyAllowUnknown(r *http.Request, dest any) error {
	return decodeJSON(r, dest, false)
}

func decodeJSON(r *http.Request, dest any, strict bool) error {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()
	decoder := json.NewDecoder(r.Body)
	if strict {
		decoder.DisallowUnknownFields()
	}
	if err := decoder.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return pkgerrors.New(pkgerrors.CodeValidation, "request body is required")
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").
			WithDetails(map[string]any{"error": err.Error()})
	}
	return ValidateStruct(dest)
}

// ValidateStruct runs the validate tags of v.
func ValidateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

// formatValidationErrors names missing fields in the message itself, since
// clients show the message verbatim.
func formatValidationErrors(err error) *pkgerrors.Error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}

	details := map[string]string{}
	var missing, invalid []string
	for _, fieldErr := range errs {
		details[fieldErr.Field()] = validationMessage(fieldErr)
		if fieldErr.Tag() == "required" {
			missing = append(missing, fieldErr.Field())
		} else {
			invalid = append(invalid, fieldErr.Field())
		}
	}
	sort.Strings(missing)
	sort.Strings(invalid)

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid fields: "+strings.Join(invalid, ", "))
	}
	return pkgerrors.New(pkgerrors.CodeValidation, strings.Join(parts, "; ")).WithDetails(details)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "email":
		return "must be a valid email"
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	}
	return "is invalid"
}
