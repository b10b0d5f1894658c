// Package validation wraps go-playground/validator with the custom rules
// the API uses: series codes, chart slugs, calendar dates and filenames.
package validation

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	apierrors "marketlens/internal/errors"
)

// Validator validates request structs against their struct tags.
type Validator struct {
	validate *validator.Validate
}

// New creates a Validator with the custom rules registered.
func New() *Validator {
	v := validator.New()

	v.RegisterValidation("date", isDate)
	v.RegisterValidation("seriescode", isSeriesCode)
	v.RegisterValidation("slug", isSlug)
	v.RegisterValidation("filename", isFilename)

	// Error messages use JSON field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validate: v}
}

// Struct validates v and converts failures into an APIError carrying
// per-field details.
func (val *Validator) Struct(v interface{}) error {
	err := val.validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs []apierrors.ValidationError
	for _, fe := range err.(validator.ValidationErrors) {
		fieldErrs = append(fieldErrs, apierrors.ValidationError{
			Field:   fe.Field(),
			Message: formatError(fe),
		})
	}
	return apierrors.NewValidationErrors(fieldErrs)
}

func formatError(fe validator.FieldError) string {
	field := fe.Field()
	param := fe.Param()

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "date":
		return fmt.Sprintf("%s must be a date in YYYY-MM-DD form", field)
	case "seriescode":
		return fmt.Sprintf("%s must be a valid series code", field)
	case "slug":
		return fmt.Sprintf("%s must contain only lowercase letters, digits and hyphens", field)
	case "filename":
		return fmt.Sprintf("%s must be a plain filename", field)
	case "uuid", "uuid4":
		return fmt.Sprintf("%s must be a valid UUID", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

func isDate(fl validator.FieldLevel) bool {
	_, err := time.Parse("2006-01-02", fl.Field().String())
	return err == nil
}

// isSeriesCode accepts codes like SPX, US10Y or SPX:PX_LAST.
func isSeriesCode(fl validator.FieldLevel) bool {
	code := fl.Field().String()
	if len(code) == 0 || len(code) > 64 {
		return false
	}
	colons := 0
	for i, ch := range code {
		switch {
		case ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9', ch == '_', ch == '.':
		case ch == ':':
			colons++
			if colons > 1 || i == 0 || i == len(code)-1 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func isSlug(fl validator.FieldLevel) bool {
	slug := fl.Field().String()
	if len(slug) == 0 || len(slug) > 64 {
		return false
	}
	for i, ch := range slug {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9':
		case ch == '-':
			if i == 0 || i == len(slug)-1 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// isFilename rejects path traversal and separators.
func isFilename(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if name == "" || len(name) > 255 {
		return false
	}
	return !strings.Contains(name, "..") &&
		!strings.ContainsAny(name, "/\\")
}
