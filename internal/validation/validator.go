// Package validation validates staged recipes and API inputs using the validator/v10 library.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	domainerrors "github.com/clipbox/clipbox/internal/errors"
)

// Validator wraps go-playground/validator and reports failures as coded
// validation errors. It is safe for concurrent use.
type Validator struct {
	v *validator.Validate
}

// New creates a Validator. Field paths in errors use JSON names, and the
// "basename" tag accepts a plain file name with no directory part.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("basename", isBaseName)
	return &Validator{v: v}
}

func jsonName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return fld.Name
	}
	return name
}

// isBaseName rejects names that could escape a clip's staging directory.
func isBaseName(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`+"\x00")
}

// Validate validates a struct and returns a domain validation error whose
// details map field namespaces to messages.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

func (v *Validator) formatError(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err
	}
	fields := make(map[string]string, len(errs))
	for _, e := range errs {
		fields[fieldPath(e)] = friendlyMessage(e)
	}
	return domainerrors.ValidationWithDetails("validation failed", fields)
}

// fieldPath drops the root struct name: "ClipRecipe.items[0].image_id" → "items[0].image_id".
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return e.Field()
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "url":
		return "must be a valid URL"
	case "uuid":
		return "must be a valid UUID"
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	case "unique":
		return "must not contain duplicates"
	case "basename":
		return "must be a file name without directories"
	default:
		return "is invalid"
	}
}
