// Package validation provides request validation utilities using the validator/v10 library.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/gwentdecks/decks-server/internal/domain"
	domainerrors "github.com/gwentdecks/decks-server/internal/errors"
)

// Validator wraps go-playground/validator with domain error conversion.
type Validator struct {
	v *validator.Validate
}

// New creates a validator configured for our domain.
//
// Custom tags:
//   - faction: the value is a stored faction name ("Monster", "Northern Realms", ...)
//   - pathkey: the value can be used as one segment of a tree path
func New() *Validator {
	v := validator.New()

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("json")
		if name == "" {
			return fld.Name
		}
		// Remove options like omitempty, -
		for i := range len(name) {
			if name[i] == ',' {
				return name[:i]
			}
		}
		return name
	})

	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("faction", func(fl validator.FieldLevel) bool {
		_, ok := domain.ParseFaction(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("pathkey", func(fl validator.FieldLevel) bool {
		return IsPathKey(fl.Field().String())
	})

	return &Validator{v: v}
}

// IsPathKey reports whether s is usable as a single tree path segment.
func IsPathKey(s string) bool {
	if s == "" {
		return false
	}
	return !strings.ContainsFunc(s, func(r rune) bool {
		return r < 0x20 || r == 0x7f || strings.ContainsRune("/.#$[]", r)
	})
}

// Validate validates a struct and returns a domain error.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

// formatError converts validator errors to domain errors.
func (v *Validator) formatError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	fieldErrors := make(map[string]string)
	for _, e := range validationErrs {
		fieldErrors[e.Field()] = v.friendlyMessage(e)
	}

	return domainerrors.ValidationWithDetails("validation failed", fieldErrors)
}

func (v *Validator) friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "oneof":
		return "must be one of: " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "faction":
		names := make([]string, len(domain.AllFactions))
		for i, f := range domain.AllFactions {
			names[i] = string(f)
		}
		return "must be one of: " + strings.Join(names, ", ")
	case "pathkey":
		return "must not be empty or contain / . # $ [ ]"
	default:
		return "is invalid"
	}
}
