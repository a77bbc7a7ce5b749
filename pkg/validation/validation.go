// Package validation normalizes and checks caller input before it reaches
// the store.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"

	"github.com/Web-Star-Studio/noturno-kimi/pkg/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their JSON names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Clean trims surrounding whitespace and normalizes s to NFC
func Clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// CleanOptional cleans *p. A value that is empty after cleaning becomes
// nil, which the store persists as unset.
func CleanOptional(p *string) *string {
	if p == nil {
		return nil
	}
	v := Clean(*p)
	if v == "" {
		return nil
	}
	return &v
}

// OptionalString turns a cleaned value into a nullable field
func OptionalString(s string) *string {
	s = Clean(s)
	if s == "" {
		return nil
	}
	return &s
}

// CleanKeywords trims every keyword and drops the blank ones
func CleanKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = Clean(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// Struct validates s against its `validate` tags
func Struct(s any) error {
	return translate(validate.Struct(s))
}

// Var validates a single value. field names the value in the message.
func Var(field string, value any, tag string) error {
	err := validate.Var(value, tag)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return domain.NewValidationError(message(field, verrs[0]))
	}
	return domain.NewInternalError(err)
}

// Required rejects a value that is empty after cleaning
func Required(field, value string) error {
	if Clean(value) == "" {
		return domain.NewValidationError(fmt.Sprintf("Campo %s é obrigatório", field))
	}
	return nil
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return domain.NewValidationError(message(verrs[0].Field(), verrs[0]))
	}
	return domain.NewInternalError(err)
}

func message(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("Campo %s é obrigatório", field)
	case "email":
		return fmt.Sprintf("Campo %s deve ser um email válido", field)
	case "url":
		return fmt.Sprintf("Campo %s deve ser uma URL válida", field)
	case "oneof":
		return fmt.Sprintf("Campo %s deve ser um de: %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("Campo %s excede o limite de %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("Campo %s deve ter no mínimo %s item(ns)", field, fe.Param())
	}
	return fmt.Sprintf("Campo %s inválido", field)
}
