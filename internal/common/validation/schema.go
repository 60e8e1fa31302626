package validation

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their job-variable name, not the Go field name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Struct validates v against its `validate` tags.
func Struct(v interface{}) *ValidationResult {
	err := validate.Struct(v)
	if err == nil {
		return &ValidationResult{Valid: true}
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "",
				Message: err.Error(),
				Code:    "INVALID_INPUT",
			}},
		}
	}

	errors := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		errors = append(errors, ValidationError{
			Field:   fieldPath(fe),
			Message: message(fe),
			Code:    code(fe.Tag()),
		})
	}
	return &ValidationResult{Valid: false, Errors: errors}
}

// fieldPath drops the top-level struct name from the namespace ("Input.patch.title" -> "patch.title").
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required field missing"
	case "oneof":
		return fmt.Sprintf("value must be one of [%s]", fe.Param())
	case "min":
		return fmt.Sprintf("value must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("value must be at most %s", fe.Param())
	case "gte", "ltefield", "gtefield":
		return fmt.Sprintf("value violates %s %s", fe.Tag(), fe.Param())
	case "uuid", "uuid4":
		return "value must be a UUID"
	case "len":
		return fmt.Sprintf("value must have length %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func code(tag string) string {
	switch tag {
	case "required":
		return "REQUIRED_FIELD_MISSING"
	case "oneof":
		return "ENUM_VIOLATION"
	case "min", "gte", "gtefield":
		return "MIN_VIOLATION"
	case "max", "lte", "ltefield":
		return "MAX_VIOLATION"
	case "uuid", "uuid4":
		return "PATTERN_VIOLATION"
	default:
		return "INVALID_VALUE"
	}
}

// GetErrorMessages returns a slice of error messages for easy display
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors returns true if validation failed
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid
}

// Error joins all messages; used as the details of an INVALID_INPUT error.
func (vr *ValidationResult) Error() string {
	return strings.Join(vr.GetErrorMessages(), "; ")
}
