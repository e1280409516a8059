package common

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidationError is one failed rule on one request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationRule checks a single field value. It returns nil when the value passes.
type ValidationRule func(fieldName string, value any) *ValidationError

// Validator collects rule failures across the fields of one request.
type Validator struct {
	errors []ValidationError
}

func NewValidator() *Validator {
	return &Validator{}
}

// Field applies rules to value in order. Every failure is kept.
func (v *Validator) Field(fieldName string, value any, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if err := rule(fieldName, value); err != nil {
			v.errors = append(v.errors, *err)
		}
	}
	return v
}

func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// Error joins the failures as "field: message; field: message", or nil.
func (v *Validator) Error() error {
	if !v.HasErrors() {
		return nil
	}
	return InvalidInputError(v.message())
}

func (v *Validator) message() string {
	parts := make([]string, len(v.errors))
	for i, err := range v.errors {
		parts[i] = err.Error()
	}
	return strings.Join(parts, "; ")
}

// ValidateAndReturnError returns an invalid-input AppError when any rule failed.
func ValidateAndReturnError(v *Validator) error {
	return v.Error()
}

// Required rejects nil, blank strings and nil or blank *string values.
func Required(fieldName string, value any) *ValidationError {
	missing := value == nil
	switch t := value.(type) {
	case string:
		missing = strings.TrimSpace(t) == ""
	case *string:
		missing = t == nil || strings.TrimSpace(*t) == ""
	}
	if missing {
		return &ValidationError{Field: fieldName, Message: "is required"}
	}
	return nil
}

// MaxLen bounds a string or *string by rune count. Chat messages are capped this way.
func MaxLen(max int) ValidationRule {
	return func(fieldName string, value any) *ValidationError {
		var s string
		switch t := value.(type) {
		case string:
			s = t
		case *string:
			if t == nil {
				return nil
			}
			s = *t
		default:
			return nil
		}
		if utf8.RuneCountInString(s) > max {
			return &ValidationError{Field: fieldName, Message: fmt.Sprintf("must be at most %d characters", max)}
		}
		return nil
	}
}

// IntRange bounds an integer field, inclusive. History windows in minutes use it.
func IntRange(min, max int) ValidationRule {
	return func(fieldName string, value any) *ValidationError {
		n, ok := value.(int)
		if !ok {
			return &ValidationError{Field: fieldName, Message: "must be an integer"}
		}
		if n < min || n > max {
			return &ValidationError{Field: fieldName, Message: fmt.Sprintf("must be between %d and %d", min, max)}
		}
		return nil
	}
}

// OneOf accepts only the listed string values, such as billing plan names.
func OneOf(allowed ...string) ValidationRule {
	return func(fieldName string, value any) *ValidationError {
		s, _ := value.(string)
		for _, a := range allowed {
			if s == a {
				return nil
			}
		}
		return &ValidationError{Field: fieldName, Message: "must be one of " + strings.Join(allowed, ", ")}
	}
}
