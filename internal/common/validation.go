package common

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

var phoneRegex = regexp.MustCompile(`^0\d{9,10}$`)

// ValidationError is one failed rule for one request field.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// Validator collects rule failures across request fields.
type Validator struct {
	errors []ValidationError
}

func NewValidator() *Validator {
	return &Validator{errors: make([]ValidationError, 0)}
}

// Field runs every rule against value and keeps all failures.
func (v *Validator) Field(fieldName string, value interface{}, rules ...ValidationRule) *Validator {
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

// ErrorMessage joins all failures with "; ", or "" when there are none.
func (v *Validator) ErrorMessage() string {
	messages := make([]string, 0, len(v.errors))
	for _, err := range v.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// ValidationRule checks one field value. Text rules skip values that are not strings.
type ValidationRule func(fieldName string, value interface{}) *ValidationError

func fail(fieldName string, value interface{}, msg string) *ValidationError {
	return &ValidationError{Field: fieldName, Value: value, Message: msg}
}

func text(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case *string:
		if v != nil {
			return *v, true
		}
	}
	return "", false
}

// Required rejects nil, nil string pointers and blank strings.
func Required(fieldName string, value interface{}) *ValidationError {
	if value == nil {
		return fail(fieldName, value, "is required")
	}
	if p, ok := value.(*string); ok && p == nil {
		return fail(fieldName, value, "is required")
	}
	if s, ok := text(value); ok && strings.TrimSpace(s) == "" {
		return fail(fieldName, value, "is required")
	}
	return nil
}

// MinLength counts runes, so Hangul syllables count as one character each.
func MinLength(fieldName string, value interface{}, min int) *ValidationError {
	if s, ok := text(value); ok && utf8.RuneCountInString(s) < min {
		return fail(fieldName, value, fmt.Sprintf("must be at least %d characters", min))
	}
	return nil
}

func MaxLength(fieldName string, value interface{}, max int) *ValidationError {
	if s, ok := text(value); ok && utf8.RuneCountInString(s) > max {
		return fail(fieldName, value, fmt.Sprintf("must be at most %d characters", max))
	}
	return nil
}

func MinLen(min int) ValidationRule {
	return func(fieldName string, value interface{}) *ValidationError {
		return MinLength(fieldName, value, min)
	}
}

func MaxLen(max int) ValidationRule {
	return func(fieldName string, value interface{}) *ValidationError {
		return MaxLength(fieldName, value, max)
	}
}

func UUID(fieldName string, value interface{}) *ValidationError {
	s, ok := text(value)
	if !ok {
		return fail(fieldName, value, "must be a string")
	}
	if _, err := uuid.Parse(s); err != nil {
		return fail(fieldName, value, "must be a valid UUID")
	}
	return nil
}

// Phone accepts Korean phone numbers with 10 or 11 digits once dashes and spaces are removed.
func Phone(fieldName string, value interface{}) *ValidationError {
	s, ok := text(value)
	if !ok {
		return nil
	}
	if !phoneRegex.MatchString(strings.NewReplacer("-", "", " ", "").Replace(s)) {
		return fail(fieldName, value, "must be a 10 or 11 digit phone number")
	}
	return nil
}

// ValidateAndReturnError turns collected failures into a gRPC InvalidArgument error.
func ValidateAndReturnError(validator *Validator) error {
	if validator.HasErrors() {
		return InvalidArgumentError(validator.ErrorMessage())
	}
	return nil
}
