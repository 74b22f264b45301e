package core

// validation.go provides field validators.
//
// A Validator sees the raw string exactly as the reader produced it, before
// any clean function or coercion runs. Validators run in declared order and
// the first rejection ends evaluation of the field.

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a rejected field value.
type ValidationError struct {
	Field   string // Target attribute
	Value   string // The rejected raw value
	Message string // Human-readable reason
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// Validator checks a raw value and returns a non-nil error to reject it.
type Validator func(value string) error

var validate = validator.New()

// Tag validates with go-playground/validator tag syntax, e.g. "email",
// "required,max=64" or "omitempty,uuid4".
func Tag(tag string) Validator {
	return func(value string) error {
		err := validate.Var(value, tag)
		if err == nil {
			return nil
		}
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			fe := errs[0]
			if fe.Param() != "" {
				return ValidationError{Value: value, Message: fmt.Sprintf("failed %q (%s) check", fe.Tag(), fe.Param())}
			}
			return ValidationError{Value: value, Message: fmt.Sprintf("failed %q check", fe.Tag())}
		}
		return err
	}
}

// NotEmpty rejects blank values.
func NotEmpty(value string) error {
	if strings.TrimSpace(value) == "" {
		return ValidationError{Value: value, Message: "required field is empty"}
	}
	return nil
}

// MaxLen rejects values longer than n runes.
func MaxLen(n int) Validator {
	return func(value string) error {
		if utf8.RuneCountInString(value) > n {
			return ValidationError{Value: value, Message: fmt.Sprintf("longer than %d characters", n)}
		}
		return nil
	}
}

// OneOf accepts only the listed values, ignoring case and surrounding space.
func OneOf(values ...string) Validator {
	return func(value string) error {
		v := strings.TrimSpace(value)
		for _, allowed := range values {
			if strings.EqualFold(allowed, v) {
				return nil
			}
		}
		return ValidationError{Value: value, Message: fmt.Sprintf("value must be one of: %s", strings.Join(values, ", "))}
	}
}

// Matches accepts values matching re.
func Matches(re *regexp.Regexp) Validator {
	return func(value string) error {
		if !re.MatchString(value) {
			return ValidationError{Value: value, Message: fmt.Sprintf("does not match %s", re)}
		}
		return nil
	}
}
