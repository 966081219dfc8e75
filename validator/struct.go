package validator

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(tagName)
}

// tagName reports fields by their json name, falling back to mapstructure
func tagName(f reflect.StructField) string {
	for _, key := range []string{"json", "mapstructure"} {
		name := strings.Split(f.Tag.Get(key), ",")[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

var errorMessages = map[string]string{
	"required":    "The field '%s' is required.",
	"min":         "The field '%s' must be at least %s.",
	"max":         "The field '%s' must be no larger than %s.",
	"lte":         "The field '%s' must be less than or equal to %s.",
	"gte":         "The field '%s' must be greater than or equal to %s.",
	"gt":          "The field '%s' must be greater than %s.",
	"lt":          "The field '%s' must be less than %s.",
	"oneof":       "The field '%s' must be one of [%s].",
	"url":         "The field '%s' must be a valid URL.",
	"required_if": "The field '%s' is required when %s.",
}

// parseMessage constructs a friendly error message based on the validation tag.
func parseMessage(name string, e validator.FieldError) string {
	if msg, ok := errorMessages[e.Tag()]; ok {
		switch strings.Count(msg, "%s") {
		case 1:
			return fmt.Sprintf(msg, name)
		case 2:
			return fmt.Sprintf(msg, name, e.Param())
		}
	}
	return fmt.Sprintf("Field '%s' is invalid: %s", name, e.Tag())
}

// ValidateStruct validates a struct and returns a map of dotted field paths to friendly error messages.
func ValidateStruct(s any) map[string]string {
	validationErrors := make(map[string]string)

	err := validate.Struct(s)
	if err == nil {
		return validationErrors
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		validationErrors["_"] = err.Error()
		return validationErrors
	}
	for _, e := range validationErrs {
		path := e.Namespace()
		// drop the root type name
		if i := strings.Index(path, "."); i >= 0 {
			path = path[i+1:]
		}
		validationErrors[path] = parseMessage(path, e)
	}
	return validationErrors
}

// Validate wraps ValidateStruct into a single error, nil when s is valid.
func Validate(s any) error {
	errs := ValidateStruct(s)
	if len(errs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, errs[k])
	}
	return &Error{Fields: errs, msg: strings.Join(msgs, " ")}
}

// Error carries per-field validation messages.
type Error struct {
	Fields map[string]string
	msg    string
}

func (e *Error) Error() string { return e.msg }
