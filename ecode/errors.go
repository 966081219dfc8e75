package ecode

import "errors"

// FieldIsRequired returns the message for a missing field.
func FieldIsRequired(field string) string {
	return field + " is required"
}

// FieldIsInvalid returns the message for a malformed field.
func FieldIsInvalid(field string) string {
	return field + " is invalid"
}

// Of extracts the business code from an error chain.
// Errors without a code map to ServerErr, nil maps to OK.
func Of(err error) int {
	if err == nil {
		return OK
	}
	var c Coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return ServerErr
}
