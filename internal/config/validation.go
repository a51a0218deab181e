package config

import (
	"fmt"
	"strings"
)

// FieldError describes one invalid setting.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("config validation failed for %s%s: %s", envPrefix, e.Field, e.Message)
}

// ValidationError aggregates every FieldError found by Validate.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d error(s):", len(e.Fields))
	for i, f := range e.Fields {
		fmt.Fprintf(&sb, "\n  %d. %s", i+1, f.Error())
	}
	return sb.String()
}

type validator struct {
	fields []FieldError
}

func (v *validator) add(field, msg string) {
	v.fields = append(v.fields, FieldError{Field: field, Message: msg})
}

func (v *validator) required(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.add(field, "required value not set")
	}
}

func (v *validator) oneOf(field, value string, allowed ...string) {
	for _, opt := range allowed {
		if value == opt {
			return
		}
	}
	v.add(field, fmt.Sprintf("must be one of: %s (got: %s)", strings.Join(allowed, ", "), value))
}

func (v *validator) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: v.fields}
}
