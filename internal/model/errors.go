package model

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is wrapped by every ConfigError
var ErrInvalidConfig = errors.New("invalid configuration")

// ErrMissingField marks a detector that cannot run because a canonical field is absent
var ErrMissingField = errors.New("missing canonical field")

// ConfigError reports caller misuse of a threshold or parameter.
// It is the only condition that aborts an analysis run.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s=%v: %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// MissingFieldError names the canonical fields a detector needed but did not find
type MissingFieldError struct {
	Detector string
	Fields   []Field
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: missing canonical field(s) %v", e.Detector, e.Fields)
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingField }
