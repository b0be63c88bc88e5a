package model

import (
	"errors"
	"fmt"
)

// ErrEmptyResponse is wrapped in a ModelError when the model returns no text.
var ErrEmptyResponse = errors.New("empty model response")

// ModelError reports a transport failure or an empty response. It is
// retryable.
type ModelError struct {
	Model string
	Err   error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model %s: %v", e.Model, e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// SchemaError reports a response whose JSON payload could not be located or
// did not validate. Raw holds the response text for diagnostics.
type SchemaError struct {
	Raw string
	Err error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("invalid model response: %v", e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}
