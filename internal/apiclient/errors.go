package apiclient

import (
	"errors"
	"fmt"
)

// ValidationError is a local, pre-network rejection of caller input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Invalid builds a ValidationError for field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// TransportError means the control API could not be reached or answered
// with a failure status and no readable body.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: control API returned %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: control API unreachable: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError means the call succeeded but the body did not have the
// expected shape.
type ProtocolError struct {
	Op      string
	Message string
	Err     error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: unexpected response: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: unexpected response: %s", e.Op, e.Message)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// NotFoundError means the control API reported the named entity missing.
type NotFoundError struct {
	Op      string
	Message string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// RemoteError carries a business-logic failure reported by the control API.
type RemoteError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Message returns the text a UI should show for err: the control API's own
// message when there is one, otherwise err.Error().
func Message(err error) string {
	if err == nil {
		return ""
	}
	var (
		nf *NotFoundError
		re *RemoteError
		ve *ValidationError
	)
	switch {
	case errors.As(err, &nf):
		return nf.Message
	case errors.As(err, &re):
		return re.Message
	case errors.As(err, &ve):
		return ve.Error()
	}
	return err.Error()
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
