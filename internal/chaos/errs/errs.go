// Package errs classifies chaos engine failures so callers can count and
// degrade without halting the tick loop.
package errs

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unclassified error.
	CodeUnknown Code = "UNKNOWN"

	// CodeCollection marks a pressure source that failed to report.
	CodeCollection Code = "COLLECTION"

	// CodeValidation marks malformed mitigation or configuration parameters.
	CodeValidation Code = "VALIDATION"

	// CodeDispatch marks a target subsystem rejecting event delivery.
	CodeDispatch Code = "DISPATCH"

	// CodeScheduling marks a cascade task that failed to start.
	CodeScheduling Code = "SCHEDULING"
)

// Error carries a code and the subject (source, target, or task) that failed.
type Error struct {
	Code    Code
	Subject string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Subject)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Subject, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Collection wraps a per-source collection failure.
func Collection(source string, err error) error {
	return &Error{Code: CodeCollection, Subject: source, Err: err}
}

// Validation reports a rejected parameter. No partial state change occurred.
func Validation(subject, format string, args ...any) error {
	return &Error{Code: CodeValidation, Subject: subject, Err: fmt.Errorf(format, args...)}
}

// Dispatch wraps a per-target delivery failure.
func Dispatch(target string, err error) error {
	return &Error{Code: CodeDispatch, Subject: target, Err: err}
}

// Scheduling wraps a cascade task startup failure.
func Scheduling(task string, err error) error {
	return &Error{Code: CodeScheduling, Subject: task, Err: err}
}

// CodeOf extracts the classification code, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Code
	}
	return CodeUnknown
}

// IsCollection reports whether err is a collection failure.
func IsCollection(err error) bool { return CodeOf(err) == CodeCollection }

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return CodeOf(err) == CodeValidation }

// IsDispatch reports whether err is a dispatch failure.
func IsDispatch(err error) bool { return CodeOf(err) == CodeDispatch }

// IsScheduling reports whether err is a scheduling failure.
func IsScheduling(err error) bool { return CodeOf(err) == CodeScheduling }
