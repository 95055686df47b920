// Package errors provides the typed errors used across npzconv and a Kind
// classifier so callers can branch on the failure category.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrCorruptArchive indicates an archive that cannot be parsed
	ErrCorruptArchive = errors.New("corrupt archive")
	// ErrSerialization indicates a document that cannot be encoded
	ErrSerialization = errors.New("serialization failure")
	// ErrUnsupported indicates an unsupported operation or format
	ErrUnsupported = errors.New("unsupported")
)

// Kind classifies an error into one of the failure categories a caller can
// act on.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindCorruptArchive
	KindSerialization
	KindIO
	KindInvalidConfig
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindCorruptArchive:
		return "CorruptArchive"
	case KindSerialization:
		return "SerializationFailure"
	case KindIO:
		return "IOFailure"
	case KindInvalidConfig:
		return "InvalidConfig"
	default:
		return "Unknown"
	}
}

// KindOf reports the Kind of the first typed error found in err's chain.
// The most specific type wins, so an IOError wrapping a NotFoundError is
// reported as KindNotFound.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var (
		nf  *NotFoundError
		ca  *CorruptArchiveError
		uns *UnsupportedError
		ser *SerializationError
		ve  *ValidationError
		ioe *IOError
	)
	switch {
	case errors.As(err, &nf), errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.As(err, &ca), errors.As(err, &uns),
		errors.Is(err, ErrCorruptArchive), errors.Is(err, ErrUnsupported):
		return KindCorruptArchive
	case errors.As(err, &ser), errors.Is(err, ErrSerialization):
		return KindSerialization
	case errors.As(err, &ve), errors.Is(err, ErrInvalidInput):
		return KindInvalidConfig
	case errors.As(err, &ioe):
		return KindIO
	}
	return KindUnknown
}

// NotFoundError represents a resource not found error with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "archive", "entry")
	ID       string // Identifier of the resource, usually a path
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Value that failed validation (may be redacted)
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// CorruptArchiveError represents an archive or archive member that could not
// be decoded.
type CorruptArchiveError struct {
	Path    string // Archive path, if known
	Entry   string // Entry name, if the failure is entry-specific
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *CorruptArchiveError) Error() string {
	where := e.Path
	if e.Entry != "" {
		if where != "" {
			where += ":"
		}
		where += e.Entry
	}
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if where != "" {
		return fmt.Sprintf("corrupt archive %s: %s", where, msg)
	}
	return fmt.Sprintf("corrupt archive: %s", msg)
}

func (e *CorruptArchiveError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrCorruptArchive
}

// Is lets errors.Is match ErrCorruptArchive even when Err is set.
func (e *CorruptArchiveError) Is(target error) bool {
	return target == ErrCorruptArchive
}

// SerializationError represents a document value that cannot be encoded.
type SerializationError struct {
	Entry   string // Entry whose value failed to encode
	Message string
	Err     error
}

func (e *SerializationError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("cannot serialize %s: %s", e.Entry, e.Message)
	}
	return fmt.Sprintf("cannot serialize: %s", e.Message)
}

func (e *SerializationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrSerialization
}

// UnsupportedError represents an unsupported feature or format
type UnsupportedError struct {
	Feature string // Feature or format that is unsupported
	Reason  string // Why it's not supported
	Err     error  // Underlying error, if any
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUnsupported
}

// Helper functions for creating common errors

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// NewCorrupt creates a CorruptArchiveError
func NewCorrupt(path, entry, message string) *CorruptArchiveError {
	return &CorruptArchiveError{
		Path:    path,
		Entry:   entry,
		Message: message,
	}
}

// NewSerialization creates a SerializationError
func NewSerialization(entry, message string) *SerializationError {
	return &SerializationError{
		Entry:   entry,
		Message: message,
	}
}

// NewUnsupported creates an UnsupportedError
func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{
		Feature: feature,
		Reason:  reason,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
