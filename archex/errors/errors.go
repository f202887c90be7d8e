package errors

import (
	stderrors "errors"
	"fmt"
)

// Error types for archex operations
var (
	// ErrMalformedLine is returned when a line of archive text cannot be decoded
	ErrMalformedLine = &ArchexError{Code: "MALFORMED_LINE", Message: "malformed hex line"}

	// ErrUnsupportedFormat is returned when the input text format cannot be determined
	ErrUnsupportedFormat = &ArchexError{Code: "UNSUPPORTED_FORMAT", Message: "unsupported input format"}

	// ErrDigestMismatch is returned when the input text does not match the expected digest
	ErrDigestMismatch = &ArchexError{Code: "DIGEST_MISMATCH", Message: "input digest mismatch"}

	// ErrArchiveTooSmall is returned when the stream is shorter than the header
	ErrArchiveTooSmall = &ArchexError{Code: "ARCHIVE_TOO_SMALL", Message: "archive too small"}

	// ErrInvalidMagic is returned when the magic matches under neither byte order
	ErrInvalidMagic = &ArchexError{Code: "INVALID_MAGIC", Message: "invalid magic number"}

	// ErrTruncatedRecord is returned when a record field extends past the end of the stream.
	// It is terminal for the archive.
	ErrTruncatedRecord = &ArchexError{Code: "TRUNCATED_RECORD", Message: "truncated record"}

	// ErrUnknownMethod is returned when a record declares an unrecognized processing method
	ErrUnknownMethod = &ArchexError{Code: "UNKNOWN_METHOD", Message: "unknown processing method"}

	// ErrNameTooLong is returned when a record name exceeds the configured maximum
	ErrNameTooLong = &ArchexError{Code: "NAME_TOO_LONG", Message: "record name too long"}

	// ErrMalformedPayload is returned when a payload cannot be split as its method requires
	ErrMalformedPayload = &ArchexError{Code: "MALFORMED_PAYLOAD", Message: "malformed payload"}

	// ErrUnsafePath is returned when a record name would resolve outside the output root
	ErrUnsafePath = &ArchexError{Code: "UNSAFE_PATH", Message: "unsafe output path"}

	// ErrTransformFailed is returned when the payload transform service reports a failure
	ErrTransformFailed = &ArchexError{Code: "TRANSFORM_FAILED", Message: "payload transform failed"}

	// ErrIO is returned when a file or directory cannot be created or written
	ErrIO = &ArchexError{Code: "IO_ERROR", Message: "i/o error"}
)

// fatalCodes abort the whole extraction run.
var fatalCodes = map[string]bool{
	"MALFORMED_LINE":     true,
	"UNSUPPORTED_FORMAT": true,
	"DIGEST_MISMATCH":    true,
	"ARCHIVE_TOO_SMALL":  true,
	"INVALID_MAGIC":      true,
	"TRUNCATED_RECORD":   true,
}

// ArchexError represents a structured error in archex operations
type ArchexError struct {
	Code    string                 // Error code for programmatic handling
	Message string                 // Human-readable error message
	Cause   error                  // Underlying error, if any
	Details map[string]interface{} // Additional context
}

// Error implements the error interface
func (e *ArchexError) Error() string {
	if e.Cause != nil && len(e.Details) > 0 {
		return fmt.Sprintf("[%s] %s (details: %v): %v", e.Code, e.Message, e.Details, e.Cause)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	if len(e.Details) > 0 {
		return fmt.Sprintf("[%s] %s (details: %v)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *ArchexError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an ArchexError with the same code, so that
// errors.Is(err, ErrTruncatedRecord) matches derived errors too.
func (e *ArchexError) Is(target error) bool {
	t, ok := target.(*ArchexError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause adds a cause to the error
func (e *ArchexError) WithCause(cause error) *ArchexError {
	return &ArchexError{
		Code:    e.Code,
		Message: e.Message,
		Cause:   cause,
		Details: e.Details,
	}
}

// WithDetail adds a detail key-value pair to the error
func (e *ArchexError) WithDetail(key string, value interface{}) *ArchexError {
	details := make(map[string]interface{})
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &ArchexError{
		Code:    e.Code,
		Message: e.Message,
		Cause:   e.Cause,
		Details: details,
	}
}

// WithMessage overrides the error message
func (e *ArchexError) WithMessage(message string) *ArchexError {
	return &ArchexError{
		Code:    e.Code,
		Message: message,
		Cause:   e.Cause,
		Details: e.Details,
	}
}

// IsArchexError checks if an error is, or wraps, an ArchexError
func IsArchexError(err error) bool {
	var archexErr *ArchexError
	return stderrors.As(err, &archexErr)
}

// GetErrorCode extracts the error code from an ArchexError
func GetErrorCode(err error) string {
	var archexErr *ArchexError
	if stderrors.As(err, &archexErr) {
		return archexErr.Code
	}
	return ""
}

// GetDetail returns a detail value from the first ArchexError in the chain.
func GetDetail(err error, key string) (interface{}, bool) {
	var archexErr *ArchexError
	if !stderrors.As(err, &archexErr) {
		return nil, false
	}
	v, ok := archexErr.Details[key]
	return v, ok
}

// IsFatal reports whether err must abort the whole extraction run. Errors
// that are not ArchexErrors are treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	code := GetErrorCode(err)
	if code == "" {
		return true
	}
	return fatalCodes[code]
}
