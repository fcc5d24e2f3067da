package errors

import (
	"errors"
	"fmt"
)

// Standard application errors
var (
	ErrEmptyInput      = errors.New("input is empty or contains only whitespace")
	ErrInvalidJSON     = errors.New("invalid JSON format")
	ErrMultipleJSON    = errors.New("multiple JSON values found at the root, only one is allowed")
	ErrFileNotFound    = errors.New("file not found")
	ErrFileEmpty       = errors.New("file is empty")
	ErrNoInput         = errors.New("no input provided: please specify a file with -i or pipe JSON data to stdin")
	ErrInvalidFilePath = errors.New("invalid file path")

	// ErrInvariantViolation marks a broken internal invariant of the inference
	// engine. It is a bug, never a property of the input.
	ErrInvariantViolation = errors.New("inference invariant violated")
	// ErrUnsupportedValue marks input the engine does not handle yet.
	ErrUnsupportedValue = errors.New("value is not supported")
	ErrInvalidSchema    = errors.New("invalid schema document")
	ErrSchemaNotFound   = errors.New("schema not found")
)

// ErrorType categorizes errors
type ErrorType string

const (
	ErrorTypeInput       ErrorType = "input"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeInference   ErrorType = "inference"
	ErrorTypeInvariant   ErrorType = "invariant"
	ErrorTypeUnsupported ErrorType = "unsupported"
	ErrorTypeConfig      ErrorType = "config"
	ErrorTypeStore       ErrorType = "store"
	ErrorTypeOutput      ErrorType = "output"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// AppError is an application-specific error with context
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for comparison
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

func newError(typ ErrorType, message string, err error) *AppError {
	return &AppError{
		Type:    typ,
		Message: message,
		Err:     err,
	}
}

// NewInputError creates a new error related to input processing
func NewInputError(message string, err error) *AppError {
	return newError(ErrorTypeInput, message, err)
}

// NewParsingError creates a new error related to JSON parsing
func NewParsingError(message string, err error) *AppError {
	return newError(ErrorTypeParsing, message, err)
}

// NewInferenceError creates a new error raised while inferring a schema
func NewInferenceError(message string, err error) *AppError {
	return newError(ErrorTypeInference, message, err)
}

// NewInvariantError creates a new error for a violated engine invariant
func NewInvariantError(message string) *AppError {
	return newError(ErrorTypeInvariant, message, ErrInvariantViolation)
}

// NewUnsupportedError creates a new error for input that is not supported yet
func NewUnsupportedError(message string) *AppError {
	return newError(ErrorTypeUnsupported, message, ErrUnsupportedValue)
}

// NewConfigError creates a new error related to configuration loading
func NewConfigError(message string, err error) *AppError {
	return newError(ErrorTypeConfig, message, err)
}

// NewStoreError creates a new error related to schema persistence
func NewStoreError(message string, err error) *AppError {
	return newError(ErrorTypeStore, message, err)
}

// NewOutputError creates a new error related to output processing
func NewOutputError(message string, err error) *AppError {
	return newError(ErrorTypeOutput, message, err)
}

// IsInvariantViolation reports whether err stems from a broken engine invariant.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrInvariantViolation)
}

// IsUnsupported reports whether err signals a not-yet-supported input.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupportedValue)
}

// UserFriendlyError returns a user-friendly error message
func UserFriendlyError(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		switch appErr.Type {
		case ErrorTypeInput:
			return fmt.Sprintf("Input error: %s", appErr.Message)
		case ErrorTypeParsing:
			return fmt.Sprintf("JSON parsing error: %s", appErr.Message)
		case ErrorTypeInference:
			return fmt.Sprintf("Schema inference error: %s", appErr.Message)
		case ErrorTypeInvariant:
			return fmt.Sprintf("Internal error (please report this): %s", appErr.Message)
		case ErrorTypeUnsupported:
			return fmt.Sprintf("Not supported yet: %s", appErr.Message)
		case ErrorTypeConfig:
			return fmt.Sprintf("Configuration error: %s", appErr.Message)
		case ErrorTypeStore:
			return fmt.Sprintf("Schema store error: %s", appErr.Message)
		case ErrorTypeOutput:
			return fmt.Sprintf("Output error: %s", appErr.Message)
		default:
			return fmt.Sprintf("Error: %s", appErr.Message)
		}
	}

	// Handle standard errors
	if errors.Is(err, ErrEmptyInput) {
		return "Error: The input is empty. Please provide valid JSON data."
	}
	if errors.Is(err, ErrInvalidJSON) {
		return "Error: The input contains invalid JSON. Please check your JSON syntax."
	}
	if errors.Is(err, ErrMultipleJSON) {
		return "Error: Multiple JSON values found. Use --ndjson to treat each value as a separate document."
	}
	if errors.Is(err, ErrFileNotFound) {
		return "Error: The specified file could not be found. Please check the file path."
	}
	if errors.Is(err, ErrFileEmpty) {
		return "Error: The specified file is empty. Please provide a file with valid JSON content."
	}
	if errors.Is(err, ErrNoInput) {
		return "Error: No input provided. Please specify a file with -i or pipe JSON data to stdin."
	}
	if errors.Is(err, ErrInvalidFilePath) {
		return "Error: Invalid file path. Please provide a valid file path."
	}
	if errors.Is(err, ErrInvalidSchema) {
		return "Error: The stored schema could not be read. It may have been written by an incompatible version."
	}

	// Generic error message for unknown errors
	return fmt.Sprintf("Error: %v", err)
}
