package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"
)

// Error types for the tg search system
type ErrorType string

const (
	// Input errors
	ErrorTypePattern ErrorType = "pattern"
	ErrorTypeQuery   ErrorType = "query"
	ErrorTypeUsage   ErrorType = "usage"

	// File errors
	ErrorTypeFileNotFound ErrorType = "file_not_found"
	ErrorTypePermission   ErrorType = "permission"
	ErrorTypeIO           ErrorType = "io"
	ErrorTypeSizeLimit    ErrorType = "size_limit"

	// Structural search errors
	ErrorTypeGrammar ErrorType = "unsupported_grammar"
	ErrorTypeParse   ErrorType = "parse"

	// Configuration errors
	ErrorTypeConfig ErrorType = "config"

	// Execution backend errors
	ErrorTypeBackend ErrorType = "backend"
)

// PatternError is returned when a search pattern cannot be compiled.
// It always fails the invocation before any file is touched.
type PatternError struct {
	Type       ErrorType
	Pattern    string
	Underlying error
	Timestamp  time.Time
}

// NewPatternError creates a new pattern compile error
func NewPatternError(pattern string, err error) *PatternError {
	return &PatternError{
		Type:       ErrorTypePattern,
		Pattern:    pattern,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// NewUsageError reports an invalid combination of search options
func NewUsageError(pattern string, err error) *PatternError {
	pe := NewPatternError(pattern, err)
	pe.Type = ErrorTypeUsage
	return pe
}

// Error implements the error interface
func (e *PatternError) Error() string {
	if e.Type == ErrorTypeUsage {
		return fmt.Sprintf("invalid search for pattern %q: %v", e.Pattern, e.Underlying)
	}
	return fmt.Sprintf("invalid pattern %q: %v", e.Pattern, e.Underlying)
}

// Unwrap returns the underlying error
func (e *PatternError) Unwrap() error {
	return e.Underlying
}

// FileError represents a file-related error (open, map, read, write)
type FileError struct {
	Type       ErrorType
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewFileError creates a new file error, classifying the cause
func NewFileError(op, path string, err error) *FileError {
	errorType := ErrorTypeIO
	switch {
	case isPermissionError(err):
		errorType = ErrorTypePermission
	case errors.Is(err, fs.ErrNotExist):
		errorType = ErrorTypeFileNotFound
	}

	return &FileError{
		Type:       errorType,
		Path:       path,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// isPermissionError checks if the error is a permission error
func isPermissionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, fs.ErrPermission) {
		return true
	}
	errStr := err.Error()
	return errStr == "permission denied" || errStr == "access denied"
}

// Error implements the error interface
func (e *FileError) Error() string {
	return fmt.Sprintf("file %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *FileError) Unwrap() error {
	return e.Underlying
}

// SizeLimitError is returned when a mapped region is too large for the
// offset width of the consumer.
type SizeLimitError struct {
	Type      ErrorType
	Path      string
	Size      int64
	Limit     int64
	Timestamp time.Time
}

// NewSizeLimitError creates a new size limit error
func NewSizeLimitError(path string, size, limit int64) *SizeLimitError {
	return &SizeLimitError{
		Type:      ErrorTypeSizeLimit,
		Path:      path,
		Size:      size,
		Limit:     limit,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface
func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("%s is %d bytes, exceeds the %d byte limit of 32-bit offsets", e.Path, e.Size, e.Limit)
}

// UnsupportedGrammarError is returned when no parser is registered for a grammar id
type UnsupportedGrammarError struct {
	Type       ErrorType
	Grammar    string
	Suggestion string
	Timestamp  time.Time
}

// NewUnsupportedGrammarError creates a new unsupported grammar error
func NewUnsupportedGrammarError(grammar, suggestion string) *UnsupportedGrammarError {
	return &UnsupportedGrammarError{
		Type:       ErrorTypeGrammar,
		Grammar:    grammar,
		Suggestion: suggestion,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *UnsupportedGrammarError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unsupported language: %s (did you mean %s?)", e.Grammar, e.Suggestion)
	}
	return fmt.Sprintf("unsupported language: %s", e.Grammar)
}

// ParseError represents a syntax tree parse failure
type ParseError struct {
	Type       ErrorType
	FilePath   string
	Grammar    string
	Underlying error
	Timestamp  time.Time
}

// NewParseError creates a new parse error
func NewParseError(path, grammar string, err error) *ParseError {
	return &ParseError{
		Type:       ErrorTypeParse,
		FilePath:   path,
		Grammar:    grammar,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s as %s: %v", e.FilePath, e.Grammar, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ParseError) Unwrap() error {
	return e.Underlying
}

// QueryError represents a structural pattern that does not compile for a grammar
type QueryError struct {
	Type      ErrorType
	Grammar   string
	Pattern   string
	Offset    uint
	Kind      string
	Message   string
	Timestamp time.Time
}

// NewQueryError creates a new structural query compile error
func NewQueryError(grammar, pattern string, offset uint, kind, message string) *QueryError {
	return &QueryError{
		Type:      ErrorTypeQuery,
		Grammar:   grammar,
		Pattern:   pattern,
		Offset:    offset,
		Kind:      kind,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface
func (e *QueryError) Error() string {
	msg := fmt.Sprintf("invalid %s query at offset %d", e.Grammar, e.Offset)
	if e.Kind != "" {
		msg += " (" + e.Kind + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// BackendError represents a failure of an execution backend
type BackendError struct {
	Backend    string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewBackendError creates a new backend error
func NewBackendError(backend, op string, err error) *BackendError {
	return &BackendError{
		Backend:    backend,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *BackendError) Error() string {
	return fmt.Sprintf("%s backend %s failed: %v", e.Backend, e.Operation, e.Underlying)
}

// Unwrap returns the underlying error
func (e *BackendError) Unwrap() error {
	return e.Underlying
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error
func NewMultiError(errs []error) *MultiError {
	// Filter out nil errors
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// ErrorOrNil returns nil when no errors were collected
func (e *MultiError) ErrorOrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d errors: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Unwrap returns all errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}

// IsPatternError reports whether err is a pattern compile or usage error
func IsPatternError(err error) bool {
	var pe *PatternError
	return errors.As(err, &pe)
}

// IsSizeLimit reports whether err is a size limit error
func IsSizeLimit(err error) bool {
	var se *SizeLimitError
	return errors.As(err, &se)
}

// IsUnsupportedGrammar reports whether err is an unsupported grammar error
func IsUnsupportedGrammar(err error) bool {
	var ge *UnsupportedGrammarError
	return errors.As(err, &ge)
}
