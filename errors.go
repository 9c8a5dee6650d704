package lineload

import (
	"errors"
	"fmt"
	"strings"
)

// Standard error values. Callers match them with errors.Is.
var (
	// ErrInvalidConfig wraps every configuration error reported before any I/O
	ErrInvalidConfig = errors.New("lineload: invalid configuration")

	// ErrCancelled indicates the conflict resolver chose to cancel the run
	ErrCancelled = errors.New("lineload: operation cancelled")

	// ErrInvalidIdentifier is returned when a table or column name is not an allowed SQL identifier
	ErrInvalidIdentifier = errors.New("lineload: invalid SQL identifier")

	// ErrDuplicateColumnName is returned when two columns share a name
	ErrDuplicateColumnName = errors.New("lineload: duplicate column name")

	// ErrTooManyColumns is returned when the schema exceeds MaxColumnCount
	ErrTooManyColumns = errors.New("lineload: too many columns")

	// ErrInvalidPath is returned when a path is empty or contains forbidden bytes
	ErrInvalidPath = errors.New("lineload: invalid path")

	// ErrFileNotFound indicates the input file does not exist
	ErrFileNotFound = errors.New("lineload: file not found")

	// ErrUnsupportedEncoding indicates a charset name with no known decoder
	ErrUnsupportedEncoding = errors.New("lineload: unsupported encoding")

	// ErrEmptySample indicates there were no bytes to run encoding detection on
	ErrEmptySample = errors.New("lineload: empty sample")

	// ErrInvalidDecode indicates a byte sequence that is not valid in the chosen encoding
	ErrInvalidDecode = errors.New("lineload: invalid byte sequence")

	// ErrRenameExhausted indicates no free name was found within MaxRenameAttempts
	ErrRenameExhausted = errors.New("lineload: no free name available")
)

// DecodeError reports a line that could not be decoded with the chosen encoding.
type DecodeError struct {
	Line     int
	Encoding string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("line %d: cannot decode as %s: %v", e.Line, e.Encoding, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ColumnCountError reports a line whose field count differs from the schema.
type ColumnCountError struct {
	Line int
	Got  int
	Want int
}

func (e *ColumnCountError) Error() string {
	return fmt.Sprintf("line %d: incorrect number of columns: got %d, want %d", e.Line, e.Got, e.Want)
}

// configError wraps err with ErrInvalidConfig and the offending field.
func configError(field string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, field, err)
}

// ErrorContext provides context for where an error occurred
type ErrorContext struct {
	Operation string
	FilePath  string
	TableName string
	Details   string
}

// NewErrorContext creates a new error context
func NewErrorContext(operation, filePath string) *ErrorContext {
	return &ErrorContext{
		Operation: operation,
		FilePath:  filePath,
	}
}

// WithTable adds table context to the error
func (ec *ErrorContext) WithTable(tableName string) *ErrorContext {
	ec.TableName = tableName
	return ec
}

// WithDetails adds details to the error context
func (ec *ErrorContext) WithDetails(details string) *ErrorContext {
	ec.Details = details
	return ec
}

// Error creates a formatted error with context
func (ec *ErrorContext) Error(baseErr error) error {
	var parts []string
	parts = append(parts, fmt.Sprintf("lineload: %s failed", ec.Operation))

	if ec.FilePath != "" {
		parts = append(parts, "file: "+ec.FilePath)
	}

	if ec.TableName != "" {
		parts = append(parts, "table: "+ec.TableName)
	}

	if ec.Details != "" {
		parts = append(parts, "details: "+ec.Details)
	}

	context := strings.Join(parts, ", ")
	if baseErr != nil {
		return fmt.Errorf("%s: %w", context, baseErr)
	}
	return fmt.Errorf("%s", context)
}
