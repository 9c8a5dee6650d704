package lineload

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Processing constants (rows-based)
const (
	// DefaultRowsPerChunk is the default number of inserted rows per commit
	DefaultRowsPerChunk = 1000
	// DefaultChunkSize is the default chunk size (rows); alias for clarity
	DefaultChunkSize = DefaultRowsPerChunk
	// MinChunkSize is the minimum allowed rows per chunk
	MinChunkSize = 1
)

// Identifier limits
const (
	// MaxColumnCount defines the maximum number of columns allowed in a table
	MaxColumnCount = 2000
	// MaxIdentifierLength is the maximum byte length of a table or column name
	MaxIdentifierLength = 128
	// sqliteReservedPrefix is reserved by SQLite for internal objects
	sqliteReservedPrefix = "sqlite_"
)

// sqlTypeText is the only column type this package declares.
const sqlTypeText = "TEXT"

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateIdentifier checks that name is usable as a table or column name.
// Only ASCII letters, digits and underscores are accepted, the first character
// must not be a digit, and names starting with "sqlite_" are rejected.
func ValidateIdentifier(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidIdentifier)
	case len(name) > MaxIdentifierLength:
		return fmt.Errorf("%w: %q exceeds %d bytes", ErrInvalidIdentifier, name, MaxIdentifierLength)
	case !identifierPattern.MatchString(name):
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	case strings.HasPrefix(strings.ToLower(name), sqliteReservedPrefix):
		return fmt.Errorf("%w: %q uses the reserved prefix %q", ErrInvalidIdentifier, name, sqliteReservedPrefix)
	}
	return nil
}

// quoteIdentifier returns name as a double-quoted SQL identifier.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// TableName represents a validated table name.
type TableName struct {
	value string
}

// NewTableName creates a TableName, trimming surrounding whitespace.
func NewTableName(name string) (TableName, error) {
	name = strings.TrimSpace(name)
	if err := ValidateIdentifier(name); err != nil {
		return TableName{}, err
	}
	return TableName{value: name}, nil
}

// String returns the string representation of TableName
func (tn TableName) String() string {
	return tn.value
}

// Equal compares two table names. SQLite table names are case-insensitive.
func (tn TableName) Equal(other TableName) bool {
	return strings.EqualFold(tn.value, other.value)
}

// quoted returns the table name as a quoted SQL identifier
func (tn TableName) quoted() string {
	return quoteIdentifier(tn.value)
}

// Schema is the ordered list of column names of the destination table.
// Every column is declared TEXT.
type Schema struct {
	columns []string
}

// NewSchema validates the column names and returns a Schema.
func NewSchema(columns ...string) (Schema, error) {
	if len(columns) == 0 {
		return Schema{}, fmt.Errorf("%w: at least one column is required", ErrInvalidIdentifier)
	}
	if len(columns) > MaxColumnCount {
		return Schema{}, fmt.Errorf("%w: %d > %d", ErrTooManyColumns, len(columns), MaxColumnCount)
	}

	cleaned := make([]string, 0, len(columns))
	for _, col := range columns {
		col = strings.TrimSpace(col)
		if err := ValidateIdentifier(col); err != nil {
			return Schema{}, fmt.Errorf("column %d: %w", len(cleaned)+1, err)
		}
		cleaned = append(cleaned, col)
	}
	if err := validateColumnNames(cleaned); err != nil {
		return Schema{}, err
	}
	return Schema{columns: cleaned}, nil
}

// Columns returns a copy of the column names in order.
func (s Schema) Columns() []string {
	return append([]string(nil), s.columns...)
}

// Len returns the number of columns.
func (s Schema) Len() int {
	return len(s.columns)
}

// Split cuts line on the literal delimiter and checks the field count.
// There is no quoting or escaping: a delimiter inside a value is a field boundary.
func (s Schema) Split(lineNumber int, line, delimiter string) (Record, error) {
	fields := strings.Split(line, delimiter)
	if len(fields) != len(s.columns) {
		return nil, &ColumnCountError{Line: lineNumber, Got: len(fields), Want: len(s.columns)}
	}
	return newRecord(fields), nil
}

// createTableSQL returns the CREATE TABLE statement for table.
func (s Schema) createTableSQL(table TableName) string {
	defs := make([]string, 0, len(s.columns))
	for _, col := range s.columns {
		defs = append(defs, quoteIdentifier(col)+" "+sqlTypeText)
	}
	return fmt.Sprintf(`CREATE TABLE %s (%s)`, table.quoted(), strings.Join(defs, ", "))
}

// insertSQL returns the parameterized INSERT statement for table.
func (s Schema) insertSQL(table TableName) string {
	placeholders := make([]string, len(s.columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	return fmt.Sprintf(`INSERT INTO %s VALUES (%s)`, table.quoted(), strings.Join(placeholders, ", "))
}

// validateColumnNames checks for duplicate column names and returns error if found.
// Comparison is case-insensitive because SQLite treats column names that way.
func validateColumnNames(columns []string) error {
	columnsSeen := make(map[string]bool, len(columns))
	for _, col := range columns {
		key := strings.ToLower(strings.TrimSpace(col))
		if columnsSeen[key] {
			return fmt.Errorf("%w: %s", ErrDuplicateColumnName, col)
		}
		columnsSeen[key] = true
	}
	return nil
}

// Record is one line split into fields, in schema order.
type Record []string

// newRecord create new record.
func newRecord(r []string) Record {
	return Record(r)
}

// args returns the record as bind arguments.
func (r Record) args() []any {
	values := make([]any, len(r))
	for i, v := range r {
		values[i] = v
	}
	return values
}

// ChunkSize is the number of inserted rows committed together.
type ChunkSize int

// NewChunkSize creates a new ChunkSize with validation
func NewChunkSize(size int) ChunkSize {
	if size < MinChunkSize {
		return ChunkSize(DefaultRowsPerChunk)
	}
	return ChunkSize(size)
}

// Int returns the int value of ChunkSize
func (cs ChunkSize) Int() int {
	return int(cs)
}

// String returns the string representation of ChunkSize
func (cs ChunkSize) String() string {
	return strconv.Itoa(int(cs))
}

// DecodePolicy decides what happens to a line that is not valid in the chosen encoding.
type DecodePolicy int

const (
	// DecodeSkip skips and reports undecodable lines
	DecodeSkip DecodePolicy = iota
	// DecodeReplace keeps the line with invalid sequences replaced by U+FFFD
	DecodeReplace
)

// String returns the string representation of DecodePolicy
func (p DecodePolicy) String() string {
	switch p {
	case DecodeReplace:
		return "replace"
	default:
		return "skip"
	}
}

// ParseDecodePolicy parses "skip" or "replace".
func ParseDecodePolicy(s string) (DecodePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skip":
		return DecodeSkip, nil
	case "replace":
		return DecodeReplace, nil
	default:
		return DecodeSkip, fmt.Errorf("unknown decode policy %q", s)
	}
}
