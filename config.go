package lineload

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultDatabaseExtension is appended to database file names that lack it.
const DefaultDatabaseExtension = ".db"

// MaxRenameAttempts bounds the automatic "<name>_<n>" suffixes PolicyResolver tries.
const MaxRenameAttempts = 100

// ConflictAction is what to do when the database file or table already exists.
type ConflictAction int

const (
	// ConflictCancel aborts the run, leaving the existing target untouched
	ConflictCancel ConflictAction = iota
	// ConflictOverwrite destroys the existing target and recreates it
	ConflictOverwrite
	// ConflictRename picks another name and checks it again
	ConflictRename
	// ConflictReuse keeps an existing database file and writes into it.
	// It applies to database files only; the table is then resolved on its own.
	ConflictReuse
)

// String returns the string representation of ConflictAction
func (a ConflictAction) String() string {
	switch a {
	case ConflictOverwrite:
		return "overwrite"
	case ConflictRename:
		return "rename"
	case ConflictReuse:
		return "reuse"
	default:
		return "cancel"
	}
}

// ParseConflictAction parses "cancel", "overwrite", "rename" or "reuse".
func ParseConflictAction(s string) (ConflictAction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cancel":
		return ConflictCancel, nil
	case "overwrite":
		return ConflictOverwrite, nil
	case "rename":
		return ConflictRename, nil
	case "reuse":
		return ConflictReuse, nil
	default:
		return ConflictCancel, fmt.Errorf("unknown conflict action %q", s)
	}
}

// ConflictPolicy is the non-interactive answer to a naming conflict.
type ConflictPolicy struct {
	// Action applies to every conflict on this target
	Action ConflictAction
	// RenameTo lists names tried in order when Action is ConflictRename.
	// When they are used up, "<name>_1", "<name>_2", ... are tried.
	RenameTo []string
}

// Config is the full description of one load. Every field is checked by
// Validate before any file is opened.
type Config struct {
	// InputPath is the delimited text file, optionally .gz, .bz2, .xz or .zst
	InputPath string
	// Delimiter is the literal field separator; there is no quoting
	Delimiter string
	// Columns are the destination column names, in field order
	Columns []string
	// OutputDir holds the database file; empty means the working directory
	OutputDir string
	// DatabaseName is the database file name; ".db" is appended when missing
	DatabaseName string
	// TableName is the destination table
	TableName string
	// FileConflict decides what happens when the database file exists
	FileConflict ConflictPolicy
	// TableConflict decides what happens when the table exists
	TableConflict ConflictPolicy
	// Encoding forces an input encoding and skips detection when set
	Encoding string
	// DecodePolicy decides the fate of lines invalid in the chosen encoding
	DecodePolicy DecodePolicy
	// SampleSize is the number of bytes sampled for detection (default 10000)
	SampleSize int
	// ConfidenceThreshold is the minimum detector confidence (default 0.5)
	ConfidenceThreshold float64
	// ChunkSize is the number of rows per commit (default 1000)
	ChunkSize int
}

// plan is a validated, normalized Config.
type plan struct {
	inputPath     string
	delimiter     string
	schema        Schema
	databasePath  string
	table         TableName
	fileConflict  ConflictPolicy
	tableConflict ConflictPolicy
	encoding      Encoding
	decodePolicy  DecodePolicy
	sampleSize    int
	threshold     float64
	chunkSize     ChunkSize
}

// Validate checks the configuration without touching the destination.
func (c Config) Validate() error {
	_, err := c.plan()
	return err
}

func (c Config) plan() (plan, error) {
	v := newValidator()
	var errs []error

	if err := v.validateInputFile(c.InputPath); err != nil {
		errs = append(errs, configError("input", err))
	}
	if c.Delimiter == "" {
		errs = append(errs, configError("delimiter", errors.New("delimiter cannot be empty")))
	}

	schema, err := NewSchema(c.Columns...)
	if err != nil {
		errs = append(errs, configError("columns", err))
	}

	table, err := NewTableName(c.TableName)
	if err != nil {
		errs = append(errs, configError("table", err))
	}

	if err := v.validateOutputDirectory(c.OutputDir); err != nil {
		errs = append(errs, configError("output directory", err))
	}
	dbName, err := v.normalizeDatabaseName(c.DatabaseName)
	if err != nil {
		errs = append(errs, configError("database name", err))
	}

	if err := v.validateConflictPolicy(c.FileConflict, true, func(name string) error {
		_, err := v.normalizeDatabaseName(name)
		return err
	}); err != nil {
		errs = append(errs, configError("file conflict", err))
	}
	if err := v.validateConflictPolicy(c.TableConflict, false, ValidateIdentifier); err != nil {
		errs = append(errs, configError("table conflict", err))
	}

	var enc Encoding
	if strings.TrimSpace(c.Encoding) != "" {
		if enc, err = LookupEncoding(c.Encoding); err != nil {
			errs = append(errs, configError("encoding", err))
		}
	}
	if c.DecodePolicy != DecodeSkip && c.DecodePolicy != DecodeReplace {
		errs = append(errs, configError("decode policy", fmt.Errorf("unknown value %d", c.DecodePolicy)))
	}
	if c.SampleSize < 0 {
		errs = append(errs, configError("sample size", errors.New("must not be negative")))
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		errs = append(errs, configError("confidence threshold", errors.New("must be within [0,1]")))
	}
	if c.ChunkSize < 0 {
		errs = append(errs, configError("chunk size", errors.New("must not be negative")))
	}

	if len(errs) > 0 {
		return plan{}, errors.Join(errs...)
	}

	p := plan{
		inputPath:     c.InputPath,
		delimiter:     c.Delimiter,
		schema:        schema,
		databasePath:  filepath.Join(c.OutputDir, dbName),
		table:         table,
		fileConflict:  c.FileConflict,
		tableConflict: c.TableConflict,
		encoding:      enc,
		decodePolicy:  c.DecodePolicy,
		sampleSize:    c.SampleSize,
		threshold:     c.ConfidenceThreshold,
		chunkSize:     NewChunkSize(c.ChunkSize),
	}
	if p.sampleSize == 0 {
		p.sampleSize = DefaultSampleSize
	}
	if p.threshold == 0 {
		p.threshold = DefaultConfidenceThreshold
	}
	return p, nil
}

// databaseFileName appends DefaultDatabaseExtension when name lacks it.
func databaseFileName(name string) string {
	if strings.HasSuffix(name, DefaultDatabaseExtension) {
		return name
	}
	return name + DefaultDatabaseExtension
}
