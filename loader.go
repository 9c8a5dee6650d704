package lineload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// SkippedLine describes an input line that was not inserted.
type SkippedLine struct {
	// Number is the 1-based line number
	Number int
	// Content is the line as read, with invalid bytes replaced for display
	Content string
	// Reason is a *ColumnCountError or a *DecodeError
	Reason error
}

// Result summarizes a load. It is returned even when Load fails, describing
// what happened up to the failure.
type Result struct {
	// RunID identifies the run in log entries
	RunID string
	// DatabasePath is the database file written to
	DatabasePath string
	// Table is the table written to
	Table string
	// DatabaseState is how the database file name was resolved
	DatabaseState ResolutionState
	// TableState is how the table name was resolved
	TableState ResolutionState
	// Encoding is the encoding lines were decoded with
	Encoding EncodingChoice
	// Lines is the number of lines read
	Lines int
	// Inserted is the number of rows committed
	Inserted int
	// Skipped is the number of lines not inserted
	Skipped int
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithDetector replaces the chardet-based encoding detector.
func WithDetector(detector Detector) Option {
	return func(l *Loader) {
		if detector != nil {
			l.detector = detector
		}
	}
}

// WithConflictResolver answers both file and table conflicts with resolver
// instead of the policies in Config.
func WithConflictResolver(resolver ConflictResolver) Option {
	return func(l *Loader) {
		if resolver != nil {
			l.fileResolver = resolver
			l.tableResolver = resolver
		}
	}
}

// WithSkipHandler registers fn to be called for every skipped line, in
// addition to the log entry.
func WithSkipHandler(fn func(SkippedLine)) Option {
	return func(l *Loader) {
		l.onSkip = fn
	}
}

// Loader loads one delimited file into one SQLite table.
type Loader struct {
	plan          plan
	logger        *slog.Logger
	detector      Detector
	fileResolver  ConflictResolver
	tableResolver ConflictResolver
	onSkip        func(SkippedLine)
}

// NewLoader validates cfg and returns a Loader ready to run. Nothing is read
// or written until Load.
func NewLoader(cfg Config, opts ...Option) (*Loader, error) {
	p, err := cfg.plan()
	if err != nil {
		return nil, err
	}

	l := &Loader{
		plan:          p,
		logger:        slog.Default(),
		detector:      NewChardetDetector(),
		fileResolver:  NewPolicyResolver(p.fileConflict),
		tableResolver: NewPolicyResolver(p.tableConflict),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Load validates cfg and runs it. See Loader.Load.
func Load(ctx context.Context, cfg Config, opts ...Option) (*Result, error) {
	l, err := NewLoader(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return l.Load(ctx)
}

// Load runs the pipeline: choose the encoding, open the input, resolve the
// database file and table names, then insert every line whose field count
// matches the schema. Malformed and undecodable lines are skipped and
// reported. A read, decompression or store failure stops the run; rows
// inserted before it stay committed and the error is returned with the
// partial Result. A cancelled conflict returns an error matching ErrCancelled.
func (l *Loader) Load(ctx context.Context) (result *Result, err error) {
	p := l.plan
	result = &Result{
		RunID:        uuid.NewString(),
		DatabasePath: p.databasePath,
		Table:        p.table.String(),
	}
	logger := l.logger.With("run_id", result.RunID)
	errCtx := NewErrorContext("load", p.inputPath)

	choice, err := l.chooseEncoding()
	if err != nil {
		return result, errCtx.WithDetails("encoding detection").Error(err)
	}
	result.Encoding = choice
	logEncoding(logger, choice)

	lines, err := OpenLineReader(p.inputPath, choice.Encoding, p.decodePolicy)
	if err != nil {
		return result, errCtx.Error(err)
	}
	defer func() {
		if closeErr := lines.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close input: %w", closeErr))
		}
	}()

	fileRes, err := resolveTarget(ctx, databaseTarget(filepath.Dir(p.databasePath)), p.databasePath, l.fileResolver)
	result.DatabaseState = fileRes.State
	result.DatabasePath = fileRes.Name
	if err != nil {
		return result, l.resolutionError(logger, errCtx, TargetDatabase, fileRes, err)
	}
	logger.Info("resolved database file", "state", fileRes.State.String(), "path", fileRes.Name)

	if fileRes.State == StateOverwritten {
		if err := removeDatabaseFiles(fileRes.Name); err != nil {
			return result, errCtx.WithDetails("overwrite database").Error(err)
		}
	}

	st, err := openStore(ctx, fileRes.Name)
	if err != nil {
		return result, errCtx.WithDetails(fileRes.Name).Error(err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close database: %w", closeErr))
		}
	}()

	tableRes, err := resolveTarget(ctx, tableTarget(st), p.table.String(), l.tableResolver)
	result.TableState = tableRes.State
	result.Table = tableRes.Name
	if err != nil {
		return result, l.resolutionError(logger, errCtx.WithTable(tableRes.Name), TargetTable, tableRes, err)
	}
	logger.Info("resolved table", "state", tableRes.State.String(), "table", tableRes.Name)

	table, err := NewTableName(tableRes.Name)
	if err != nil {
		return result, errCtx.Error(err)
	}
	errCtx = errCtx.WithTable(table.String())

	if tableRes.State == StateOverwritten {
		err = st.replaceTable(ctx, p.schema, table)
	} else {
		err = st.createTable(ctx, p.schema, table)
	}
	if err != nil {
		return result, errCtx.Error(err)
	}

	ins := st.newInserter(p.schema, table, p.chunkSize)
	fatal := l.insertLines(ctx, logger, lines, ins, result)

	commitErr := ins.commit()
	result.Inserted = ins.inserted()
	if fatal != nil || commitErr != nil {
		logger.Error("load aborted",
			"inserted", result.Inserted,
			"skipped", result.Skipped,
			"error", errors.Join(fatal, commitErr),
		)
		return result, errCtx.Error(errors.Join(fatal, commitErr))
	}

	logger.Info("load finished",
		"path", result.DatabasePath,
		"table", result.Table,
		"lines", result.Lines,
		"inserted", result.Inserted,
		"skipped", result.Skipped,
	)
	return result, nil
}

// insertLines drains the line reader into ins. It returns the first fatal
// error; per-line problems are reported and skipped.
func (l *Loader) insertLines(ctx context.Context, logger *slog.Logger, lines *LineReader, ins *inserter, result *Result) error {
	p := l.plan
	for lines.Next() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("load interrupted at line %d: %w", result.Lines+1, err)
		}

		line := lines.Line()
		result.Lines++

		if line.Err != nil {
			l.skip(logger, result, line, line.Err)
			continue
		}

		record, err := p.schema.Split(line.Number, line.Text, p.delimiter)
		if err != nil {
			l.skip(logger, result, line, err)
			continue
		}

		if err := ins.insert(ctx, record); err != nil {
			return fmt.Errorf("line %d: %w", line.Number, err)
		}
	}
	return lines.Err()
}

// skip reports a line that will not be inserted.
func (l *Loader) skip(logger *slog.Logger, result *Result, line Line, reason error) {
	result.Skipped++

	content := line.Text
	if line.Err != nil {
		content = strings.ToValidUTF8(string(line.Raw), string(utf8.RuneError))
	}
	logger.Warn("skipping line",
		"line", line.Number,
		"reason", reason.Error(),
		"content", truncateForLog(content),
	)

	if l.onSkip != nil {
		l.onSkip(SkippedLine{Number: line.Number, Content: content, Reason: reason})
	}
}

// chooseEncoding returns the configured encoding or runs detection.
func (l *Loader) chooseEncoding() (EncodingChoice, error) {
	p := l.plan
	if !p.encoding.IsZero() {
		return EncodingChoice{Encoding: p.encoding, Forced: true}, nil
	}
	return detectEncoding(p.inputPath, p.sampleSize, p.threshold, l.detector)
}

// resolutionError logs and wraps a failed or cancelled resolution.
func (l *Loader) resolutionError(logger *slog.Logger, errCtx *ErrorContext, kind TargetKind, res resolution, err error) error {
	if errors.Is(err, ErrCancelled) {
		logger.Warn("operation cancelled", "target", kind.String(), "name", res.Name)
		return fmt.Errorf("%s %q already exists: %w", kind, res.Name, err)
	}
	return errCtx.WithDetails("resolve " + kind.String()).Error(err)
}

func logEncoding(logger *slog.Logger, choice EncodingChoice) {
	switch {
	case choice.Forced:
		logger.Info("using configured encoding", "encoding", choice.Encoding.Name())
	case choice.Fallback:
		logger.Warn("encoding detection inconclusive, using permissive encoding",
			"detected", choice.Detection.Charset,
			"confidence", choice.Detection.Confidence,
			"encoding", choice.Encoding.Name(),
			"reason", choice.Reason,
		)
	default:
		logger.Info("detected encoding",
			"encoding", choice.Encoding.Name(),
			"confidence", choice.Detection.Confidence,
			"language", choice.Detection.Language,
		)
	}
}
