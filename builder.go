package lineload

// Builder assembles a Config step by step and validates it in Build.
//
// The typical usage pattern is:
//
//	loader, err := lineload.NewBuilder().
//		Input("combo.txt.zst").
//		Delimiter(":").
//		Columns("email", "password").
//		Output("./out", "combo").
//		Table("accounts").
//		OnTableConflict(lineload.ConflictOverwrite).
//		Build()
//	if err != nil {
//		return err
//	}
//	result, err := loader.Load(ctx)
type Builder struct {
	cfg  Config
	opts []Option
}

// NewBuilder creates a builder with default settings: detection on, skip
// undecodable lines, cancel on any conflict.
func NewBuilder() *Builder {
	return &Builder{}
}

// Input sets the input file path.
func (b *Builder) Input(path string) *Builder {
	b.cfg.InputPath = path
	return b
}

// Delimiter sets the literal field separator.
func (b *Builder) Delimiter(delimiter string) *Builder {
	b.cfg.Delimiter = delimiter
	return b
}

// Columns sets the destination column names in field order.
func (b *Builder) Columns(columns ...string) *Builder {
	b.cfg.Columns = append([]string(nil), columns...)
	return b
}

// Output sets the directory and file name of the database.
func (b *Builder) Output(dir, databaseName string) *Builder {
	b.cfg.OutputDir = dir
	b.cfg.DatabaseName = databaseName
	return b
}

// Table sets the destination table name.
func (b *Builder) Table(name string) *Builder {
	b.cfg.TableName = name
	return b
}

// OnFileConflict sets the action taken when the database file exists.
// renameTo lists the names tried first for ConflictRename.
func (b *Builder) OnFileConflict(action ConflictAction, renameTo ...string) *Builder {
	b.cfg.FileConflict = ConflictPolicy{Action: action, RenameTo: renameTo}
	return b
}

// OnTableConflict sets the action taken when the table exists.
// renameTo lists the names tried first for ConflictRename.
func (b *Builder) OnTableConflict(action ConflictAction, renameTo ...string) *Builder {
	b.cfg.TableConflict = ConflictPolicy{Action: action, RenameTo: renameTo}
	return b
}

// Encoding forces the input encoding and disables detection.
func (b *Builder) Encoding(name string) *Builder {
	b.cfg.Encoding = name
	return b
}

// DecodePolicy sets what happens to undecodable lines.
func (b *Builder) DecodePolicy(policy DecodePolicy) *Builder {
	b.cfg.DecodePolicy = policy
	return b
}

// SampleSize sets how many bytes are sampled for encoding detection.
func (b *Builder) SampleSize(size int) *Builder {
	b.cfg.SampleSize = size
	return b
}

// ChunkSize sets how many rows are committed together.
func (b *Builder) ChunkSize(size int) *Builder {
	b.cfg.ChunkSize = size
	return b
}

// WithOptions adds loader options such as WithLogger.
func (b *Builder) WithOptions(opts ...Option) *Builder {
	b.opts = append(b.opts, opts...)
	return b
}

// Config returns a copy of the configuration built so far.
func (b *Builder) Config() Config {
	return b.cfg
}

// Build validates the configuration and returns a Loader.
func (b *Builder) Build() (*Loader, error) {
	return NewLoader(b.cfg, b.opts...)
}
