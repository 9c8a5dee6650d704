package lineload

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// DriverName is the database/sql driver the destination store is opened with.
const DriverName = "sqlite"

// sqliteSidecars are the suffixes of files SQLite keeps next to a database.
var sqliteSidecars = []string{"-journal", "-wal", "-shm"}

// store is the file-backed SQLite destination. It holds one connection for
// the whole run; SQLite allows a single writer.
type store struct {
	db   *sql.DB
	path string
}

// openStore opens (creating if absent) the SQLite database at path.
func openStore(ctx context.Context, path string) (*store, error) {
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	// sql.Open is lazy; the file is created by the first connection.
	if err := db.PingContext(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to create database file: %w", err), db.Close())
	}
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to configure database: %w", err), db.Close())
	}
	return &store{db: db, path: path}, nil
}

// Close closes the connection, flushing anything SQLite still holds.
func (s *store) Close() error {
	return s.db.Close()
}

// tableExists reports whether a table with the given name exists.
// SQLite table names are case-insensitive, so the lookup is too.
func (s *store) tableExists(ctx context.Context, table TableName) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=? COLLATE NOCASE`,
		table.String(),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check table existence: %w", err)
	}
	return count > 0, nil
}

// createTable creates table with one TEXT column per schema column.
func (s *store) createTable(ctx context.Context, schema Schema, table TableName) error {
	if _, err := s.db.ExecContext(ctx, schema.createTableSQL(table)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	return nil
}

// replaceTable drops table and creates it again in a single transaction, so
// a failure leaves the old table in place.
func (s *store) replaceTable(ctx context.Context, schema Schema, table TableName) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, ignoreTxDone(tx.Rollback()))
		}
	}()

	if _, err = tx.ExecContext(ctx, `DROP TABLE `+table.quoted()); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	if _, err = tx.ExecContext(ctx, schema.createTableSQL(table)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit table replacement: %w", err)
	}
	return nil
}

// countRows returns the number of rows in table.
func (s *store) countRows(ctx context.Context, table TableName) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table.quoted()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return count, nil
}

// inserter writes records with a prepared statement, committing every
// chunkSize rows. Rows already inserted are committed even when the caller's
// context is cancelled, so an aborted run keeps its completed inserts.
type inserter struct {
	db        *sql.DB
	query     string
	chunkSize int
	tx        *sql.Tx
	stmt      *sql.Stmt
	pending   int
	committed int
}

// newInserter prepares an inserter for table.
func (s *store) newInserter(schema Schema, table TableName, chunkSize ChunkSize) *inserter {
	return &inserter{
		db:        s.db,
		query:     schema.insertSQL(table),
		chunkSize: NewChunkSize(chunkSize.Int()).Int(),
	}
}

// insert adds one record to the current chunk.
func (in *inserter) insert(ctx context.Context, record Record) error {
	if in.tx == nil {
		if err := in.begin(ctx); err != nil {
			return err
		}
	}

	if _, err := in.stmt.ExecContext(ctx, record.args()...); err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	in.pending++

	if in.pending >= in.chunkSize {
		return in.commit()
	}
	return nil
}

// begin starts a transaction detached from ctx cancellation and prepares the
// insert statement inside it.
func (in *inserter) begin(ctx context.Context) error {
	tx, err := in.db.BeginTx(context.WithoutCancel(ctx), nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, in.query) //nolint:sqlclosecheck // Statement is closed in commit
	if err != nil {
		return errors.Join(fmt.Errorf("failed to prepare insert statement: %w", err), ignoreTxDone(tx.Rollback()))
	}
	in.tx = tx
	in.stmt = stmt
	return nil
}

// commit commits the pending chunk. It is a no-op without an open transaction.
func (in *inserter) commit() error {
	if in.tx == nil {
		return nil
	}
	tx, stmt := in.tx, in.stmt
	in.tx, in.stmt = nil, nil

	_ = stmt.Close() // Ignore close error; the commit reports what matters
	if err := tx.Commit(); err != nil {
		in.pending = 0
		return fmt.Errorf("failed to commit inserted rows: %w", err)
	}
	in.committed += in.pending
	in.pending = 0
	return nil
}

// inserted returns the number of committed rows.
func (in *inserter) inserted() int {
	return in.committed
}

// ignoreTxDone drops sql.ErrTxDone, which only means the transaction already ended.
func ignoreTxDone(err error) error {
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// removeDatabaseFiles deletes the database file at path and its SQLite
// sidecar files. Missing files are not an error.
func removeDatabaseFiles(path string) error {
	var errs []error
	for _, p := range append([]string{path}, sidecarPaths(path)...) {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

func sidecarPaths(path string) []string {
	paths := make([]string, 0, len(sqliteSidecars))
	for _, suffix := range sqliteSidecars {
		paths = append(paths, path+suffix)
	}
	return paths
}
