//nolint:errcheck // Test cleanup error handling is intentionally ignored
package lineload

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

// writeFile writes data to dir/name and returns the path.
func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

// compress returns data compressed with the given type.
func compress(t *testing.T, compression CompressionType, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer

	switch compression {
	case CompressionNone:
		buf.Write(data)
	case CompressionGZ:
		w := gzip.NewWriter(&buf)
		_, err := w.Write(data)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	case CompressionXZ:
		w, err := xz.NewWriter(&buf)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	case CompressionZSTD:
		w, err := zstd.NewWriter(&buf)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	default:
		t.Fatalf("no writer for compression %v", compression)
	}
	return buf.Bytes()
}

// writeCompressed writes data compressed with the type's extension appended to name.
func writeCompressed(t *testing.T, dir, name string, compression CompressionType, data []byte) string {
	t.Helper()
	return writeFile(t, dir, name+compression.Extension(), compress(t, compression, data))
}

// queryRows returns every row of table in insertion order.
func queryRows(t *testing.T, dbPath, table string) [][]string {
	t.Helper()

	db, err := sql.Open(DriverName, dbPath)
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.Query(`SELECT * FROM ` + quoteIdentifier(table) + ` ORDER BY rowid`)
	require.NoError(t, err)
	defer rows.Close()

	columns, err := rows.Columns()
	require.NoError(t, err)

	var result [][]string
	for rows.Next() {
		values := make([]string, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		require.NoError(t, rows.Scan(ptrs...))
		result = append(result, values)
	}
	require.NoError(t, rows.Err())
	return result
}

// tableNames returns the user tables in the database at dbPath.
func tableNames(t *testing.T, dbPath string) []string {
	t.Helper()

	db, err := sql.Open(DriverName, dbPath)
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' ORDER BY name`)
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	return names
}

// fixedDetector is a Detector returning a canned result.
type fixedDetector struct {
	detection Detection
	err       error
	calls     int
}

func (d *fixedDetector) Detect(_ []byte) (Detection, error) {
	d.calls++
	return d.detection, d.err
}
