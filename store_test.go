package lineload

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := openStore(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st, path
}

func mustSchema(t *testing.T, columns ...string) Schema {
	t.Helper()
	schema, err := NewSchema(columns...)
	require.NoError(t, err)
	return schema
}

func mustTable(t *testing.T, name string) TableName {
	t.Helper()
	table, err := NewTableName(name)
	require.NoError(t, err)
	return table
}

func TestOpenStore_CreatesFile(t *testing.T) {
	t.Parallel()

	_, path := newTestStore(t)
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestOpenStore_MissingDirectory(t *testing.T) {
	t.Parallel()

	_, err := openStore(context.Background(), filepath.Join(t.TempDir(), "missing", "test.db"))
	assert.Error(t, err)
}

func TestStore_TableLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st, _ := newTestStore(t)
	schema := mustSchema(t, "email", "password")
	table := mustTable(t, "accounts")

	exists, err := st.tableExists(ctx, table)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, st.createTable(ctx, schema, table))

	exists, err = st.tableExists(ctx, mustTable(t, "ACCOUNTS"))
	require.NoError(t, err)
	assert.True(t, exists, "table lookup ignores case")

	assert.Error(t, st.createTable(ctx, schema, table), "creating twice fails")

	ins := st.newInserter(schema, table, NewChunkSize(10))
	require.NoError(t, ins.insert(ctx, Record{"a@example.com", "x"}))
	require.NoError(t, ins.commit())

	count, err := st.countRows(ctx, table)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, st.replaceTable(ctx, mustSchema(t, "user", "pass", "source"), table))
	count, err = st.countRows(ctx, table)
	require.NoError(t, err)
	assert.Equal(t, 0, count, "replaced table is empty")
}

func TestStore_ReplaceMissingTableKeepsNothing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st, _ := newTestStore(t)
	table := mustTable(t, "absent")

	require.Error(t, st.replaceTable(ctx, mustSchema(t, "a"), table))

	exists, err := st.tableExists(ctx, table)
	require.NoError(t, err)
	assert.False(t, exists, "failed replacement is rolled back")
}

func TestInserter_Chunks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st, path := newTestStore(t)
	schema := mustSchema(t, "n")
	table := mustTable(t, "numbers")
	require.NoError(t, st.createTable(ctx, schema, table))

	ins := st.newInserter(schema, table, NewChunkSize(3))
	for _, v := range []string{"1", "2", "3", "4"} {
		require.NoError(t, ins.insert(ctx, Record{v}))
	}
	assert.Equal(t, 3, ins.inserted(), "a full chunk is committed")

	require.NoError(t, ins.commit())
	assert.Equal(t, 4, ins.inserted())
	require.NoError(t, ins.commit(), "commit without pending rows is a no-op")

	require.NoError(t, st.Close())
	assert.Equal(t, [][]string{{"1"}, {"2"}, {"3"}, {"4"}}, queryRows(t, path, "numbers"))
}

func TestInserter_CommitsAfterCancel(t *testing.T) {
	t.Parallel()

	st, _ := newTestStore(t)
	schema := mustSchema(t, "n")
	table := mustTable(t, "numbers")
	require.NoError(t, st.createTable(context.Background(), schema, table))

	ctx, cancel := context.WithCancel(context.Background())
	ins := st.newInserter(schema, table, NewChunkSize(100))
	require.NoError(t, ins.insert(ctx, Record{"1"}))
	require.NoError(t, ins.insert(ctx, Record{"2"}))
	cancel()

	require.NoError(t, ins.commit())
	assert.Equal(t, 2, ins.inserted())

	count, err := st.countRows(context.Background(), table)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestInserter_ValuesAreParameters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st, path := newTestStore(t)
	schema := mustSchema(t, "a", "b")
	table := mustTable(t, "t")
	require.NoError(t, st.createTable(ctx, schema, table))

	hostile := `x'); DROP TABLE "t"; --`
	ins := st.newInserter(schema, table, NewChunkSize(1))
	require.NoError(t, ins.insert(ctx, Record{hostile, `"quoted"`}))
	require.NoError(t, ins.commit())
	require.NoError(t, st.Close())

	assert.Equal(t, [][]string{{hostile, `"quoted"`}}, queryRows(t, path, "t"))
}

func TestRemoveDatabaseFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "old.db", []byte("db"))
	writeFile(t, dir, "old.db-journal", []byte("journal"))
	writeFile(t, dir, "old.db-wal", []byte("wal"))
	keep := writeFile(t, dir, "other.db", []byte("db"))

	require.NoError(t, removeDatabaseFiles(path))

	for _, p := range append([]string{path}, sidecarPaths(path)...) {
		_, err := os.Stat(p)
		assert.True(t, os.IsNotExist(err), "%s should be removed", p)
	}
	_, err := os.Stat(keep)
	assert.NoError(t, err)

	assert.NoError(t, removeDatabaseFiles(path), "missing files are not an error")
}
