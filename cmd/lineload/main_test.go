package main

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/lineload"
)

func writeInput(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "combo.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func countRows(t *testing.T, dbPath, table string) int {
	t.Helper()
	db, err := sql.Open(lineload.DriverName, dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "`+table+`"`).Scan(&n))
	return n
}

func TestRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := writeInput(t, dir, "a@example.com:1\nbroken\nb@example.com:2\n")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"-i", input, "-d", ":", "-C", "email,password",
		"-o", dir, "-D", "combo", "-t", "accounts",
		"-e", "utf-8", "--log-level", "error",
	}, &stdout, &stderr)

	require.Equal(t, exitOK, code, stderr.String())
	dbPath := filepath.Join(dir, "combo.db")
	assert.Contains(t, stdout.String(), "Data successfully parsed and saved to '"+dbPath+"' in the table 'accounts'.")
	assert.Contains(t, stdout.String(), "Inserted 2 rows, skipped 1 lines.")
	assert.Equal(t, 2, countRows(t, dbPath, "accounts"))
}

func TestRun_ConfigFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := writeInput(t, dir, "a@example.com:1\nb@example.com:2\nc@example.com:3\n")
	args := []string{"--config", filepath.Join("testdata", "config.yaml"), "-i", input, "-o", dir, "--log-level", "error"}

	var stdout, stderr bytes.Buffer
	require.Equal(t, exitOK, run(context.Background(), args, &stdout, &stderr), stderr.String())

	// The file sets reuse and overwrite, so a second run replaces the table.
	stdout.Reset()
	require.Equal(t, exitOK, run(context.Background(), args, &stdout, &stderr), stderr.String())
	assert.Contains(t, stdout.String(), "Inserted 3 rows")
	assert.Equal(t, 3, countRows(t, filepath.Join(dir, "combo.db"), "accounts"))
}

func TestRun_CommandLineOverridesConfigFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := writeInput(t, dir, "a@example.com:1\n")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"--config", filepath.Join("testdata", "config.yaml"),
		"-i", input, "-o", dir, "-t", "override", "--log-level", "error",
	}, &stdout, &stderr)

	require.Equal(t, exitOK, code, stderr.String())
	assert.Contains(t, stdout.String(), "in the table 'override'")
}

func TestRun_TableConflictCancel(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := writeInput(t, dir, "a@example.com:1\n")
	args := []string{
		"-i", input, "-d", ":", "-C", "email,password",
		"-o", dir, "-D", "combo", "-t", "accounts", "-e", "utf-8",
		"--on-file-conflict", "reuse", "--log-level", "error",
	}

	var stdout, stderr bytes.Buffer
	require.Equal(t, exitOK, run(context.Background(), args, &stdout, &stderr), stderr.String())

	stderr.Reset()
	code := run(context.Background(), args, &stdout, &stderr)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr.String(), "already exists")
	assert.Equal(t, 1, countRows(t, filepath.Join(dir, "combo.db"), "accounts"))
}

func TestRun_InvalidArguments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := writeInput(t, dir, "a:b\n")

	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown flag", args: []string{"--bogus"}},
		{name: "bad enum", args: []string{"-i", input, "--on-table-conflict", "reuse"}},
		{name: "missing settings", args: []string{"-i", input}},
		{name: "invalid table name", args: []string{"-i", input, "-d", ":", "-C", "a,b", "-o", dir, "-D", "x", "-t", "bad name"}},
		{name: "invalid delimiter escape", args: []string{"-i", input, "-d", `\q`, "-C", "a,b", "-o", dir, "-D", "x", "-t", "t"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var stdout, stderr bytes.Buffer
			code := run(context.Background(), append(tt.args, "--log-level", "error"), &stdout, &stderr)
			assert.Equal(t, exitInvalidArgs, code)
			assert.NotEmpty(t, stderr.String())
		})
	}
}

func TestRun_Version(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--version"}, &stdout, &stderr)
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout.String(), version)
}

func TestUnescapeDelimiter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: ":", want: ":"},
		{input: `\t`, want: "\t"},
		{input: `\x1f`, want: "\x1f"},
		{input: `"|"`, want: `"|"`},
		{input: `a\"b`, want: `a"b`},
		{input: `\q`, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got, err := unescapeDelimiter(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigLoader(t *testing.T) {
	t.Parallel()

	t.Run("yaml", func(t *testing.T) {
		t.Parallel()
		resolver, err := configLoader(strings.NewReader("columns: [a, b]\nchunk_size: 5\n"))
		require.NoError(t, err)
		assert.NotNil(t, resolver)
	})

	t.Run("json", func(t *testing.T) {
		t.Parallel()
		resolver, err := configLoader(strings.NewReader(`{"table": "accounts", "sample-size": 100}`))
		require.NoError(t, err)
		assert.NotNil(t, resolver)
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		_, err := configLoader(strings.NewReader(""))
		assert.NoError(t, err)
	})

	t.Run("malformed", func(t *testing.T) {
		t.Parallel()
		_, err := configLoader(strings.NewReader("columns: [a, b\n"))
		assert.Error(t, err)
	})
}

func TestFlagValue(t *testing.T) {
	t.Parallel()

	assert.Nil(t, flagValue(nil))
	assert.Equal(t, "a,b", flagValue([]any{"a", "b"}))
	assert.Equal(t, "5", flagValue(5))
	assert.Equal(t, "true", flagValue(true))
	assert.Equal(t, ":", flagValue(":"))
}
