// Command lineload loads a delimited text file into a SQLite table.
//
// Every setting is a flag and may also come from a YAML or JSON file given
// with --config; flags on the command line win.
//
//	lineload -i combo.txt.zst -d : -C email,password -o ./out -D combo -t accounts
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/nao1215/lineload"
	"github.com/nao1215/lineload/internal/logging"
)

const version = "0.1.0"

// Exit codes
const (
	exitOK          = 0
	exitFailure     = 1
	exitInvalidArgs = 2
)

// CLI defines the command-line interface for lineload.
type CLI struct {
	Config  kong.ConfigFlag  `short:"c" help:"Read flags from a YAML or JSON file."`
	Version kong.VersionFlag `help:"Print version information."`

	Input     string   `short:"i" help:"Delimited text file to load (.gz, .bz2, .xz and .zst are decompressed)." type:"path"`
	Delimiter string   `short:"d" help:"Literal field delimiter. Escapes such as \\t are understood."`
	Columns   []string `short:"C" sep:"," help:"Comma-separated column names, in field order."`
	OutputDir string   `name:"output-dir" short:"o" help:"Directory for the database file (default: working directory)." type:"path"`
	Database  string   `short:"D" help:"Database file name; .db is appended when missing."`
	Table     string   `short:"t" help:"Destination table name."`

	OnFileConflict  string   `name:"on-file-conflict" enum:"cancel,overwrite,rename,reuse" default:"cancel" help:"When the database file exists: ${enum}."`
	OnTableConflict string   `name:"on-table-conflict" enum:"cancel,overwrite,rename" default:"cancel" help:"When the table exists: ${enum}."`
	RenameFile      []string `name:"rename-file" sep:"," help:"Database file names to try, in order, on rename."`
	RenameTable     []string `name:"rename-table" sep:"," help:"Table names to try, in order, on rename."`

	Encoding     string `short:"e" help:"Force the input encoding and skip detection."`
	DecodeErrors string `name:"decode-errors" enum:"skip,replace" default:"skip" help:"Undecodable lines: ${enum}."`
	SampleSize   int    `name:"sample-size" default:"10000" help:"Bytes sampled for encoding detection."`
	ChunkSize    int    `name:"chunk-size" default:"1000" help:"Rows committed per transaction."`

	LogLevel  string `name:"log-level" enum:"debug,info,warn,error" default:"info" help:"Log level: ${enum}."`
	LogFormat string `name:"log-format" enum:"text,json" default:"text" help:"Log format: ${enum}."`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run parses args and performs the load, returning the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var cli CLI
	exited := -1

	parser, err := kong.New(&cli,
		kong.Name("lineload"),
		kong.Description("Load a delimited text file into a SQLite table."),
		kong.Writers(stdout, stderr),
		kong.Configuration(configLoader),
		kong.Vars{"version": version},
		kong.Exit(func(code int) {
			if exited < 0 {
				exited = code
			}
		}),
	)
	if err != nil {
		fmt.Fprintf(stderr, "lineload: %v\n", err)
		return exitFailure
	}

	if _, err := parser.Parse(args); err != nil {
		if exited >= 0 {
			return exited
		}
		fmt.Fprintf(stderr, "lineload: %v\n", err)
		return exitInvalidArgs
	}
	if exited >= 0 {
		return exited
	}

	return cli.Run(ctx, stdout, stderr)
}

// Run performs the load described by the parsed flags.
func (c *CLI) Run(ctx context.Context, stdout, stderr io.Writer) int {
	logger := logging.Setup(stderr, c.LogLevel, c.LogFormat)

	cfg, err := c.loadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "lineload: %v\n", err)
		return exitInvalidArgs
	}

	result, err := lineload.Load(ctx, cfg, lineload.WithLogger(logger))
	switch {
	case err == nil:
	case errors.Is(err, lineload.ErrInvalidConfig):
		fmt.Fprintf(stderr, "lineload: %v\n", err)
		return exitInvalidArgs
	case errors.Is(err, lineload.ErrCancelled):
		fmt.Fprintf(stderr, "lineload: %v\n", err)
		return exitFailure
	default:
		fmt.Fprintf(stderr, "lineload: %v\n", err)
		if result != nil && result.Inserted > 0 {
			fmt.Fprintf(stderr, "lineload: %d rows were committed to '%s' before the failure\n", result.Inserted, result.DatabasePath)
		}
		return exitFailure
	}

	fmt.Fprintf(stdout, "Data successfully parsed and saved to '%s' in the table '%s'.\n", result.DatabasePath, result.Table)
	fmt.Fprintf(stdout, "Inserted %d rows, skipped %d lines.\n", result.Inserted, result.Skipped)
	return exitOK
}

// loadConfig converts the flags into a lineload.Config.
func (c *CLI) loadConfig() (lineload.Config, error) {
	fileAction, err := lineload.ParseConflictAction(c.OnFileConflict)
	if err != nil {
		return lineload.Config{}, err
	}
	tableAction, err := lineload.ParseConflictAction(c.OnTableConflict)
	if err != nil {
		return lineload.Config{}, err
	}
	policy, err := lineload.ParseDecodePolicy(c.DecodeErrors)
	if err != nil {
		return lineload.Config{}, err
	}
	delimiter, err := unescapeDelimiter(c.Delimiter)
	if err != nil {
		return lineload.Config{}, err
	}

	return lineload.Config{
		InputPath:     c.Input,
		Delimiter:     delimiter,
		Columns:       c.Columns,
		OutputDir:     c.OutputDir,
		DatabaseName:  c.Database,
		TableName:     c.Table,
		FileConflict:  lineload.ConflictPolicy{Action: fileAction, RenameTo: c.RenameFile},
		TableConflict: lineload.ConflictPolicy{Action: tableAction, RenameTo: c.RenameTable},
		Encoding:      c.Encoding,
		DecodePolicy:  policy,
		SampleSize:    c.SampleSize,
		ChunkSize:     c.ChunkSize,
	}, nil
}

// unescapeDelimiter interprets Go escape sequences, so "\t" typed in a shell
// means a tab.
func unescapeDelimiter(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	unquoted, err := strconv.Unquote(`"` + strings.ReplaceAll(s, `"`, `\"`) + `"`)
	if err != nil {
		return "", fmt.Errorf("invalid delimiter %q: %w", s, err)
	}
	return unquoted, nil
}
