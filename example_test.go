package lineload_test

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nao1215/lineload"
)

func ExampleLoad() {
	dir, err := os.MkdirTemp("", "lineload-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "combo.txt")
	data := "alice@example.com:secret\nnot a record\nbob@example.com:hunter2\n"
	if err := os.WriteFile(input, []byte(data), 0o600); err != nil {
		log.Fatal(err)
	}

	result, err := lineload.Load(context.Background(), lineload.Config{
		InputPath:    input,
		Delimiter:    ":",
		Columns:      []string{"email", "password"},
		OutputDir:    dir,
		DatabaseName: "combo",
		TableName:    "accounts",
		Encoding:     "utf-8",
	}, lineload.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(filepath.Base(result.DatabasePath), result.Table)
	fmt.Printf("inserted=%d skipped=%d\n", result.Inserted, result.Skipped)
	// Output:
	// combo.db accounts
	// inserted=2 skipped=1
}

func ExampleNewBuilder() {
	dir, err := os.MkdirTemp("", "lineload-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "people.txt")
	if err := os.WriteFile(input, []byte("1|Alice|Tokyo\n2|Bob\n"), 0o600); err != nil {
		log.Fatal(err)
	}

	loader, err := lineload.NewBuilder().
		Input(input).
		Delimiter("|").
		Columns("id", "name", "city").
		Output(dir, "people").
		Table("people").
		Encoding("utf-8").
		WithOptions(
			lineload.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
			lineload.WithSkipHandler(func(s lineload.SkippedLine) {
				fmt.Println("skipped:", s.Reason)
			}),
		).
		Build()
	if err != nil {
		log.Fatal(err)
	}

	result, err := loader.Load(context.Background())
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("inserted:", result.Inserted)
	// Output:
	// skipped: line 2: incorrect number of columns: got 2, want 3
	// inserted: 1
}

func ExampleChooseEncoding() {
	choice := lineload.ChooseEncoding(lineload.Detection{Charset: "Shift_JIS", Confidence: 0.3}, lineload.DefaultConfidenceThreshold)
	fmt.Println(choice.Encoding.Name(), choice.Fallback)

	choice = lineload.ChooseEncoding(lineload.Detection{Charset: "Shift_JIS", Confidence: 0.9}, lineload.DefaultConfidenceThreshold)
	fmt.Println(choice.Encoding.Name(), choice.Fallback)
	// Output:
	// ISO-8859-1 true
	// Shift_JIS false
}
