// Package lineload loads line-delimited text files into a SQLite table.
//
// Each input line is split on a literal delimiter and inserted as one row
// when the number of fields equals the number of configured columns. Lines
// with any other field count, and lines that cannot be decoded, are skipped
// and reported. Every column is declared TEXT.
//
// # Features
//
//   - Transparent decompression of gzip, bzip2, xz and zstandard input
//     (".gz", ".bz2", ".xz", ".zst")
//   - Statistical encoding detection on the first 10,000 bytes, with a
//     fallback to ISO-8859-1 when the detector's confidence is below 0.5
//   - Overwrite, rename or cancel when the database file or table exists
//   - Strict table and column name validation; values are always bound
//     parameters
//   - Pure Go SQLite (modernc.org/sqlite), no cgo
//
// # Basic Usage
//
//	result, err := lineload.Load(ctx, lineload.Config{
//	    InputPath:    "combo.txt.zst",
//	    Delimiter:    ":",
//	    Columns:      []string{"email", "password"},
//	    OutputDir:    "./out",
//	    DatabaseName: "combo",
//	    TableName:    "accounts",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Inserted, "rows in", result.DatabasePath)
//
// # Conflicts
//
// When the database file exists, Config.FileConflict decides: overwrite
// deletes it, rename tries other names until one is free, cancel stops
// before anything is written, and reuse opens it to add a table. The table
// is then checked the same way with Config.TableConflict. Cancelling at the
// table step keeps the database file, which the file step may have just
// created.
//
// # Decoding
//
// With DecodeSkip (the default) a line containing byte sequences that are
// invalid in the chosen encoding is skipped, for plain and compressed input
// alike. DecodeReplace keeps such lines with U+FFFD in place of the invalid
// sequences.
//
// # Limitations
//
// There is no quoting or escaping. A delimiter inside a value is
// indistinguishable from a field boundary, and a record cannot span lines.
package lineload
