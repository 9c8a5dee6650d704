package lineload

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/transform"
)

// utf8BOM is stripped from the first line of UTF-8 input.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Line is one decoded input line without its line terminator.
type Line struct {
	// Number is the 1-based line number in the decompressed stream
	Number int
	// Text is the decoded line; empty when Err is set
	Text string
	// Raw holds the undecoded bytes, used for reporting
	Raw []byte
	// Err is a *DecodeError when the line is not valid in the chosen encoding
	Err error
}

// LineReader is a lazy, forward-only sequence of decoded lines read from a
// plain or compressed file. It is not restartable; open a new reader for
// another pass.
//
//	r, err := OpenLineReader(path, UTF8Encoding(), DecodeSkip)
//	if err != nil {
//		return err
//	}
//	defer r.Close()
//	for r.Next() {
//		line := r.Line()
//		...
//	}
//	if err := r.Err(); err != nil {
//		return err
//	}
type LineReader struct {
	path        string
	compression CompressionType
	encoding    Encoding
	policy      DecodePolicy
	reader      *bufio.Reader
	cleanup     func() error
	line        Line
	number      int
	err         error
	done        bool
}

// OpenLineReader opens path, wraps it in the decompressor its suffix names,
// and prepares to decode lines with enc.
func OpenLineReader(path string, enc Encoding, policy DecodePolicy) (*LineReader, error) {
	if enc.IsZero() {
		enc = PermissiveEncoding()
	}

	reader, cleanup, err := openDecompressed(path)
	if err != nil {
		return nil, err
	}
	if enc.wide {
		reader = transform.NewReader(reader, enc.enc.NewDecoder())
	}

	return &LineReader{
		path:        path,
		compression: DetectCompressionType(path),
		encoding:    enc,
		policy:      policy,
		reader:      bufio.NewReader(reader),
		cleanup:     cleanup,
	}, nil
}

// Next advances to the next line. It returns false at end of input or after
// a read error; check Err to tell them apart.
func (r *LineReader) Next() bool {
	if r.done {
		return false
	}

	raw, err := r.reader.ReadBytes('\n')
	if err != nil {
		r.done = true
		if !errors.Is(err, io.EOF) {
			r.err = fmt.Errorf("failed to read line %d: %w", r.number+1, err)
			return false
		}
		if len(raw) == 0 {
			return false
		}
	}

	r.number++
	raw = trimLineTerminator(raw)
	if r.number == 1 && r.encoding.utf8 {
		raw = bytes.TrimPrefix(raw, utf8BOM)
	}

	text, decodeErr := r.encoding.decode(raw, r.policy)
	r.line = Line{Number: r.number, Text: text, Raw: raw}
	if decodeErr != nil {
		r.line.Err = &DecodeError{Line: r.number, Encoding: r.encoding.Name(), Err: decodeErr}
	}
	return true
}

// Line returns the current line.
func (r *LineReader) Line() Line {
	return r.line
}

// Err returns the first non-EOF error encountered while reading.
func (r *LineReader) Err() error {
	return r.err
}

// Compression returns the compression type of the underlying file.
func (r *LineReader) Compression() CompressionType {
	return r.compression
}

// Close releases the decompressor and the file. It is safe to call twice.
func (r *LineReader) Close() error {
	if r.cleanup == nil {
		return nil
	}
	cleanup := r.cleanup
	r.cleanup = nil
	r.done = true
	return cleanup()
}

// trimLineTerminator removes a trailing "\n" or "\r\n".
func trimLineTerminator(raw []byte) []byte {
	raw = bytes.TrimSuffix(raw, []byte("\n"))
	return bytes.TrimSuffix(raw, []byte("\r"))
}
