package lineload

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

const (
	// DefaultSampleSize is the number of leading bytes handed to the detector
	DefaultSampleSize = 10000
	// DefaultConfidenceThreshold is the confidence below which a guess is discarded
	DefaultConfidenceThreshold = 0.5
	// PermissiveEncodingName names the fallback encoding. ISO-8859-1 maps every
	// byte to a code point, so decoding with it never fails.
	PermissiveEncodingName = "ISO-8859-1"
	// UTF8EncodingName names UTF-8
	UTF8EncodingName = "UTF-8"
)

// Encoding is a named text encoding used to decode input lines.
type Encoding struct {
	name string
	enc  encoding.Encoding
	// utf8 sources are validated rather than transcoded
	utf8 bool
	// wide encodings (UTF-16, UTF-32) are transcoded as a stream before
	// lines are split, because their newline is more than one byte.
	wide bool
}

// Name returns the encoding name.
func (e Encoding) Name() string {
	return e.name
}

// IsZero reports whether e is the zero Encoding.
func (e Encoding) IsZero() bool {
	return e.enc == nil
}

// PermissiveEncoding returns the fallback single-byte encoding.
func PermissiveEncoding() Encoding {
	return Encoding{name: PermissiveEncodingName, enc: charmap.ISO8859_1}
}

// UTF8Encoding returns UTF-8.
func UTF8Encoding() Encoding {
	return Encoding{name: UTF8EncodingName, enc: unicode.UTF8, utf8: true}
}

// LookupEncoding resolves a charset name (IANA or WHATWG label) to an Encoding.
func LookupEncoding(name string) (Encoding, error) {
	label := strings.ToLower(strings.TrimSpace(name))
	switch label {
	case "":
		return Encoding{}, fmt.Errorf("%w: empty name", ErrUnsupportedEncoding)
	case "utf-8", "utf8":
		return UTF8Encoding(), nil
	case "iso-8859-1", "latin1", "latin-1", "l1":
		// htmlindex maps these labels to windows-1252, which is not permissive.
		return PermissiveEncoding(), nil
	case "utf-16be":
		return Encoding{name: "UTF-16BE", enc: unicode.UTF16(unicode.BigEndian, unicode.UseBOM), wide: true}, nil
	case "utf-16le", "utf-16":
		return Encoding{name: strings.ToUpper(label), enc: unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), wide: true}, nil
	case "utf-32be":
		return Encoding{name: "UTF-32BE", enc: utf32.UTF32(utf32.BigEndian, utf32.UseBOM), wide: true}, nil
	case "utf-32le", "utf-32":
		return Encoding{name: strings.ToUpper(label), enc: utf32.UTF32(utf32.LittleEndian, utf32.UseBOM), wide: true}, nil
	case "gb-18030":
		label = "gb18030"
	}

	// htmlindex maps some legacy labels to the replacement encoding, which
	// decodes everything to U+FFFD.
	if enc, err := htmlindex.Get(label); err == nil && enc != encoding.Replacement {
		return Encoding{name: strings.TrimSpace(name), enc: enc}, nil
	}
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil || enc == nil || enc == encoding.Replacement {
		return Encoding{}, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, name)
	}
	return Encoding{name: strings.TrimSpace(name), enc: enc}, nil
}

// decode converts one raw line to a UTF-8 string.
func (e Encoding) decode(raw []byte, policy DecodePolicy) (string, error) {
	switch {
	case e.utf8:
		if utf8.Valid(raw) {
			return string(raw), nil
		}
		if policy == DecodeReplace {
			return strings.ToValidUTF8(string(raw), string(utf8.RuneError)), nil
		}
		return "", ErrInvalidDecode

	case e.wide:
		// Already transcoded by the stream decoder; invalid units became U+FFFD.
		return checkReplacement(string(raw), policy)

	default:
		decoded, err := e.enc.NewDecoder().Bytes(raw)
		if err != nil {
			if policy == DecodeReplace {
				return strings.ToValidUTF8(string(raw), string(utf8.RuneError)), nil
			}
			return "", fmt.Errorf("%w: %w", ErrInvalidDecode, err)
		}
		return checkReplacement(string(decoded), policy)
	}
}

// checkReplacement rejects text carrying replacement characters under DecodeSkip.
func checkReplacement(text string, policy DecodePolicy) (string, error) {
	if policy == DecodeSkip && strings.ContainsRune(text, utf8.RuneError) {
		return "", ErrInvalidDecode
	}
	return text, nil
}

// Detection is the result of statistical charset detection.
type Detection struct {
	// Charset is the detected charset name, e.g. "UTF-8" or "Shift_JIS"
	Charset string
	// Language is the detected language, when the detector reports one
	Language string
	// Confidence is in [0,1]
	Confidence float64
}

// Detector guesses the text encoding of a byte sample.
type Detector interface {
	Detect(sample []byte) (Detection, error)
}

// ChardetDetector is a Detector backed by github.com/saintfish/chardet.
type ChardetDetector struct {
	detector *chardet.Detector
}

// NewChardetDetector returns a text-mode chardet detector.
func NewChardetDetector() *ChardetDetector {
	return &ChardetDetector{detector: chardet.NewTextDetector()}
}

// Detect implements Detector.
func (d *ChardetDetector) Detect(sample []byte) (Detection, error) {
	if len(sample) == 0 {
		return Detection{}, ErrEmptySample
	}
	result, err := d.detector.DetectBest(sample)
	if err != nil {
		return Detection{}, fmt.Errorf("failed to detect encoding: %w", err)
	}
	return Detection{
		Charset:    result.Charset,
		Language:   result.Language,
		Confidence: float64(result.Confidence) / 100,
	}, nil
}

// EncodingChoice records which encoding a run decodes with and why.
type EncodingChoice struct {
	// Detection is the raw detector output; zero when the encoding was forced
	Detection Detection
	// Encoding is the encoding lines are decoded with
	Encoding Encoding
	// Fallback is true when the permissive encoding replaced the guess
	Fallback bool
	// Forced is true when the encoding came from configuration
	Forced bool
	// Reason explains a fallback
	Reason string
}

// ChooseEncoding applies the confidence policy to a detection. A guess below
// threshold, or one naming an encoding with no decoder, falls back to the
// permissive encoding.
func ChooseEncoding(d Detection, threshold float64) EncodingChoice {
	choice := EncodingChoice{Detection: d}
	if d.Confidence < threshold {
		choice.Encoding = PermissiveEncoding()
		choice.Fallback = true
		choice.Reason = fmt.Sprintf("confidence %.2f below %.2f", d.Confidence, threshold)
		return choice
	}

	enc, err := LookupEncoding(d.Charset)
	if err != nil {
		choice.Encoding = PermissiveEncoding()
		choice.Fallback = true
		choice.Reason = err.Error()
		return choice
	}
	choice.Encoding = enc
	return choice
}

// detectEncoding samples the first sampleSize decompressed bytes of path and
// runs the detector on them. Detection failures fall back; only I/O errors
// are returned.
func detectEncoding(path string, sampleSize int, threshold float64, detector Detector) (EncodingChoice, error) {
	reader, cleanup, err := openDecompressed(path)
	if err != nil {
		return EncodingChoice{}, err
	}
	defer func() { _ = cleanup() }()

	sample := make([]byte, sampleSize)
	n, err := io.ReadFull(reader, sample)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return EncodingChoice{}, fmt.Errorf("failed to read encoding sample: %w", err)
	}

	detection, err := detector.Detect(sample[:n])
	if err != nil {
		return EncodingChoice{
			Encoding: PermissiveEncoding(),
			Fallback: true,
			Reason:   err.Error(),
		}, nil
	}
	return ChooseEncoding(detection, threshold), nil
}
