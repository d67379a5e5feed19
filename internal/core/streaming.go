package core

// streaming.go prepares an uploaded or on-disk export for CSV parsing.
//
// Exports come out of Excel as often as out of the reporting pipeline, so the
// byte stream may start with a BOM, contain stray invalid UTF-8, or be encoded
// in a legacy Western code page. WrapForStreaming normalizes all of that to
// clean UTF-8 without buffering the whole file.

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultEncoding is assumed when no encoding is configured.
const DefaultEncoding = "utf-8"

// ErrUnsupportedEncoding is returned for encoding names that cannot be resolved.
var ErrUnsupportedEncoding = errors.New("unsupported encoding")

// LookupEncoding resolves an encoding label such as "utf-8", "windows-1252" or "latin1".
// Labels are matched case-insensitively; WHATWG labels are accepted as a fallback.
func LookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return unicode.UTF8, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1, nil
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, name)
	}
	return enc, nil
}

// CountingReader wraps an io.Reader to track bytes read.
// BytesRead and Progress are safe to call while another goroutine reads.
type CountingReader struct {
	reader io.Reader
	read   atomic.Int64
	total  int64 // 0 if unknown
}

// NewCountingReader creates a counting reader with optional total size.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{
		reader: r,
		total:  total,
	}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.read.Add(int64(n))
	return n, err
}

// BytesRead returns the number of bytes read so far.
func (r *CountingReader) BytesRead() int64 {
	return r.read.Load()
}

// Progress returns the read progress as a percentage (0-100).
// Returns 0 if total is unknown.
func (r *CountingReader) Progress() int {
	if r.total <= 0 {
		return 0
	}
	p := int(r.read.Load() * 100 / r.total)
	if p > 100 {
		p = 100
	}
	return p
}

// WrapForStreaming decodes r from the named encoding into UTF-8.
//
// A leading BOM always wins over the configured encoding and is dropped.
// Invalid byte sequences become U+FFFD instead of failing the load.
func WrapForStreaming(r io.Reader, encodingName string) (io.Reader, error) {
	enc, err := LookupEncoding(encodingName)
	if err != nil {
		return nil, err
	}
	decoder := unicode.BOMOverride(enc.NewDecoder())
	return transform.NewReader(r, decoder), nil
}
