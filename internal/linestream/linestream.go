// Package linestream reconstructs text lines from a chunked UTF-8 byte stream.
package linestream

import (
	"bufio"
	"bytes"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	initialBufSize = 64 * 1024
	// DefaultMaxLineSize bounds a single line; search records carry free-form
	// properties and can be large.
	DefaultMaxLineSize = 64 << 20
)

// Option configures a Decoder.
type Option func(*Decoder)

// WithMaxLineSize overrides DefaultMaxLineSize.
func WithMaxLineSize(n int) Option {
	return func(d *Decoder) { d.maxLine = n }
}

// Decoder yields the lines of a stream one at a time. It is finite and
// cannot be restarted.
type Decoder struct {
	sc      *bufio.Scanner
	maxLine int
	lines   int
}

// NewDecoder returns a Decoder reading from r. Bytes are decoded as UTF-8
// statefully, so characters split across reads decode correctly; a leading
// byte order mark is dropped and invalid sequences become U+FFFD.
func NewDecoder(r io.Reader, opts ...Option) *Decoder {
	d := &Decoder{maxLine: DefaultMaxLineSize}
	for _, o := range opts {
		o(d)
	}
	tr := transform.NewReader(r, unicode.UTF8BOM.NewDecoder())
	d.sc = bufio.NewScanner(tr)
	d.sc.Buffer(make([]byte, 0, min(initialBufSize, d.maxLine)), d.maxLine)
	d.sc.Split(ScanLines)
	return d
}

// Next advances to the next line. It returns false at the end of the stream
// or on error; Err distinguishes the two.
func (d *Decoder) Next() bool {
	if d.sc.Scan() {
		d.lines++
		return true
	}
	return false
}

// Line returns the most recent line without its terminator.
func (d *Decoder) Line() string { return d.sc.Text() }

// Err returns the first read error, or nil at a clean end of stream.
func (d *Decoder) Err() error { return d.sc.Err() }

// Count returns the number of lines yielded so far.
func (d *Decoder) Count() int { return d.lines }

// ScanLines is a bufio.SplitFunc splitting on "\r\n", "\n" or a lone "\r".
// A final fragment without a terminator is returned as a line. A '\r' at the
// end of the buffer waits for the next byte so a "\r\n" split across reads
// counts once.
func ScanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		switch {
		case i+1 < len(data) && data[i+1] == '\n':
			return i + 2, data[:i], nil
		case i+1 < len(data) || atEOF:
			return i + 1, data[:i], nil
		}
		return 0, nil, nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// Lines decodes all of r. Intended for small bodies and tests.
func Lines(r io.Reader, opts ...Option) ([]string, error) {
	d := NewDecoder(r, opts...)
	var out []string
	for d.Next() {
		out = append(out, d.Line())
	}
	return out, d.Err()
}
