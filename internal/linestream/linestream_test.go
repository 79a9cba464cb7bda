package linestream

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

// chunkReader hands out data in the given chunk sizes, cycling through them.
type chunkReader struct {
	data  []byte
	sizes []int
	n     int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	sz := c.sizes[c.n%len(c.sizes)]
	c.n++
	if sz > len(c.data) {
		sz = len(c.data)
	}
	if sz > len(p) {
		sz = len(p)
	}
	n := copy(p, c.data[:sz])
	c.data = c.data[n:]
	return n, nil
}

func mustLines(t *testing.T, r io.Reader) []string {
	t.Helper()
	got, err := Lines(r)
	if err != nil {
		t.Fatalf("Lines: %v", err)
	}
	return got
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestMixedTerminators(t *testing.T) {
	got := mustLines(t, strings.NewReader("a\r\nb\nc\rd"))
	want := []string{"a", "b", "c", "d"}
	if !equal(got, want) {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestEmptyStream(t *testing.T) {
	if got := mustLines(t, strings.NewReader("")); len(got) != 0 {
		t.Fatalf("expected no lines, got %q", got)
	}
}

func TestNoTerminator(t *testing.T) {
	got := mustLines(t, strings.NewReader("just one line"))
	if !equal(got, []string{"just one line"}) {
		t.Fatalf("got %q", got)
	}
}

func TestOnlyTerminators(t *testing.T) {
	cases := map[string][]string{
		"\n":       {""},
		"\n\n":     {"", ""},
		"\r\n\r\n": {"", ""},
		"\r\r":     {"", ""},
		"\n\r":     {"", ""},
	}
	for in, want := range cases {
		if got := mustLines(t, strings.NewReader(in)); !equal(got, want) {
			t.Errorf("%q: got %q want %q", in, got, want)
		}
	}
}

func TestTrailingTerminatorAddsNoLine(t *testing.T) {
	got := mustLines(t, strings.NewReader("tok\n{}\n"))
	if !equal(got, []string{"tok", "{}"}) {
		t.Fatalf("got %q", got)
	}
}

func TestChunkBoundaryIndependence(t *testing.T) {
	inputs := []string{
		"a\r\nb\nc\rd",
		"first\r\nsecond\r\n\r\nfourth",
		"æøå\n日本語テキスト\r\n🙂 emoji\rtail",
		"\r\n\r\n\n\r",
		"no terminators but ünïcödé",
		"x\r",
	}
	sizes := [][]int{{1}, {2}, {3}, {1, 4}, {5, 1, 2}, {7}, {1 << 20}}
	for _, in := range inputs {
		want := mustLines(t, strings.NewReader(in))
		for _, sz := range sizes {
			got := mustLines(t, &chunkReader{data: []byte(in), sizes: sz})
			if !equal(got, want) {
				t.Errorf("%q chunks %v: got %q want %q", in, sz, got, want)
			}
			if strings.Join(got, "\n") != strings.Join(want, "\n") {
				t.Errorf("%q chunks %v: joined output differs", in, sz)
			}
		}
	}
}

func TestSplitMultiByteRune(t *testing.T) {
	// "é" is 0xC3 0xA9; deliver the two bytes in separate reads.
	got := mustLines(t, iotest.OneByteReader(strings.NewReader("caf\xc3\xa9\nok")))
	if !equal(got, []string{"café", "ok"}) {
		t.Fatalf("got %q", got)
	}
}

func TestByteOrderMarkDropped(t *testing.T) {
	got := mustLines(t, iotest.HalfReader(strings.NewReader("\ufefftok\nline")))
	if !equal(got, []string{"tok", "line"}) {
		t.Fatalf("got %q", got)
	}
}

func TestInvalidUTF8Replaced(t *testing.T) {
	got := mustLines(t, strings.NewReader("a\xffb\n"))
	if !equal(got, []string{"a\ufffdb"}) {
		t.Fatalf("got %q", got)
	}
}

func TestReadErrorSurfaces(t *testing.T) {
	boom := errors.New("boom")
	d := NewDecoder(io.MultiReader(strings.NewReader("a\nb"), iotest.ErrReader(boom)))
	var got []string
	for d.Next() {
		got = append(got, d.Line())
	}
	// the fragment buffered before the failure is still flushed
	if !equal(got, []string{"a", "b"}) {
		t.Fatalf("got %q", got)
	}
	if !errors.Is(d.Err(), boom) {
		t.Fatalf("err = %v; want boom", d.Err())
	}
}

func TestMaxLineSize(t *testing.T) {
	_, err := Lines(strings.NewReader(strings.Repeat("x", 100)+"\n"), WithMaxLineSize(16))
	if !errors.Is(err, bufio.ErrTooLong) {
		t.Fatalf("err = %v; want ErrTooLong", err)
	}
}

func TestCount(t *testing.T) {
	d := NewDecoder(strings.NewReader("1\n2\n3"))
	for d.Next() {
	}
	if d.Count() != 3 {
		t.Fatalf("count = %d", d.Count())
	}
}
