// Package netio implements the token-oriented reader/writer for the
// engine's persisted network format (§6/§4.7): identifier words, braces
// "{ }", square brackets "[ ]" with an explicit integer count
// immediately following the opening bracket, and colon-terminated keys.
//
// The grammar never needs quoting or escaping — identifiers are bare
// words — so the tokenizer is a plain whitespace splitter.
package netio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chhenning/flowengine/flowerr"
)

// Writer emits whitespace-separated tokens to an underlying io.Writer.
type Writer struct {
	w   *bufio.Writer
	err error
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

func (w *Writer) token(s string) {
	if w.err != nil {
		return
	}
	if _, err := w.w.WriteString(s); err != nil {
		w.err = err
		return
	}
	if _, err := w.w.WriteString(" "); err != nil {
		w.err = err
	}
}

// Ident writes a bare identifier token.
func (w *Writer) Ident(s string) *Writer { w.token(QuoteIfNeeded(s)); return w }

// Key writes a colon-terminated key token, e.g. "iteration:".
func (w *Writer) Key(s string) *Writer { w.token(s + ":"); return w }

// Int writes an integer token.
func (w *Writer) Int(n int64) *Writer { w.token(strconv.FormatInt(n, 10)); return w }

// OpenBrace writes "{".
func (w *Writer) OpenBrace() *Writer { w.token("{"); return w }

// CloseBrace writes "}".
func (w *Writer) CloseBrace() *Writer { w.token("}"); return w }

// OpenBracket writes "[" followed immediately by the element count.
func (w *Writer) OpenBracket(count int) *Writer {
	w.token("[")
	w.token(strconv.Itoa(count))
	return w
}

// CloseBracket writes "]".
func (w *Writer) CloseBracket() *Writer { w.token("]"); return w }

// Float64 writes a float64 token in a round-trip-safe format.
func (w *Writer) Float64(f float64) *Writer {
	w.token(strconv.FormatFloat(f, 'g', -1, 64))
	return w
}

// Bytes writes n raw bytes as hex, one token. An empty slice is written
// as the placeholder "-" so the tokenizer never sees a zero-length word.
func (w *Writer) Bytes(b []byte) *Writer {
	if len(b) == 0 {
		w.token("-")
		return w
	}
	w.token(fmt.Sprintf("%x", b))
	return w
}

// Newline emits a newline for readability; purely cosmetic.
func (w *Writer) Newline() *Writer {
	if w.err == nil {
		if _, err := w.w.WriteString("\n"); err != nil {
			w.err = err
		}
	}
	return w
}

// Flush flushes the underlying buffered writer and returns the first
// write error encountered, if any.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	return w.w.Flush()
}

// Reader tokenizes an underlying io.Reader on demand.
type Reader struct {
	sc   *bufio.Scanner
	peek *string
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	return &Reader{sc: sc}
}

// Next consumes and returns the next token.
func (r *Reader) Next() (string, error) {
	if r.peek != nil {
		t := *r.peek
		r.peek = nil
		return t, nil
	}
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("netio: unexpected end of input: %w", flowerr.ErrMalformedState)
	}
	return r.sc.Text(), nil
}

// Peek returns the next token without consuming it.
func (r *Reader) Peek() (string, error) {
	if r.peek != nil {
		return *r.peek, nil
	}
	t, err := r.Next()
	if err != nil {
		return "", err
	}
	r.peek = &t
	return t, nil
}

// ExpectIdent consumes a token and requires it to equal want.
func (r *Reader) ExpectIdent(want string) error {
	got, err := r.Next()
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("netio: expected %q, got %q: %w", want, got, flowerr.ErrMalformedState)
	}
	return nil
}

// ReadIdent consumes and returns the next token as a bare identifier.
func (r *Reader) ReadIdent() (string, error) { return r.Next() }

// ExpectKey consumes a token and requires it to equal key+":".
func (r *Reader) ExpectKey(key string) error { return r.ExpectIdent(key + ":") }

// ReadInt consumes the next token and parses it as an integer.
func (r *Reader) ReadInt() (int64, error) {
	t, err := r.Next()
	if err != nil {
		return 0, err
	}
	n, perr := strconv.ParseInt(t, 10, 64)
	if perr != nil {
		return 0, fmt.Errorf("netio: expected integer, got %q: %w", t, flowerr.ErrMalformedState)
	}
	return n, nil
}

// ReadFloat64 consumes the next token and parses it as a float64.
func (r *Reader) ReadFloat64() (float64, error) {
	t, err := r.Next()
	if err != nil {
		return 0, err
	}
	f, perr := strconv.ParseFloat(t, 64)
	if perr != nil {
		return 0, fmt.Errorf("netio: expected float, got %q: %w", t, flowerr.ErrMalformedState)
	}
	return f, nil
}

// ReadBytes consumes the next token and decodes it as hex.
func (r *Reader) ReadBytes() ([]byte, error) {
	t, err := r.Next()
	if err != nil {
		return nil, err
	}
	if t == "-" {
		return nil, nil
	}
	out := make([]byte, len(t)/2)
	for i := range out {
		var b int
		if _, err := fmt.Sscanf(t[i*2:i*2+2], "%02x", &b); err != nil {
			return nil, fmt.Errorf("netio: malformed hex token %q: %w", t, flowerr.ErrMalformedState)
		}
		out[i] = byte(b)
	}
	return out, nil
}

// ExpectOpenBrace consumes "{".
func (r *Reader) ExpectOpenBrace() error { return r.ExpectIdent("{") }

// ExpectCloseBrace consumes "}".
func (r *Reader) ExpectCloseBrace() error { return r.ExpectIdent("}") }

// ReadBracketCount consumes "[" followed by its integer count and
// returns the count; the caller reads that many further tokens and then
// calls ExpectCloseBracket.
func (r *Reader) ReadBracketCount() (int, error) {
	if err := r.ExpectIdent("["); err != nil {
		return 0, err
	}
	n, err := r.ReadInt()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// ExpectCloseBracket consumes "]".
func (r *Reader) ExpectCloseBracket() error { return r.ExpectIdent("]") }

// QuoteIfNeeded guards Ident's bare-word invariant: this grammar never
// quotes or escapes identifiers, so a region name or nodeType string
// containing whitespace cannot be represented at all. Called by Ident
// on every write; exported so other callers building tokens by hand
// (rather than through Writer) can check a string up front instead of
// discovering the panic at write time.
func QuoteIfNeeded(s string) string {
	if strings.ContainsAny(s, " \t\n") {
		panic("netio: identifiers must not contain whitespace: " + s)
	}
	return s
}
