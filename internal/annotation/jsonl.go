package annotation

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
)

const maxLineSize = 16 * 1024 * 1024

// Reader decodes one Record per non-blank line.
type Reader struct {
	sc   *bufio.Scanner
	line int
}

func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{sc: sc}
}

// Next returns the next record, or io.EOF when the input is exhausted.
func (r *Reader) Next() (Record, error) {
	for r.sc.Scan() {
		r.line++
		line := bytes.TrimSpace(r.sc.Bytes())
		if r.line == 1 {
			line = bytes.TrimPrefix(line, []byte("\ufeff"))
		}
		if len(line) == 0 {
			continue
		}
		// Raw fields of the record outlive the scanner buffer.
		line = bytes.Clone(line)
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return Record{}, fmt.Errorf("line %d: %w", r.line, err)
		}
		return rec, nil
	}
	if err := r.sc.Err(); err != nil {
		return Record{}, err
	}
	return Record{}, io.EOF
}

// ReadAll decodes every record of r.
func ReadAll(r io.Reader) ([]Record, error) {
	dec := NewReader(r)
	var out []Record
	for {
		rec, err := dec.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

// ReadFile opens path, decodes every record and closes it.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	recs, err := ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}

// Writer encodes one Record per line.
type Writer struct {
	w *bufio.Writer
	n int
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

func (w *Writer) Write(rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("record %d: %w", w.n+1, err)
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	w.n++
	return nil
}

// Count returns the number of records written so far.
func (w *Writer) Count() int {
	return w.n
}

func (w *Writer) Flush() error {
	return w.w.Flush()
}

// WriteAll encodes recs to w and flushes.
func WriteAll(w io.Writer, recs []Record) error {
	enc := NewWriter(w)
	for _, rec := range recs {
		if err := enc.Write(rec); err != nil {
			return err
		}
	}
	return enc.Flush()
}

// WriteFile creates path and writes recs to it.
func WriteFile(path string, recs []Record) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteAll(f, recs)
}
