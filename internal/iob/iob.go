// Package iob converts word-per-line IOB corpora into sentence records with
// byte-offset entity spans, and back.
//
// Input lines are "TAG\tWORD" where TAG is "O", "B-LABEL" or "I-LABEL".
// A blank line ends a sentence. Words of a sentence are joined by a single
// space, which is what the offsets are computed against.
package iob

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samcharles93/nerloop/internal/corpus"
)

var ErrMalformedLine = errors.New("malformed line")

const maxLineBytes = 1024 * 1024

// LineError reports the 1-based line that could not be parsed.
type LineError struct {
	Line int
	Text string
	Msg  string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Msg, e.Text)
}

func (e *LineError) Unwrap() error {
	return ErrMalformedLine
}

// Options tunes the converter.
type Options struct {
	// DropTrailing discards a final sentence that is not followed by a blank
	// line instead of flushing it at end of input.
	DropTrailing bool
}

// Result is the output of a conversion.
type Result struct {
	Sentences []corpus.Sentence
	Labels    corpus.LabelSet
}

// Convert runs the converter over in-memory lines with default options.
func Convert(lines []string) (Result, error) {
	return Options{}.Convert(lines)
}

// ConvertReader reads r to the end and converts it with default options.
func ConvertReader(r io.Reader) (Result, error) {
	return Options{}.ConvertReader(r)
}

// ConvertFile opens, converts and closes path.
func ConvertFile(path string) (Result, error) {
	return Options{}.ConvertFile(path)
}

func (o Options) Convert(lines []string) (Result, error) {
	st := newState()
	for i, line := range lines {
		if err := st.feed(i+1, line); err != nil {
			return Result{}, err
		}
	}
	return st.finish(o.DropTrailing), nil
}

func (o Options) ConvertReader(r io.Reader) (Result, error) {
	st := newState()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	n := 0
	for sc.Scan() {
		n++
		if err := st.feed(n, sc.Text()); err != nil {
			return Result{}, err
		}
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return Result{}, &LineError{Line: n + 1, Msg: fmt.Sprintf("line longer than %d bytes", maxLineBytes)}
		}
		return Result{}, fmt.Errorf("read corpus: line %d: %w", n+1, err)
	}
	return st.finish(o.DropTrailing), nil
}

func (o Options) ConvertFile(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = f.Close() }()

	res, err := o.ConvertReader(f)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

// ParseTag parses "O", "B-LABEL" or "I-LABEL".
func ParseTag(s string) (corpus.Tag, error) {
	if s == "O" {
		return corpus.Tag{Type: corpus.Outside}, nil
	}
	if len(s) < 3 || s[1] != '-' {
		return corpus.Tag{}, fmt.Errorf("tag %q is not O, B-LABEL or I-LABEL", s)
	}
	switch t := corpus.TagType(s[0]); t {
	case corpus.Begin, corpus.Inside:
		return corpus.Tag{Type: t, Label: s[2:]}, nil
	default:
		return corpus.Tag{}, fmt.Errorf("tag %q has prefix %q, want B or I", s, s[:1])
	}
}

// ParseLine splits a "TAG\tWORD" line. Blank lines without a tab return
// ok=false.
func ParseLine(line string) (tok corpus.Token, ok bool, err error) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.Contains(line, "\t") && strings.TrimSpace(line) == "" {
		return corpus.Token{}, false, nil
	}
	tagText, word, found := strings.Cut(line, "\t")
	if !found {
		return corpus.Token{}, false, errors.New("missing tab separator")
	}
	if word == "" {
		return corpus.Token{}, false, errors.New("empty word")
	}
	if strings.ContainsAny(word, " \t") {
		return corpus.Token{}, false, errors.New("word contains whitespace")
	}
	tag, err := ParseTag(strings.TrimSpace(tagText))
	if err != nil {
		return corpus.Token{}, false, err
	}
	return corpus.Token{Text: word, Tag: tag}, true, nil
}
