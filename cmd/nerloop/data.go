package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/samcharles93/nerloop/internal/annotation"
	"github.com/samcharles93/nerloop/internal/corpus"
	"github.com/samcharles93/nerloop/internal/iob"
)

// Input formats understood by the corpus-reading commands.
const (
	formatAuto   = "auto"
	formatIOB    = "iob"
	formatJSON   = "json"
	formatJSONL  = "jsonl"
	stdioPath    = "-"
	outFileMode  = 0o644
	outDirectory = 0o755
)

// detectFormat maps a file extension to an input format. Anything that is
// not .json or .jsonl is treated as IOB text.
func detectFormat(path, format string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "", formatAuto:
	case formatIOB, formatJSON, formatJSONL:
		return format, nil
	default:
		return "", fmt.Errorf("unknown input format %q (want auto, iob, json or jsonl)", format)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return formatJSON, nil
	case ".jsonl", ".ndjson":
		return formatJSONL, nil
	default:
		return formatIOB, nil
	}
}

type corpusOptions struct {
	format       string
	dropTrailing bool
}

// loadCorpus reads sentences from an IOB file, a JSON array of training
// tuples or an annotation JSONL file. Non-IOB input is validated.
func loadCorpus(path string, opts corpusOptions) ([]corpus.Sentence, corpus.LabelSet, error) {
	format, err := detectFormat(path, opts.format)
	if err != nil {
		return nil, corpus.LabelSet{}, err
	}
	switch format {
	case formatIOB:
		res, err := iob.Options{DropTrailing: opts.dropTrailing}.ConvertFile(path)
		if err != nil {
			return nil, corpus.LabelSet{}, err
		}
		return res.Sentences, res.Labels, nil
	case formatJSONL:
		recs, err := annotation.ReadFile(path)
		if err != nil {
			return nil, corpus.LabelSet{}, err
		}
		sentences, err := annotation.Ingest(recs)
		if err != nil {
			return nil, corpus.LabelSet{}, err
		}
		return sentences, corpus.LabelsOf(sentences), nil
	default:
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, corpus.LabelSet{}, err
		}
		var sentences []corpus.Sentence
		if err := json.Unmarshal(b, &sentences); err != nil {
			return nil, corpus.LabelSet{}, fmt.Errorf("%s: %w", path, err)
		}
		for i, s := range sentences {
			if err := s.Validate(); err != nil {
				return nil, corpus.LabelSet{}, fmt.Errorf("%s: sentence %d: %w", path, i+1, err)
			}
		}
		return sentences, corpus.LabelsOf(sentences), nil
	}
}

// createOutput opens path for writing, or returns stdout for "-" and "".
func createOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" || path == stdioPath {
		return stdout, func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), outDirectory); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, outFileMode)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func writeSentences(path string, stdout io.Writer, sentences []corpus.Sentence) error {
	b, err := corpus.MarshalSentences(sentences)
	if err != nil {
		return err
	}
	w, closeFn, err := createOutput(path, stdout)
	if err != nil {
		return err
	}
	if _, err := w.Write(append(b, '\n')); err != nil {
		_ = closeFn()
		return err
	}
	return closeFn()
}
