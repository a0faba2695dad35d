package iob

import (
	"strings"

	"github.com/samcharles93/nerloop/internal/corpus"
)

type pending struct {
	start int
	label string
}

// state carries the per-sentence accumulators of a single conversion pass.
type state struct {
	words []string
	ents  []corpus.Entity
	open  *pending
	// end is the cursor just past the space following the last word.
	end int

	sentences []corpus.Sentence
	labels    corpus.LabelSet
}

func newState() *state {
	return &state{labels: corpus.NewLabelSet()}
}

func (s *state) feed(n int, line string) error {
	if n == 1 {
		line = strings.TrimPrefix(line, "\ufeff")
	}
	tok, ok, err := ParseLine(line)
	if err != nil {
		return &LineError{Line: n, Text: line, Msg: err.Error()}
	}
	if !ok {
		s.boundary()
		return nil
	}
	s.step(tok)
	return nil
}

func (s *state) step(tok corpus.Token) {
	word := tok.Text
	s.words = append(s.words, word)
	s.end += len(word) + 1

	// Close before applying this token's tag so that B and O end an I-chain.
	if tok.Tag.Type != corpus.Inside && s.open != nil {
		s.close(s.end - 2 - len(word))
	}

	switch tok.Tag.Type {
	case corpus.Begin:
		s.open = &pending{start: s.end - len(word) - 1, label: tok.Tag.Label}
	case corpus.Inside:
		if s.open == nil {
			// I without a preceding B starts the entity (IOB1).
			s.open = &pending{start: s.end - len(word) - 1, label: tok.Tag.Label}
		} else {
			// The last I label of a chain wins.
			s.open.label = tok.Tag.Label
		}
	}
	s.labels.Add(tok.Tag.Label)
}

func (s *state) close(end int) {
	s.ents = append(s.ents, corpus.Entity{Start: s.open.start, End: end, Label: s.open.label})
	s.open = nil
}

func (s *state) boundary() {
	if len(s.words) == 0 {
		return
	}
	if s.open != nil {
		s.close(s.end - 1)
	}
	ents := s.ents
	if ents == nil {
		ents = []corpus.Entity{}
	}
	s.sentences = append(s.sentences, corpus.Sentence{
		Text:     strings.Join(s.words, " "),
		Entities: ents,
	})
	s.words = nil
	s.ents = nil
	s.end = 0
}

func (s *state) finish(dropTrailing bool) Result {
	if !dropTrailing {
		s.boundary()
	}
	sentences := s.sentences
	if sentences == nil {
		sentences = []corpus.Sentence{}
	}
	return Result{Sentences: sentences, Labels: s.labels}
}
