package iob

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/samcharles93/nerloop/internal/corpus"
)

// Tags splits s.Text on single spaces and tags each word from the entity
// offsets. Every entity must start and end on a word boundary.
func Tags(s corpus.Sentence) ([]corpus.Token, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if s.Text == "" {
		return nil, nil
	}
	words := strings.Split(s.Text, " ")
	toks := make([]corpus.Token, len(words))
	ents := corpus.SortEntities(s.Entities)

	starts := make(map[int]bool, len(words))
	ends := make(map[int]bool, len(words))
	pos := 0
	for _, w := range words {
		if w == "" {
			return nil, fmt.Errorf("empty word at offset %d in %q", pos, s.Text)
		}
		starts[pos] = true
		ends[pos+len(w)] = true
		pos += len(w) + 1
	}
	for _, ent := range ents {
		if !starts[ent.Start] || !ends[ent.End] {
			return nil, fmt.Errorf("entity [%d, %d, %q] is not aligned to word boundaries in %q", ent.Start, ent.End, ent.Label, s.Text)
		}
	}

	pos = 0
	ei := 0
	for i, w := range words {
		start, end := pos, pos+len(w)
		for ei < len(ents) && ents[ei].End <= start {
			ei++
		}
		tag := corpus.Tag{Type: corpus.Outside}
		if ei < len(ents) && ents[ei].Start < end {
			ent := ents[ei]
			if ent.Start > start || ent.End < end {
				return nil, fmt.Errorf("entity [%d, %d, %q] splits word %q", ent.Start, ent.End, ent.Label, w)
			}
			tag.Label = ent.Label
			if ent.Start == start {
				tag.Type = corpus.Begin
			} else {
				tag.Type = corpus.Inside
			}
		}
		toks[i] = corpus.Token{Text: w, Tag: tag}
		pos = end + 1
	}
	return toks, nil
}

// Format writes sentences as "TAG\tWORD" lines, each sentence followed by a
// blank line.
func Format(w io.Writer, sentences []corpus.Sentence) error {
	bw := bufio.NewWriter(w)
	for i, s := range sentences {
		toks, err := Tags(s)
		if err != nil {
			return fmt.Errorf("sentence %d: %w", i+1, err)
		}
		for _, tok := range toks {
			if _, err := fmt.Fprintf(bw, "%s\t%s\n", tok.Tag, tok.Text); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}
