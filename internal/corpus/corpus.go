// Package corpus holds the sentence and entity types shared by the converter,
// the annotation exchange format and the model boundary.
//
// Offsets are byte offsets into Sentence.Text and form half-open ranges.
package corpus

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/goccy/go-json"
)

var ErrMalformedSpan = errors.New("malformed span")

// TagType is the IOB position marker of a token.
type TagType byte

const (
	Outside TagType = 'O'
	Begin   TagType = 'B'
	Inside  TagType = 'I'
)

func (t TagType) String() string {
	return string(rune(t))
}

// Tag is a parsed IOB tag. Label is empty for Outside.
type Tag struct {
	Type  TagType
	Label string
}

func (t Tag) String() string {
	if t.Type == Outside || t.Type == 0 {
		return "O"
	}
	return t.Type.String() + "-" + t.Label
}

// Token is one word of a sentence with its tag.
type Token struct {
	Text string
	Tag  Tag
}

// Entity is a labelled span of a sentence. It encodes as [start, end, "LABEL"].
type Entity struct {
	Start int
	End   int
	Label string
}

func (e Entity) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.Start, e.End, e.Label})
}

func (e *Entity) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("entity: %w", err)
	}
	if len(raw) != 3 {
		return fmt.Errorf("entity: expected [start, end, label], got %d elements", len(raw))
	}
	if err := json.Unmarshal(raw[0], &e.Start); err != nil {
		return fmt.Errorf("entity start: %w", err)
	}
	if err := json.Unmarshal(raw[1], &e.End); err != nil {
		return fmt.Errorf("entity end: %w", err)
	}
	if err := json.Unmarshal(raw[2], &e.Label); err != nil {
		return fmt.Errorf("entity label: %w", err)
	}
	return nil
}

// Len returns the width of the span in bytes.
func (e Entity) Len() int {
	return e.End - e.Start
}

// Overlaps reports whether two spans share at least one byte.
func (e Entity) Overlaps(o Entity) bool {
	return e.Start < o.End && o.Start < e.End
}

// SpanError describes an entity that does not fit its sentence.
type SpanError struct {
	Entity  Entity
	TextLen int
	Reason  string
}

func (e *SpanError) Error() string {
	return fmt.Sprintf("span [%d, %d, %q] %s (text length %d)", e.Entity.Start, e.Entity.End, e.Entity.Label, e.Reason, e.TextLen)
}

func (e *SpanError) Unwrap() error {
	return ErrMalformedSpan
}

// CheckSpan validates a single entity against a text of length textLen.
func CheckSpan(ent Entity, textLen int) error {
	switch {
	case ent.Start < 0:
		return &SpanError{Entity: ent, TextLen: textLen, Reason: "starts before the text"}
	case ent.End > textLen:
		return &SpanError{Entity: ent, TextLen: textLen, Reason: "ends past the text"}
	case ent.Start >= ent.End:
		return &SpanError{Entity: ent, TextLen: textLen, Reason: "is empty or inverted"}
	case ent.Label == "":
		return &SpanError{Entity: ent, TextLen: textLen, Reason: "has no label"}
	}
	return nil
}

// Sentence is a training record: text plus ordered entity spans.
type Sentence struct {
	Text     string
	Entities []Entity
}

// Validate checks every span against the text and rejects overlaps.
func (s Sentence) Validate() error {
	for i, ent := range s.Entities {
		if err := CheckSpan(ent, len(s.Text)); err != nil {
			return err
		}
		for _, prev := range s.Entities[:i] {
			if ent.Overlaps(prev) {
				return &SpanError{Entity: ent, TextLen: len(s.Text), Reason: fmt.Sprintf("overlaps [%d, %d]", prev.Start, prev.End)}
			}
		}
	}
	return nil
}

// Surface returns the substring covered by ent.
func (s Sentence) Surface(ent Entity) string {
	return s.Text[ent.Start:ent.End]
}

// SortEntities returns a copy of ents ordered by start offset.
func SortEntities(ents []Entity) []Entity {
	out := make([]Entity, len(ents))
	copy(out, ents)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].End < out[j].End
	})
	return out
}

type sentenceAnnotations struct {
	Entities []Entity `json:"entities"`
}

// MarshalJSON encodes the training tuple ["text", {"entities": [...]}].
func (s Sentence) MarshalJSON() ([]byte, error) {
	ents := s.Entities
	if ents == nil {
		ents = []Entity{}
	}
	return json.Marshal([]any{s.Text, sentenceAnnotations{Entities: ents}})
}

func (s *Sentence) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("sentence: %w", err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("sentence: expected [text, {entities}], got %d elements", len(raw))
	}
	if err := json.Unmarshal(raw[0], &s.Text); err != nil {
		return fmt.Errorf("sentence text: %w", err)
	}
	var ann sentenceAnnotations
	if err := json.Unmarshal(raw[1], &ann); err != nil {
		return fmt.Errorf("sentence entities: %w", err)
	}
	s.Entities = ann.Entities
	if s.Entities == nil {
		s.Entities = []Entity{}
	}
	return nil
}

// MarshalSentences encodes sentences as a JSON array of training tuples.
func MarshalSentences(sentences []Sentence) ([]byte, error) {
	if sentences == nil {
		sentences = []Sentence{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(sentences); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
