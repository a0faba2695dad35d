// Package annotation implements the line-delimited JSON exchange format of
// the human annotation tool: exporting model predictions for review and
// ingesting corrected records back into training sentences.
package annotation

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/samcharles93/nerloop/internal/corpus"
)

var (
	ErrMissingField        = errors.New("missing required field")
	ErrMalformedAnnotation = errors.New("malformed annotation")
)

// Record is one exchange unit. Text and Labels are required on decode;
// every other field is kept in Meta and written back unchanged.
type Record struct {
	ID     json.RawMessage
	Text   string
	Labels []corpus.Entity
	Meta   map[string]json.RawMessage
}

// IntID returns an id value for sequentially numbered records.
func IntID(n int) json.RawMessage {
	return json.RawMessage(strconv.Itoa(n))
}

// IDString renders the id for log and error messages.
func (r Record) IDString() string {
	if len(r.ID) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.ID, &s); err == nil {
		return s
	}
	return string(r.ID)
}

// Sentence converts the record to a training sentence without validation.
func (r Record) Sentence() corpus.Sentence {
	ents := make([]corpus.Entity, len(r.Labels))
	copy(ents, r.Labels)
	return corpus.Sentence{Text: r.Text, Entities: ents}
}

func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if len(r.ID) > 0 {
		buf.WriteString(`"id":`)
		buf.Write(r.ID)
		buf.WriteByte(',')
	}
	text, err := json.Marshal(r.Text)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`"text":`)
	buf.Write(text)

	labels := r.Labels
	if labels == nil {
		labels = []corpus.Entity{}
	}
	lb, err := json.Marshal(labels)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`,"labels":`)
	buf.Write(lb)

	keys := make([]string, 0, len(r.Meta))
	for k := range r.Meta {
		if k == "id" || k == "text" || k == "labels" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(r.Meta[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("record is null: %w", ErrMissingField)
	}

	rawText, ok := fields["text"]
	if !ok {
		return fmt.Errorf("text: %w", ErrMissingField)
	}
	var text string
	if err := json.Unmarshal(rawText, &text); err != nil {
		return fmt.Errorf("text: %w", err)
	}

	// Newer exports of the annotation tool name the field "label".
	labelKey := "labels"
	rawLabels, ok := fields[labelKey]
	if !ok {
		labelKey = "label"
		rawLabels, ok = fields[labelKey]
	}
	if !ok {
		return fmt.Errorf("labels: %w", ErrMissingField)
	}
	var labels []corpus.Entity
	if err := json.Unmarshal(rawLabels, &labels); err != nil {
		return fmt.Errorf("labels: %w", err)
	}
	if labels == nil {
		labels = []corpus.Entity{}
	}

	r.ID = fields["id"]
	r.Text = text
	r.Labels = labels
	r.Meta = nil
	for k, v := range fields {
		if k == "id" || k == "text" || k == labelKey {
			continue
		}
		if r.Meta == nil {
			r.Meta = make(map[string]json.RawMessage)
		}
		r.Meta[k] = v
	}
	return nil
}
