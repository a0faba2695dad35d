package annotation

import (
	"fmt"

	"github.com/samcharles93/nerloop/internal/corpus"
)

// AnnotationError reports the record whose spans did not fit its text.
type AnnotationError struct {
	Index int
	ID    string
	Err   error
}

func (e *AnnotationError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("record %d (id %s): %v", e.Index+1, e.ID, e.Err)
	}
	return fmt.Sprintf("record %d: %v", e.Index+1, e.Err)
}

// Unwrap exposes both ErrMalformedAnnotation and the underlying span error.
func (e *AnnotationError) Unwrap() []error {
	return []error{ErrMalformedAnnotation, e.Err}
}

// Ingest maps records to training sentences in order. Labels keep the
// annotator's order; every span is checked against the text and the others.
func Ingest(records []Record) ([]corpus.Sentence, error) {
	out := make([]corpus.Sentence, 0, len(records))
	for i, rec := range records {
		s := rec.Sentence()
		if err := s.Validate(); err != nil {
			return nil, &AnnotationError{Index: i, ID: rec.IDString(), Err: err}
		}
		out = append(out, s)
	}
	return out, nil
}
