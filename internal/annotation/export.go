package annotation

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/samcharles93/nerloop/internal/corpus"
)

// Predictor returns entity spans for raw text.
type Predictor interface {
	Predict(ctx context.Context, text string) ([]corpus.Entity, error)
}

// PredictorFunc adapts a function to Predictor.
type PredictorFunc func(ctx context.Context, text string) ([]corpus.Entity, error)

func (f PredictorFunc) Predict(ctx context.Context, text string) ([]corpus.Entity, error) {
	return f(ctx, text)
}

// ExportOptions controls which sentences are exported and what is attached.
type ExportOptions struct {
	// FirstID is the id of the first exported record. Zero means 1.
	FirstID int
	// IncludeGold attaches the corpus entities under the "gold" field.
	IncludeGold bool
	// OnlyUncertain keeps sentences the model found nothing in or whose
	// prediction differs from the corpus entities.
	OnlyUncertain bool
}

// Export runs p over every sentence and returns one record per sentence
// with the predicted spans passed through verbatim.
func Export(ctx context.Context, sentences []corpus.Sentence, p Predictor) ([]Record, error) {
	return ExportOptions{}.Export(ctx, sentences, p)
}

func (o ExportOptions) Export(ctx context.Context, sentences []corpus.Sentence, p Predictor) ([]Record, error) {
	id := o.FirstID
	if id == 0 {
		id = 1
	}
	out := make([]Record, 0, len(sentences))
	for i, s := range sentences {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pred, err := p.Predict(ctx, s.Text)
		if err != nil {
			return nil, fmt.Errorf("predict sentence %d: %w", i+1, err)
		}
		if o.OnlyUncertain && len(pred) > 0 && sameSpans(pred, s.Entities) {
			continue
		}
		if pred == nil {
			pred = []corpus.Entity{}
		}
		rec := Record{
			ID:     IntID(id),
			Text:   s.Text,
			Labels: pred,
		}
		if o.IncludeGold {
			gold := s.Entities
			if gold == nil {
				gold = []corpus.Entity{}
			}
			raw, err := json.Marshal(gold)
			if err != nil {
				return nil, err
			}
			rec.Meta = map[string]json.RawMessage{"gold": raw}
		}
		out = append(out, rec)
		id++
	}
	return out, nil
}

func sameSpans(a, b []corpus.Entity) bool {
	if len(a) != len(b) {
		return false
	}
	sa, sb := corpus.SortEntities(a), corpus.SortEntities(b)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}
