package ner

import (
	"context"
	"fmt"
	"sort"

	"github.com/samcharles93/nerloop/internal/corpus"
)

// Scores holds exact-match span counts and the derived metrics.
type Scores struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	TP        int     `json:"tp"`
	FP        int     `json:"fp"`
	FN        int     `json:"fn"`
}

func (s *Scores) finish() {
	s.Precision = ratio(s.TP, s.TP+s.FP)
	s.Recall = ratio(s.TP, s.TP+s.FN)
	if s.Precision+s.Recall > 0 {
		s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
	} else {
		s.F1 = 0
	}
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

// Report is the micro-averaged score plus a per-label breakdown.
type Report struct {
	Scores
	Sentences int               `json:"sentences"`
	PerLabel  map[string]Scores `json:"per_label"`
}

// Labels returns the labels of the breakdown in lexical order.
func (r Report) Labels() []string {
	out := make([]string, 0, len(r.PerLabel))
	for l := range r.PerLabel {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Evaluate runs p over data and scores predicted spans against the gold
// entities. A span counts only when start, end and label all match.
func Evaluate(ctx context.Context, p Predictor, data []corpus.Sentence) (Report, error) {
	rep := Report{PerLabel: make(map[string]Scores)}
	for i, s := range data {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		pred, err := p.Predict(ctx, s.Text)
		if err != nil {
			return Report{}, fmt.Errorf("evaluate sentence %d: %w", i+1, err)
		}
		gold := make(map[corpus.Entity]bool, len(s.Entities))
		for _, e := range s.Entities {
			gold[e] = true
		}
		seen := make(map[corpus.Entity]bool, len(pred))
		for _, e := range pred {
			if seen[e] {
				continue
			}
			seen[e] = true
			ls := rep.PerLabel[e.Label]
			if gold[e] {
				rep.TP++
				ls.TP++
			} else {
				rep.FP++
				ls.FP++
			}
			rep.PerLabel[e.Label] = ls
		}
		for e := range gold {
			if seen[e] {
				continue
			}
			rep.FN++
			ls := rep.PerLabel[e.Label]
			ls.FN++
			rep.PerLabel[e.Label] = ls
		}
		rep.Sentences++
	}
	rep.finish()
	for l, s := range rep.PerLabel {
		s.finish()
		rep.PerLabel[l] = s
	}
	return rep, nil
}
