// Package ner defines the boundary between the corpus tooling and an NER
// model, and provides the models nerloop ships: a trainable gazetteer and a
// client for a remote prediction service.
package ner

import (
	"context"
	"errors"

	"github.com/samcharles93/nerloop/internal/corpus"
)

var (
	ErrNoModel      = errors.New("ner: no model")
	ErrUnknownModel = errors.New("ner: unknown model kind")
)

// Predictor returns entity spans for raw text.
type Predictor interface {
	Predict(ctx context.Context, text string) ([]corpus.Entity, error)
}

// Model is a trained predictor that can be persisted as a directory.
type Model interface {
	Predictor
	Labels() []string
	Meta() Meta
	Save(dir string) error
}

// Trainer creates a model, or fine-tunes base when it is non-nil.
type Trainer interface {
	Train(ctx context.Context, base Model, data []corpus.Sentence, labels corpus.LabelSet, iterations int) (Model, error)
}
