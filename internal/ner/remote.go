package ner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/samcharles93/nerloop/internal/corpus"
)

// Remote calls an NER prediction service over HTTP. The service accepts
// {"text": "..."} on POST and answers {"spans": [{start, end, label}]},
// which is what `nerloop serve` exposes at /v1/predict.
type Remote struct {
	url  string
	http *http.Client
}

// NewRemote creates a client for the given predict endpoint
// (e.g. "http://localhost:8080/v1/predict").
func NewRemote(endpoint string, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Remote{
		url:  strings.TrimRight(endpoint, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// PredictRequest is the body of a predict call.
type PredictRequest struct {
	Text string `json:"text"`
}

// Span is an entity span on the wire.
type Span struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Label string `json:"label"`
	Text  string `json:"text,omitempty"`
}

// PredictResponse is the answer of a predict call.
type PredictResponse struct {
	Spans    []Span `json:"spans"`
	ModelRun string `json:"model_run,omitempty"`
}

// SpansOf converts entities of text to wire spans.
func SpansOf(text string, ents []corpus.Entity) []Span {
	out := make([]Span, 0, len(ents))
	for _, e := range ents {
		sp := Span{Start: e.Start, End: e.End, Label: e.Label}
		if corpus.CheckSpan(e, len(text)) == nil {
			sp.Text = text[e.Start:e.End]
		}
		out = append(out, sp)
	}
	return out
}

func (r *Remote) Predict(ctx context.Context, text string) ([]corpus.Entity, error) {
	body, err := json.Marshal(PredictRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("ner: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ner: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ner: predict: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ner: predict: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out PredictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("ner: decode: %w", err)
	}
	ents := make([]corpus.Entity, 0, len(out.Spans))
	for _, s := range out.Spans {
		ents = append(ents, corpus.Entity{Start: s.Start, End: s.End, Label: s.Label})
	}
	return ents, nil
}
