package ner

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/goccy/go-json"

	"github.com/samcharles93/nerloop/internal/corpus"
	"github.com/samcharles93/nerloop/internal/logger"
)

func trainingSentences() []corpus.Sentence {
	return []corpus.Sentence{
		{Text: "movies with bruce willis", Entities: []corpus.Entity{{Start: 12, End: 24, Label: "ACTOR"}}},
		{Text: "show me die hard", Entities: []corpus.Entity{{Start: 8, End: 16, Label: "TITLE"}}},
		{Text: "bruce willis in die hard", Entities: []corpus.Entity{
			{Start: 0, End: 12, Label: "ACTOR"},
			{Start: 16, End: 24, Label: "TITLE"},
		}},
		{Text: "the hard way", Entities: []corpus.Entity{}},
	}
}

func trainGazetteer(t *testing.T, base Model, data []corpus.Sentence) Model {
	t.Helper()
	m, err := GazetteerTrainer{Log: logger.Discard()}.Train(context.Background(), base, data, corpus.LabelSet{}, 1)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	return m
}

func TestGazetteerPredict(t *testing.T) {
	t.Parallel()

	m := trainGazetteer(t, nil, trainingSentences())
	got, err := m.Predict(context.Background(), "is Bruce  Willis in die hard")
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	want := []corpus.Entity{
		{Start: 3, End: 16, Label: "ACTOR"},
		{Start: 20, End: 28, Label: "TITLE"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Predict() = %v, want %v", got, want)
	}
	if labels := m.Labels(); !reflect.DeepEqual(labels, []string{"ACTOR", "TITLE"}) {
		t.Fatalf("Labels() = %v", labels)
	}

	none, err := m.Predict(context.Background(), "anything good")
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", none)
	}
}

func TestGazetteerFoldsCaseAndComposition(t *testing.T) {
	t.Parallel()

	data := []corpus.Sentence{
		{Text: "songs by beyonc\u00e9", Entities: []corpus.Entity{{Start: 9, End: 17, Label: "ARTIST"}}},
	}
	m := trainGazetteer(t, nil, data)
	text := "BEYONCE\u0301 live"
	got, err := m.Predict(context.Background(), text)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	want := []corpus.Entity{{Start: 0, End: 9, Label: "ARTIST"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Predict(%q) = %v, want %v", text, got, want)
	}
}

func TestGazetteerMinPrecision(t *testing.T) {
	t.Parallel()

	data := []corpus.Sentence{
		{Text: "up", Entities: []corpus.Entity{{Start: 0, End: 2, Label: "TITLE"}}},
		{Text: "look up", Entities: []corpus.Entity{}},
		{Text: "up up", Entities: []corpus.Entity{}},
	}
	m := trainGazetteer(t, nil, data)
	got, err := m.Predict(context.Background(), "up")
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected rarely labelled phrase to be skipped, got %v", got)
	}
}

func TestGazetteerLabelFilter(t *testing.T) {
	t.Parallel()

	m, err := GazetteerTrainer{Log: logger.Discard()}.Train(context.Background(), nil, trainingSentences(), corpus.NewLabelSet("TITLE"), 0)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if labels := m.Labels(); !reflect.DeepEqual(labels, []string{"TITLE"}) {
		t.Fatalf("Labels() = %v", labels)
	}
	if m.Meta().Iterations != 1 {
		t.Fatalf("iterations should be clamped to 1, got %d", m.Meta().Iterations)
	}
}

func TestGazetteerFineTune(t *testing.T) {
	t.Parallel()

	base := trainGazetteer(t, nil, trainingSentences())
	corrections := []corpus.Sentence{
		{Text: "tell me more about the movie elektra", Entities: []corpus.Entity{{Start: 29, End: 36, Label: "TITLE"}}},
	}
	tuned := trainGazetteer(t, base, corrections)

	if tuned.Meta().BaseRunID != base.Meta().RunID {
		t.Fatalf("BaseRunID = %q, want %q", tuned.Meta().BaseRunID, base.Meta().RunID)
	}
	if tuned.Meta().RunID == base.Meta().RunID {
		t.Fatalf("fine-tuned model reused the base run id")
	}
	if tuned.Meta().Sentences != 5 {
		t.Fatalf("Sentences = %d, want 5", tuned.Meta().Sentences)
	}

	got, err := tuned.Predict(context.Background(), "elektra with bruce willis")
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	want := []corpus.Entity{{Start: 0, End: 7, Label: "TITLE"}, {Start: 13, End: 25, Label: "ACTOR"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Predict() = %v, want %v", got, want)
	}

	// The base model is not modified by fine-tuning.
	old, err := base.Predict(context.Background(), "elektra")
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(old) != 0 {
		t.Fatalf("base model learned from fine-tuning data: %v", old)
	}
}

type stubModel struct{ Predictor }

func (stubModel) Labels() []string  { return nil }
func (stubModel) Meta() Meta        { return Meta{} }
func (stubModel) Save(string) error { return nil }

func TestGazetteerFineTuneRejectsOtherModels(t *testing.T) {
	t.Parallel()

	_, err := GazetteerTrainer{Log: logger.Discard()}.Train(context.Background(), stubModel{}, nil, corpus.LabelSet{}, 1)
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestGazetteerTrainRejectsInvalidSentence(t *testing.T) {
	t.Parallel()

	bad := []corpus.Sentence{{Text: "jaws", Entities: []corpus.Entity{{Start: 0, End: 40, Label: "TITLE"}}}}
	_, err := GazetteerTrainer{Log: logger.Discard()}.Train(context.Background(), nil, bad, corpus.LabelSet{}, 1)
	if !errors.Is(err, corpus.ErrMalformedSpan) {
		t.Fatalf("expected ErrMalformedSpan, got %v", err)
	}
}

func TestSaveLoad(t *testing.T) {
	t.Parallel()

	m := trainGazetteer(t, nil, trainingSentences())
	dir := filepath.Join(t.TempDir(), "mit-movies")
	if err := m.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !IsModelDir(dir) {
		t.Fatalf("expected %s to be a model dir", dir)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Meta().RunID != m.Meta().RunID {
		t.Fatalf("run id mismatch: %q vs %q", loaded.Meta().RunID, m.Meta().RunID)
	}
	if !reflect.DeepEqual(loaded.Meta().Labels, []string{"ACTOR", "TITLE"}) {
		t.Fatalf("labels = %v", loaded.Meta().Labels)
	}

	text := "bruce willis in die hard"
	a, _ := m.Predict(context.Background(), text)
	b, _ := loaded.Predict(context.Background(), text)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("loaded model predicts %v, original %v", b, a)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	if _, err := Load(t.TempDir()); !errors.Is(err, ErrNoModel) {
		t.Fatalf("expected ErrNoModel, got %v", err)
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, metaFile), []byte("kind: transformer\n"), 0o644); err != nil {
		t.Fatalf("write meta: %v", err)
	}
	if _, err := Load(dir); !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("expected ErrUnknownModel, got %v", err)
	}
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	data := []corpus.Sentence{
		{Text: "bruce willis in die hard", Entities: []corpus.Entity{
			{Start: 0, End: 12, Label: "ACTOR"},
			{Start: 16, End: 24, Label: "TITLE"},
		}},
		{Text: "show me 1980s", Entities: []corpus.Entity{{Start: 8, End: 13, Label: "YEAR"}}},
	}
	p := predictorFunc(func(_ context.Context, text string) ([]corpus.Entity, error) {
		switch text {
		case "bruce willis in die hard":
			return []corpus.Entity{
				{Start: 0, End: 12, Label: "ACTOR"},
				{Start: 0, End: 12, Label: "ACTOR"},
				{Start: 16, End: 24, Label: "GENRE"},
			}, nil
		default:
			return nil, nil
		}
	})

	rep, err := Evaluate(context.Background(), p, data)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if rep.TP != 1 || rep.FP != 1 || rep.FN != 2 {
		t.Fatalf("counts = tp %d fp %d fn %d", rep.TP, rep.FP, rep.FN)
	}
	assertClose(t, "precision", rep.Precision, 0.5)
	assertClose(t, "recall", rep.Recall, 1.0/3.0)
	assertClose(t, "f1", rep.F1, 0.4)
	if rep.Sentences != 2 {
		t.Fatalf("Sentences = %d", rep.Sentences)
	}
	if got := rep.Labels(); !reflect.DeepEqual(got, []string{"ACTOR", "GENRE", "TITLE", "YEAR"}) {
		t.Fatalf("Labels() = %v", got)
	}
	assertClose(t, "actor f1", rep.PerLabel["ACTOR"].F1, 1)
	assertClose(t, "genre precision", rep.PerLabel["GENRE"].Precision, 0)
	if rep.PerLabel["YEAR"].FN != 1 {
		t.Fatalf("YEAR FN = %d", rep.PerLabel["YEAR"].FN)
	}
}

func TestEvaluateEmpty(t *testing.T) {
	t.Parallel()

	rep, err := Evaluate(context.Background(), predictorFunc(func(context.Context, string) ([]corpus.Entity, error) { return nil, nil }), nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if rep.Precision != 0 || rep.Recall != 0 || rep.F1 != 0 {
		t.Fatalf("expected zero scores, got %+v", rep.Scores)
	}
}

func TestRemotePredict(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/predict" {
			http.NotFound(w, r)
			return
		}
		var req PredictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Text == "fail" {
			http.Error(w, "model unavailable", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(PredictResponse{Spans: []Span{{Start: 0, End: 5, Label: "TITLE", Text: "alien"}}})
	}))
	defer srv.Close()

	client := NewRemote(srv.URL+"/v1/predict/", 0)
	got, err := client.Predict(context.Background(), "alien")
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if !reflect.DeepEqual(got, []corpus.Entity{{Start: 0, End: 5, Label: "TITLE"}}) {
		t.Fatalf("Predict() = %v", got)
	}

	if _, err := client.Predict(context.Background(), "fail"); err == nil {
		t.Fatalf("expected error on non-200 status")
	}
}

func TestSpansOf(t *testing.T) {
	t.Parallel()

	got := SpansOf("alien", []corpus.Entity{{Start: 0, End: 5, Label: "TITLE"}, {Start: 3, End: 9, Label: "X"}})
	if got[0].Text != "alien" || got[1].Text != "" {
		t.Fatalf("unexpected spans %+v", got)
	}
}

type predictorFunc func(ctx context.Context, text string) ([]corpus.Entity, error)

func (f predictorFunc) Predict(ctx context.Context, text string) ([]corpus.Entity, error) {
	return f(ctx, text)
}

func assertClose(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}
