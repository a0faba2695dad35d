package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/nerloop/internal/annotation"
	"github.com/samcharles93/nerloop/internal/ner"
)

const trainIOB = "O\tmovies\nO\twith\nB-ACTOR\tbruce\nI-ACTOR\twillis\n\n" +
	"O\tshow\nO\tme\nB-TITLE\tdie\nI-TITLE\thard\n\n"

const trainTuples = `[["movies with bruce willis",{"entities":[[12,24,"ACTOR"]]}],` +
	`["show me die hard",{"entities":[[8,16,"TITLE"]]}]]`

// runApp runs the CLI with args and returns what it wrote to stdout.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	app.ExitErrHandler = func(context.Context, *cli.Command, error) {}

	// Keep a user config file out of the test.
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv(envModelsDir, "")
	t.Setenv(envOutDir, "")

	err := app.Run(context.Background(), append([]string{"nerloop"}, args...))
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}

func TestConvertCommand(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, filepath.Join(dir, "engtrain.bio"), trainIOB)

	out, err := runApp(t, "convert", in)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if strings.TrimSpace(out) != trainTuples {
		t.Fatalf("convert stdout:\n got %s\nwant %s", out, trainTuples)
	}

	tuples := filepath.Join(dir, "out", "train.json")
	if _, err := runApp(t, "convert", "--out", tuples, in); err != nil {
		t.Fatalf("convert --out: %v", err)
	}
	if got := strings.TrimSpace(readFile(t, tuples)); got != trainTuples {
		t.Fatalf("convert file:\n got %s\nwant %s", got, trainTuples)
	}

	back, err := runApp(t, "convert", "--to", "iob", tuples)
	if err != nil {
		t.Fatalf("convert --to iob: %v", err)
	}
	if back != trainIOB {
		t.Fatalf("inverse conversion:\n got %q\nwant %q", back, trainIOB)
	}
}

func TestConvertCommandErrors(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, filepath.Join(dir, "bad.bio"), "O\tok\nB-ACTOR bruce\n")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing input", []string{"convert"}, "input file is required"},
		{"malformed line", []string{"convert", bad}, "line 2"},
		{"unknown format", []string{"convert", "--to", "xml", bad}, ""},
		{"missing file", []string{"convert", filepath.Join(dir, "nope.bio")}, "nope.bio"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := runApp(t, tc.args...)
			if err == nil {
				t.Fatalf("expected error")
			}
			if tc.want != "" && !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLabelsCommand(t *testing.T) {
	in := writeFile(t, filepath.Join(t.TempDir(), "engtrain.bio"), trainIOB+"B-ACTOR\tbruce\nI-ACTOR\twillis\n\n")

	out, err := runApp(t, "labels", in)
	if err != nil {
		t.Fatalf("labels: %v", err)
	}
	for _, want := range []string{"ACTOR  2", "TITLE  1", "2 labels, 3 sentences"} {
		if !strings.Contains(out, want) {
			t.Fatalf("labels output missing %q:\n%s", want, out)
		}
	}
}

func TestTrainEvaluateExportIngest(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, filepath.Join(dir, "engtrain.bio"), trainIOB)
	modelOut := filepath.Join(dir, "models", "mit")

	out, err := runApp(t, "train", "--model-out", modelOut, in)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if !strings.Contains(out, "saved model") || !ner.IsModelDir(modelOut) {
		t.Fatalf("train did not save a model: %s", out)
	}
	m, err := ner.Load(modelOut)
	if err != nil {
		t.Fatalf("load trained model: %v", err)
	}

	out, err = runApp(t, "evaluate", "--model", modelOut, "--json", in)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	var report ner.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report %q: %v", out, err)
	}
	if report.TP != 2 || report.FP != 0 || report.FN != 0 || report.F1 != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}

	out, err = runApp(t, "evaluate", "--models-dir", filepath.Dir(modelOut), in)
	if err != nil {
		t.Fatalf("evaluate table: %v", err)
	}
	if !strings.Contains(out, "TOTAL") || !strings.Contains(out, "ACTOR") {
		t.Fatalf("unexpected table:\n%s", out)
	}

	annotations := filepath.Join(dir, "annotations.jsonl")
	if _, err := runApp(t, "export", "--model", modelOut, "--include-gold", "--out", annotations, in); err != nil {
		t.Fatalf("export: %v", err)
	}
	recs, err := annotation.ReadFile(annotations)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if len(recs) != 2 || recs[0].IDString() != "1" || recs[1].IDString() != "2" {
		t.Fatalf("unexpected export: %+v", recs)
	}
	if _, ok := recs[0].Meta["gold"]; !ok {
		t.Fatalf("expected gold labels in export: %+v", recs[0])
	}

	out, err = runApp(t, "export", "--model", modelOut, "--only-uncertain", in)
	if err != nil {
		t.Fatalf("export --only-uncertain: %v", err)
	}
	if strings.TrimSpace(out) != "" {
		t.Fatalf("expected no uncertain sentences, got %s", out)
	}

	tuples := filepath.Join(dir, "ingested.json")
	if _, err := runApp(t, "ingest", "--out", tuples, annotations); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if got := strings.TrimSpace(readFile(t, tuples)); got != trainTuples {
		t.Fatalf("ingest output:\n got %s\nwant %s", got, trainTuples)
	}

	tuned := filepath.Join(dir, "models", "tuned")
	if _, err := runApp(t, "ingest", "--out", tuples, "--train", "--base", modelOut, "--model-out", tuned, annotations); err != nil {
		t.Fatalf("ingest --train: %v", err)
	}
	tm, err := ner.Load(tuned)
	if err != nil {
		t.Fatalf("load tuned model: %v", err)
	}
	if tm.Meta().BaseRunID != m.Meta().RunID {
		t.Fatalf("tuned model base: got %q want %q", tm.Meta().BaseRunID, m.Meta().RunID)
	}
}

func TestIngestRejectsMalformedAnnotation(t *testing.T) {
	in := writeFile(t, filepath.Join(t.TempDir(), "bad.jsonl"),
		`{"id":1,"text":"elektra","labels":[[0,40,"TITLE"]]}`+"\n")

	_, err := runApp(t, "ingest", in)
	if err == nil || !strings.Contains(err.Error(), "ingest") {
		t.Fatalf("expected ingest error, got %v", err)
	}
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, filepath.Join(dir, "config.yaml"), "out_dir: "+filepath.Join(dir, "models")+"\niterations: 3\n")
	in := writeFile(t, filepath.Join(dir, "engtrain.bio"), trainIOB)

	if _, err := runApp(t, "--config", cfgPath, "train", in); err != nil {
		t.Fatalf("train: %v", err)
	}
	meta, err := ner.ReadMeta(filepath.Join(dir, "models", "engtrain"))
	if err != nil {
		t.Fatalf("read meta: %v", err)
	}
	if meta.Iterations != 3 {
		t.Fatalf("iterations from config: got %d", meta.Iterations)
	}

	if _, err := runApp(t, "--config", filepath.Join(dir, "missing.yaml"), "version"); err == nil {
		t.Fatalf("expected error for a missing explicit config file")
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runApp(t, "version", "--json")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var info struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if info.Version == "" {
		t.Fatalf("empty version")
	}
}
