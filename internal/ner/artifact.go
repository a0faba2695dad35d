package ner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const (
	metaFile  = "meta.yaml"
	modelFile = "model.json"

	KindGazetteer = "gazetteer"
)

// Meta describes a saved model directory.
type Meta struct {
	Kind       string    `yaml:"kind"`
	RunID      string    `yaml:"run_id"`
	BaseRunID  string    `yaml:"base_run_id,omitempty"`
	CreatedAt  time.Time `yaml:"created_at"`
	Labels     []string  `yaml:"labels"`
	Sentences  int       `yaml:"sentences"`
	Iterations int       `yaml:"iterations"`
}

func newMeta(kind string, base Model) Meta {
	m := Meta{
		Kind:      kind,
		RunID:     uuid.NewString(),
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if base != nil {
		m.BaseRunID = base.Meta().RunID
	}
	return m
}

func writeMeta(dir string, m Meta) error {
	b, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode %s: %w", metaFile, err)
	}
	return os.WriteFile(filepath.Join(dir, metaFile), b, 0o644)
}

// ReadMeta reads the meta.yaml of a model directory.
func ReadMeta(dir string) (Meta, error) {
	b, err := os.ReadFile(filepath.Join(dir, metaFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Meta{}, fmt.Errorf("%s: %w", dir, ErrNoModel)
		}
		return Meta{}, err
	}
	var m Meta
	if err := yaml.Unmarshal(b, &m); err != nil {
		return Meta{}, fmt.Errorf("decode %s: %w", filepath.Join(dir, metaFile), err)
	}
	return m, nil
}

// Load opens the model saved in dir.
func Load(dir string) (Model, error) {
	m, err := ReadMeta(dir)
	if err != nil {
		return nil, err
	}
	switch m.Kind {
	case KindGazetteer:
		return loadGazetteer(dir, m)
	default:
		return nil, fmt.Errorf("%s: %w %q", dir, ErrUnknownModel, m.Kind)
	}
}

// IsModelDir reports whether dir holds a saved model.
func IsModelDir(dir string) bool {
	st, err := os.Stat(filepath.Join(dir, metaFile))
	return err == nil && !st.IsDir()
}
