package api

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/samcharles93/nerloop/internal/ner"
)

type ModelProvider interface {
	Model(ctx context.Context, modelID string) (ner.Model, error)
}

type ModelProviderConfig struct {
	DefaultModelDir string
	ModelsDir       string
	Load            func(dir string) (ner.Model, error)
}

// CachedModelProvider resolves model ids to saved model directories and
// keeps every loaded model in memory for the life of the server.
type CachedModelProvider struct {
	cfg   ModelProviderConfig
	mu    sync.Mutex
	cache map[string]ner.Model
}

const envModelsDir = "NERLOOP_MODELS_DIR"

func NewCachedModelProvider(cfg ModelProviderConfig) *CachedModelProvider {
	if cfg.Load == nil {
		cfg.Load = ner.Load
	}
	return &CachedModelProvider{
		cfg:   cfg,
		cache: make(map[string]ner.Model),
	}
}

func (p *CachedModelProvider) Model(ctx context.Context, modelID string) (ner.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := p.resolveModelDir(modelID)
	if err != nil {
		return nil, err
	}
	return p.getOrLoad(dir)
}

func (p *CachedModelProvider) getOrLoad(dir string) (ner.Model, error) {
	p.mu.Lock()
	m, ok := p.cache[dir]
	p.mu.Unlock()
	if ok {
		return m, nil
	}

	loaded, err := p.cfg.Load(dir)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.cache[dir]; ok {
		return existing, nil
	}
	p.cache[dir] = loaded
	return loaded, nil
}

func (p *CachedModelProvider) resolveModelDir(modelID string) (string, error) {
	modelID = strings.TrimSpace(modelID)
	if modelID != "" {
		if strings.ContainsRune(modelID, filepath.Separator) {
			return filepath.Clean(modelID), nil
		}
		modelsDir := p.modelsDir()
		if modelsDir == "" {
			return "", fmt.Errorf("models-dir is required to resolve model %q: %w", modelID, ner.ErrNoModel)
		}
		cand := filepath.Join(modelsDir, modelID)
		if ner.IsModelDir(cand) {
			return cand, nil
		}
		return "", fmt.Errorf("model %q not found in %s: %w", modelID, modelsDir, ner.ErrNoModel)
	}

	if p.cfg.DefaultModelDir != "" {
		return filepath.Clean(p.cfg.DefaultModelDir), nil
	}
	modelsDir := p.modelsDir()
	if modelsDir == "" {
		return "", fmt.Errorf("model is required: %w", ner.ErrNoModel)
	}
	models, err := DiscoverModels(modelsDir)
	if err != nil {
		return "", err
	}
	switch len(models) {
	case 1:
		return models[0], nil
	case 0:
		return "", fmt.Errorf("no models found in %s: %w", modelsDir, ner.ErrNoModel)
	default:
		return "", &RequestError{Param: "model", Msg: fmt.Sprintf("%d models found in %s, choose one", len(models), modelsDir)}
	}
}

func (p *CachedModelProvider) modelsDir() string {
	if dir := strings.TrimSpace(p.cfg.ModelsDir); dir != "" {
		return dir
	}
	return strings.TrimSpace(os.Getenv(envModelsDir))
}

// DiscoverModels lists the model directories directly under dir.
func DiscoverModels(dir string) ([]string, error) {
	st, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("models path is not a directory: %s", dir)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	models := make([]string, 0, len(ents))
	for _, e := range ents {
		if !e.IsDir() {
			continue
		}
		cand := filepath.Join(dir, e.Name())
		if ner.IsModelDir(cand) {
			models = append(models, cand)
		}
	}
	sort.Strings(models)
	return models, nil
}
