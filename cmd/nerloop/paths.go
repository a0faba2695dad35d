package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/samcharles93/nerloop/internal/api"
)

const (
	envOutDir    = "NERLOOP_OUT_DIR"
	envModelsDir = "NERLOOP_MODELS_DIR"
)

// stdinIsTTY is a small seam for tests.
var stdinIsTTY = isTTY

// resolveModelOut picks the directory a trained model is saved to. Without
// --out the model lands in $NERLOOP_OUT_DIR (or the configured out_dir, or
// ./out) under the training file's base name.
func resolveModelOut(trainPath, outFlag, cfgOutDir string) (string, error) {
	outFlag = strings.TrimSpace(outFlag)
	if outFlag != "" {
		return filepath.Clean(outFlag), nil
	}

	base := filepath.Base(filepath.Clean(trainPath))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "", fmt.Errorf("invalid training file: %q", trainPath)
	}

	outDir := strings.TrimSpace(os.Getenv(envOutDir))
	if outDir == "" {
		outDir = strings.TrimSpace(cfgOutDir)
	}
	if outDir == "" {
		outDir = filepath.Join(".", "out")
	}
	return filepath.Join(outDir, base), nil
}

func effectiveModelsDir(flag string) string {
	if dir := strings.TrimSpace(flag); dir != "" {
		return dir
	}
	return strings.TrimSpace(os.Getenv(envModelsDir))
}

func resolveModelDir(modelFlag, modelsPath string, stdin io.Reader, stderr io.Writer) (string, error) {
	modelFlag = strings.TrimSpace(modelFlag)
	if modelFlag != "" {
		return filepath.Clean(modelFlag), nil
	}

	dir := effectiveModelsDir(modelsPath)
	if dir == "" {
		return "", fmt.Errorf("--model or --models-dir is required unless %s is set", envModelsDir)
	}

	models, err := api.DiscoverModels(dir)
	if err != nil {
		return "", err
	}
	switch len(models) {
	case 0:
		return "", fmt.Errorf("no models found in %s", dir)
	case 1:
		_, _ = fmt.Fprintf(stderr, "using model %s\n", models[0])
		return models[0], nil
	default:
		if !stdinIsTTY() {
			return "", fmt.Errorf(
				"multiple models found in %s but stdin is not interactive; set --model",
				dir,
			)
		}
		return selectModelInteractively(dir, models, stdin, stderr)
	}
}

func selectModelInteractively(dir string, models []string, stdin io.Reader, stderr io.Writer) (string, error) {
	if len(models) == 0 {
		return "", fmt.Errorf("no models available in %s", dir)
	}

	_, _ = fmt.Fprintf(stderr, "select a model from %s\n", dir)
	for i, m := range models {
		_, _ = fmt.Fprintf(stderr, "%d. %s\n", i+1, modelDisplayName(dir, m))
	}

	reader := bufio.NewReader(stdin)
	for {
		_, _ = fmt.Fprintf(stderr, "enter selection [1-%d]: ", len(models))
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			if errors.Is(err, io.EOF) {
				return "", errors.New("no selection provided on stdin; set --model")
			}
			continue
		}

		idx, convErr := strconv.Atoi(line)
		if convErr != nil || idx < 1 || idx > len(models) {
			_, _ = fmt.Fprintf(stderr, "invalid selection %q\n", line)
			if errors.Is(err, io.EOF) {
				return "", errors.New("invalid selection provided on stdin; set --model")
			}
			continue
		}
		return models[idx-1], nil
	}
}

func modelDisplayName(dir, modelPath string) string {
	rel, err := filepath.Rel(dir, modelPath)
	if err != nil || rel == "." {
		return filepath.Base(modelPath)
	}
	return rel
}

func isTTY() bool {
	st, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (st.Mode() & os.ModeCharDevice) != 0
}
