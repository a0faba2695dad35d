package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/nerloop/internal/corpus"
	"github.com/samcharles93/nerloop/internal/logger"
	"github.com/samcharles93/nerloop/internal/ner"
)

type trainParams struct {
	base         string
	out          string
	iterations   int64
	maxTokens    int64
	minPrecision float64
	labels       []string
}

func trainFlags(p *trainParams) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "base",
			Usage:       "model directory to fine-tune instead of training from scratch",
			Destination: &p.base,
		},
		&cli.StringFlag{
			Name:        "model-out",
			Usage:       "directory to save the trained model (default $" + envOutDir + "/<input name>)",
			Destination: &p.out,
		},
		&cli.Int64Flag{
			Name:        "iterations",
			Aliases:     []string{"n"},
			Usage:       "training iterations",
			Value:       1,
			Destination: &p.iterations,
		},
		&cli.Int64Flag{
			Name:        "max-tokens",
			Usage:       "longest phrase, in words, the gazetteer learns",
			Value:       6,
			Destination: &p.maxTokens,
		},
		&cli.Float64Flag{
			Name:        "min-precision",
			Usage:       "share of labelled occurrences a phrase needs to be predicted",
			Value:       0.5,
			Destination: &p.minPrecision,
		},
		&cli.StringSliceFlag{
			Name:        "label",
			Usage:       "restrict training to these labels (repeatable)",
			Destination: &p.labels,
		},
	}
}

func trainCmd() *cli.Command {
	var (
		p            trainParams
		from         string
		dropTrailing bool
	)

	return &cli.Command{
		Name:      "train",
		Usage:     "Train (or fine-tune) an NER model from a corpus file",
		ArgsUsage: "<train-file>",
		Flags: append(trainFlags(&p),
			&cli.StringFlag{
				Name:        "from",
				Usage:       "input format (auto, iob, json, jsonl)",
				Value:       formatAuto,
				Destination: &from,
			},
			&cli.BoolFlag{
				Name:        "drop-trailing",
				Usage:       "drop a final sentence that is not followed by a blank line",
				Destination: &dropTrailing,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := configFromContext(ctx)
			applyTrainConfig(cmd, cfg, &p.iterations, &p.maxTokens, &p.minPrecision)

			input := cmd.Args().First()
			if input == "" {
				return cli.Exit("error: training file is required", 1)
			}
			sentences, _, err := loadCorpus(input, corpusOptions{format: from, dropTrailing: dropTrailing})
			if err != nil {
				return fmt.Errorf("train: %w", err)
			}
			out, err := resolveModelOut(input, p.out, cfg.OutDir)
			if err != nil {
				return fmt.Errorf("train: %w", err)
			}
			m, err := trainAndSave(ctx, p, sentences, out)
			if err != nil {
				return fmt.Errorf("train: %w", err)
			}
			_, _ = fmt.Fprintf(stdout(cmd), "saved model %s to %s\n", m.Meta().RunID, out)
			return nil
		},
	}
}

// trainAndSave trains a gazetteer on sentences, fine-tuning p.base when set,
// and saves it to out.
func trainAndSave(ctx context.Context, p trainParams, sentences []corpus.Sentence, out string) (ner.Model, error) {
	log := logger.FromContext(ctx)

	var base ner.Model
	if strings.TrimSpace(p.base) != "" {
		m, err := ner.Load(p.base)
		if err != nil {
			return nil, fmt.Errorf("load base model: %w", err)
		}
		base = m
		log.Info("fine-tuning", "base", p.base, "base_run", m.Meta().RunID)
	}

	trainer := ner.GazetteerTrainer{
		MaxTokens:    int(p.maxTokens),
		MinPrecision: p.minPrecision,
		Log:          log,
	}
	start := time.Now()
	m, err := trainer.Train(ctx, base, sentences, corpus.NewLabelSet(p.labels...), int(p.iterations))
	if err != nil {
		return nil, err
	}
	if err := m.Save(out); err != nil {
		return nil, fmt.Errorf("save model: %w", err)
	}
	log.Info("saved model",
		"dir", out,
		"run", m.Meta().RunID,
		"labels", strings.Join(m.Labels(), ","),
		"sentences", len(sentences),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return m, nil
}
