package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/nerloop/internal/annotation"
	"github.com/samcharles93/nerloop/internal/corpus"
	"github.com/samcharles93/nerloop/internal/logger"
)

func ingestCmd() *cli.Command {
	var (
		p       trainParams
		outPath string
		train   bool
	)

	return &cli.Command{
		Name:      "ingest",
		Usage:     "Validate corrected annotation JSONL and turn it into training tuples",
		ArgsUsage: "<annotations.jsonl>",
		Flags: append(trainFlags(&p),
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "training tuples output file (- for stdout)",
				Value:       stdioPath,
				Destination: &outPath,
			},
			&cli.BoolFlag{
				Name:        "train",
				Usage:       "also train a model on the ingested sentences (fine-tunes --base when set)",
				Destination: &train,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			cfg := configFromContext(ctx)
			applyTrainConfig(cmd, cfg, &p.iterations, &p.maxTokens, &p.minPrecision)

			input := cmd.Args().First()
			if input == "" {
				return cli.Exit("error: annotation file is required", 1)
			}
			recs, err := annotation.ReadFile(input)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			sentences, err := annotation.Ingest(recs)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			if err := writeSentences(outPath, stdout(cmd), sentences); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			labels := corpus.LabelsOf(sentences)
			log.Info("ingested annotations", "records", len(recs), "labels", labels.Len())

			if !train {
				return nil
			}
			out, err := resolveModelOut(input, p.out, cfg.OutDir)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			m, err := trainAndSave(ctx, p, sentences, out)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			_, _ = fmt.Fprintf(stderr(cmd), "saved model %s to %s\n", m.Meta().RunID, out)
			return nil
		},
	}
}
