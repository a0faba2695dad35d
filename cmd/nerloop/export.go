package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/nerloop/internal/annotation"
	"github.com/samcharles93/nerloop/internal/logger"
	"github.com/samcharles93/nerloop/internal/ner"
)

func exportCmd() *cli.Command {
	var (
		outPath       string
		from          string
		dropTrailing  bool
		endpoint      string
		timeout       time.Duration
		firstID       int64
		onlyUncertain bool
		includeGold   bool
	)

	return &cli.Command{
		Name:      "export",
		Usage:     "Pre-label a corpus with a model and write annotation JSONL",
		ArgsUsage: "<input>",
		Flags: append(commonModelFlags(),
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "output JSONL file (- for stdout)",
				Value:       stdioPath,
				Destination: &outPath,
			},
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
			&cli.StringFlag{
				Name:        "endpoint",
				Usage:       "predict with a remote service (e.g. http://127.0.0.1:8080/v1/predict)",
				Destination: &endpoint,
			},
			&cli.DurationFlag{
				Name:        "timeout",
				Usage:       "remote predict timeout",
				Value:       10 * time.Second,
				Destination: &timeout,
			},
			&cli.Int64Flag{
				Name:        "first-id",
				Usage:       "id of the first exported record",
				Value:       1,
				Destination: &firstID,
			},
			&cli.BoolFlag{
				Name:        "only-uncertain",
				Usage:       "skip sentences where the prediction matches the corpus labels",
				Destination: &onlyUncertain,
			},
			&cli.BoolFlag{
				Name:        "include-gold",
				Usage:       "attach the corpus labels to each record under \"gold\"",
				Destination: &includeGold,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyExportConfig(cmd, configFromContext(ctx), &endpoint, &timeout)

			input := cmd.Args().First()
			if input == "" {
				return cli.Exit("error: input file is required", 1)
			}
			if firstID < 1 {
				return cli.Exit("error: --first-id must be at least 1", 1)
			}
			sentences, _, err := loadCorpus(input, corpusOptions{format: from, dropTrailing: dropTrailing})
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}

			var (
				predictor annotation.Predictor
				source    string
			)
			if strings.TrimSpace(endpoint) != "" {
				predictor = ner.NewRemote(endpoint, timeout)
				source = endpoint
			} else {
				dir, err := resolveModelDir(modelDir, modelsDir, os.Stdin, stderr(cmd))
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				m, err := ner.Load(dir)
				if err != nil {
					return fmt.Errorf("export: %w", err)
				}
				predictor = m
				source = m.Meta().RunID
			}

			opts := annotation.ExportOptions{
				FirstID:       int(firstID),
				IncludeGold:   includeGold,
				OnlyUncertain: onlyUncertain,
			}
			recs, err := opts.Export(ctx, sentences, predictor)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}

			w, closeFn, err := createOutput(outPath, stdout(cmd))
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			if err := annotation.WriteAll(w, recs); err != nil {
				_ = closeFn()
				return fmt.Errorf("export: %w", err)
			}
			if err := closeFn(); err != nil {
				return fmt.Errorf("export: %w", err)
			}
			log.Info("exported annotations",
				"model", source,
				"sentences", len(sentences),
				"records", len(recs),
				"out", outPath,
			)
			return nil
		},
	}
}
