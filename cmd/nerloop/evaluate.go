package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/nerloop/internal/logger"
	"github.com/samcharles93/nerloop/internal/ner"
)

func evaluateCmd() *cli.Command {
	var (
		from         string
		dropTrailing bool
		asJSON       bool
	)

	return &cli.Command{
		Name:      "evaluate",
		Aliases:   []string{"eval"},
		Usage:     "Score a model against a labelled test file",
		ArgsUsage: "<test-file>",
		Flags: append(commonModelFlags(),
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
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print the report as JSON",
				Destination: &asJSON,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyModelConfig(cmd, configFromContext(ctx))

			input := cmd.Args().First()
			if input == "" {
				return cli.Exit("error: test file is required", 1)
			}
			dir, err := resolveModelDir(modelDir, modelsDir, os.Stdin, stderr(cmd))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			m, err := ner.Load(dir)
			if err != nil {
				return fmt.Errorf("evaluate: %w", err)
			}
			sentences, _, err := loadCorpus(input, corpusOptions{format: from, dropTrailing: dropTrailing})
			if err != nil {
				return fmt.Errorf("evaluate: %w", err)
			}

			report, err := ner.Evaluate(ctx, m, sentences)
			if err != nil {
				return fmt.Errorf("evaluate: %w", err)
			}
			log.Info("evaluated model", "run", m.Meta().RunID, "sentences", report.Sentences, "f1", report.F1)

			if asJSON {
				enc := json.NewEncoder(stdout(cmd))
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printReport(stdout(cmd), report)
			return nil
		},
	}
}

func printReport(w io.Writer, r ner.Report) {
	width := len("TOTAL")
	for _, l := range r.Labels() {
		width = max(width, len(l))
	}
	row := func(name string, s ner.Scores) {
		_, _ = fmt.Fprintf(w, "%-*s  %9.3f  %9.3f  %9.3f  %6d  %6d  %6d\n",
			width, name, s.Precision, s.Recall, s.F1, s.TP, s.FP, s.FN)
	}
	_, _ = fmt.Fprintf(w, "%-*s  %9s  %9s  %9s  %6s  %6s  %6s\n",
		width, "LABEL", "PRECISION", "RECALL", "F1", "TP", "FP", "FN")
	for _, l := range r.Labels() {
		row(l, r.PerLabel[l])
	}
	row("TOTAL", r.Scores)
	_, _ = fmt.Fprintf(w, "\n%d sentences\n", r.Sentences)
}
