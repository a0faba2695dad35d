package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/nerloop/internal/corpus"
	"github.com/samcharles93/nerloop/internal/iob"
	"github.com/samcharles93/nerloop/internal/logger"
)

func convertCmd() *cli.Command {
	var (
		outPath      string
		from         string
		to           string
		dropTrailing bool
	)

	return &cli.Command{
		Name:      "convert",
		Usage:     "Convert an IOB file to training tuples, or annotations back to IOB",
		ArgsUsage: "<input>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "output file (- for stdout)",
				Value:       stdioPath,
				Destination: &outPath,
			},
			&cli.StringFlag{
				Name:        "from",
				Usage:       "input format (auto, iob, json, jsonl)",
				Value:       formatAuto,
				Destination: &from,
			},
			&cli.StringFlag{
				Name:        "to",
				Usage:       "output format (json, iob)",
				Value:       formatJSON,
				Destination: &to,
			},
			&cli.BoolFlag{
				Name:        "drop-trailing",
				Usage:       "drop a final sentence that is not followed by a blank line",
				Destination: &dropTrailing,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)

			input := cmd.Args().First()
			if input == "" {
				return cli.Exit("error: input file is required", 1)
			}
			sentences, labels, err := loadCorpus(input, corpusOptions{format: from, dropTrailing: dropTrailing})
			if err != nil {
				return fmt.Errorf("convert: %w", err)
			}

			switch strings.ToLower(to) {
			case formatJSON:
				if err := writeSentences(outPath, stdout(cmd), sentences); err != nil {
					return fmt.Errorf("convert: %w", err)
				}
			case formatIOB:
				w, closeFn, err := createOutput(outPath, stdout(cmd))
				if err != nil {
					return fmt.Errorf("convert: %w", err)
				}
				if err := iob.Format(w, sentences); err != nil {
					_ = closeFn()
					return fmt.Errorf("convert: %w", err)
				}
				if err := closeFn(); err != nil {
					return fmt.Errorf("convert: %w", err)
				}
			default:
				return cli.Exit(fmt.Sprintf("error: unknown output format %q (want json or iob)", to), 1)
			}

			log.Info("converted corpus",
				"input", input,
				"sentences", len(sentences),
				"labels", strings.Join(labels.Sorted(), ","),
			)
			return nil
		},
	}
}

func labelsCmd() *cli.Command {
	var (
		from         string
		dropTrailing bool
	)

	return &cli.Command{
		Name:      "labels",
		Usage:     "List the entity labels of a corpus with their entity counts",
		ArgsUsage: "<input>",
		Flags: []cli.Flag{
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
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			input := cmd.Args().First()
			if input == "" {
				return cli.Exit("error: input file is required", 1)
			}
			sentences, _, err := loadCorpus(input, corpusOptions{format: from, dropTrailing: dropTrailing})
			if err != nil {
				return fmt.Errorf("labels: %w", err)
			}

			counts := corpus.LabelsOf(sentences)
			out := stdout(cmd)
			width := len("LABEL")
			for _, l := range counts.Sorted() {
				width = max(width, len(l))
			}
			_, _ = fmt.Fprintf(out, "%-*s  %s\n", width, "LABEL", "ENTITIES")
			for _, l := range counts.Sorted() {
				_, _ = fmt.Fprintf(out, "%-*s  %d\n", width, l, counts.Count(l))
			}
			_, _ = fmt.Fprintf(out, "\n%d labels, %d sentences\n", counts.Len(), len(sentences))
			return nil
		},
	}
}
