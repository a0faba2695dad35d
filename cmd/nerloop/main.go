package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/nerloop/internal/logger"
	"github.com/samcharles93/nerloop/internal/version"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "nerloop",
		Usage:   "NER corpus conversion and annotation round-trip tooling",
		Version: version.String(),
		Flags:   loggingFlags(),
		Before:  setup,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			convertCmd(),
			labelsCmd(),
			trainCmd(),
			evaluateCmd(),
			exportCmd(),
			ingestCmd(),
			serveCmd(),
			versionCmd(),
		},
	}
}

// setup loads .env and the config file, then installs the logger every
// command reads from its context.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	// Best-effort: NERLOOP_* variables may come from a .env in the working directory.
	envErr := godotenv.Load()

	cfg, err := LoadConfig(configFile)
	if err != nil {
		return ctx, err
	}
	applyLoggingConfig(cmd, cfg)

	level := logger.ParseLevel(logLevel)
	if debug {
		level = logger.ParseLevel("debug")
	}
	log, err := logger.NewFormat(stderr(cmd), logFormat, level)
	if err != nil {
		return ctx, err
	}
	if envErr == nil {
		log.Debug("loaded .env")
	}
	if cfg != (Config{}) {
		log.Debug("loaded config", "path", configFileOrDefault())
	}

	ctx = logger.WithContext(ctx, log)
	return withConfig(ctx, cfg), nil
}

func configFileOrDefault() string {
	if configFile != "" {
		return configFile
	}
	return configPath()
}

func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func stderr(cmd *cli.Command) io.Writer {
	if w := cmd.Root().ErrWriter; w != nil {
		return w
	}
	return os.Stderr
}
