package main

import "github.com/urfave/cli/v3"

var (
	modelDir   string
	modelsDir  string
	configFile string
	logLevel   string
	logFormat  string
	debug      bool
)

func commonModelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "path to a saved model directory",
			Destination: &modelDir,
		},
		&cli.StringFlag{
			Name:        "models-dir",
			Aliases:     []string{"path"},
			Usage:       "directory containing saved models (default $" + envModelsDir + ")",
			Destination: &modelsDir,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config file (default ~/.config/nerloop/config.yaml)",
			Destination: &configFile,
		},
	}
}
