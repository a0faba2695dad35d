package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/nerloop/internal/api"
	"github.com/samcharles93/nerloop/internal/logger"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve model predictions over HTTP for an annotation tool",
		Flags: append(commonModelFlags(),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyServeConfig(cmd, configFromContext(ctx), &addr)

			provider := api.NewCachedModelProvider(api.ModelProviderConfig{
				DefaultModelDir: modelDir,
				ModelsDir:       effectiveModelsDir(modelsDir),
			})
			// Load eagerly so a bad model fails at startup.
			if modelDir != "" {
				m, err := provider.Model(ctx, "")
				if err != nil {
					return cli.Exit("error: "+err.Error(), 1)
				}
				log.Info("loaded model", "dir", modelDir, "run", m.Meta().RunID, "labels", len(m.Labels()))
			}

			server := api.NewServer(provider, log.With("component", "api"))
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
