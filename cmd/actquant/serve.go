package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/actquant/internal/api"
	"github.com/samcharles93/actquant/internal/logger"
	"github.com/samcharles93/actquant/internal/metrics"
	"github.com/samcharles93/actquant/pkg/quant"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		precision   string
		maxRuns     int64
		readTimeout time.Duration
	)
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve quantization runs over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			precisionFlag(&precision),
			&cli.Int64Flag{
				Name:        "max-runs",
				Usage:       "quantization results kept for lookup by id",
				Value:       64,
				Destination: &maxRuns,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "HTTP read header timeout",
				Value:       10 * time.Second,
				Destination: &readTimeout,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyServeConfig(cmd, cfg, &precision, &addr, &maxRuns)
			p, err := quant.ParsePrecision(precision)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			log := logger.FromContext(ctx)

			server := api.NewServer(api.Config{
				Precision: p,
				Metrics:   metrics.Default,
				Logger:    log,
				MaxRuns:   int(maxRuns),
			})
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)

			log.Info("starting server", "address", addr, "precision", p.String())
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
