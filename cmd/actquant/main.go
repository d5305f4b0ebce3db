package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/actquant/internal/logger"
)

// cfg is loaded once in the root Before hook.
var cfg Config

func main() {
	app := &cli.Command{
		Name:   "actquant",
		Usage:  "Activation quantization for computation graphs",
		Flags:  globalFlags(),
		Before: setup,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			quantizeCmd(),
			inspectCmd(),
			serveCmd(),
			versionCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	var err error
	if cfg, err = LoadConfig(configFile); err != nil {
		return ctx, err
	}
	applyLoggingConfig(cmd, cfg)

	format, err := logger.ParseFormat(logFormat)
	if err != nil {
		return ctx, err
	}
	level := logger.ParseLevel(logLevel)
	if debug {
		level = logger.ParseLevel("debug")
	}
	log := logger.Setup(os.Stderr, format, level)
	return logger.WithContext(ctx, log), nil
}
