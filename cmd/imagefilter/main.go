package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fxnlabs/accel-templates/internal/app"
	"github.com/fxnlabs/accel-templates/internal/config"
	"github.com/fxnlabs/accel-templates/internal/filter"
	"github.com/fxnlabs/accel-templates/internal/imageio"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const name = "imagefilter"

func main() {
	cliApp := &cli.App{
		Name:   name,
		Usage:  "Apply a convolution filter to an image on an accelerator",
		Flags:  app.Flags(),
		Before: func(c *cli.Context) error { app.Banner(c); return nil },
		Action: func(c *cli.Context) error {
			cfg, log, err := app.Setup(c, name)
			if err != nil {
				return err
			}
			defer log.Sync()
			return run(c.Context, cfg, log)
		},
		Commands: []*cli.Command{
			app.DevicesCommand(name),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	weights, err := cfg.FilterWeights()
	if err != nil {
		return err
	}

	var processor *filter.Processor
	return app.Run(ctx, cfg, log, func(ctx context.Context) error {
		src, err := imageio.Open(cfg.Filter.Input)
		if err != nil {
			log.Error("Failed to load input image", zap.String("path", cfg.Filter.Input), zap.Error(err))
			return err
		}
		log.Info("Loaded input image", zap.String("path", cfg.Filter.Input), zap.Int("width", src.Width), zap.Int("height", src.Height))

		start := time.Now()
		out, err := processor.Apply(ctx, filter.Expand(src), weights)
		if err != nil {
			return err
		}
		log.Info("Filter applied", zap.Int("side", weights.Side), zap.Duration("elapsed", time.Since(start)))

		result := filter.Narrow(out)
		if err := imageio.Save(cfg.Filter.Output, result); err != nil {
			log.Error("Failed to write output image", zap.String("path", cfg.Filter.Output), zap.Error(err))
			return err
		}
		log.Info("Wrote output image", zap.String("path", cfg.Filter.Output))

		if cfg.Filter.Preview != "" {
			if err := imageio.Save(cfg.Filter.Preview, result); err != nil {
				return err
			}
			log.Info("Wrote preview image", zap.String("path", cfg.Filter.Preview))
		}
		return nil
	}, &processor)
}
