package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fxnlabs/accel-templates/internal/app"
	"github.com/fxnlabs/accel-templates/internal/config"
	"github.com/fxnlabs/accel-templates/internal/signal"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const name = "signaltransform"

func main() {
	cliApp := &cli.App{
		Name:   name,
		Usage:  "Run forward and inverse DCTs on an accelerator",
		Flags:  app.Flags(),
		Before: func(c *cli.Context) error { app.Banner(c); return nil },
		Action: func(c *cli.Context) error {
			cfg, log, err := app.Setup(c, name)
			if err != nil {
				return err
			}
			defer log.Sync()
			return run(c.Context, c.App.Writer, cfg, log)
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

// demoVector is the 1-D input of the demo.
var demoVector = []float32{
	0.218418, 0.956318, 0.829509, 0.561695, 0.415307,
	0.066119, 0.257578, 0.109957, 0.043829, 0.633966,
}

// demoMatrix is 8x8 with element (i, j) = 10*(i+j).
func demoMatrix() *signal.Matrix {
	m := signal.NewMatrix(8, 8)
	for i := 0; i < 8; i++ {
		for j := 0; j < 8; j++ {
			m.Data[i*8+j] = float32(10 * (i + j))
		}
	}
	return m
}

func run(ctx context.Context, w io.Writer, cfg *config.Config, log *zap.Logger) error {
	var transformer *signal.Transformer
	return app.Run(ctx, cfg, log, func(ctx context.Context) error {
		for _, demo := range []struct {
			title string
			in    *signal.Matrix
		}{
			{"1-D", signal.NewVector(append([]float32(nil), demoVector...))},
			{"2-D", demoMatrix()},
		} {
			if err := transform(ctx, w, transformer, demo.title, demo.in); err != nil {
				return err
			}
		}
		return nil
	}, &transformer)
}

func transform(ctx context.Context, w io.Writer, t *signal.Transformer, title string, in *signal.Matrix) error {
	out, err := t.Forward(ctx, in)
	if err != nil {
		return fmt.Errorf("%s DCT: %w", title, err)
	}
	back, err := t.Inverse(ctx, out)
	if err != nil {
		return fmt.Errorf("%s IDCT: %w", title, err)
	}

	fmt.Fprintf(w, "%s input:\n%s\n", title, in)
	fmt.Fprintf(w, "%s DCT:\n%s\n", title, out)
	fmt.Fprintf(w, "%s IDCT:\n%s\n", title, back)
	return nil
}
