package app

import (
	"context"
	"errors"
	"fmt"

	figure "github.com/common-nighthawk/go-figure"
	"github.com/fxnlabs/accel-templates/internal/accel"
	"github.com/fxnlabs/accel-templates/internal/config"
	"github.com/fxnlabs/accel-templates/internal/logger"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Flags are the options shared by both binaries.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "Load configuration from `FILE` (defaults are built in)",
			EnvVars: []string{config.EnvConfigPath},
		},
		&cli.StringFlag{
			Name:  "backend",
			Usage: fmt.Sprintf("Override runtime.backend (%v)", accel.SupportedBackends()),
		},
	}
}

// Setup loads the configuration named by the flags of c and the logger it
// asks for.
func Setup(c *cli.Context, name string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	if backend := c.String("backend"); backend != "" {
		cfg.Runtime.Backend = backend
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}
	zapLogger, err := logger.NewForTerminal(cfg.Logger.Verbosity)
	if err != nil {
		return nil, nil, err
	}
	return cfg, zapLogger.Named(name), nil
}

// Banner prints the program name in large letters to the error writer.
func Banner(c *cli.Context) {
	fmt.Fprint(c.App.ErrWriter, figure.NewFigure(c.App.Name, "", true).String())
}

// Run builds the application, populates targets, starts it, calls fn and
// stops it again. Errors from fn and from stopping are both returned.
func Run(ctx context.Context, cfg *config.Config, log *zap.Logger, fn func(ctx context.Context) error, targets ...interface{}) error {
	fxApp := fx.New(Options(cfg, log), fx.Populate(targets...))
	if err := fxApp.Err(); err != nil {
		return err
	}
	if err := fxApp.Start(ctx); err != nil {
		return err
	}

	runErr := fn(ctx)
	stopErr := fxApp.Stop(context.Background())
	return errors.Join(runErr, stopErr)
}

// DevicesCommand reports the enumerated devices and the selected one.
func DevicesCommand(name string) *cli.Command {
	return &cli.Command{
		Name:  "devices",
		Usage: "List the compute devices of the configured backend",
		Action: func(c *cli.Context) error {
			cfg, log, err := Setup(c, name)
			if err != nil {
				return err
			}
			defer log.Sync()

			var session *accel.Session
			return Run(c.Context, cfg, log, func(context.Context) error {
				for i, d := range session.Devices() {
					fmt.Fprintf(c.App.Writer, "%d: %s\n", i, d)
				}
				ReportDevices(session, log)
				return nil
			}, &session)
		},
	}
}
