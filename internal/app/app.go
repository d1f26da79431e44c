// Package app wires the configuration, logger, accelerator session and the
// signal and filter front ends into an fx application.
package app

import (
	"context"
	"time"

	"github.com/fxnlabs/accel-templates/internal/accel"
	"github.com/fxnlabs/accel-templates/internal/config"
	"github.com/fxnlabs/accel-templates/internal/filter"
	"github.com/fxnlabs/accel-templates/internal/metrics"
	"github.com/fxnlabs/accel-templates/internal/signal"
	"github.com/fxnlabs/accel-templates/internal/source"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// loadTimeout bounds fetching and building one kernel program.
const loadTimeout = 30 * time.Second

// Options supplies cfg and logger and provides the session and the front
// ends built on it. The session is closed and, when configured, the metrics
// textfile written when the application stops.
func Options(cfg *config.Config, logger *zap.Logger) fx.Option {
	return fx.Options(
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx").WithOptions(zap.IncreaseLevel(zap.WarnLevel))}
		}),
		fx.Supply(cfg, logger),
		fx.Provide(
			newRuntime,
			newSession,
			newLoader,
			newProcessor,
			newTransformer,
		),
		fx.Invoke(registerMetricsTextfile),
	)
}

// HostKernels returns the host implementations of every program the
// binaries build.
func HostKernels() []accel.HostKernel {
	return append(filter.HostKernels(), signal.HostKernels()...)
}

func newRuntime(cfg *config.Config, logger *zap.Logger) (accel.Runtime, error) {
	return accel.NewRuntime(cfg.Runtime.Backend, cfg.Runtime.FallbackToCPU, logger.Named("runtime"), HostKernels()...)
}

func newSession(lc fx.Lifecycle, cfg *config.Config, rt accel.Runtime, logger *zap.Logger) (*accel.Session, error) {
	session, err := accel.OpenSession(rt, cfg.SelectionPolicy(), cfg.Runtime.FallbackToCPU, logger, HostKernels()...)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return session.Close()
		},
	})
	return session, nil
}

func newLoader(logger *zap.Logger) accel.SourceLoader {
	return source.NewLoader(logger.Named("source"))
}

func newProcessor(cfg *config.Config, session *accel.Session, loader accel.SourceLoader, logger *zap.Logger) (*filter.Processor, error) {
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()
	if err := session.LoadKernels(ctx, loader, cfg.Filter.KernelSource, filter.KernelNames()); err != nil {
		closeOnError(session, logger)
		return nil, err
	}
	return filter.NewProcessor(session, logger), nil
}

func newTransformer(cfg *config.Config, session *accel.Session, loader accel.SourceLoader, logger *zap.Logger) (*signal.Transformer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()
	if err := session.LoadKernels(ctx, loader, cfg.Signal.KernelSource, signal.KernelNames()); err != nil {
		closeOnError(session, logger)
		return nil, err
	}
	var opts []signal.Option
	if cfg.Signal.Verify {
		opts = append(opts, signal.WithVerification(cfg.Signal.Tolerance))
	}
	return signal.NewTransformer(session, logger, opts...), nil
}

// closeOnError releases session when a provider fails. The application never
// starts in that case, so its OnStop hooks do not run.
func closeOnError(session *accel.Session, logger *zap.Logger) {
	if err := session.Close(); err != nil {
		logger.Warn("Failed to close session", zap.Error(err))
	}
}

func registerMetricsTextfile(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) {
	if cfg.Metrics.Textfile == "" {
		return
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
				logger.Error("Failed to write metrics textfile", zap.String("path", cfg.Metrics.Textfile), zap.Error(err))
				return err
			}
			logger.Debug("Wrote metrics textfile", zap.String("path", cfg.Metrics.Textfile))
			return nil
		},
	})
}

// ReportDevices logs every device the session enumerated.
func ReportDevices(session *accel.Session, logger *zap.Logger) {
	for i, d := range session.Devices() {
		logger.Info("Device", zap.Int("index", i), zap.Object("info", d))
	}
	logger.Info("Selected device", zap.String("backend", session.Backend()), zap.String("name", session.Device().Name))
}
