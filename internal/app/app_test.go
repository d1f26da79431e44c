package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fxnlabs/accel-templates/internal/accel"
	"github.com/fxnlabs/accel-templates/internal/config"
	"github.com/fxnlabs/accel-templates/internal/filter"
	"github.com/fxnlabs/accel-templates/internal/ppm"
	"github.com/fxnlabs/accel-templates/internal/signal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Runtime.Backend = "cpu"
	cfg.Signal.Verify = true
	cfg.Metrics.Textfile = filepath.Join(t.TempDir(), "accel.prom")
	return cfg
}

func TestOptions(t *testing.T) {
	cfg := testConfig(t)

	var (
		session     *accel.Session
		processor   *filter.Processor
		transformer *signal.Transformer
	)
	app := fxtest.New(t,
		Options(cfg, zap.NewNop()),
		fx.Populate(&session, &processor, &transformer),
	)
	app.RequireStart()

	assert.Equal(t, "cpu", session.Backend())
	assert.ElementsMatch(t, append(filter.KernelNames(), signal.KernelNames()...), session.Kernels())

	ctx := context.Background()
	coeffs, err := transformer.Forward(ctx, signal.NewVector([]float32{1, 1, 1, 1}))
	require.NoError(t, err)
	assert.InDelta(t, 2, coeffs.Data[0], 1e-5)

	identity, err := filter.Preset("identity")
	require.NoError(t, err)
	img := filter.Expand(ppm.New(2, 2))
	out, err := processor.Apply(ctx, img, identity)
	require.NoError(t, err)
	assert.Equal(t, img.Pix, out.Pix)

	app.RequireStop()

	_, err = transformer.Forward(ctx, signal.NewVector([]float32{1}))
	assert.ErrorIs(t, err, accel.ErrSessionClosed)

	data, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "accel_operations_total")
}

func TestOptionsBadKernelSource(t *testing.T) {
	for name, mutate := range map[string]func(c *config.Config){
		"signal": func(c *config.Config) { c.Signal.KernelSource = "embed:missing.cl" },
		"filter": func(c *config.Config) { c.Filter.KernelSource = "embed:missing.cl" },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig(t)
			mutate(cfg)
			rt := accel.NewCPURuntime(HostKernels()...)

			var (
				processor   *filter.Processor
				transformer *signal.Transformer
			)
			app := fx.New(
				Options(cfg, zap.NewNop()),
				fx.Decorate(func(accel.Runtime) accel.Runtime { return rt }),
				fx.Populate(&processor, &transformer),
			)
			assert.ErrorIs(t, app.Err(), accel.ErrSourceLoad)

			stats := rt.Stats()
			assert.Equal(t, int64(1), stats.ContextsCreated)
			assert.Equal(t, stats.ContextsCreated, stats.ContextsReleased)
			assert.Equal(t, stats.KernelsCreated, stats.KernelsReleased)
		})
	}
}

func TestRun(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Textfile = ""

	var session *accel.Session
	called := false
	err := Run(context.Background(), cfg, zap.NewNop(), func(context.Context) error {
		called = true
		assert.NotEmpty(t, session.Devices())
		return nil
	}, &session)
	require.NoError(t, err)
	assert.True(t, called)

	cfg.Runtime.Backend = "vulkan"
	err = Run(context.Background(), cfg, zap.NewNop(), func(context.Context) error { return nil }, &session)
	assert.ErrorIs(t, err, accel.ErrUnknownBackend)
}
