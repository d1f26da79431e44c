//go:build integration
// +build integration

package integration

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fxnlabs/accel-templates/internal/accel"
	"github.com/fxnlabs/accel-templates/internal/app"
	"github.com/fxnlabs/accel-templates/internal/config"
	"github.com/fxnlabs/accel-templates/internal/filter"
	"github.com/fxnlabs/accel-templates/internal/imageio"
	"github.com/fxnlabs/accel-templates/internal/logger"
	"github.com/fxnlabs/accel-templates/internal/metrics"
	"github.com/fxnlabs/accel-templates/internal/ppm"
	"github.com/fxnlabs/accel-templates/internal/signal"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

func TestPipeline_EndToEnd(t *testing.T) {
	cfg, err := config.LoadConfig("../../fixtures/tests/config/partial_config.yaml")
	require.NoError(t, err)
	cfg.Signal.Verify = true
	cfg.Metrics.Textfile = filepath.Join(t.TempDir(), "accel.prom")

	log, err := logger.New("debug")
	require.NoError(t, err)

	var (
		session     *accel.Session
		processor   *filter.Processor
		transformer *signal.Transformer
	)
	fxApp := fxtest.New(t,
		app.Options(cfg, log),
		fx.Populate(&session, &processor, &transformer),
	)
	fxApp.RequireStart()
	defer fxApp.RequireStop()

	app.ReportDevices(session, log)
	ctx := context.Background()

	t.Run("sobel on a gradient", func(t *testing.T) {
		dir := t.TempDir()
		src := ppm.New(16, 16)
		for y := 0; y < 16; y++ {
			for x := 0; x < 16; x++ {
				i := src.PixOffset(x, y)
				src.Pix[i], src.Pix[i+1], src.Pix[i+2] = uint8(8*x), uint8(8*y), 128
			}
		}
		in := filepath.Join(dir, "in.ppm")
		require.NoError(t, imageio.Save(in, src))

		loaded, err := imageio.Open(in)
		require.NoError(t, err)
		weights, err := cfg.FilterWeights()
		require.NoError(t, err)

		img := filter.Expand(loaded)
		got, err := processor.Apply(ctx, img, weights)
		require.NoError(t, err)
		want, err := filter.Convolve(img, weights)
		require.NoError(t, err)
		assert.Equal(t, filter.Narrow(want).Pix, filter.Narrow(got).Pix)

		// vertical sobel over an 8-per-row ramp: 4*2*8 in the interior
		out := filter.Narrow(got)
		assert.Equal(t, uint8(64), out.Pix[out.PixOffset(5, 5)+1])
		assert.Equal(t, uint8(0), out.Pix[out.PixOffset(5, 5)])

		require.NoError(t, imageio.Save(filepath.Join(dir, "out.png"), out))
	})

	t.Run("dct round trips", func(t *testing.T) {
		ok := metrics.OperationsTotal.WithLabelValues(signal.Subsystem, "dct2d", "ok")
		before := testutil.ToFloat64(ok)

		m := signal.NewMatrix(8, 8)
		for i := 0; i < 8; i++ {
			for j := 0; j < 8; j++ {
				m.Data[i*8+j] = float32(10 * (i + j))
			}
		}
		coeffs, err := transformer.Forward(ctx, m)
		require.NoError(t, err)
		back, err := transformer.Inverse(ctx, coeffs)
		require.NoError(t, err)
		for i := range m.Data {
			assert.InDelta(t, m.Data[i], back.Data[i], 1e-3)
		}
		assert.Equal(t, before+1, testutil.ToFloat64(ok))
	})
}
