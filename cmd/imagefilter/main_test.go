package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fxnlabs/accel-templates/internal/config"
	"github.com/fxnlabs/accel-templates/internal/ppm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRun(t *testing.T) {
	dir := t.TempDir()
	src := ppm.New(6, 4)
	for i := range src.Pix {
		src.Pix[i] = uint8(i * 7)
	}
	require.NoError(t, ppm.WriteFile(filepath.Join(dir, "in.ppm"), src))

	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Runtime.Backend = "cpu"
	cfg.Filter.Input = filepath.Join(dir, "in.ppm")
	cfg.Filter.Output = filepath.Join(dir, "out.ppm")
	cfg.Filter.Preview = filepath.Join(dir, "out.png")
	cfg.Filter.Preset = "identity"

	require.NoError(t, run(context.Background(), cfg, zap.NewNop()))

	out, err := ppm.ReadFile(cfg.Filter.Output)
	require.NoError(t, err)
	assert.Equal(t, src.Pix, out.Pix)
	assert.FileExists(t, cfg.Filter.Preview)
}

func TestRunMissingInput(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Runtime.Backend = "cpu"
	cfg.Filter.Input = filepath.Join(t.TempDir(), "missing.ppm")

	err = run(context.Background(), cfg, zap.NewNop())
	assert.ErrorIs(t, err, ppm.ErrFileOpen)
	assert.True(t, ppm.IsFatal(err))
}
