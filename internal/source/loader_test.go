package source

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/fxnlabs/accel-templates/internal/accel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "k.cl")
	require.NoError(t, os.WriteFile(path, []byte("__kernel void k(int n) {}"), 0o644))

	l := NewLoader(zap.NewNop())

	src, err := l.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "__kernel void k(int n) {}", src)

	_, err = l.Load(context.Background(), filepath.Join(dir, "missing.cl"))
	assert.ErrorIs(t, err, accel.ErrSourceLoad)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = l.Load(context.Background(), "")
	assert.ErrorIs(t, err, accel.ErrSourceLoad)
}

func TestLoadTooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.cl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", MaxSourceBytes+1)), 0o644))

	_, err := NewLoader(nil).Load(context.Background(), path)
	assert.ErrorIs(t, err, accel.ErrSourceLoad)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestLoadEmbedded(t *testing.T) {
	l := NewLoader(nil)

	src, err := l.Load(context.Background(), "embed:filter.cl")
	require.NoError(t, err)
	assert.Contains(t, src, "__kernel void Filter(")

	_, err = l.Load(context.Background(), "embed:nope.cl")
	assert.ErrorIs(t, err, accel.ErrSourceLoad)
}

func TestLoadGCS(t *testing.T) {
	objects := map[string]string{"kernels/dct.cl": "__kernel void computeDCT1D(int n) {}"}
	var requested []string
	open := func(_ context.Context, bucket, object string) (io.ReadCloser, error) {
		requested = append(requested, bucket+"/"+object)
		if bucket != "accel" {
			return nil, errors.New("permission denied")
		}
		src, ok := objects[object]
		if !ok {
			return nil, storage.ErrObjectNotExist
		}
		return io.NopCloser(strings.NewReader(src)), nil
	}
	l := NewLoaderWithOpener(zap.NewNop(), open)

	src, err := l.Load(context.Background(), "gs://accel/kernels/dct.cl")
	require.NoError(t, err)
	assert.Equal(t, objects["kernels/dct.cl"], src)

	_, err = l.Load(context.Background(), "gs://accel/missing.cl")
	assert.ErrorIs(t, err, accel.ErrSourceLoad)
	assert.ErrorIs(t, err, storage.ErrObjectNotExist)

	_, err = l.Load(context.Background(), "gs://other/kernels/dct.cl")
	assert.ErrorIs(t, err, accel.ErrSourceLoad)

	_, err = l.Load(context.Background(), "gs://accel")
	assert.ErrorIs(t, err, accel.ErrSourceLoad)

	assert.Equal(t, []string{"accel/kernels/dct.cl", "accel/missing.cl", "other/kernels/dct.cl"}, requested)
}

func TestParseGCSURL(t *testing.T) {
	bucket, object, err := ParseGCSURL("gs://b/dir/o.cl")
	require.NoError(t, err)
	assert.Equal(t, "b", bucket)
	assert.Equal(t, "dir/o.cl", object)

	for _, bad := range []string{"s3://b/o", "gs://", "gs://b", "gs://b/", "gs:///o"} {
		_, _, err := ParseGCSURL(bad)
		assert.Error(t, err, bad)
	}
}
