// Package source resolves kernel program locations to source text.
//
// A location is one of:
//
//	embed:NAME           a program compiled into the binary (see package kernels)
//	gs://BUCKET/OBJECT   an object in Google Cloud Storage
//	PATH                 a file on the local filesystem
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/fxnlabs/accel-templates/internal/accel"
	"github.com/fxnlabs/accel-templates/kernels"
	"go.uber.org/zap"
)

const (
	EmbedPrefix = "embed:"
	GCSPrefix   = "gs://"

	// MaxSourceBytes bounds the size of a program read from any location.
	MaxSourceBytes = 1 << 20
)

// ObjectOpener opens a Cloud Storage object for reading.
type ObjectOpener func(ctx context.Context, bucket, object string) (io.ReadCloser, error)

// Loader implements accel.SourceLoader.
type Loader struct {
	logger *zap.Logger
	open   ObjectOpener
}

var _ accel.SourceLoader = (*Loader)(nil)

// NewLoader creates a loader that reads gs:// locations with a default
// Cloud Storage client.
func NewLoader(logger *zap.Logger) *Loader {
	return NewLoaderWithOpener(logger, openGCSObject)
}

// NewLoaderWithOpener creates a loader that reads gs:// locations through open.
func NewLoaderWithOpener(logger *zap.Logger, open ObjectOpener) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger, open: open}
}

// Load returns the source text at location.
func (l *Loader) Load(ctx context.Context, location string) (string, error) {
	var (
		src string
		err error
	)
	switch {
	case location == "":
		err = errors.New("empty location")
	case strings.HasPrefix(location, EmbedPrefix):
		src, err = kernels.Get(strings.TrimPrefix(location, EmbedPrefix))
	case strings.HasPrefix(location, GCSPrefix):
		src, err = l.loadGCS(ctx, location)
	default:
		src, err = loadFile(location)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", accel.ErrSourceLoad, location, err)
	}
	return src, nil
}

func loadFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return readLimited(f)
}

// ParseGCSURL splits gs://bucket/object into its parts.
func ParseGCSURL(location string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(location, GCSPrefix)
	if !ok {
		return "", "", fmt.Errorf("%q is not a gs:// URL", location)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("%q must have the form gs://BUCKET/OBJECT", location)
	}
	return bucket, object, nil
}

func (l *Loader) loadGCS(ctx context.Context, location string) (string, error) {
	bucket, object, err := ParseGCSURL(location)
	if err != nil {
		return "", err
	}

	l.logger.Info("Downloading kernel source from GCS", zap.String("url", location))
	startedAt := time.Now()

	r, err := l.open(ctx, bucket, object)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return "", fmt.Errorf("object not found: %w", err)
		}
		return "", fmt.Errorf("opening object from GCS: %w", err)
	}
	defer r.Close()

	src, err := readLimited(r)
	if err != nil {
		return "", fmt.Errorf("reading object from GCS: %w", err)
	}

	l.logger.Info("Downloaded kernel source from GCS",
		zap.String("url", location),
		zap.Int("bytes", len(src)),
		zap.Duration("duration", time.Since(startedAt)))
	return src, nil
}

func readLimited(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSourceBytes+1))
	if err != nil {
		return "", err
	}
	if len(data) > MaxSourceBytes {
		return "", fmt.Errorf("source exceeds %d bytes", MaxSourceBytes)
	}
	return string(data), nil
}

type gcsObjectReader struct {
	*storage.Reader
	client *storage.Client
}

func (r *gcsObjectReader) Close() error {
	err := r.Reader.Close()
	if cerr := r.client.Close(); err == nil {
		err = cerr
	}
	return err
}

func openGCSObject(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating GCS storage client: %w", err)
	}
	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		client.Close()
		return nil, err
	}
	return &gcsObjectReader{Reader: r, client: client}, nil
}
