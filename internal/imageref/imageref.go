// Package imageref validates local image inputs and resolves them to public
// URLs the generation provider can fetch. When object storage is not
// configured it falls back to a fixed demo image so the rest of the flow
// stays exercisable.
package imageref

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"strings"
	"time"

	// Register decoders for the accepted input formats.
	_ "image/jpeg"
	_ "image/png"

	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/wan-video/wan-gateway/internal/storage"
)

// Static errors for image validation failures.
var (
	ErrImageRequired        = errors.New("image file is required")
	ErrUnsupportedFormat    = errors.New("unsupported image format, use JPEG, PNG, BMP or WEBP")
	ErrImageTooLarge        = errors.New("image exceeds the 10MB size limit")
	ErrDimensionsOutOfRange = errors.New("image dimensions must be between 360px and 2000px")
)

// PlaceholderURL is served when no object storage is configured.
const PlaceholderURL = "https://cdn.translate.alibaba.com/r/wanx-demo-1.png"

const (
	maxSizeBytes = 10 << 20
	minDimension = 360
	maxDimension = 2000
)

var acceptedFormats = map[string]bool{
	"jpeg": true,
	"png":  true,
	"bmp":  true,
	"webp": true,
}

// Info describes a resolved image reference.
type Info struct {
	URL         string
	Format      string
	Width       int
	Height      int
	SizeBytes   int64
	ObjectKey   string
	Placeholder bool
}

// Resolver validates images and uploads them through storage.
type Resolver struct {
	store  storage.Storage
	logger *slog.Logger
}

// Option configures the Resolver.
type Option func(*Resolver)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a Resolver backed by the given storage.
func NewResolver(store storage.Storage, opts ...Option) *Resolver {
	r := &Resolver{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve validates the image at path and returns a public URL for it.
// Validation failures return one of the static errors above; upload failures
// are wrapped. When object storage is absent the placeholder URL is returned
// with Placeholder set.
func (r *Resolver) Resolve(ctx context.Context, path string) (Info, error) {
	if path == "" {
		return Info{}, ErrImageRequired
	}

	f, err := r.store.LoadTemp(ctx, path)
	if err != nil {
		return Info{}, fmt.Errorf("open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	// Read at most one byte past the limit so oversized files are rejected
	// without buffering their full content.
	data, err := io.ReadAll(io.LimitReader(f, maxSizeBytes+1))
	if err != nil {
		return Info{}, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > maxSizeBytes {
		return Info{}, ErrImageTooLarge
	}
	if len(data) == 0 {
		return Info{}, ErrImageRequired
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, ErrUnsupportedFormat
	}
	if !acceptedFormats[format] {
		return Info{}, ErrUnsupportedFormat
	}
	if cfg.Width < minDimension || cfg.Width > maxDimension ||
		cfg.Height < minDimension || cfg.Height > maxDimension {
		return Info{}, ErrDimensionsOutOfRange
	}

	info := Info{
		Format:    format,
		Width:     cfg.Width,
		Height:    cfg.Height,
		SizeBytes: int64(len(data)),
	}

	key := objectKey(format)
	url, err := r.store.Upload(ctx, key, bytes.NewReader(data))
	if errors.Is(err, storage.ErrObjectStoreNotConfigured) {
		r.logger.Info("object storage not configured, using placeholder image",
			slog.String("placeholder_url", PlaceholderURL),
		)
		info.URL = PlaceholderURL
		info.Placeholder = true
		return info, nil
	}
	if err != nil {
		return Info{}, fmt.Errorf("upload image: %w", err)
	}

	r.logger.Info("image uploaded",
		slog.String("key", key),
		slog.String("format", format),
		slog.Int("width", cfg.Width),
		slog.Int("height", cfg.Height),
		slog.Int64("size_bytes", info.SizeBytes),
	)

	info.URL = url
	info.ObjectKey = key
	return info, nil
}

func objectKey(format string) string {
	ext := format
	if ext == "jpeg" {
		ext = "jpg"
	}
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("images/%d_%s.%s", time.Now().Unix(), id, ext)
}
