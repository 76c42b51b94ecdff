package imageref

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wan-video/wan-gateway/internal/storage"
)

// fakeStore records uploads and returns a deterministic URL. Loads are
// served from the real filesystem so the resolver reads actual image bytes.
type fakeStore struct {
	lastKey   string
	loadCalls int
	err       error
}

func (f *fakeStore) SaveTemp(_ context.Context, _ string, _ io.Reader) (string, error) {
	return "", nil
}

func (f *fakeStore) LoadTemp(_ context.Context, path string) (io.ReadCloser, error) {
	f.loadCalls++
	return os.Open(path) // #nosec G304 - test fixture paths
}

func (f *fakeStore) CleanupTemp(_ context.Context, _ []string) error { return nil }

func (f *fakeStore) CleanupAged(_ context.Context, _ time.Duration) (int, error) { return 0, nil }

func (f *fakeStore) Upload(_ context.Context, key string, _ io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.lastKey = key
	return "https://bucket.example.com/" + key + "?signature=abc", nil
}

func writeTestPNG(t *testing.T, width, height int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	img.Set(0, 0, color.White)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	path := filepath.Join(t.TempDir(), "input.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0600))
	return path
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolve_UploadsValidImage(t *testing.T) {
	store := &fakeStore{}
	resolver := NewResolver(store, WithLogger(discardLogger()))

	path := writeTestPNG(t, 400, 400)
	info, err := resolver.Resolve(context.Background(), path)
	require.NoError(t, err)

	assert.False(t, info.Placeholder)
	assert.Equal(t, "png", info.Format)
	assert.Equal(t, 400, info.Width)
	assert.Equal(t, 400, info.Height)
	assert.True(t, strings.HasPrefix(info.ObjectKey, "images/"), "key %q", info.ObjectKey)
	assert.True(t, strings.HasSuffix(info.ObjectKey, ".png"), "key %q", info.ObjectKey)
	assert.Contains(t, info.URL, info.ObjectKey)
	assert.Equal(t, store.lastKey, info.ObjectKey)
	// The image is read back through the storage layer, not opened directly.
	assert.Equal(t, 1, store.loadCalls)
}

func TestResolve_PlaceholderWhenStoreNotConfigured(t *testing.T) {
	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	resolver := NewResolver(local, WithLogger(discardLogger()))

	path := writeTestPNG(t, 512, 512)
	info, err := resolver.Resolve(context.Background(), path)
	require.NoError(t, err)

	assert.True(t, info.Placeholder)
	assert.Equal(t, PlaceholderURL, info.URL)
	assert.Empty(t, info.ObjectKey)
}

func TestResolve_EmptyPath(t *testing.T) {
	resolver := NewResolver(&fakeStore{}, WithLogger(discardLogger()))

	_, err := resolver.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrImageRequired)
}

func TestResolve_DimensionsOutOfRange(t *testing.T) {
	resolver := NewResolver(&fakeStore{}, WithLogger(discardLogger()))

	tests := []struct {
		name          string
		width, height int
	}{
		{"too small", 100, 100},
		{"too narrow", 100, 500},
		{"too short", 500, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTestPNG(t, tt.width, tt.height)
			_, err := resolver.Resolve(context.Background(), path)
			assert.ErrorIs(t, err, ErrDimensionsOutOfRange)
		})
	}
}

func TestResolve_UnsupportedFormat(t *testing.T) {
	resolver := NewResolver(&fakeStore{}, WithLogger(discardLogger()))

	path := filepath.Join(t.TempDir(), "input.txt")
	require.NoError(t, os.WriteFile(path, []byte("not an image at all"), 0600))

	_, err := resolver.Resolve(context.Background(), path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestResolve_TooLarge(t *testing.T) {
	resolver := NewResolver(&fakeStore{}, WithLogger(discardLogger()))

	path := filepath.Join(t.TempDir(), "huge.png")
	require.NoError(t, os.WriteFile(path, make([]byte, maxSizeBytes+1), 0600))

	_, err := resolver.Resolve(context.Background(), path)
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestResolve_UploadFailure(t *testing.T) {
	store := &fakeStore{err: assert.AnError}
	resolver := NewResolver(store, WithLogger(discardLogger()))

	path := writeTestPNG(t, 600, 600)
	_, err := resolver.Resolve(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}
