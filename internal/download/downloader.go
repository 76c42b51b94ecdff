// Package download retrieves generated video artifacts from short-lived
// provider URLs and stores them on local disk. Artifact URLs point at a
// cross-origin CDN and expire, so the downloader sends browser-like headers
// and distinguishes permanent denials from transient transport failures.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"
)

// Static errors for download operations.
var (
	// ErrURLRequired is returned when the artifact URL is not provided.
	ErrURLRequired = errors.New("download: artifact URL is required")
	// ErrAccessDenied is returned on HTTP 403; the signed URL has likely expired.
	ErrAccessDenied = errors.New("download: access denied, URL may have expired")
	// ErrNotFound is returned on HTTP 404.
	ErrNotFound = errors.New("download: artifact not found")
	// ErrEmptyFile is returned when the downloaded artifact is zero bytes.
	ErrEmptyFile = errors.New("download: downloaded file is empty")
	// ErrRequestFailed is returned for other non-200 responses.
	ErrRequestFailed = errors.New("download: request failed")
)

// Browser-like request headers. Some CDNs hosting signed artifact URLs reject
// requests without them.
var defaultHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36",
	"Accept":          "*/*",
	"Accept-Language": "en-US,en;q=0.9",
	"Accept-Encoding": "gzip, deflate, br",
}

// progressLogInterval is the byte count between download progress log lines.
const progressLogInterval = 8 << 20 // 8 MiB

// Downloader fetches artifacts to a local directory with retry and backoff.
type Downloader struct {
	dir         string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
	logger      *slog.Logger
}

// Option is a function that configures a Downloader.
type Option func(*Downloader)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Downloader) {
		d.httpClient = c
	}
}

// WithMaxRetries sets the maximum number of attempts for transient failures.
func WithMaxRetries(n int) Option {
	return func(d *Downloader) {
		d.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration between attempts.
func WithBaseBackoff(b time.Duration) Option {
	return func(d *Downloader) {
		d.baseBackoff = b
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Downloader) {
		d.logger = l
	}
}

// New creates a Downloader writing into dir. The directory is created if it
// does not exist. The default HTTP client uses a short connect timeout and a
// much longer overall timeout: video payloads keep transferring long after a
// fast connect.
func New(dir string, opts ...Option) (*Downloader, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "wan-gateway-videos")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("download: create directory: %w", err)
	}

	d := &Downloader{
		dir: dir,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 30 * time.Second,
				}).DialContext,
			},
		},
		maxRetries:  3,
		baseBackoff: 2 * time.Second,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dir returns the local artifact directory.
func (d *Downloader) Dir() string {
	return d.dir
}

// Download fetches the artifact at artifactURL and writes it to a unique
// local file named from the task ID and the current timestamp. Transient
// failures (transport errors, 5xx, 429, empty results) are retried with
// exponentially growing delays; 403 and 404 abort immediately since retrying
// an expired or missing URL cannot succeed.
func (d *Downloader) Download(ctx context.Context, artifactURL, taskID string) (string, error) {
	if artifactURL == "" {
		return "", ErrURLRequired
	}

	var lastErr error
	backoff := d.baseBackoff

	for attempt := 1; attempt <= d.maxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("download: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		d.logger.Info("downloading artifact",
			slog.String("task_id", taskID),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", d.maxRetries),
		)

		localPath, err := d.attempt(ctx, artifactURL, taskID)
		if err == nil {
			return localPath, nil
		}
		if errors.Is(err, ErrAccessDenied) || errors.Is(err, ErrNotFound) {
			// Permanent: the URL will not start working on a later attempt.
			return "", err
		}

		d.logger.Warn("download attempt failed",
			slog.String("task_id", taskID),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		lastErr = err
	}

	return "", fmt.Errorf("download: failed after %d attempts: %w", d.maxRetries, lastErr)
}

// attempt performs a single streaming download to a freshly named file.
func (d *Downloader) attempt(ctx context.Context, artifactURL, taskID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artifactURL, nil)
	if err != nil {
		return "", fmt.Errorf("download: create request: %w", err)
	}
	for k, v := range defaultHeaders {
		req.Header.Set(k, v)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		// proceed
	case resp.StatusCode == http.StatusForbidden:
		return "", ErrAccessDenied
	case resp.StatusCode == http.StatusNotFound:
		return "", ErrNotFound
	default:
		return "", fmt.Errorf("%w with status %d", ErrRequestFailed, resp.StatusCode)
	}

	localPath := d.localPath(artifactURL, taskID)
	out, err := os.Create(localPath) // #nosec G304 - path is built from our own directory
	if err != nil {
		return "", fmt.Errorf("download: create output file: %w", err)
	}

	written, err := io.Copy(out, &progressReader{
		r:      resp.Body,
		total:  resp.ContentLength,
		logger: d.logger,
		taskID: taskID,
	})
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(localPath)
		return "", fmt.Errorf("download: copy artifact data: %w", err)
	}

	if written == 0 {
		_ = os.Remove(localPath)
		return "", ErrEmptyFile
	}

	d.logger.Info("artifact downloaded",
		slog.String("task_id", taskID),
		slog.String("path", localPath),
		slog.Int64("bytes", written),
	)
	return localPath, nil
}

// localPath builds a unique destination file name from the task ID and the
// current unix timestamp, keeping the remote file extension when present.
func (d *Downloader) localPath(artifactURL, taskID string) string {
	ext := ".mp4"
	if parsed, err := url.Parse(artifactURL); err == nil {
		if e := path.Ext(parsed.Path); e != "" {
			ext = e
		}
	}
	name := fmt.Sprintf("video_%s_%d%s", taskID, time.Now().Unix(), ext)
	return filepath.Join(d.dir, name)
}

// progressReader counts bytes as they stream through and logs coarse
// progress for large transfers.
type progressReader struct {
	r       io.Reader
	total   int64
	read    int64
	lastLog int64
	logger  *slog.Logger
	taskID  string
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	p.read += int64(n)
	if p.read-p.lastLog >= progressLogInterval {
		p.lastLog = p.read
		attrs := []any{
			slog.String("task_id", p.taskID),
			slog.Int64("bytes", p.read),
		}
		if p.total > 0 {
			attrs = append(attrs, slog.Float64("percent", float64(p.read)/float64(p.total)*100))
		}
		p.logger.Debug("download progress", attrs...)
	}
	return n, err
}
