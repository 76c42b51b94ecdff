// Package cache provides a bounded in-memory result cache keyed by
// deterministic request IDs. Identical generation requests reuse their
// previous result instead of resubmitting a job.
package cache

import (
	"errors"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/wan-video/wan-gateway/internal/generate"
)

// ErrInvalidSize is returned when the cache size is not positive.
var ErrInvalidSize = errors.New("cache size must be positive")

// DefaultSize bounds the cache when no size is configured.
const DefaultSize = 128

// ResultCache holds recent generation results with LRU eviction.
// Reads promote the entry to most recently used.
type ResultCache struct {
	lru    *lru.Cache[string, *generate.Result]
	logger *slog.Logger
}

// Option configures the ResultCache.
type Option func(*ResultCache)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *ResultCache) {
		c.logger = logger
	}
}

// New creates a ResultCache bounded to size entries.
func New(size int, opts ...Option) (*ResultCache, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	inner, err := lru.New[string, *generate.Result](size)
	if err != nil {
		return nil, err
	}

	c := &ResultCache{
		lru:    inner,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get returns the cached result for requestID, promoting it to most
// recently used.
func (c *ResultCache) Get(requestID string) (*generate.Result, bool) {
	result, ok := c.lru.Get(requestID)
	if ok {
		c.logger.Debug("cache hit", slog.String("request_id", requestID))
	}
	return result, ok
}

// Put stores a result under requestID, evicting the least recently used
// entry when full. Only successful results are worth keeping; failures
// should be retried, so callers skip caching them.
func (c *ResultCache) Put(requestID string, result *generate.Result) {
	if evicted := c.lru.Add(requestID, result); evicted {
		c.logger.Debug("cache evicted oldest entry", slog.String("request_id", requestID))
	}
}

// Len returns the number of cached entries.
func (c *ResultCache) Len() int {
	return c.lru.Len()
}
