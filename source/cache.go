package source

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/caio-sobreiro/dicomworklist/worklist"
)

// DefaultRefreshInterval is how often Run reloads the worklist.
const DefaultRefreshInterval = 30 * time.Second

// Cache keeps the latest worklist snapshot from a Source. Readers get an
// immutable slice; a refresh swaps in a new one atomically.
type Cache struct {
	source   worklist.Source
	interval time.Duration
	logger   zerolog.Logger

	current   atomic.Pointer[[]worklist.Entry]
	refreshed atomic.Int64
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithInterval sets the refresh interval.
func WithInterval(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithLogger sets the cache logger.
func WithLogger(logger zerolog.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = logger
	}
}

// NewCache creates a cache over src. It is empty until the first refresh.
func NewCache(src worklist.Source, opts ...CacheOption) *Cache {
	c := &Cache{
		source:   src,
		interval: DefaultRefreshInterval,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Current returns the latest snapshot. Callers must not modify it.
func (c *Cache) Current() []worklist.Entry {
	if p := c.current.Load(); p != nil {
		return *p
	}
	return nil
}

// LastRefresh returns when the snapshot was last replaced, or the zero time.
func (c *Cache) LastRefresh() time.Time {
	if ns := c.refreshed.Load(); ns != 0 {
		return time.Unix(0, ns)
	}
	return time.Time{}
}

// Refresh loads the source once and swaps in the result. On error the
// previous snapshot stays in place.
func (c *Cache) Refresh(ctx context.Context) error {
	start := time.Now()
	entries, err := c.source.Entries(ctx)
	if err != nil {
		return err
	}
	c.current.Store(&entries)
	c.refreshed.Store(time.Now().UnixNano())
	c.logger.Debug().
		Int("entries", len(entries)).
		Dur("took", time.Since(start)).
		Msg("worklist refreshed")
	return nil
}

// Run refreshes immediately and then every interval until ctx is done.
func (c *Cache) Run(ctx context.Context) error {
	c.refreshLogged(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.refreshLogged(ctx)
		}
	}
}

func (c *Cache) refreshLogged(ctx context.Context) {
	if err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
		c.logger.Error().Err(err).Msg("worklist refresh failed, keeping previous snapshot")
	}
}
