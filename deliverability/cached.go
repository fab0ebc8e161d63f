package deliverability

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/contactrelay/cache"
	"go.uber.org/zap"
)

// Cached wraps a Probe and remembers completed mailbox checks for ttl.
// Local checks always run. Skipped or failed mailbox checks are never
// stored so a transient failure is retried on the next submission.
type Cached struct {
	next   Probe
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCached returns next wrapped with c.
func NewCached(next Probe, c cache.Cache, ttl time.Duration, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{next: next, cache: c, ttl: ttl, logger: logger}
}

func cacheKey(email string) string {
	return "mailbox:" + strings.ToLower(strings.TrimSpace(email))
}

func (c *Cached) Local(email string) Report {
	return c.next.Local(email)
}

// Mailbox returns a cached result when available, otherwise asks next and
// caches a completed answer.
func (c *Cached) Mailbox(ctx context.Context, email string) (SMTP, error) {
	key := cacheKey(email)

	hit, err := cache.GetJSON[SMTP](ctx, c.cache, key)
	switch {
	case err == nil:
		return hit, nil
	case !errors.Is(err, cache.ErrNotFound):
		c.logger.Warn("verdict cache read failed", zap.Error(err))
	}

	res, err := c.next.Mailbox(ctx, email)
	if err != nil {
		return res, err
	}
	if err := cache.SetJSON(ctx, c.cache, key, res, c.ttl); err != nil {
		c.logger.Warn("verdict cache write failed", zap.Error(err))
	}
	return res, nil
}
