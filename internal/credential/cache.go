package credential

import (
	"context"
	"sync"
	"time"
)

// CachingSource reuses a token until it is within margin of expiring.
// Tokens without an expiry are never cached.
type CachingSource struct {
	source Source
	margin time.Duration
	now    func() time.Time

	mu      sync.Mutex
	current Token
}

func NewCachingSource(source Source, margin time.Duration) *CachingSource {
	return &CachingSource{source: source, margin: margin, now: time.Now}
}

func (c *CachingSource) AccessToken(ctx context.Context) (Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current.Value != "" && c.now().Add(c.margin).Before(c.current.ExpiresAt) {
		return c.current, nil
	}

	token, err := c.source.AccessToken(ctx)
	if err != nil {
		return Token{}, err
	}
	if !token.ExpiresAt.IsZero() {
		c.current = token
	}
	return token, nil
}
