package metadata

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultTokenTTL = 6 * time.Hour
	// TokenSafetyMargin is how long before expiry a token stops being served.
	TokenSafetyMargin = time.Minute
)

// CachedToken is replaced as a whole on refresh.
type CachedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Usable reports whether the token can still be handed out at now.
func (t CachedToken) Usable(now time.Time) bool {
	return t.Value != "" && now.Before(t.ExpiresAt.Add(-TokenSafetyMargin))
}

// Minter obtains a fresh token valid for ttl.
type Minter interface {
	Mint(ctx context.Context, ttl time.Duration) (string, error)
}

type MinterFunc func(ctx context.Context, ttl time.Duration) (string, error)

func (f MinterFunc) Mint(ctx context.Context, ttl time.Duration) (string, error) {
	return f(ctx, ttl)
}

// TokenCache serves a metadata session token to concurrent callers and mints
// a new one when the cached token is missing or about to expire. Minting runs
// outside the lock, so concurrent refreshes may each store their own token;
// every stored token is a valid bearer string.
type TokenCache struct {
	minter Minter
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	token CachedToken
}

func NewTokenCache(minter Minter, ttl time.Duration) *TokenCache {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	return &TokenCache{
		minter: minter,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Token returns a usable token, or "" if none could be minted.
func (c *TokenCache) Token(ctx context.Context) string {
	c.mu.Lock()
	if c.token.Usable(c.now()) {
		value := c.token.Value
		c.mu.Unlock()
		return value
	}
	c.mu.Unlock()

	value, err := c.minter.Mint(ctx, c.ttl)
	if err != nil || value == "" {
		log.Warn().Err(err).Msg("Metadata token refresh failed, falling back to unauthenticated requests")
		return ""
	}

	c.mu.Lock()
	c.token = CachedToken{Value: value, ExpiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()

	return value
}

// Cached returns the currently stored token.
func (c *TokenCache) Cached() CachedToken {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.token
}

// Invalidate drops the cached token.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token = CachedToken{}
	c.mu.Unlock()
}
