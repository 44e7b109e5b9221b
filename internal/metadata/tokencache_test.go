package metadata

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"codeberg.org/mutker/hostwatch/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenConcurrentRefresh(t *testing.T) {
	var mints atomic.Int32
	var minted sync.Map

	cache := NewTokenCache(MinterFunc(func(context.Context, time.Duration) (string, error) {
		n := mints.Add(1)
		time.Sleep(5 * time.Millisecond)
		token := "token-" + strconv.Itoa(int(n))
		minted.Store(token, true)
		return token, nil
	}), 0)

	const callers = 100
	results := make([]string, callers)

	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = cache.Token(context.Background())
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, mints.Load(), int32(1))
	assert.LessOrEqual(t, mints.Load(), int32(callers))

	for _, token := range results {
		require.NotEmpty(t, token)
		_, ok := minted.Load(token)
		assert.True(t, ok, "token %q was never minted", token)
	}

	assert.True(t, cache.Cached().Usable(time.Now()))
}

func TestTokenReusedUntilSafetyMargin(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	var mints int

	cache := NewTokenCache(MinterFunc(func(_ context.Context, ttl time.Duration) (string, error) {
		assert.Equal(t, 6*time.Hour, ttl)
		mints++
		return "token-" + strconv.Itoa(mints), nil
	}), 0)
	cache.now = func() time.Time { return now }

	assert.Equal(t, "token-1", cache.Token(context.Background()))
	assert.Equal(t, now.Add(DefaultTokenTTL), cache.Cached().ExpiresAt)

	now = now.Add(DefaultTokenTTL - TokenSafetyMargin - time.Second)
	assert.Equal(t, "token-1", cache.Token(context.Background()))

	now = now.Add(time.Second)
	assert.Equal(t, "token-2", cache.Token(context.Background()), "within the safety margin")
	assert.Equal(t, 2, mints)
}

func TestTokenRefreshFailure(t *testing.T) {
	cache := NewTokenCache(MinterFunc(func(context.Context, time.Duration) (string, error) {
		return "", errors.New().New(ErrTokenRefresh)
	}), time.Hour)

	assert.Empty(t, cache.Token(context.Background()))
	assert.Empty(t, cache.Cached().Value)
}

func TestTokenInvalidate(t *testing.T) {
	var mints int
	cache := NewTokenCache(MinterFunc(func(context.Context, time.Duration) (string, error) {
		mints++
		return "token", nil
	}), time.Hour)

	cache.Token(context.Background())
	cache.Invalidate()
	cache.Token(context.Background())

	assert.Equal(t, 2, mints)
}
