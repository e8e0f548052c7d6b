package sso

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/movie-auth-gateway/auth"
	"go.uber.org/zap/zaptest"
)

// stubSource is a KeySource with a scripted result and an optional gate
type stubSource struct {
	calls   atomic.Int32
	release chan struct{}

	mu  sync.Mutex
	set *jose.JSONWebKeySet
	err error
}

func (s *stubSource) FetchKeySet(ctx context.Context) (*jose.JSONWebKeySet, error) {
	s.calls.Add(1)
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set, s.err
}

func (s *stubSource) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func testKeySet(t *testing.T, kids ...string) *jose.JSONWebKeySet {
	t.Helper()
	set := &jose.JSONWebKeySet{}
	for _, kid := range kids {
		set.Keys = append(set.Keys, generateRSAKey(t, kid).jwk())
	}
	return set
}

func newTestCache(t *testing.T, source KeySource, clock *fakeClock) *KeySetCache {
	cache := NewKeySetCache(source, time.Hour, 30*time.Second, 5*time.Second, zaptest.NewLogger(t))
	cache.now = clock.Now
	return cache
}

func TestKeySetCache_ConcurrentMissesShareOneFetch(t *testing.T) {
	source := &stubSource{set: testKeySet(t, "kid-1"), release: make(chan struct{})}
	cache := newTestCache(t, source, newFakeClock())

	const callers = 50
	var wg sync.WaitGroup
	results := make(chan *jose.JSONWebKeySet, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			keys, err := cache.Keys(context.Background())
			assert.NoError(t, err)
			results <- keys
		}()
	}

	require.Eventually(t, func() bool { return source.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(source.release)
	wg.Wait()
	close(results)

	assert.Equal(t, int32(1), source.calls.Load())
	for keys := range results {
		require.NotNil(t, keys)
		assert.Len(t, keys.Key("kid-1"), 1)
	}
}

func TestKeySetCache_ConcurrentReadersAtExpiryShareOneFetch(t *testing.T) {
	source := &stubSource{set: testKeySet(t, "kid-1")}
	clock := newFakeClock()
	cache := newTestCache(t, source, clock)

	_, err := cache.Keys(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(1), source.calls.Load())

	rotated := testKeySet(t, "kid-2")
	source.mu.Lock()
	source.set = rotated
	source.mu.Unlock()
	source.release = make(chan struct{})
	clock.Advance(time.Hour)

	const callers = 50
	var wg sync.WaitGroup
	results := make(chan *jose.JSONWebKeySet, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			keys, err := cache.Keys(context.Background())
			assert.NoError(t, err)
			results <- keys
		}()
	}

	require.Eventually(t, func() bool { return source.calls.Load() == 2 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(source.release)
	wg.Wait()
	close(results)

	assert.Equal(t, int32(2), source.calls.Load())
	for keys := range results {
		require.NotNil(t, keys)
		assert.Len(t, keys.Key("kid-2"), 1)
	}
	assert.Equal(t, clock.Now().Add(time.Hour), cache.Stats().ExpiresAt)
}

func TestKeySetCache_RefreshesAfterTTL(t *testing.T) {
	source := &stubSource{set: testKeySet(t, "kid-1")}
	clock := newFakeClock()
	cache := newTestCache(t, source, clock)
	ctx := context.Background()

	_, err := cache.Keys(ctx)
	require.NoError(t, err)

	clock.Advance(59 * time.Minute)
	_, err = cache.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), source.calls.Load())

	clock.Advance(time.Minute)
	_, err = cache.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), source.calls.Load())
}

func TestKeySetCache_ServesPreviousSetWhenRefreshFails(t *testing.T) {
	previous := testKeySet(t, "kid-1")
	source := &stubSource{set: previous}
	clock := newFakeClock()
	cache := newTestCache(t, source, clock)
	ctx := context.Background()

	_, err := cache.Keys(ctx)
	require.NoError(t, err)

	source.fail(errors.New("connection refused"))
	clock.Advance(2 * time.Hour)

	keys, err := cache.Keys(ctx)
	require.NoError(t, err)
	assert.Same(t, previous, keys)
	assert.Equal(t, int32(2), source.calls.Load())
	assert.Equal(t, "connection refused", cache.Stats().LastError)

	// Inside the retry interval the previous set is returned without fetching.
	clock.Advance(10 * time.Second)
	keys, err = cache.Keys(ctx)
	require.NoError(t, err)
	assert.Same(t, previous, keys)
	assert.Equal(t, int32(2), source.calls.Load())
}

func TestKeySetCache_UnreachableWithoutPreviousSet(t *testing.T) {
	source := &stubSource{err: errors.New("no such host")}
	cache := newTestCache(t, source, newFakeClock())

	keys, err := cache.Keys(context.Background())

	assert.Nil(t, keys)
	assert.ErrorIs(t, err, auth.ErrAuthorityUnreachable)
	assert.Contains(t, err.Error(), "no such host")
	assert.Equal(t, auth.ReasonAuthorityUnreachable, auth.Classify(err))
}

func TestKeySetCache_FetchOutlivesCancelledCaller(t *testing.T) {
	source := &stubSource{set: testKeySet(t, "kid-1"), release: make(chan struct{})}
	cache := newTestCache(t, source, newFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := cache.Keys(ctx)
		done <- err
	}()

	require.Eventually(t, func() bool { return source.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	close(source.release)

	require.NoError(t, <-done)
	assert.True(t, cache.Stats().Cached)
}

func TestKeySetCache_FetchTimeout(t *testing.T) {
	source := &stubSource{set: testKeySet(t, "kid-1"), release: make(chan struct{})}
	cache := NewKeySetCache(source, time.Hour, 30*time.Second, 20*time.Millisecond, zaptest.NewLogger(t))

	_, err := cache.Keys(context.Background())

	assert.ErrorIs(t, err, auth.ErrAuthorityUnreachable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestKeySetCache_RefreshRecorder(t *testing.T) {
	source := &stubSource{set: testKeySet(t, "kid-1")}
	clock := newFakeClock()
	cache := newTestCache(t, source, clock)

	var successes, failures int
	cache.onRefresh = func(success bool) {
		if success {
			successes++
		} else {
			failures++
		}
	}

	_, err := cache.Keys(context.Background())
	require.NoError(t, err)

	source.fail(errors.New("boom"))
	clock.Advance(2 * time.Hour)
	_, err = cache.Keys(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, failures)
}

func TestHTTPKeySource_RejectsBadResponses(t *testing.T) {
	key := generateRSAKey(t, "kid-1")
	server := newJWKSServer(t, key)
	source := NewHTTPKeySource("https://tenant.eu.auth0.com/", server.URL, &http.Client{Timeout: time.Second})

	set, err := source.FetchKeySet(context.Background())
	require.NoError(t, err)
	assert.Len(t, set.Key("kid-1"), 1)

	server.failing.Store(true)
	_, err = source.FetchKeySet(context.Background())
	assert.ErrorContains(t, err, "status code 503")

	server.failing.Store(false)
	server.setKeys()
	_, err = source.FetchKeySet(context.Background())
	assert.ErrorContains(t, err, "contains no keys")
}
