package sso

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	jose "github.com/go-jose/go-jose/v4"
	"github.com/upb/movie-auth-gateway/auth"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// maxJWKSBytes caps the size of a key set response
const maxJWKSBytes = 1 << 20

// KeySource fetches the provider's current public key set.
type KeySource interface {
	FetchKeySet(ctx context.Context) (*jose.JSONWebKeySet, error)
}

// HTTPKeySource fetches a JWKS document over HTTP. When no JWKS URL is configured it
// is discovered once from the issuer's OpenID configuration.
type HTTPKeySource struct {
	issuer     string
	jwksURL    string
	httpClient *http.Client

	mu         sync.Mutex
	discovered string
}

// NewHTTPKeySource creates a key source for the issuer. jwksURL may be empty.
func NewHTTPKeySource(issuer, jwksURL string, httpClient *http.Client) *HTTPKeySource {
	return &HTTPKeySource{
		issuer:     issuer,
		jwksURL:    jwksURL,
		httpClient: httpClient,
	}
}

// FetchKeySet implements KeySource
func (s *HTTPKeySource) FetchKeySet(ctx context.Context) (*jose.JSONWebKeySet, error) {
	jwksURL, err := s.resolveJWKSURL(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch JWKS: status code %d", resp.StatusCode)
	}

	var set jose.JSONWebKeySet
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJWKSBytes)).Decode(&set); err != nil {
		return nil, fmt.Errorf("failed to decode JWKS: %w", err)
	}
	if len(set.Keys) == 0 {
		return nil, fmt.Errorf("JWKS at %s contains no keys", jwksURL)
	}

	return &set, nil
}

func (s *HTTPKeySource) resolveJWKSURL(ctx context.Context) (string, error) {
	if s.jwksURL != "" {
		return s.jwksURL, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discovered != "" {
		return s.discovered, nil
	}

	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, s.httpClient), s.issuer)
	if err != nil {
		return "", fmt.Errorf("oidc discovery failed: %w", err)
	}
	var meta struct {
		JWKSURI string `json:"jwks_uri"`
	}
	if err := provider.Claims(&meta); err != nil {
		return "", fmt.Errorf("invalid discovery metadata: %w", err)
	}
	if meta.JWKSURI == "" {
		return "", fmt.Errorf("discovery incomplete: missing jwks_uri")
	}

	s.discovered = meta.JWKSURI
	return s.discovered, nil
}

// CacheStats describes the key set cache state
type CacheStats struct {
	Cached      bool      `json:"cached"`
	KeyCount    int       `json:"key_count"`
	ExpiresAt   time.Time `json:"expires_at"`
	LastAttempt time.Time `json:"last_attempt"`
	LastError   string    `json:"last_error,omitempty"`
}

// KeySetCache holds the provider key set process-wide.
//
// Readers take the cached set while it is fresh. Once it expires, concurrent readers
// share a single in-flight fetch. A failed fetch is not retried until retryInterval
// has passed; until then readers get the previous set if there is one, and
// auth.ErrAuthorityUnreachable otherwise.
type KeySetCache struct {
	source        KeySource
	ttl           time.Duration
	retryInterval time.Duration
	fetchTimeout  time.Duration
	now           func() time.Time
	onRefresh     func(success bool)
	logger        *zap.Logger

	group singleflight.Group

	mu          sync.RWMutex
	keys        *jose.JSONWebKeySet
	expiresAt   time.Time
	lastAttempt time.Time
	lastErr     error
}

// NewKeySetCache creates a cache over source
func NewKeySetCache(source KeySource, ttl, retryInterval, fetchTimeout time.Duration, logger *zap.Logger) *KeySetCache {
	return &KeySetCache{
		source:        source,
		ttl:           ttl,
		retryInterval: retryInterval,
		fetchTimeout:  fetchTimeout,
		now:           time.Now,
		logger:        logger,
	}
}

// Keys returns the cached key set, fetching it when missing or expired.
func (c *KeySetCache) Keys(ctx context.Context) (*jose.JSONWebKeySet, error) {
	c.mu.RLock()
	keys := c.keys
	fresh := keys != nil && c.now().Before(c.expiresAt)
	c.mu.RUnlock()

	if fresh {
		return keys, nil
	}
	return c.refresh(ctx, false)
}

// Refresh fetches the key set even when the cached one is fresh, at most once per
// retry interval. It is used when a token names a key the cached set lacks.
func (c *KeySetCache) Refresh(ctx context.Context) (*jose.JSONWebKeySet, error) {
	return c.refresh(ctx, true)
}

// Invalidate drops the cached key set and the failure backoff
func (c *KeySetCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = nil
	c.expiresAt = time.Time{}
	c.lastAttempt = time.Time{}
	c.lastErr = nil
}

// Stats returns cache statistics
func (c *KeySetCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := CacheStats{
		Cached:      c.keys != nil,
		ExpiresAt:   c.expiresAt,
		LastAttempt: c.lastAttempt,
	}
	if c.keys != nil {
		stats.KeyCount = len(c.keys.Keys)
	}
	if c.lastErr != nil {
		stats.LastError = c.lastErr.Error()
	}
	return stats
}

func (c *KeySetCache) refresh(ctx context.Context, force bool) (*jose.JSONWebKeySet, error) {
	v, err, _ := c.group.Do("jwks", func() (interface{}, error) {
		return c.doRefresh(ctx, force)
	})
	if err != nil {
		return nil, err
	}
	return v.(*jose.JSONWebKeySet), nil
}

func (c *KeySetCache) doRefresh(ctx context.Context, force bool) (*jose.JSONWebKeySet, error) {
	now := c.now()

	c.mu.RLock()
	keys, expiresAt, lastAttempt, lastErr := c.keys, c.expiresAt, c.lastAttempt, c.lastErr
	c.mu.RUnlock()

	// A flight that finished just before this one may already have refreshed the set.
	if !force && keys != nil && now.Before(expiresAt) {
		return keys, nil
	}

	if !lastAttempt.IsZero() && now.Sub(lastAttempt) < c.retryInterval {
		if keys != nil && (force || lastErr != nil) {
			return keys, nil
		}
		if lastErr != nil {
			return nil, fmt.Errorf("%w: last fetch failed %s ago: %v",
				auth.ErrAuthorityUnreachable, now.Sub(lastAttempt).Round(time.Millisecond), lastErr)
		}
	}

	// The fetch outlives a cancelled caller so the other waiters still get a result.
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
	defer cancel()
	fetched, err := c.source.FetchKeySet(fetchCtx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastAttempt = c.now()

	if err != nil {
		c.lastErr = err
		c.recordRefresh(false)
		if c.keys != nil {
			c.logger.Warn("key set refresh failed, keeping previous key set", zap.Error(err))
			return c.keys, nil
		}
		c.logger.Error("key set fetch failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", auth.ErrAuthorityUnreachable, err)
	}

	c.keys = fetched
	c.expiresAt = c.lastAttempt.Add(c.ttl)
	c.lastErr = nil
	c.recordRefresh(true)
	c.logger.Info("key set refreshed",
		zap.Int("keys", len(fetched.Keys)),
		zap.Time("expires_at", c.expiresAt))

	return fetched, nil
}

func (c *KeySetCache) recordRefresh(success bool) {
	if c.onRefresh != nil {
		c.onRefresh(success)
	}
}
