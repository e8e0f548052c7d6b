package sso

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/upb/movie-auth-gateway/auth"
	"go.uber.org/zap"
)

// Claims represents the claims read from provider tokens
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Scope string `json:"scope,omitempty"`
}

// Config holds configuration for the remote authority. Issuer and audience come from
// the trust configuration.
type Config struct {
	JWKSURL       string
	AllowedAlgs   []string
	CacheTTL      time.Duration
	HTTPTimeout   time.Duration
	RetryInterval time.Duration
	Leeway        time.Duration
}

// Option configures a Validator
type Option func(*Validator)

// WithClock overrides the time source for token and cache expiry
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		v.now = now
		v.keys.now = now
	}
}

// WithHTTPClient replaces the client used for discovery and key fetches
func WithHTTPClient(client *http.Client) Option {
	return func(v *Validator) {
		v.httpClient = client
	}
}

// WithKeySource replaces the HTTP key source
func WithKeySource(source KeySource) Option {
	return func(v *Validator) {
		v.keys.source = source
	}
}

// WithRefreshRecorder registers a callback run after every key set fetch attempt
func WithRefreshRecorder(fn func(success bool)) Option {
	return func(v *Validator) {
		v.keys.onRefresh = fn
	}
}

// Validator validates RS256/ES256 tokens issued by the external identity provider.
type Validator struct {
	issuer      string
	audience    string
	allowedAlgs []string
	leeway      time.Duration
	httpClient  *http.Client
	keys        *KeySetCache
	now         func() time.Time
	logger      *zap.Logger
}

// NewValidator creates the remote token authority
func NewValidator(trust auth.TrustConfiguration, config Config, logger *zap.Logger, opts ...Option) *Validator {
	if config.CacheTTL == 0 {
		config.CacheTTL = 1 * time.Hour
	}
	if config.HTTPTimeout == 0 {
		config.HTTPTimeout = 10 * time.Second
	}
	if config.RetryInterval == 0 {
		config.RetryInterval = 30 * time.Second
	}
	if len(config.AllowedAlgs) == 0 {
		config.AllowedAlgs = []string{jwt.SigningMethodRS256.Alg()}
	}

	v := &Validator{
		issuer:      trust.SSOAuthorityURL,
		audience:    trust.SSOAudience,
		allowedAlgs: config.AllowedAlgs,
		leeway:      config.Leeway,
		httpClient:  &http.Client{Timeout: config.HTTPTimeout},
		now:         time.Now,
		logger:      logger,
	}
	v.keys = NewKeySetCache(nil, config.CacheTTL, config.RetryInterval, config.HTTPTimeout, logger)

	for _, opt := range opts {
		opt(v)
	}
	if v.keys.source == nil {
		v.keys.source = NewHTTPKeySource(v.issuer, config.JWKSURL, v.httpClient)
	}

	return v
}

// Scheme implements auth.Authority
func (v *Validator) Scheme() auth.Scheme {
	return auth.SchemeSSO
}

// Validate verifies the token against the provider's published keys, then checks
// the exact issuer, the audience and the expiry.
func (v *Validator) Validate(ctx context.Context, rawToken string) auth.Outcome {
	if strings.TrimSpace(rawToken) == "" {
		return auth.Reject(auth.SchemeSSO, auth.ErrMissingToken)
	}
	if err := auth.CheckSignatureEncoding(rawToken); err != nil {
		return auth.Reject(auth.SchemeSSO, err)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods(v.allowedAlgs),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	)

	claims := &Claims{}
	_, err := parser.ParseWithClaims(rawToken, claims, v.keyFunc(ctx))
	if err != nil {
		outcome := auth.Reject(auth.SchemeSSO, err)
		if outcome.Reason == auth.ReasonAuthorityUnreachable {
			v.logger.Warn("identity provider unreachable", zap.Error(err))
		}
		return outcome
	}

	if !containsAudience(claims.Audience, v.audience) {
		return auth.Reject(auth.SchemeSSO, auth.ErrAudienceMismatch)
	}
	if claims.Subject == "" {
		return auth.Reject(auth.SchemeSSO, fmt.Errorf("%w: missing sub", auth.ErrMalformedToken))
	}

	return auth.Accept(auth.SchemeSSO, &auth.Identity{
		Subject:   claims.Subject,
		Email:     claims.Email,
		Issuer:    claims.Issuer,
		ExpiresAt: claims.ExpiresAt.Time,
	})
}

// Warm fetches the key set ahead of the first request
func (v *Validator) Warm(ctx context.Context) error {
	_, err := v.keys.Keys(ctx)
	return err
}

// InvalidateCache drops the cached key set
func (v *Validator) InvalidateCache() {
	v.keys.Invalidate()
}

// GetCacheStats returns key set cache statistics
func (v *Validator) GetCacheStats() CacheStats {
	return v.keys.Stats()
}

func (v *Validator) keyFunc(ctx context.Context) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("%w: kid header not found", auth.ErrBadSignature)
		}
		alg := token.Method.Alg()

		keys, err := v.keys.Keys(ctx)
		if err != nil {
			return nil, err
		}
		if key, found := lookupKey(keys, kid, alg); found {
			return key, nil
		}

		// The provider may have rotated its keys since the last fetch.
		keys, err = v.keys.Refresh(ctx)
		if err != nil {
			return nil, err
		}
		if key, found := lookupKey(keys, kid, alg); found {
			return key, nil
		}

		return nil, fmt.Errorf("%w: key with kid %s not found in JWKS", auth.ErrBadSignature, kid)
	}
}

// lookupKey returns the public half of the signing key named kid usable with alg
func lookupKey(set *jose.JSONWebKeySet, kid, alg string) (interface{}, bool) {
	for _, key := range set.Key(kid) {
		if key.Use != "" && key.Use != "sig" {
			continue
		}
		if key.Algorithm != "" && key.Algorithm != alg {
			continue
		}
		public := key.Public()
		if !public.Valid() {
			continue
		}
		return public.Key, true
	}
	return nil, false
}

func containsAudience(audiences jwt.ClaimStrings, want string) bool {
	for _, aud := range audiences {
		if aud == want {
			return true
		}
	}
	return false
}
