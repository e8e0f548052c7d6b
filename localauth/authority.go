package localauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/upb/movie-auth-gateway/auth"
	"github.com/upb/movie-auth-gateway/models"
	"github.com/upb/movie-auth-gateway/repositories"
	"go.uber.org/zap"
)

// unknownUserPassword is compared against when no user matches the email, so a
// miss does the same comparison work as a hit.
const unknownUserPassword = "unknown-user-placeholder"

// UserLookup finds stored credentials by exact email
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// Claims are the claims minted into local tokens
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// IssuedToken is a signed local token and the claims it carries
type IssuedToken struct {
	Token     string
	Subject   string
	Issuer    string
	Audience  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Option configures an Authority
type Option func(*Authority)

// WithClock overrides the time source used for issuing and validating tokens
func WithClock(now func() time.Time) Option {
	return func(a *Authority) {
		a.now = now
	}
}

// Authority issues and validates HS256 tokens signed with the shared key.
type Authority struct {
	trust  auth.TrustConfiguration
	key    []byte
	users  UserLookup
	now    func() time.Time
	logger *zap.Logger
}

// NewAuthority creates the local token authority
func NewAuthority(trust auth.TrustConfiguration, users UserLookup, logger *zap.Logger, opts ...Option) *Authority {
	a := &Authority{
		trust:  trust,
		key:    trust.LocalSigningKey(),
		users:  users,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Scheme implements auth.Authority
func (a *Authority) Scheme() auth.Scheme {
	return auth.SchemeLocal
}

// Issue verifies the credential against the user store and mints a token.
// A wrong email and a wrong password both return auth.ErrInvalidCredentials.
func (a *Authority) Issue(ctx context.Context, cred auth.Credential) (*IssuedToken, error) {
	user, err := a.users.GetByEmail(ctx, cred.Email)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	stored := unknownUserPassword
	if user != nil {
		stored = user.Password
	}
	passwordOK := VerifyPassword(stored, cred.Password)
	if user == nil || !passwordOK {
		return nil, auth.ErrInvalidCredentials
	}

	return a.mint(user.Email)
}

func (a *Authority) mint(subject string) (*IssuedToken, error) {
	issuedAt := jwt.NewNumericDate(a.now())
	expiresAt := jwt.NewNumericDate(issuedAt.Add(a.trust.LocalTokenTTL))

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    a.trust.LocalIssuer,
			Audience:  jwt.ClaimStrings{a.trust.LocalAudience},
			IssuedAt:  issuedAt,
			NotBefore: issuedAt,
			ExpiresAt: expiresAt,
			ID:        uuid.NewString(),
		},
		Email: subject,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &IssuedToken{
		Token:     signed,
		Subject:   subject,
		Issuer:    a.trust.LocalIssuer,
		Audience:  a.trust.LocalAudience,
		IssuedAt:  issuedAt.Time,
		ExpiresAt: expiresAt.Time,
	}, nil
}

// Validate verifies signature, issuer, audience and the issuance/expiry window.
func (a *Authority) Validate(ctx context.Context, rawToken string) auth.Outcome {
	if strings.TrimSpace(rawToken) == "" {
		return auth.Reject(auth.SchemeLocal, auth.ErrMissingToken)
	}
	if err := auth.CheckSignatureEncoding(rawToken); err != nil {
		return auth.Reject(auth.SchemeLocal, err)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.trust.LocalIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(a.now),
	)

	claims := &Claims{}
	_, err := parser.ParseWithClaims(rawToken, claims, func(*jwt.Token) (interface{}, error) {
		return a.key, nil
	})
	if err != nil {
		return auth.Reject(auth.SchemeLocal, err)
	}

	if !containsAudience(claims.Audience, a.trust.LocalAudience) {
		return auth.Reject(auth.SchemeLocal, auth.ErrAudienceMismatch)
	}

	email := claims.Email
	if email == "" {
		email = claims.Subject
	}

	return auth.Accept(auth.SchemeLocal, &auth.Identity{
		Subject:   claims.Subject,
		Email:     email,
		Issuer:    claims.Issuer,
		ExpiresAt: claims.ExpiresAt.Time,
	})
}

func containsAudience(audiences jwt.ClaimStrings, want string) bool {
	for _, aud := range audiences {
		if aud == want {
			return true
		}
	}
	return false
}
