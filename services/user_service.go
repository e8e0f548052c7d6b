package services

import (
	"context"
	"errors"
	"time"

	"github.com/upb/movie-auth-gateway/auth"
	"github.com/upb/movie-auth-gateway/repositories"
)

// Profile describes the caller of /api/v1/users/me
type Profile struct {
	Subject   string     `json:"sub"`
	Email     string     `json:"email,omitempty"`
	Issuer    string     `json:"issuer"`
	Scheme    string     `json:"scheme"`
	ExpiresAt time.Time  `json:"expires_at"`
	UserID    string     `json:"user_id,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// UserService resolves authenticated identities into profiles
type UserService struct {
	users repositories.UserRepository
}

// NewUserService creates a new UserService
func NewUserService(users repositories.UserRepository) *UserService {
	return &UserService{users: users}
}

// Profile builds the caller's profile. Local identities are joined with the stored
// user record; SSO identities are described by their claims alone.
func (s *UserService) Profile(ctx context.Context, identity *auth.Identity) (*Profile, error) {
	if identity == nil {
		return nil, ErrUnauthorized
	}

	profile := &Profile{
		Subject:   identity.Subject,
		Email:     identity.Email,
		Issuer:    identity.Issuer,
		Scheme:    identity.Scheme.String(),
		ExpiresAt: identity.ExpiresAt,
	}

	if identity.Scheme != auth.SchemeLocal {
		return profile, nil
	}

	user, err := s.users.GetByEmail(ctx, identity.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, NewDomainError(ErrorTypeNotFound, "user not found", err)
		}
		return nil, WrapInternal("failed to load user", err)
	}

	createdAt := user.CreatedAt
	profile.UserID = user.ID.String()
	profile.CreatedAt = &createdAt
	return profile, nil
}
