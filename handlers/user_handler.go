package handlers

import (
	"context"
	"net/http"

	"github.com/upb/movie-auth-gateway/auth"
	"github.com/upb/movie-auth-gateway/middleware"
	"github.com/upb/movie-auth-gateway/services"
	"github.com/upb/movie-auth-gateway/utils"
	"go.uber.org/zap"
)

// ProfileService resolves the caller's profile
type ProfileService interface {
	Profile(ctx context.Context, identity *auth.Identity) (*services.Profile, error)
}

// UserHandler serves the caller's own identity
type UserHandler struct {
	profiles ProfileService
	logger   *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(profiles ProfileService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		profiles: profiles,
		logger:   logger,
	}
}

// HandleMe handles GET /api/v1/users/me
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentityFromContext(r.Context())
	if identity == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	profile, err := h.profiles.Profile(r.Context(), identity)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, profile)
}
