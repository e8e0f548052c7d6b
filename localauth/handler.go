package localauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/upb/movie-auth-gateway/auth"
	"github.com/upb/movie-auth-gateway/utils"
	"go.uber.org/zap"
)

// maxLoginBodyBytes caps the login request body
const maxLoginBodyBytes = 1 << 16

// TokenIssuer mints a token for valid credentials
type TokenIssuer interface {
	Issue(ctx context.Context, cred auth.Credential) (*IssuedToken, error)
}

// LoginRequest is the body of POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=256"`
}

// LoginResponse is returned on successful login
type LoginResponse struct {
	Token string `json:"token"`
}

// Handler serves the username/password login endpoint.
type Handler struct {
	issuer TokenIssuer
	logger *zap.Logger
}

// NewHandler creates a new login handler
func NewHandler(issuer TokenIssuer, logger *zap.Logger) *Handler {
	return &Handler{
		issuer: issuer,
		logger: logger,
	}
}

// HandleLogin exchanges email and password for a signed local token.
// Any credential mismatch yields 401 without saying which field was wrong.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLoginBodyBytes)).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		details := make(map[string]interface{})
		for k, v := range utils.GetValidationFields(err) {
			details[k] = v
		}
		_ = utils.WriteBadRequest(w, "Validation failed", details)
		return
	}

	issued, err := h.issuer.Issue(r.Context(), auth.Credential{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.logger.Warn("login rejected", zap.String("reason", string(auth.ReasonInvalidCredentials)))
			_ = utils.WriteUnauthorized(w, "Invalid credentials")
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to process login")
		return
	}

	h.logger.Info("local token issued",
		zap.String("sub", issued.Subject),
		zap.Time("expires_at", issued.ExpiresAt))

	_ = utils.WriteJSON(w, http.StatusOK, LoginResponse{Token: issued.Token})
}
