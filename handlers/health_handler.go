package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/upb/movie-auth-gateway/repositories"
	"github.com/upb/movie-auth-gateway/sso"
	"github.com/upb/movie-auth-gateway/utils"
	"go.uber.org/zap"
)

// readinessTimeout bounds the storage check of /readyz
const readinessTimeout = 2 * time.Second

// HealthResponse represents the readiness check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// StatusResponse represents the /api/v1/status response
type StatusResponse struct {
	Version     string          `json:"version"`
	Environment string          `json:"environment"`
	Schemes     []string        `json:"schemes"`
	SSOKeys     *sso.CacheStats `json:"sso_keys,omitempty"`
}

// KeyCacheReporter exposes the SSO key set cache state
type KeyCacheReporter interface {
	GetCacheStats() sso.CacheStats
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	store       repositories.HealthChecker
	keys        KeyCacheReporter
	version     string
	environment string
	schemes     []string
	logger      *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. keys is nil when SSO is disabled.
func NewHealthHandler(store repositories.HealthChecker, keys KeyCacheReporter, version, environment string, schemes []string, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		store:       store,
		keys:        keys,
		version:     version,
		environment: environment,
		schemes:     schemes,
		logger:      logger,
	}
}

// HandleHealth handles GET /healthz
// Liveness only: 200 whenever the process serves requests
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReadiness handles GET /readyz
// Ready when the credential and movie store answers. The SSO key set is reported
// but does not gate readiness.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := make(map[string]string)
	ready := true

	if err := h.checkStore(ctx); err != nil {
		h.logger.Warn("storage health check failed", zap.Error(err))
		checks["storage"] = "unhealthy"
		ready = false
	} else {
		checks["storage"] = "healthy"
	}
	checks["sso_keys"] = h.keyStatus()

	status := "ready"
	httpStatus := http.StatusOK
	if !ready {
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	if err := utils.WriteJSON(w, httpStatus, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

// HandleStatus handles GET /api/v1/status
func (h *HealthHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Version:     h.version,
		Environment: h.environment,
		Schemes:     h.schemes,
	}
	if h.keys != nil {
		stats := h.keys.GetCacheStats()
		resp.SSOKeys = &stats
	}
	_ = utils.WriteJSON(w, http.StatusOK, resp)
}

func (h *HealthHandler) checkStore(ctx context.Context) error {
	if h.store == nil {
		return errStoreNotConfigured
	}
	return h.store.HealthCheck(ctx)
}

func (h *HealthHandler) keyStatus() string {
	if h.keys == nil {
		return "disabled"
	}
	stats := h.keys.GetCacheStats()
	switch {
	case !stats.Cached:
		return "not_loaded"
	case stats.LastError != "":
		return "stale"
	default:
		return "loaded"
	}
}
