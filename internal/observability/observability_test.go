package observability

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/movie-auth-gateway/auth"
	"github.com/upb/movie-auth-gateway/config"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.ObservabilityConfig
		wantErr bool
	}{
		{"json info", config.ObservabilityConfig{LogLevel: "info", LogFormat: "json"}, false},
		{"console debug", config.ObservabilityConfig{LogLevel: "debug", LogFormat: "console"}, false},
		{"defaults", config.ObservabilityConfig{}, false},
		{"invalid level", config.ObservabilityConfig{LogLevel: "loud", LogFormat: "json"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, logger)
				assert.Contains(t, err.Error(), "invalid log level")
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger)
			_ = logger.Sync()
		})
	}
}

func TestNewLogger_LevelIsApplied(t *testing.T) {
	logger, err := NewLogger(config.ObservabilityConfig{LogLevel: "warn", LogFormat: "json"})
	require.NoError(t, err)

	assert.False(t, logger.Core().Enabled(-1))
	assert.False(t, logger.Core().Enabled(0))
	assert.True(t, logger.Core().Enabled(1))
}

func TestMetrics_RecordOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordOutcome(auth.Accept(auth.SchemeLocal, &auth.Identity{Subject: "admin@test.com"}))
	m.RecordOutcome(auth.Reject(auth.SchemeSSO, auth.ErrAuthorityUnreachable))
	m.RecordOutcome(auth.Reject(auth.SchemeSSO, errors.New("garbage")))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthOutcomes.WithLabelValues("Local", "accepted", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthOutcomes.WithLabelValues("SSO", "rejected", "authority_unreachable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthOutcomes.WithLabelValues("SSO", "rejected", "malformed_token")))
}

func TestMetrics_RecordKeyRefresh(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordKeyRefresh(true)
	m.RecordKeyRefresh(false)
	m.RecordKeyRefresh(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.KeyRefreshes.WithLabelValues("true")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.KeyRefreshes.WithLabelValues("false")))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.ObserveRequest(http.MethodGet, "/api/v1/movies", http.StatusOK, 15*time.Millisecond)
	m.RecordKeyRefresh(true)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "movieauth_http_request_duration_seconds_count")
	assert.Contains(t, string(body), `movieauth_sso_key_refreshes_total{success="true"} 1`)
}
