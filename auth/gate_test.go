package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// MockAuthority is a mock implementation of Authority
type MockAuthority struct {
	mock.Mock
	scheme Scheme
}

func (m *MockAuthority) Scheme() Scheme {
	return m.scheme
}

func (m *MockAuthority) Validate(ctx context.Context, rawToken string) Outcome {
	args := m.Called(ctx, rawToken)
	return args.Get(0).(Outcome)
}

type recordingRecorder struct {
	outcomes []Outcome
}

func (r *recordingRecorder) RecordOutcome(outcome Outcome) {
	r.outcomes = append(r.outcomes, outcome)
}

func unsignedToken(t *testing.T, issuer string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("irrelevant"))
	require.NoError(t, err)
	return token
}

func newTestGate(t *testing.T, authorities ...Authority) (*Gate, *recordingRecorder) {
	t.Helper()
	trust := NewTrustConfiguration([]byte("key"), "movie-auth-gateway", "movie-api", time.Hour,
		"https://tenant.eu.auth0.com/", "https://moviesystem/api", "auth0.com")
	recorder := &recordingRecorder{}
	return NewGate(trust, zaptest.NewLogger(t), authorities, WithOutcomeRecorder(recorder)), recorder
}

func TestGate_Authenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("routes provider issuer to sso authority", func(t *testing.T) {
		local := &MockAuthority{scheme: SchemeLocal}
		sso := &MockAuthority{scheme: SchemeSSO}
		gate, recorder := newTestGate(t, local, sso)

		token := unsignedToken(t, "https://tenant.eu.auth0.com/")
		sso.On("Validate", ctx, token).Return(Accept(SchemeSSO, &Identity{Subject: "auth0|abc"}))

		outcome := gate.Authenticate(ctx, "Bearer "+token)

		assert.True(t, outcome.Accepted)
		assert.Equal(t, SchemeSSO, outcome.Scheme)
		assert.Equal(t, "auth0|abc", outcome.Identity.Subject)
		sso.AssertExpectations(t)
		local.AssertNotCalled(t, "Validate", mock.Anything, mock.Anything)
		require.Len(t, recorder.outcomes, 1)
		assert.True(t, recorder.outcomes[0].Accepted)
	})

	t.Run("routes other issuers to local authority", func(t *testing.T) {
		local := &MockAuthority{scheme: SchemeLocal}
		sso := &MockAuthority{scheme: SchemeSSO}
		gate, _ := newTestGate(t, local, sso)

		token := unsignedToken(t, "movie-auth-gateway")
		local.On("Validate", ctx, token).Return(Reject(SchemeLocal, ErrBadSignature))

		outcome := gate.Authenticate(ctx, token)

		assert.False(t, outcome.Accepted)
		assert.Equal(t, SchemeLocal, outcome.Scheme)
		assert.Equal(t, ReasonBadSignature, outcome.Reason)
		sso.AssertNotCalled(t, "Validate", mock.Anything, mock.Anything)
	})

	t.Run("undecodable token falls back to local", func(t *testing.T) {
		local := &MockAuthority{scheme: SchemeLocal}
		gate, _ := newTestGate(t, local)

		local.On("Validate", ctx, "garbage").Return(Reject(SchemeLocal, ErrMalformedToken))

		outcome := gate.Authenticate(ctx, "Bearer garbage")

		assert.Equal(t, ReasonMalformedToken, outcome.Reason)
		local.AssertExpectations(t)
	})

	t.Run("missing token never reaches an authority", func(t *testing.T) {
		local := &MockAuthority{scheme: SchemeLocal}
		gate, recorder := newTestGate(t, local)

		for _, header := range []string{"", "Bearer", "   "} {
			outcome := gate.Authenticate(ctx, header)
			assert.False(t, outcome.Accepted)
			assert.Equal(t, ReasonMissingToken, outcome.Reason)
		}
		local.AssertNotCalled(t, "Validate", mock.Anything, mock.Anything)
		assert.Len(t, recorder.outcomes, 3)
	})

	t.Run("no authority for selected scheme", func(t *testing.T) {
		local := &MockAuthority{scheme: SchemeLocal}
		gate, _ := newTestGate(t, local)

		outcome := gate.Authenticate(ctx, "Bearer "+unsignedToken(t, "https://tenant.eu.auth0.com/"))

		assert.False(t, outcome.Accepted)
		assert.Equal(t, SchemeSSO, outcome.Scheme)
		assert.Equal(t, ReasonUnsupportedScheme, outcome.Reason)
		assert.ErrorIs(t, outcome.Err, ErrUnsupportedScheme)
	})

	t.Run("authority answering for another scheme is rejected", func(t *testing.T) {
		confused := &MockAuthority{scheme: SchemeLocal}
		gate, _ := newTestGate(t, confused)

		token := unsignedToken(t, "movie-auth-gateway")
		confused.On("Validate", ctx, token).Return(Accept(SchemeSSO, &Identity{Subject: "x"}))

		outcome := gate.Authenticate(ctx, "Bearer "+token)

		assert.False(t, outcome.Accepted)
		assert.Nil(t, outcome.Identity)
		assert.Equal(t, ReasonUnsupportedScheme, outcome.Reason)
	})

	t.Run("authority unreachable passes through", func(t *testing.T) {
		sso := &MockAuthority{scheme: SchemeSSO}
		gate, _ := newTestGate(t, sso)

		token := unsignedToken(t, "https://tenant.eu.auth0.com/")
		sso.On("Validate", ctx, token).Return(Reject(SchemeSSO, ErrAuthorityUnreachable))

		outcome := gate.Authenticate(ctx, "Bearer "+token)

		assert.Equal(t, ReasonAuthorityUnreachable, outcome.Reason)
		assert.True(t, outcome.Reason.IsTransient())
	})
}

func TestGate_Schemes(t *testing.T) {
	gate, _ := newTestGate(t, &MockAuthority{scheme: SchemeSSO}, &MockAuthority{scheme: SchemeLocal})
	assert.Equal(t, []string{"Local", "SSO"}, gate.Schemes())

	localOnly, _ := newTestGate(t, &MockAuthority{scheme: SchemeLocal})
	assert.Equal(t, []string{"Local"}, localOnly.Schemes())
}
