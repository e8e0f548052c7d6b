package auth

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Authority validates tokens for exactly one scheme.
type Authority interface {
	Scheme() Scheme
	Validate(ctx context.Context, rawToken string) Outcome
}

// OutcomeRecorder receives every outcome the gate produces (metrics).
type OutcomeRecorder interface {
	RecordOutcome(outcome Outcome)
}

// GateOption configures a Gate
type GateOption func(*Gate)

// WithOutcomeRecorder sets the recorder notified of each outcome
func WithOutcomeRecorder(recorder OutcomeRecorder) GateOption {
	return func(g *Gate) {
		g.recorder = recorder
	}
}

// Gate resolves the authentication scheme of a request and delegates validation
// to the matching authority. It holds no per-request state.
type Gate struct {
	ssoDomain   string
	authorities map[Scheme]Authority
	recorder    OutcomeRecorder
	logger      *zap.Logger
}

// NewGate creates a gate over the given authorities. A later authority for the same
// scheme replaces an earlier one.
func NewGate(trust TrustConfiguration, logger *zap.Logger, authorities []Authority, opts ...GateOption) *Gate {
	g := &Gate{
		ssoDomain:   trust.SSOIssuerDomain,
		authorities: make(map[Scheme]Authority, len(authorities)),
		logger:      logger,
	}
	for _, a := range authorities {
		g.authorities[a.Scheme()] = a
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authenticate runs inspect -> select -> validate for one Authorization header value.
func (g *Gate) Authenticate(ctx context.Context, authorizationHeader string) Outcome {
	outcome := g.authenticate(ctx, authorizationHeader)
	if g.recorder != nil {
		g.recorder.RecordOutcome(outcome)
	}
	return outcome
}

func (g *Gate) authenticate(ctx context.Context, authorizationHeader string) Outcome {
	token := ExtractBearerToken(authorizationHeader)
	if token == "" {
		return Reject(SchemeLocal, ErrMissingToken)
	}

	issuer := ""
	claims, err := InspectIssuer(token)
	if err != nil {
		g.logger.Debug("failed to parse token, treating as no issuer", zap.Error(err))
	} else {
		issuer = claims.Issuer
		g.logger.Debug("issuer detected", zap.String("issuer", issuer))
	}

	scheme := SelectScheme(issuer, g.ssoDomain)
	authority, ok := g.authorities[scheme]
	if !ok {
		return Reject(scheme, fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme))
	}

	outcome := authority.Validate(ctx, token)
	if outcome.Accepted && (outcome.Scheme != scheme || outcome.Identity == nil) {
		return Reject(scheme, fmt.Errorf("%w: authority for %s answered for %q", ErrUnsupportedScheme, scheme, outcome.Scheme))
	}
	outcome.Scheme = scheme
	return outcome
}

// Schemes lists the schemes that have a registered authority, sorted by name.
func (g *Gate) Schemes() []string {
	names := make([]string, 0, len(g.authorities))
	for s := range g.authorities {
		names = append(names, s.String())
	}
	sort.Strings(names)
	return names
}
