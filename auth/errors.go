package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// FailureReason records why a request was not authenticated.
// Every reason maps to the same 401 at the HTTP boundary.
type FailureReason string

const (
	ReasonNone                 FailureReason = ""
	ReasonMissingToken         FailureReason = "missing_token"
	ReasonMalformedToken       FailureReason = "malformed_token"
	ReasonInvalidCredentials   FailureReason = "invalid_credentials"
	ReasonBadSignature         FailureReason = "bad_signature"
	ReasonIssuerMismatch       FailureReason = "issuer_mismatch"
	ReasonAudienceMismatch     FailureReason = "audience_mismatch"
	ReasonExpired              FailureReason = "expired"
	ReasonAuthorityUnreachable FailureReason = "authority_unreachable"
	ReasonUnsupportedScheme    FailureReason = "unsupported_scheme"
)

var (
	// ErrMissingToken is returned when the request carries no bearer token
	ErrMissingToken = errors.New("missing token")

	// ErrMalformedToken is returned when the token is not a decodable compact JWT
	ErrMalformedToken = errors.New("malformed token")

	// ErrInvalidCredentials is returned when login credentials do not match a stored user
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrBadSignature is returned when the signature does not verify against the trusted key
	ErrBadSignature = errors.New("bad signature")

	// ErrIssuerMismatch is returned when the token issuer is not the configured issuer
	ErrIssuerMismatch = errors.New("issuer mismatch")

	// ErrAudienceMismatch is returned when the token audience is not the configured audience
	ErrAudienceMismatch = errors.New("audience mismatch")

	// ErrExpired is returned when the current time is outside the token validity window
	ErrExpired = errors.New("token expired")

	// ErrAuthorityUnreachable is returned when the identity provider key set cannot be fetched.
	// It is the only transient failure.
	ErrAuthorityUnreachable = errors.New("authority unreachable")

	// ErrUnsupportedScheme is returned when no authority is registered for the selected scheme
	ErrUnsupportedScheme = errors.New("unsupported scheme")
)

// Classify maps a validation error to its failure reason.
// Order matters: key set fetch failures surface through the jwt keyfunc and are
// wrapped together with jwt.ErrTokenUnverifiable, so they are checked first.
func Classify(err error) FailureReason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, ErrAuthorityUnreachable):
		return ReasonAuthorityUnreachable
	case errors.Is(err, ErrMissingToken):
		return ReasonMissingToken
	case errors.Is(err, ErrInvalidCredentials):
		return ReasonInvalidCredentials
	case errors.Is(err, ErrUnsupportedScheme):
		return ReasonUnsupportedScheme
	case errors.Is(err, ErrBadSignature),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return ReasonBadSignature
	case errors.Is(err, ErrIssuerMismatch), errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ReasonIssuerMismatch
	case errors.Is(err, ErrAudienceMismatch), errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ReasonAudienceMismatch
	// exp is the only claim the parsers mark as required
	case errors.Is(err, ErrExpired),
		errors.Is(err, jwt.ErrTokenExpired),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return ReasonExpired
	default:
		return ReasonMalformedToken
	}
}

// IsTransient reports whether the failure may succeed on a later request without
// the client changing its token.
func (r FailureReason) IsTransient() bool {
	return r == ReasonAuthorityUnreachable
}
