package auth

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// UnverifiedClaims holds claims read from a token without checking its signature.
// They are only ever used to pick a scheme, never to grant access.
type UnverifiedClaims struct {
	Issuer string
}

// ExtractBearerToken returns the token carried by an Authorization header value.
// Both "Bearer <token>" and a bare "<token>" are accepted: the header is split on
// whitespace and the last field wins. Returns "" when no token is present.
func ExtractBearerToken(header string) string {
	fields := strings.Fields(header)
	if len(fields) == 0 {
		return ""
	}
	token := fields[len(fields)-1]
	if len(fields) == 1 && strings.EqualFold(token, "bearer") {
		return ""
	}
	return token
}

// InspectIssuer decodes the payload segment of a compact JWT without verifying it.
func InspectIssuer(token string) (*UnverifiedClaims, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	return &UnverifiedClaims{Issuer: claims.Issuer}, nil
}

// CheckSignatureEncoding rejects a compact JWT whose signature segment is not canonical
// base64url. A lenient decoder ignores the unused bits of the last character, so two
// different segments could otherwise carry the same signature. Tokens that do not have
// three segments are left for the parser to report as malformed.
func CheckSignatureEncoding(token string) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil
	}
	signature, err := base64.RawURLEncoding.Strict().DecodeString(parts[2])
	if err != nil {
		return fmt.Errorf("%w: signature segment is not canonical base64url: %v", ErrBadSignature, err)
	}
	// the decoder still skips CR and LF
	if base64.RawURLEncoding.EncodeToString(signature) != parts[2] {
		return fmt.Errorf("%w: signature segment is not canonical base64url", ErrBadSignature)
	}
	return nil
}
