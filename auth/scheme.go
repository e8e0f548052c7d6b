package auth

import "strings"

// Scheme identifies which authority validates a bearer token.
type Scheme string

const (
	// SchemeLocal is the locally minted HMAC token scheme (username/password login).
	SchemeLocal Scheme = "Local"

	// SchemeSSO is the third-party OpenID Connect identity provider scheme.
	SchemeSSO Scheme = "SSO"
)

// String returns the scheme name
func (s Scheme) String() string {
	return string(s)
}

// SelectScheme routes an unverified issuer to a scheme.
//
// The match is a substring match on ssoDomain, not issuer equality. An issuer that merely
// contains the domain is routed to SSO, but routing only picks which authority verifies the
// token: the SSO authority still requires the issuer to equal its configured authority URL
// exactly, so a misrouted token fails validation instead of skipping it.
//
// An empty issuer or an empty ssoDomain always selects SchemeLocal.
func SelectScheme(issuer, ssoDomain string) Scheme {
	if issuer == "" || ssoDomain == "" {
		return SchemeLocal
	}
	if strings.Contains(issuer, ssoDomain) {
		return SchemeSSO
	}
	return SchemeLocal
}
