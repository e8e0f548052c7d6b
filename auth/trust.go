package auth

import "time"

// TrustConfiguration is the process-wide trust material for both authorities.
// It is built once at startup and shared read-only; copies returned by accessors
// keep the signing key from being mutated through a shared slice.
type TrustConfiguration struct {
	localSigningKey []byte
	LocalIssuer     string
	LocalAudience   string
	LocalTokenTTL   time.Duration

	SSOAuthorityURL string
	SSOAudience     string
	SSOIssuerDomain string
}

// NewTrustConfiguration copies signingKey so later changes to the caller's slice are not observed.
func NewTrustConfiguration(signingKey []byte, localIssuer, localAudience string, tokenTTL time.Duration, ssoAuthorityURL, ssoAudience, ssoIssuerDomain string) TrustConfiguration {
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return TrustConfiguration{
		localSigningKey: append([]byte(nil), signingKey...),
		LocalIssuer:     localIssuer,
		LocalAudience:   localAudience,
		LocalTokenTTL:   tokenTTL,
		SSOAuthorityURL: ssoAuthorityURL,
		SSOAudience:     ssoAudience,
		SSOIssuerDomain: ssoIssuerDomain,
	}
}

// LocalSigningKey returns a copy of the shared HMAC key.
func (t TrustConfiguration) LocalSigningKey() []byte {
	return append([]byte(nil), t.localSigningKey...)
}
