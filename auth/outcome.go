package auth

import "time"

// Credential is a login request for the local authority.
type Credential struct {
	Email    string
	Password string
}

// Identity is the authenticated principal attached to the request context.
type Identity struct {
	Subject   string
	Email     string
	Issuer    string
	Scheme    Scheme
	ExpiresAt time.Time
}

// Outcome is the single authentication result produced for a request.
type Outcome struct {
	Accepted bool
	Identity *Identity
	Scheme   Scheme
	Reason   FailureReason

	// Err keeps the underlying validation error for diagnostics. It is never sent to clients.
	Err error
}

// Accept builds an accepted outcome for the given scheme.
func Accept(scheme Scheme, identity *Identity) Outcome {
	identity.Scheme = scheme
	return Outcome{
		Accepted: true,
		Identity: identity,
		Scheme:   scheme,
	}
}

// Reject builds a rejected outcome, classifying err into a failure reason.
func Reject(scheme Scheme, err error) Outcome {
	return Outcome{
		Scheme: scheme,
		Reason: Classify(err),
		Err:    err,
	}
}
