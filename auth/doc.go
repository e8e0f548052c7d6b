// Package auth resolves which authority validates an inbound bearer token.
//
// A request passes through two stages. The first is advisory: the token payload is
// decoded without verification and its issuer picks a Scheme. The second is mandatory:
// the Authority registered for that scheme verifies signature, issuer, audience and
// expiry. Only the second stage can produce an accepted Outcome.
package auth
