// Package localauth is the local token authority: it checks stored email/password
// credentials, mints HS256 tokens signed with the shared key, and validates them.
package localauth
