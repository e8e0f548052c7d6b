// Package sso validates tokens issued by an external OpenID Connect provider
// against its published JSON Web Key Set.
package sso
