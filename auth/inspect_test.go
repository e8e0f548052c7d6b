package auth

import (
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"bearer prefix", "Bearer abc.def.ghi", "abc.def.ghi"},
		{"lowercase prefix", "bearer abc.def.ghi", "abc.def.ghi"},
		{"bare token", "abc.def.ghi", "abc.def.ghi"},
		{"extra whitespace", "  Bearer   abc.def.ghi  ", "abc.def.ghi"},
		{"empty header", "", ""},
		{"prefix only", "Bearer", ""},
		{"whitespace only", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractBearerToken(tt.header))
		})
	}
}

func TestInspectIssuer(t *testing.T) {
	t.Run("reads issuer without verifying", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Issuer: "https://tenant.eu.auth0.com/",
		}).SignedString([]byte("whatever-key"))
		require.NoError(t, err)

		claims, err := InspectIssuer(token)
		require.NoError(t, err)
		assert.Equal(t, "https://tenant.eu.auth0.com/", claims.Issuer)
	})

	t.Run("token without issuer", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject: "someone",
		}).SignedString([]byte("whatever-key"))
		require.NoError(t, err)

		claims, err := InspectIssuer(token)
		require.NoError(t, err)
		assert.Empty(t, claims.Issuer)
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := InspectIssuer("")
		assert.ErrorIs(t, err, ErrMissingToken)
	})

	for _, raw := range []string{"not-a-jwt", "a.b", "a.b.c", "eyJhbGciOiJIUzI1NiJ9.!!!.sig"} {
		t.Run("malformed "+raw, func(t *testing.T) {
			_, err := InspectIssuer(raw)
			assert.ErrorIs(t, err, ErrMalformedToken)
		})
	}
}

func TestCheckSignatureEncoding(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer: "movie-auth-gateway",
	}).SignedString([]byte("whatever-key"))
	require.NoError(t, err)

	dot := strings.LastIndex(token, ".")
	signature := token[dot+1:]
	last := signature[len(signature)-1]

	t.Run("issued token", func(t *testing.T) {
		assert.NoError(t, CheckSignatureEncoding(token))
	})

	t.Run("unused bits of the last character", func(t *testing.T) {
		// 32 bytes encode to 43 characters; the low two bits of the last one are padding
		idx := strings.IndexByte(base64URLAlphabet, last)
		require.GreaterOrEqual(t, idx, 0)
		for bits := 1; bits < 4; bits++ {
			c := base64URLAlphabet[idx^bits]
			err := CheckSignatureEncoding(token[:len(token)-1] + string(c))
			assert.ErrorIs(t, err, ErrBadSignature, "%q -> %q", last, c)
		}
	})

	t.Run("characters outside the url alphabet", func(t *testing.T) {
		for _, c := range []string{"+", "/", "=", "!"} {
			err := CheckSignatureEncoding(token[:dot+1] + c + signature[1:])
			assert.ErrorIs(t, err, ErrBadSignature, c)
		}
	})

	t.Run("line breaks", func(t *testing.T) {
		err := CheckSignatureEncoding(token[:dot+1] + signature[:5] + "\r\n" + signature[5:])
		assert.ErrorIs(t, err, ErrBadSignature)
	})

	t.Run("wrong segment count is left to the parser", func(t *testing.T) {
		assert.NoError(t, CheckSignatureEncoding("not-a-jwt"))
		assert.NoError(t, CheckSignatureEncoding("a.b"))
	})

	t.Run("empty signature", func(t *testing.T) {
		assert.NoError(t, CheckSignatureEncoding(token[:dot+1]))
	})
}

const base64URLAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
