// ABOUTME: Tests for handshake credential selection
// ABOUTME: Token precedence, local expiry checks, and PIN derivation

package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "client",
		"exp": exp.Unix(),
	})
	s, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestHandshakeToken_ValidJWT(t *testing.T) {
	tok := signedToken(t, time.Now().Add(time.Hour))
	c := Credentials{Token: tok}

	got, err := c.HandshakeToken("wss://gw.example.com/ws")
	require.NoError(t, err)
	assert.Equal(t, tok, got)
}

func TestHandshakeToken_ExpiredJWT(t *testing.T) {
	c := Credentials{Token: signedToken(t, time.Now().Add(-time.Hour))}

	_, err := c.HandshakeToken("wss://gw.example.com/ws")
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestHandshakeToken_OpaqueTokenPassesThrough(t *testing.T) {
	c := Credentials{Token: "not-a-jwt-at-all"}

	got, err := c.HandshakeToken("wss://gw.example.com/ws")
	require.NoError(t, err)
	assert.Equal(t, "not-a-jwt-at-all", got)
}

func TestHandshakeToken_TokenWinsOverPIN(t *testing.T) {
	tok := signedToken(t, time.Now().Add(time.Hour))
	c := Credentials{Token: tok, PIN: "1234"}

	got, err := c.HandshakeToken("wss://gw.example.com/ws")
	require.NoError(t, err)
	assert.Equal(t, tok, got)
}

func TestHandshakeToken_PINDerivation(t *testing.T) {
	c := Credentials{PIN: "1234"}

	got, err := c.HandshakeToken("wss://gw.example.com/ws")
	require.NoError(t, err)
	assert.Equal(t, DeriveFromPIN("1234", "gw.example.com"), got)

	// Derivation is deterministic.
	again, err := c.HandshakeToken("wss://gw.example.com/ws")
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestDeriveFromPIN_HostBindsTheToken(t *testing.T) {
	a := DeriveFromPIN("1234", "gw-one.example.com")
	b := DeriveFromPIN("1234", "gw-two.example.com")
	assert.NotEqual(t, a, b, "the same pin yields different tokens per host")

	c := DeriveFromPIN("5678", "gw-one.example.com")
	assert.NotEqual(t, a, c)
}

func TestHandshakeToken_NoCredentials(t *testing.T) {
	_, err := Credentials{}.HandshakeToken("wss://gw.example.com/ws")
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestHandshakeToken_BadEndpoint(t *testing.T) {
	c := Credentials{PIN: "1234"}
	_, err := c.HandshakeToken("not a url")
	assert.Error(t, err)
}
