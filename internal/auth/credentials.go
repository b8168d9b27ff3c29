// ABOUTME: Client credentials for the gateway handshake
// ABOUTME: Bearer JWT inspection plus PIN-derived token fallback (PBKDF2)

package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/pbkdf2"
)

var (
	// ErrNoCredentials indicates neither a token nor a PIN is configured.
	ErrNoCredentials = errors.New("no credentials configured")
	// ErrTokenExpired indicates the stored bearer token is past its exp claim.
	ErrTokenExpired = errors.New("token expired")
)

// pbkdf2 parameters for PIN-derived tokens. Must match the gateway.
const (
	pinIterations = 65536
	pinKeyLength  = 32
)

// Credentials holds what the client can present during the handshake.
type Credentials struct {
	Token string // bearer JWT issued by the gateway admin
	PIN   string // short secret, used to derive a token when none is stored
}

// HandshakeToken returns the token to present for the given endpoint.
// A stored bearer token wins; its exp claim is checked locally first so
// a dead token fails fast instead of burning a reconnect cycle. With no
// token, a PIN-derived token is computed with the endpoint host as salt.
func (c Credentials) HandshakeToken(endpoint string) (string, error) {
	if c.Token != "" {
		if err := checkExpiry(c.Token); err != nil {
			return "", err
		}
		return c.Token, nil
	}
	if c.PIN != "" {
		host, err := endpointHost(endpoint)
		if err != nil {
			return "", err
		}
		return DeriveFromPIN(c.PIN, host), nil
	}
	return "", ErrNoCredentials
}

// checkExpiry inspects the token's exp claim without verifying the
// signature - verification is the gateway's job, the client only wants
// to avoid presenting a token it knows is dead.
func checkExpiry(tokenString string) error {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		// Opaque (non-JWT) tokens are passed through untouched.
		return nil
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if time.Now().After(exp.Time) {
		return fmt.Errorf("%w: exp %s", ErrTokenExpired, exp.Time.Format(time.RFC3339))
	}
	return nil
}

// DeriveFromPIN computes the PIN-derived handshake token: PBKDF2-SHA256
// over the PIN with the endpoint host as salt, base64url encoded.
func DeriveFromPIN(pin, host string) string {
	key := pbkdf2.Key([]byte(pin), []byte(host), pinIterations, pinKeyLength, sha256.New)
	return base64.RawURLEncoding.EncodeToString(key)
}

func endpointHost(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parsing endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("endpoint %q has no host", endpoint)
	}
	return u.Host, nil
}
