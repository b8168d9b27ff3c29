// Package auth resolves the credential presented during the WebSocket
// handshake: either a stored bearer JWT (checked locally for expiry) or
// a token derived from a short PIN via PBKDF2 with the endpoint host as
// salt. Signature verification is always the gateway's responsibility.
package auth
