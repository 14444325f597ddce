/*
Package jwt inspects GYMbro access tokens on the client.

The client never holds the signing key, so tokens are decoded without signature
verification; the server remains the authority on validity. Decoded claims are only used
to recover the user id and to decide whether a token is about to expire.
*/
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
)

// ErrMalformedToken is returned when a token cannot be decoded at all.
var ErrMalformedToken = errors.New("malformed token")

// Peek decodes the claims of tokenString without verifying the signature.
func Peek(tokenString string) (*Payload, error) {
	if tokenString == "" {
		return nil, ErrMalformedToken
	}

	claims := &Payload{}
	parser := &jwt.Parser{SkipClaimsValidation: true}

	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, errors.Join(ErrMalformedToken, err)
	}

	return claims, nil
}

// ExpiresAt returns the expiry of tokenString. ok is false when the token has no exp claim
// or cannot be decoded.
func ExpiresAt(tokenString string) (expiry time.Time, ok bool) {
	claims, err := Peek(tokenString)
	if err != nil || claims.ExpiresAt == 0 {
		return time.Time{}, false
	}
	return time.Unix(claims.ExpiresAt, 0), true
}

// ExpiresWithin reports whether tokenString expires within window of now.
// Tokens without a readable expiry are treated as not expiring.
func ExpiresWithin(tokenString string, window time.Duration, now time.Time) bool {
	expiry, ok := ExpiresAt(tokenString)
	if !ok {
		return false
	}
	return now.After(expiry.Add(-window))
}
