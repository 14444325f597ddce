package jwt

import "github.com/golang-jwt/jwt"

// Payload is the subset of GYMbro access-token claims the client reads.
// The backend has used "id", "userId" and the standard "sub" for the user id over time.
type Payload struct {
	jwt.StandardClaims

	// ID is the user id claim used by current tokens.
	ID string `json:"id,omitempty"`

	// UserID is the user id claim used by older tokens.
	UserID string `json:"userId,omitempty"`

	// Username is present on tokens minted at login.
	Username string `json:"username,omitempty"`
}

// UserIdentifier resolves the user id from whichever claim is populated.
func (p *Payload) UserIdentifier() string {
	switch {
	case p.ID != "":
		return p.ID
	case p.UserID != "":
		return p.UserID
	default:
		return p.StandardClaims.Subject
	}
}
