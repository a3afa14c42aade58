package auth

import "time"

// Claims are the verified contents of an access token. Subject is the
// opaque user ID every engine operation is scoped to.
type Claims struct {
	Subject    string    `json:"sub"`
	Issuer     string    `json:"iss"`
	Audience   string    `json:"aud"`
	Expiration time.Time `json:"exp"`
	NotBefore  time.Time `json:"nbf"`
	IssuedAt   time.Time `json:"iat"`
	TokenID    string    `json:"jti"`
}
