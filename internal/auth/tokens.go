package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"

	"github.com/listenupapp/readtrack-server/internal/clock"
	"github.com/listenupapp/readtrack-server/internal/id"
)

const (
	tokenIssuer   = "readtrack-server"
	tokenAudience = "readtrack-client"
)

// ErrInvalidToken is returned for tokens that fail decryption or any claim rule.
var ErrInvalidToken = errors.New("invalid token")

// TokenService issues and verifies PASETO v4.local access tokens.
type TokenService struct {
	key      paseto.V4SymmetricKey
	duration time.Duration
	clock    clock.Clock
}

// NewTokenService creates a token service from a 32-byte key.
func NewTokenService(key []byte, duration time.Duration, clk clock.Clock) (*TokenService, error) {
	if len(key) != keyLength {
		return nil, fmt.Errorf("PASETO v4 key must be exactly %d bytes, got %d", keyLength, len(key))
	}
	symmetricKey, err := paseto.V4SymmetricKeyFromBytes(key)
	if err != nil {
		return nil, fmt.Errorf("create PASETO symmetric key: %w", err)
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &TokenService{key: symmetricKey, duration: duration, clock: clk}, nil
}

// Issue mints a token for userID. Credential checks happen elsewhere; this
// backs the operator CLI and tests.
func (s *TokenService) Issue(userID string) (string, error) {
	if !id.Valid(userID) {
		return "", fmt.Errorf("invalid user id %q", userID)
	}
	now := s.clock.Now()

	token := paseto.NewToken()
	token.SetIssuer(tokenIssuer)
	token.SetAudience(tokenAudience)
	token.SetSubject(userID)
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(now.Add(s.duration))

	tokenID, err := id.Generate("tok")
	if err != nil {
		return "", fmt.Errorf("generate token ID: %w", err)
	}
	token.SetJti(tokenID)

	return token.V4Encrypt(s.key, nil), nil
}

// Verify decrypts a token and checks issuer, audience and validity window.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	parser := paseto.NewParserWithoutExpiryCheck()
	parser.AddRule(paseto.ForAudience(tokenAudience))
	parser.AddRule(paseto.IssuedBy(tokenIssuer))
	parser.AddRule(paseto.ValidAt(s.clock.Now()))

	token, err := parser.ParseV4Local(s.key, tokenString, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	var claims Claims
	if err := json.Unmarshal(token.ClaimsJSON(), &claims); err != nil {
		return nil, fmt.Errorf("parse claims: %w", err)
	}
	if !id.Valid(claims.Subject) {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return &claims, nil
}

// Duration returns the configured token lifetime.
func (s *TokenService) Duration() time.Duration {
	return s.duration
}
