// Package auth verifies the bearer tokens that carry a caller's identity.
//
// Tokens are PASETO v4.local: encrypted and authenticated with a 256-bit
// symmetric key shared by the API server and the token-minting CLI.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	keyLength    = 32
	keyHexLength = 64
	keyFileName  = "auth.key"
)

// ParseKeyHex decodes a hex-encoded 32-byte key.
func ParseKeyHex(keyHex string) ([]byte, error) {
	keyHex = strings.TrimSpace(keyHex)
	if len(keyHex) != keyHexLength {
		return nil, fmt.Errorf("invalid auth key length: expected %d hex chars, got %d", keyHexLength, len(keyHex))
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid auth key format: not valid hex: %w", err)
	}
	return key, nil
}

// LoadOrGenerateKey reads {dataDir}/auth.key, creating it with a fresh random
// key when missing.
func LoadOrGenerateKey(dataDir string) ([]byte, error) {
	keyPath := filepath.Join(dataDir, keyFileName)

	//#nosec G304 -- key path is derived from the configured data directory
	if keyBytes, err := os.ReadFile(keyPath); err == nil {
		return ParseKeyHex(string(keyBytes))
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read auth key: %w", err)
	}

	key := make([]byte, keyLength)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate auth key: %w", err)
	}

	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(key)), 0o600); err != nil {
		return nil, fmt.Errorf("save auth key: %w", err)
	}
	return key, nil
}

// ResolveKey returns the key from keyHex when set, otherwise from the data
// directory.
func ResolveKey(keyHex, dataDir string) ([]byte, error) {
	if keyHex != "" {
		return ParseKeyHex(keyHex)
	}
	return LoadOrGenerateKey(dataDir)
}
