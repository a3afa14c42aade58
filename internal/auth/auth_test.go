package auth

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/readtrack-server/internal/clock"
)

func testKey() []byte {
	key := make([]byte, keyLength)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestTokenService_RoundTrip(t *testing.T) {
	clk := clock.NewFixed(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	svc, err := NewTokenService(testKey(), time.Hour, clk)
	require.NoError(t, err)

	token, err := svc.Issue("user-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, "v4.local."))

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.True(t, strings.HasPrefix(claims.TokenID, "tok-"))
	assert.True(t, claims.Expiration.Equal(clk.Now().Add(time.Hour)))
}

func TestTokenService_Expired(t *testing.T) {
	clk := clock.NewFixed(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	svc, err := NewTokenService(testKey(), time.Hour, clk)
	require.NoError(t, err)

	token, err := svc.Issue("user-1")
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_WrongKey(t *testing.T) {
	svc, err := NewTokenService(testKey(), time.Hour, nil)
	require.NoError(t, err)
	token, err := svc.Issue("user-1")
	require.NoError(t, err)

	other := testKey()
	other[0] ^= 0xff
	otherSvc, err := NewTokenService(other, time.Hour, nil)
	require.NoError(t, err)

	_, err = otherSvc.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_RejectsBadInput(t *testing.T) {
	_, err := NewTokenService([]byte("short"), time.Hour, nil)
	assert.Error(t, err)

	svc, err := NewTokenService(testKey(), time.Hour, nil)
	require.NoError(t, err)
	_, err = svc.Issue("")
	assert.Error(t, err)
}

func TestLoadOrGenerateKey(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	key, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Len(t, key, keyLength)

	info, err := os.Stat(filepath.Join(dir, keyFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Equal(t, key, again)
}

func TestLoadOrGenerateKey_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, keyFileName), []byte("abc"), 0o600))

	_, err := LoadOrGenerateKey(dir)
	assert.Error(t, err)
}

func TestResolveKey(t *testing.T) {
	want := testKey()

	key, err := ResolveKey(hex.EncodeToString(want), "")
	require.NoError(t, err)
	assert.Equal(t, want, key)

	_, err = ResolveKey("zz", "")
	assert.Error(t, err)
}
