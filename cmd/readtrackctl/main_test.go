package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/readtrack-server/internal/auth"
	"github.com/listenupapp/readtrack-server/internal/clock"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{
		"--env-file", filepath.Join(dir, "missing.env"),
		"--data-dir", dir,
		"--log-level", "error",
	}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func TestTokenCommand_IssuesVerifiableToken(t *testing.T) {
	dir := t.TempDir()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{
		"--env-file", filepath.Join(dir, "missing.env"),
		"--data-dir", dir,
		"--log-level", "error",
		"token", "user-1",
	})
	require.NoError(t, cmd.Execute())

	key, err := os.ReadFile(filepath.Join(dir, "auth.key"))
	require.NoError(t, err)
	parsed, err := auth.ParseKeyHex(string(key))
	require.NoError(t, err)

	tokens, err := auth.NewTokenService(parsed, time.Hour, clock.System{})
	require.NoError(t, err)

	claims, err := tokens.Verify(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
}

func TestSweepCommand_EmptyStore(t *testing.T) {
	out, err := runCLI(t, "sweep")
	require.NoError(t, err)
	assert.Equal(t, "checked=0 abandoned=0 skipped=0 failed=0\n", out)
}

func TestStreakCommand_NoActivity(t *testing.T) {
	out, err := runCLI(t, "streak", "user-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "current=0 longest=0\n"), out)
}

func TestStreakCommand_JSON(t *testing.T) {
	out, err := runCLI(t, "streak", "user-1", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"current_streak": 0`)
}

func TestStreakCommand_RequiresUser(t *testing.T) {
	_, err := runCLI(t, "streak")
	assert.Error(t, err)
}
