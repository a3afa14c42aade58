// Package id generates prefixed identifiers for engine-owned records.
//
// Reading sessions are normally identified by caller-supplied IDs; goals and
// bookmarks are always minted here.
package id

import (
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Record prefixes.
const (
	PrefixGoal     = "goal"
	PrefixBookmark = "bm"
	PrefixSession  = "rs"
)

// MaxLength bounds caller-supplied identifiers.
const MaxLength = 128

// Generate creates a prefixed NanoID, e.g. "goal-V1StGXR8_Z5jdHi6B-myT".
func Generate(prefix string) (string, error) {
	nid, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + nid, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	v, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return v
}

// NewGoalID returns a fresh goal identifier.
func NewGoalID() (string, error) { return Generate(PrefixGoal) }

// NewBookmarkID returns a fresh bookmark identifier.
func NewBookmarkID() (string, error) { return Generate(PrefixBookmark) }

// NewSessionID returns a session identifier for callers that do not choose one.
func NewSessionID() (string, error) { return Generate(PrefixSession) }

// Valid reports whether s is acceptable as an externally supplied identifier:
// non-empty, at most MaxLength bytes, no whitespace or control characters.
func Valid(s string) bool {
	if s == "" || len(s) > MaxLength {
		return false
	}
	return !strings.ContainsFunc(s, func(r rune) bool {
		return r <= ' ' || r == 0x7f
	})
}
