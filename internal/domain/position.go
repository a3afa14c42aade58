package domain

import (
	"fmt"

	"github.com/listenupapp/readtrack-server/internal/errors"
)

// Position addresses a minor unit (verse) inside a major unit (chapter).
// The engine never resolves positions to content.
type Position struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Major, p.Minor)
}

// PositionBounds declares the largest acceptable coordinates. Zero means unbounded.
type PositionBounds struct {
	MaxMajor int
	MaxMinor int
}

// Check returns a VALIDATION error when p falls outside the bounds.
// field names the offending input in the error details.
func (b PositionBounds) Check(field string, p Position) error {
	switch {
	case p.Major < 1 || p.Minor < 1:
		return errors.ValidationWithDetails("position out of range", map[string]string{
			field: "major and minor must be at least 1",
		})
	case b.MaxMajor > 0 && p.Major > b.MaxMajor:
		return errors.ValidationWithDetails("position out of range", map[string]string{
			field: fmt.Sprintf("major must not exceed %d", b.MaxMajor),
		})
	case b.MaxMinor > 0 && p.Minor > b.MaxMinor:
		return errors.ValidationWithDetails("position out of range", map[string]string{
			field: fmt.Sprintf("minor must not exceed %d", b.MaxMinor),
		})
	}
	return nil
}
