package domain

import "time"

// Bookmark marks a position a user wants to return to.
type Bookmark struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Position  Position  `json:"position"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
