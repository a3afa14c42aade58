package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/listenupapp/readtrack-server/internal/domain"
	"github.com/listenupapp/readtrack-server/internal/store"
)

// InsertBookmark stores a bookmark.
func (s *Store) InsertBookmark(ctx context.Context, b *domain.Bookmark) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bookmarks (id, user_id, major, minor, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.Position.Major, b.Position.Minor, nullString(b.Note), formatTime(b.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("insert bookmark: %w", err)
	}
	return nil
}

// CountBookmarks returns the number of bookmarks a user has.
func (s *Store) CountBookmarks(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookmarks WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count bookmarks: %w", err)
	}
	return n, nil
}

// ListBookmarks returns a user's bookmarks, newest first.
func (s *Store) ListBookmarks(ctx context.Context, userID string, limit int) ([]*domain.Bookmark, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, major, minor, note, created_at
		FROM bookmarks WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	defer rows.Close()

	var out []*domain.Bookmark
	for rows.Next() {
		var (
			b         domain.Bookmark
			note      sql.NullString
			createdAt string
		)
		if err := rows.Scan(&b.ID, &b.UserID, &b.Position.Major, &b.Position.Minor, &note, &createdAt); err != nil {
			return nil, fmt.Errorf("scan bookmark: %w", err)
		}
		b.Note = note.String
		if b.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}
