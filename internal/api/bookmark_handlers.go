package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/readtrack-server/internal/domain"
)

func (s *Server) registerBookmarkRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "addBookmark",
		Method:        http.MethodPost,
		Path:          "/api/v1/bookmarks",
		Summary:       "Add bookmark",
		Tags:          []string{"Bookmarks"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleAddBookmark)
}

// AddBookmarkRequest is the request body for adding a bookmark.
type AddBookmarkRequest struct {
	Position domain.Position `json:"position" doc:"Bookmarked position"`
	Note     string          `json:"note,omitempty" doc:"Optional note"`
}

// AddBookmarkInput wraps the bookmark request for Huma.
type AddBookmarkInput struct {
	Body AddBookmarkRequest
}

// BookmarkOutput wraps a bookmark for Huma.
type BookmarkOutput struct {
	Body *domain.Bookmark
}

func (s *Server) handleAddBookmark(ctx context.Context, input *AddBookmarkInput) (*BookmarkOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	bookmark, err := s.services.Progress.AddBookmark(ctx, userID, input.Body.Position, input.Body.Note)
	if err != nil {
		return nil, err
	}

	return &BookmarkOutput{Body: bookmark}, nil
}
