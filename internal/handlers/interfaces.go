package handlers

import (
	"context"
	"io"

	"github.com/clipshelf/backend/internal/auth"
	"github.com/clipshelf/backend/internal/models"
)

// UserStore captures the persistence operations required by the auth handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByUsername(ctx context.Context, username string) (models.User, error)
}

// SessionManager issues, resolves, and revokes login sessions.
type SessionManager interface {
	Issue(ctx context.Context, identity string, role models.Role) (auth.Session, error)
	Resolve(ctx context.Context, token string) (auth.Context, error)
	Revoke(ctx context.Context, token string)
}

// VideoStore captures persistence for the video catalog.
type VideoStore interface {
	Create(ctx context.Context, video models.Video) (int64, error)
	Get(ctx context.Context, id int64) (models.Video, error)
	List(ctx context.Context, query string) ([]models.Video, error)
}

// InteractionStore captures persistence for comments and ratings.
type InteractionStore interface {
	AddComment(ctx context.Context, comment models.Comment) (int64, error)
	ListComments(ctx context.Context, videoID int64) ([]models.Comment, error)
	Rate(ctx context.Context, rating models.Rating) (int64, error)
	AverageRating(ctx context.Context, videoID int64) (float64, bool, error)
}

// UploadStore persists uploaded video bytes and returns their location.
type UploadStore interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// PublicLister serves the unauthenticated catalog listing.
type PublicLister interface {
	List(ctx context.Context, query string) ([]models.Video, error)
}
