package repositories

import (
	"context"

	"github.com/clipshelf/backend/internal/models"
)

// VideoRepository exposes data access for the video catalog.
type VideoRepository interface {
	Create(ctx context.Context, video models.Video) (int64, error)
	Get(ctx context.Context, id int64) (models.Video, error)
	List(ctx context.Context, query string) ([]models.Video, error)
}

// InteractionRepository exposes data access for comments and ratings.
type InteractionRepository interface {
	AddComment(ctx context.Context, comment models.Comment) (int64, error)
	ListComments(ctx context.Context, videoID int64) ([]models.Comment, error)
	Rate(ctx context.Context, rating models.Rating) (int64, error)
	AverageRating(ctx context.Context, videoID int64) (float64, bool, error)
}
