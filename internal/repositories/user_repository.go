package repositories

import (
	"context"

	"github.com/clipshelf/backend/internal/models"
)

// UserRepository defines the data access contract for registered accounts.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByUsername(ctx context.Context, username string) (models.User, error)
}
