package app

import (
	"context"
	"fmt"
	"time"

	"github.com/clipshelf/backend/internal/auth"
	"github.com/clipshelf/backend/internal/catalog"
	"github.com/clipshelf/backend/internal/config"
	"github.com/clipshelf/backend/internal/db"
	"github.com/clipshelf/backend/internal/handlers"
	"github.com/clipshelf/backend/internal/middleware"
	"github.com/clipshelf/backend/internal/repositories"
	"github.com/clipshelf/backend/internal/storage"
)

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, error) {
	uploads, err := buildUploadStore(ctx, cfg)
	if err != nil {
		return handlers.Dependencies{}, err
	}

	sessionStore := repositories.NewPostgresSessionStore(pool)
	videoRepo := repositories.NewPostgresVideoRepository(pool)

	return handlers.Dependencies{
		Users:         repositories.NewPostgresUserRepository(pool),
		Sessions:      auth.NewManager(cfg.SessionTTL, sessionStore),
		Videos:        videoRepo,
		Interactions:  repositories.NewPostgresInteractionRepository(pool),
		Uploads:       uploads,
		Public:        catalog.NewCachingLister(videoRepo, time.Minute),
		AuthLimiter:   middleware.NewIPRateLimiter(10, time.Minute, 5, 10*time.Minute),
		UploadLimiter: middleware.NewIPRateLimiter(30, time.Minute, 10, 10*time.Minute),
	}, nil
}

// buildUploadStore selects the upload backend: S3 when a bucket is configured,
// otherwise local disk.
func buildUploadStore(ctx context.Context, cfg config.Config) (handlers.UploadStore, error) {
	if cfg.ObjectStore.Bucket != "" {
		store, err := storage.NewS3Store(ctx, cfg.ObjectStore)
		if err != nil {
			return nil, fmt.Errorf("configure s3 upload store: %w", err)
		}
		return store, nil
	}

	store, err := storage.NewLocalStore(cfg.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("configure local upload store: %w", err)
	}
	return store, nil
}
