package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clipshelf/backend/internal/db"
	"github.com/clipshelf/backend/internal/models"
)

// PostgresUserRepository provides PostgreSQL-backed persistence for accounts.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record. A duplicate username surfaces as ErrConflict.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, username, password_hash, role, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `, user.ID, user.Username, user.PasswordHash, string(user.Role), user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByUsername fetches a user by their username.
func (r *PostgresUserRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, username, password_hash, role, created_at
        FROM users
        WHERE username = $1
    `, username)

	var (
		user models.User
		role string
	)
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &role, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user by username: %w", err)
	}

	user.Role = models.Role(role)
	return user, nil
}

// PostgresVideoRepository provides PostgreSQL-backed persistence for the catalog.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

// Create stores a new video record and returns its generated id.
func (r *PostgresVideoRepository) Create(ctx context.Context, video models.Video) (int64, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        INSERT INTO videos (title, description, publisher, producer, uploader, genre, age_rating, storage_path, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id
    `, video.Title, video.Description, video.Publisher, video.Producer, video.Uploader, video.Genre, video.AgeRating, video.StoragePath, video.CreatedAt)

	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("insert video: %w", err)
	}

	return id, nil
}

// Get fetches a single video by id.
func (r *PostgresVideoRepository) Get(ctx context.Context, id int64) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, title, description, publisher, producer, uploader, genre, age_rating, storage_path, created_at
        FROM videos
        WHERE id = $1
    `, id)

	var video models.Video
	if err := scanVideo(row, &video); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("select video: %w", err)
	}

	return video, nil
}

// List returns the catalog. An empty query yields every video in descending id
// order (most recent first). A non-empty query yields the videos whose title or
// genre contains it case-insensitively; that branch carries no ordering
// guarantee beyond storage order.
func (r *PostgresVideoRepository) List(ctx context.Context, query string) ([]models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var rows pgx.Rows
	if query == "" {
		rows, err = conn.Query(ctx, `
            SELECT id, title, description, publisher, producer, uploader, genre, age_rating, storage_path, created_at
            FROM videos
            ORDER BY id DESC
        `)
	} else {
		rows, err = conn.Query(ctx, `
            SELECT id, title, description, publisher, producer, uploader, genre, age_rating, storage_path, created_at
            FROM videos
            WHERE title ILIKE '%' || $1 || '%' OR genre ILIKE '%' || $1 || '%'
        `, query)
	}
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		var video models.Video
		if err := scanVideo(rows, &video); err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, video)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}

	return videos, nil
}

func scanVideo(row pgx.Row, video *models.Video) error {
	return row.Scan(
		&video.ID,
		&video.Title,
		&video.Description,
		&video.Publisher,
		&video.Producer,
		&video.Uploader,
		&video.Genre,
		&video.AgeRating,
		&video.StoragePath,
		&video.CreatedAt,
	)
}

// PostgresInteractionRepository provides PostgreSQL-backed persistence for
// comments and ratings.
type PostgresInteractionRepository struct {
	pool db.Pool
}

// NewPostgresInteractionRepository constructs an interaction repository backed by PostgreSQL.
func NewPostgresInteractionRepository(pool db.Pool) *PostgresInteractionRepository {
	return &PostgresInteractionRepository{pool: pool}
}

// AddComment appends a comment to a video. Comments carry no uniqueness
// constraint; any number per (video, user) is allowed.
func (r *PostgresInteractionRepository) AddComment(ctx context.Context, comment models.Comment) (int64, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        INSERT INTO comments (video_id, commenter, content, created_at)
        VALUES ($1, $2, $3, $4)
        RETURNING id
    `, comment.VideoID, comment.Commenter, comment.Content, comment.CreatedAt)

	var id int64
	if err := row.Scan(&id); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("insert comment: %w", err)
	}

	return id, nil
}

// ListComments returns a video's comments in insertion order.
func (r *PostgresInteractionRepository) ListComments(ctx context.Context, videoID int64) ([]models.Comment, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, video_id, commenter, content, created_at
        FROM comments
        WHERE video_id = $1
        ORDER BY id
    `, videoID)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	var comments []models.Comment
	for rows.Next() {
		var comment models.Comment
		if err := rows.Scan(&comment.ID, &comment.VideoID, &comment.Commenter, &comment.Content, &comment.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, comment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}

	return comments, nil
}

// rateMaxAttempts bounds retries when concurrent rating transactions collide.
const rateMaxAttempts = 3

// retryableRatingCodes are transaction-conflict error codes worth retrying;
// on retry the existence check observes the winning rating and the loser
// surfaces as ErrAlreadyRated.
var retryableRatingCodes = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
}

// Rate records a 1..5 score for a video, at most once per (video, rater).
// The existence check and insert run inside a single transaction, and the
// unique index on (video_id, rater) backstops concurrent duplicates: either
// path surfaces as ErrAlreadyRated, never as a second row.
func (r *PostgresInteractionRepository) Rate(ctx context.Context, rating models.Rating) (int64, error) {
	if rating.Rating < 1 || rating.Rating > 5 {
		return 0, ErrInvalidRating
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var lastErr error
	for attempt := 0; attempt < rateMaxAttempts; attempt++ {
		id, err := r.rateOnce(ctx, conn, rating)
		if err == nil {
			return id, nil
		}
		if !isRetryableRatingErr(err) {
			return 0, err
		}
		lastErr = err
	}

	return 0, fmt.Errorf("rate video %d: exceeded max retries: %w", rating.VideoID, lastErr)
}

func (r *PostgresInteractionRepository) rateOnce(ctx context.Context, conn *pgxpool.Conn, rating models.Rating) (int64, error) {
	tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return 0, fmt.Errorf("begin rating transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var exists bool
	err = tx.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM ratings WHERE video_id = $1 AND rater = $2
        )
    `, rating.VideoID, rating.Rater).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("check existing rating: %w", err)
	}
	if exists {
		return 0, ErrAlreadyRated
	}

	var id int64
	err = tx.QueryRow(ctx, `
        INSERT INTO ratings (video_id, rater, rating)
        VALUES ($1, $2, $3)
        RETURNING id
    `, rating.VideoID, rating.Rater, rating.Rating).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return 0, ErrAlreadyRated
			case "23503":
				return 0, ErrNotFound
			}
		}
		return 0, fmt.Errorf("insert rating: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrAlreadyRated
		}
		return 0, fmt.Errorf("commit rating: %w", err)
	}

	return id, nil
}

func isRetryableRatingErr(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, ok := retryableRatingCodes[pgErr.Code]
		return ok
	}
	return false
}

// AverageRating computes the arithmetic mean of a video's ratings. The second
// return value is false when the video has no ratings yet.
func (r *PostgresInteractionRepository) AverageRating(ctx context.Context, videoID int64) (float64, bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var avg sql.NullFloat64
	err = conn.QueryRow(ctx, `
        SELECT AVG(rating)::float8
        FROM ratings
        WHERE video_id = $1
    `, videoID).Scan(&avg)
	if err != nil {
		return 0, false, fmt.Errorf("select average rating: %w", err)
	}

	if !avg.Valid {
		return 0, false, nil
	}

	return avg.Float64, true, nil
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ VideoRepository = (*PostgresVideoRepository)(nil)
var _ InteractionRepository = (*PostgresInteractionRepository)(nil)
