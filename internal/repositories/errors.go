package repositories

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
	// ErrAlreadyRated indicates the caller has already rated the video.
	ErrAlreadyRated = errors.New("video already rated by user")
	// ErrInvalidRating indicates a rating outside the 1..5 scale.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
)
