package models

import (
	"errors"
	"strings"
	"time"
)

// Role restricts what an account may do within the catalog.
type Role string

const (
	// RoleCreator accounts may upload videos in addition to everything a consumer can do.
	RoleCreator Role = "creator"
	// RoleConsumer accounts may browse, comment, and rate.
	RoleConsumer Role = "consumer"
)

// ErrInvalidRole indicates a role value outside the closed creator/consumer set.
var ErrInvalidRole = errors.New("invalid role")

// ParseRole validates a role supplied by a caller. An empty value defaults to
// consumer; anything other than the two known roles is rejected.
func ParseRole(value string) (Role, error) {
	switch Role(strings.TrimSpace(strings.ToLower(value))) {
	case "":
		return RoleConsumer, nil
	case RoleCreator:
		return RoleCreator, nil
	case RoleConsumer:
		return RoleConsumer, nil
	default:
		return "", ErrInvalidRole
	}
}

// User represents a registered account within the clipshelf catalog.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// Video stores catalog metadata for an uploaded clip. Uploader is the
// creating user's username, denormalized at upload time.
type Video struct {
	ID          int64
	Title       string
	Description string
	Publisher   string
	Producer    string
	Uploader    string
	Genre       string
	AgeRating   string
	StoragePath string
	CreatedAt   time.Time
}

// Comment is an append-only remark attached to a video.
type Comment struct {
	ID        int64
	VideoID   int64
	Commenter string
	Content   string
	CreatedAt time.Time
}

// Rating is a 1..5 score a user gives a video, at most once per video.
type Rating struct {
	ID      int64
	VideoID int64
	Rater   string
	Rating  int
}
