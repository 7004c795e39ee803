package auth

import (
	"errors"
	"fmt"

	"github.com/clipshelf/backend/internal/models"
)

// Action names an operation a caller may attempt against the catalog.
type Action string

const (
	ActionViewDashboard Action = "view_dashboard"
	ActionViewVideo     Action = "view_video"
	ActionSearch        Action = "search"
	ActionUploadVideo   Action = "upload_video"
	ActionComment       Action = "comment"
	ActionRate          Action = "rate"
	ActionPublicList    Action = "public_list"
)

var (
	// ErrNotAuthenticated indicates the action requires a logged-in caller.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrWrongRole indicates the caller's role does not permit the action.
	ErrWrongRole = errors.New("role does not permit action")
)

// Authorize decides whether the caller context may perform the action.
// It is a pure function: all state it consults arrives in its arguments.
// The video detail read path is deliberately open, matching the public
// listing endpoint.
func Authorize(caller Context, action Action) error {
	switch action {
	case ActionPublicList, ActionViewVideo:
		return nil
	case ActionViewDashboard, ActionSearch, ActionComment, ActionRate:
		if !caller.Authenticated() {
			return ErrNotAuthenticated
		}
		return nil
	case ActionUploadVideo:
		if !caller.Authenticated() {
			return ErrNotAuthenticated
		}
		if caller.Role != models.RoleCreator {
			return ErrWrongRole
		}
		return nil
	default:
		return fmt.Errorf("unknown action %q", action)
	}
}
