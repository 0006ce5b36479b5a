package service

import (
	"github.com/inkwell/blog/internal/apperr"
	"github.com/inkwell/blog/internal/models"
)

// Identity is the requester of an operation. The zero value is anonymous.
type Identity struct {
	UserID        int64
	TokenID       int64
	TokenHash     string
	EmailVerified bool
	User          *models.User
}

// Authenticated reports whether the requester presented a valid token
func (i Identity) Authenticated() bool {
	return i.UserID != 0
}

// Action names a gated mutation
type Action string

const (
	ActionUpdatePost      Action = "update this post"
	ActionDeletePost      Action = "delete this post"
	ActionRestorePost     Action = "restore this post"
	ActionForceDeletePost Action = "permanently delete this post"
	ActionRemoveImage     Action = "remove the image of this post"
	ActionUpdateComment   Action = "update this comment"
	ActionDeleteComment   Action = "delete this comment"
)

// Gate evaluates ownership rules against the current state of a resource.
// Nothing is cached between calls.
type Gate struct {
	RequireVerifiedEmail bool
}

// Authenticate fails for anonymous requesters
func (g *Gate) Authenticate(who Identity) error {
	if !who.Authenticated() {
		return apperr.Unauthenticated("Unauthenticated.")
	}
	return nil
}

// Mutate fails for anonymous requesters and, when required, for unverified accounts
func (g *Gate) Mutate(who Identity) error {
	if err := g.Authenticate(who); err != nil {
		return err
	}
	if g.RequireVerifiedEmail && !who.EmailVerified {
		return apperr.Unverified("Your email address is not verified.")
	}
	return nil
}

// Post allows action only for the post's author
func (g *Gate) Post(who Identity, action Action, post *models.Post) error {
	if err := g.Authenticate(who); err != nil {
		return err
	}
	if who.UserID != post.UserID {
		return forbidden(action)
	}
	return nil
}

// Comment allows updates by the comment's author. Deletes are additionally
// allowed for the author of the parent post.
func (g *Gate) Comment(who Identity, action Action, comment *models.Comment, parent *models.Post) error {
	if err := g.Authenticate(who); err != nil {
		return err
	}
	if who.UserID == comment.UserID {
		return nil
	}
	if action == ActionDeleteComment && parent != nil && who.UserID == parent.UserID {
		return nil
	}
	return forbidden(action)
}

func forbidden(action Action) error {
	return apperr.Forbidden("You are not authorized to " + string(action) + ".")
}
