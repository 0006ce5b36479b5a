package service

import (
	"testing"

	"github.com/inkwell/blog/internal/apperr"
	"github.com/inkwell/blog/internal/models"
)

func TestGatePost(t *testing.T) {
	post := &models.Post{ID: 1, UserID: 10}
	gate := &Gate{RequireVerifiedEmail: true}

	tests := []struct {
		name     string
		who      Identity
		wantKind apperr.Kind
		allowed  bool
	}{
		{"author", Identity{UserID: 10, EmailVerified: true}, 0, true},
		{"other user", Identity{UserID: 11, EmailVerified: true}, apperr.KindForbidden, false},
		{"anonymous", Identity{}, apperr.KindUnauthenticated, false},
	}

	actions := []Action{ActionUpdatePost, ActionDeletePost, ActionRestorePost, ActionForceDeletePost, ActionRemoveImage}
	for _, tt := range tests {
		for _, action := range actions {
			t.Run(tt.name+"/"+string(action), func(t *testing.T) {
				err := gate.Post(tt.who, action, post)
				if tt.allowed {
					if err != nil {
						t.Fatalf("Post() error = %v, want allowed", err)
					}
					return
				}
				if !apperr.Is(err, tt.wantKind) {
					t.Errorf("Post() error = %v, want kind %v", err, tt.wantKind)
				}
			})
		}
	}
}

func TestGateComment(t *testing.T) {
	parent := &models.Post{ID: 1, UserID: 10}
	comment := &models.Comment{ID: 5, PostID: 1, UserID: 20}
	gate := &Gate{}

	tests := []struct {
		name    string
		who     int64
		action  Action
		allowed bool
	}{
		{"comment author updates", 20, ActionUpdateComment, true},
		{"post author cannot update", 10, ActionUpdateComment, false},
		{"comment author deletes", 20, ActionDeleteComment, true},
		{"post author deletes", 10, ActionDeleteComment, true},
		{"third party deletes", 30, ActionDeleteComment, false},
		{"third party updates", 30, ActionUpdateComment, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gate.Comment(Identity{UserID: tt.who}, tt.action, comment, parent)
			if tt.allowed != (err == nil) {
				t.Fatalf("Comment() error = %v, allowed %v", err, tt.allowed)
			}
			if !tt.allowed && !apperr.Is(err, apperr.KindForbidden) {
				t.Errorf("Comment() error kind = %v, want Forbidden", apperr.KindOf(err))
			}
		})
	}
}

func TestGateMutate(t *testing.T) {
	tests := []struct {
		name     string
		gate     Gate
		who      Identity
		wantKind apperr.Kind
		wantErr  bool
	}{
		{"verified", Gate{RequireVerifiedEmail: true}, Identity{UserID: 1, EmailVerified: true}, 0, false},
		{"unverified blocked", Gate{RequireVerifiedEmail: true}, Identity{UserID: 1}, apperr.KindUnverified, true},
		{"unverified allowed when not required", Gate{}, Identity{UserID: 1}, 0, false},
		{"anonymous", Gate{}, Identity{}, apperr.KindUnauthenticated, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.gate.Mutate(tt.who)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Mutate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !apperr.Is(err, tt.wantKind) {
				t.Errorf("Mutate() kind = %v, want %v", apperr.KindOf(err), tt.wantKind)
			}
		})
	}
}

func TestForbiddenMessage(t *testing.T) {
	err := (&Gate{}).Post(Identity{UserID: 2}, ActionForceDeletePost, &models.Post{UserID: 1})
	if got := apperr.As(err).Message; got != "You are not authorized to permanently delete this post." {
		t.Errorf("message = %q", got)
	}
}
