// Package service implements the blog's use cases on top of the storage
// contracts: slug resolution, the post lifecycle, ownership checks and
// account verification. Every operation takes the requester explicitly.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/inkwell/blog/internal/files"
	"github.com/inkwell/blog/internal/models"
	"github.com/inkwell/blog/internal/storage"
)

// ImageStore persists featured images
type ImageStore interface {
	Save(img *files.Image) (string, error)
	Delete(name string) error
	URL(name string) string
}

// Notifier delivers verification codes. It must not block on delivery.
type Notifier interface {
	SendVerificationCode(ctx context.Context, user *models.User, code string)
}

// TokenCache memoizes bearer token lookups by secret hash
type TokenCache interface {
	GetToken(ctx context.Context, hash string) (tokenID, userID int64, ok bool)
	PutToken(ctx context.Context, hash string, tokenID, userID int64)
	ForgetToken(ctx context.Context, hash string)
}

// PasswordHasher hashes and checks passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) (bool, error)
}

// Repositories groups the storage contracts
type Repositories struct {
	Users      storage.UserRepository
	Tokens     storage.TokenRepository
	Categories storage.CategoryRepository
	Posts      storage.PostRepository
	Comments   storage.CommentRepository
}

// Options configures New
type Options struct {
	Repos                Repositories
	Images               ImageStore
	Notifier             Notifier
	Tokens               TokenCache
	Hasher               PasswordHasher
	RequireVerifiedEmail bool
	VerificationCodeTTL  time.Duration
}

// Services bundles every use case
type Services struct {
	Auth       *AuthService
	Categories *CategoryService
	Posts      *PostService
	Comments   *CommentService
	Gate       *Gate
}

// New wires the services over opts
func New(opts Options) *Services {
	gate := &Gate{RequireVerifiedEmail: opts.RequireVerifiedEmail}
	v := NewValidator()
	return &Services{
		Auth:       NewAuthService(opts.Repos.Users, opts.Repos.Tokens, opts.Hasher, opts.Notifier, opts.Tokens, v, opts.VerificationCodeTTL),
		Categories: NewCategoryService(opts.Repos.Categories, opts.Repos.Posts, gate, v),
		Posts:      NewPostService(opts.Repos.Posts, opts.Repos.Categories, opts.Images, gate, v),
		Comments:   NewCommentService(opts.Repos.Comments, opts.Repos.Posts, gate, v),
		Gate:       gate,
	}
}

func trim(s string) string {
	return strings.TrimSpace(s)
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
