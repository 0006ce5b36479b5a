// Package storage defines the persistence contracts implemented by the gorm
// repositories in internal/db and the in-memory store in internal/storage/inmemory.
//
// Getters return (nil, nil) when no row matches. Writes that violate a unique
// constraint return an error wrapping apperr.ErrDuplicate.
package storage

import (
	"context"
	"math"
	"time"

	"github.com/inkwell/blog/internal/models"
)

// Page selects a window of an ordered listing. Number starts at 1.
type Page struct {
	Number int
	Size   int
}

// Offset returns the number of rows skipped before the page. It saturates at
// math.MaxInt instead of overflowing.
func (p Page) Offset() int {
	if p.Number < 1 || p.Size < 1 {
		return 0
	}
	if p.Number-1 > math.MaxInt/p.Size {
		return math.MaxInt
	}
	return (p.Number - 1) * p.Size
}

// Scope selects which rows a post listing considers with respect to soft deletion
type Scope int

const (
	// ScopeActive excludes trashed posts
	ScopeActive Scope = iota
	// ScopeTrashed returns only trashed posts
	ScopeTrashed
)

// PostOrder selects the sort order of a post listing
type PostOrder int

const (
	OrderCreatedDesc PostOrder = iota
	OrderUpdatedDesc
	OrderDeletedDesc
	OrderPublishedAsc
)

// PostFilter narrows a post listing. Zero values mean "any".
type PostFilter struct {
	UserID     int64
	CategoryID int64
	Status     models.Status
	Scope      Scope
	Order      PostOrder
	// Now is the instant status filters are evaluated against
	Now time.Time
}

// UserRepository stores accounts
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// TokenRepository stores bearer tokens
type TokenRepository interface {
	Create(ctx context.Context, token *models.AccessToken) error
	GetByID(ctx context.Context, id int64) (*models.AccessToken, error)
	GetByHash(ctx context.Context, hash string) (*models.AccessToken, error)
	Delete(ctx context.Context, id int64) error
}

// CategoryRepository stores categories. Listing getters fill PostsCount with
// the number of active posts.
type CategoryRepository interface {
	Create(ctx context.Context, category *models.Category) error
	Update(ctx context.Context, category *models.Category) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*models.Category, error)
	GetByID(ctx context.Context, id int64) (*models.Category, error)
	GetBySlug(ctx context.Context, slug string) (*models.Category, error)
	NameExists(ctx context.Context, name string, excludeID int64) (bool, error)
	SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error)
	// CountPosts counts every post referencing the category, trashed ones included
	CountPosts(ctx context.Context, id int64) (int64, error)
}

// PostRepository stores posts. Returned posts carry their User and Category.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	// Update rewrites an active post. Trashed posts are skipped, and
	// CreatedAt and DeletedAt always keep their stored values.
	Update(ctx context.Context, post *models.Post) error
	// GetBySlug ignores trashed posts
	GetBySlug(ctx context.Context, slug string) (*models.Post, error)
	GetBySlugWithTrashed(ctx context.Context, slug string) (*models.Post, error)
	GetByIDWithTrashed(ctx context.Context, id int64) (*models.Post, error)
	// SlugExists and TitleExists consider trashed posts
	SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error)
	TitleExists(ctx context.Context, title string, excludeID int64) (bool, error)
	List(ctx context.Context, filter PostFilter, page Page) ([]*models.Post, int64, error)
	SoftDelete(ctx context.Context, id int64, at time.Time) error
	Restore(ctx context.Context, id int64) error
	// ForceDelete removes the post and all of its comments
	ForceDelete(ctx context.Context, id int64) error
}

// CommentRepository stores comments. Returned comments carry their User.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	Update(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id int64) (*models.Comment, error)
	ListByPost(ctx context.Context, postID int64, page Page) ([]*models.Comment, int64, error)
	SoftDelete(ctx context.Context, id int64, at time.Time) error
}
