package db

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/inkwell/blog/internal/models"
	"github.com/inkwell/blog/internal/storage"
)

// PostRepository provides post-related database operations
type PostRepository struct {
	*Repository
}

// NewPostRepository creates a new post repository
func NewPostRepository(repo *Repository) *PostRepository {
	return &PostRepository{Repository: repo}
}

func (r *PostRepository) withRelations(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("User").Preload("Category")
}

// Create creates a new post
func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error)
}

// Update writes every editable column of an active post
func (r *PostRepository) Update(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Model(post).
		Select("*").
		Omit(clause.Associations, "id", "created_at", "deleted_at").
		Updates(post).Error
	return translate(err)
}

// GetBySlug retrieves an active post by slug
func (r *PostRepository) GetBySlug(ctx context.Context, slug string) (*models.Post, error) {
	var post models.Post
	found, err := first(r.withRelations(ctx).Where("slug = ?", slug), &post)
	if err != nil || !found {
		return nil, err
	}
	return &post, nil
}

// GetBySlugWithTrashed retrieves a post by slug whether or not it is trashed
func (r *PostRepository) GetBySlugWithTrashed(ctx context.Context, slug string) (*models.Post, error) {
	var post models.Post
	found, err := first(r.withRelations(ctx).Unscoped().Where("slug = ?", slug), &post)
	if err != nil || !found {
		return nil, err
	}
	return &post, nil
}

// GetByIDWithTrashed retrieves a post by ID whether or not it is trashed
func (r *PostRepository) GetByIDWithTrashed(ctx context.Context, id int64) (*models.Post, error) {
	var post models.Post
	found, err := first(r.withRelations(ctx).Unscoped().Where("id = ?", id), &post)
	if err != nil || !found {
		return nil, err
	}
	return &post, nil
}

// SlugExists reports whether another post, trashed or not, uses slug
func (r *PostRepository) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	return exists(r.db.WithContext(ctx).Unscoped().Model(&models.Post{}).Where("slug = ? AND id <> ?", slug, excludeID))
}

// TitleExists reports whether another post, trashed or not, uses title
func (r *PostRepository) TitleExists(ctx context.Context, title string, excludeID int64) (bool, error) {
	return exists(r.db.WithContext(ctx).Unscoped().Model(&models.Post{}).Where("title = ? AND id <> ?", title, excludeID))
}

// List returns one page of posts matching filter and the total match count
func (r *PostRepository) List(ctx context.Context, filter storage.PostFilter, page storage.Page) ([]*models.Post, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Post{})
	if filter.Scope == storage.ScopeTrashed {
		q = q.Unscoped().Where("deleted_at IS NOT NULL")
	}
	if filter.UserID != 0 {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.CategoryID != 0 {
		q = q.Where("category_id = ?", filter.CategoryID)
	}
	switch filter.Status {
	case models.StatusDraft:
		q = q.Where("published_at IS NULL")
	case models.StatusScheduled:
		q = q.Where("published_at > ?", filter.Now)
	case models.StatusPublished:
		q = q.Where("published_at <= ?", filter.Now)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var posts []*models.Post
	err := q.Preload("User").Preload("Category").
		Order(orderClause(filter.Order)).
		Scopes(paged(page)).
		Find(&posts).Error
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func paged(page storage.Page) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if page.Size <= 0 {
			return q
		}
		return q.Offset(page.Offset()).Limit(page.Size)
	}
}

func orderClause(order storage.PostOrder) string {
	switch order {
	case storage.OrderUpdatedDesc:
		return "updated_at DESC, id DESC"
	case storage.OrderDeletedDesc:
		return "deleted_at DESC, id DESC"
	case storage.OrderPublishedAsc:
		return "published_at ASC, id ASC"
	default:
		return "created_at DESC, id DESC"
	}
}

// SoftDelete moves an active post to the trash
func (r *PostRepository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", id).
		UpdateColumn("deleted_at", at).Error
}

// Restore takes a post out of the trash
func (r *PostRepository) Restore(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Unscoped().Model(&models.Post{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"deleted_at": nil, "updated_at": r.db.NowFunc()}).Error
}

// ForceDelete removes a post and all of its comments in one transaction
func (r *PostRepository) ForceDelete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Where("id = ?", id).Delete(&models.Post{}).Error
	})
}

// CommentRepository provides comment database operations
type CommentRepository struct {
	*Repository
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(repo *Repository) *CommentRepository {
	return &CommentRepository{Repository: repo}
}

// Create creates a new comment
func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(comment).Error)
}

// Update writes the content of a comment
func (r *CommentRepository) Update(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Model(comment).
		Select("content", "updated_at").
		Updates(comment).Error
}

// GetByID retrieves a live comment and its author
func (r *CommentRepository) GetByID(ctx context.Context, id int64) (*models.Comment, error) {
	var comment models.Comment
	found, err := first(r.db.WithContext(ctx).Preload("User").Where("id = ?", id), &comment)
	if err != nil || !found {
		return nil, err
	}
	return &comment, nil
}

// ListByPost returns one page of a post's comments, newest first
func (r *CommentRepository) ListByPost(ctx context.Context, postID int64, page storage.Page) ([]*models.Comment, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Comment{}).Where("post_id = ?", postID).Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var comments []*models.Comment
	err := q.Preload("User").
		Order("created_at DESC, id DESC").
		Scopes(paged(page)).
		Find(&comments).Error
	if err != nil {
		return nil, 0, err
	}
	return comments, total, nil
}

// SoftDelete hides a comment
func (r *CommentRepository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("id = ?", id).
		UpdateColumn("deleted_at", at).Error
}

var (
	_ storage.PostRepository    = (*PostRepository)(nil)
	_ storage.CommentRepository = (*CommentRepository)(nil)
)
