package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/inkwell/blog/internal/apperr"
	"github.com/inkwell/blog/internal/models"
	"github.com/inkwell/blog/internal/storage"
)

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// translate maps driver errors onto the storage contract
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%v: %w", err, apperr.ErrDuplicate)
	}
	return err
}

// first runs q into dest, mapping a missing row to (false, nil)
func first(q *gorm.DB, dest interface{}) (bool, error) {
	if err := q.First(dest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func exists(q *gorm.DB) (bool, error) {
	var n int64
	if err := q.Limit(1).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// UserRepository provides account-related database operations
type UserRepository struct {
	*Repository
}

// NewUserRepository creates a new user repository
func NewUserRepository(repo *Repository) *UserRepository {
	return &UserRepository{Repository: repo}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return translate(r.db.WithContext(ctx).Create(user).Error)
}

// Update writes every column of user
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	return translate(r.db.WithContext(ctx).Model(user).Select("*").Omit("id", "created_at").Updates(user).Error)
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	found, err := first(r.db.WithContext(ctx).Where("id = ?", id), &user)
	if err != nil || !found {
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	found, err := first(r.db.WithContext(ctx).Where("email = ?", email), &user)
	if err != nil || !found {
		return nil, err
	}
	return &user, nil
}

// TokenRepository provides bearer token database operations
type TokenRepository struct {
	*Repository
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(repo *Repository) *TokenRepository {
	return &TokenRepository{Repository: repo}
}

// Create stores a new token
func (r *TokenRepository) Create(ctx context.Context, token *models.AccessToken) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(token).Error)
}

// GetByID retrieves a token and its owner by ID
func (r *TokenRepository) GetByID(ctx context.Context, id int64) (*models.AccessToken, error) {
	var token models.AccessToken
	found, err := first(r.db.WithContext(ctx).Preload("User").Where("id = ?", id), &token)
	if err != nil || !found {
		return nil, err
	}
	return &token, nil
}

// GetByHash retrieves a token and its owner by secret hash
func (r *TokenRepository) GetByHash(ctx context.Context, hash string) (*models.AccessToken, error) {
	var token models.AccessToken
	found, err := first(r.db.WithContext(ctx).Preload("User").Where("token = ?", hash), &token)
	if err != nil || !found {
		return nil, err
	}
	return &token, nil
}

// Delete revokes a token
func (r *TokenRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&models.AccessToken{}, id).Error
}

// CategoryRepository provides category database operations
type CategoryRepository struct {
	*Repository
}

// NewCategoryRepository creates a new category repository
func NewCategoryRepository(repo *Repository) *CategoryRepository {
	return &CategoryRepository{Repository: repo}
}

// withCount selects categories together with their active post count
func (r *CategoryRepository) withCount(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Category{}).Select(
		"categories.*, (SELECT COUNT(*) FROM posts WHERE posts.category_id = categories.id AND posts.deleted_at IS NULL) AS posts_count",
	)
}

// Create creates a new category
func (r *CategoryRepository) Create(ctx context.Context, category *models.Category) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(category).Error)
}

// Update writes the name, slug and description of category
func (r *CategoryRepository) Update(ctx context.Context, category *models.Category) error {
	err := r.db.WithContext(ctx).Model(category).
		Select("name", "slug", "description", "updated_at").
		Updates(category).Error
	return translate(err)
}

// Delete removes a category
func (r *CategoryRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&models.Category{}, id).Error
}

// List returns every category in creation order
func (r *CategoryRepository) List(ctx context.Context) ([]*models.Category, error) {
	var categories []*models.Category
	if err := r.withCount(ctx).Order("categories.id ASC").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// GetByID retrieves a category by ID
func (r *CategoryRepository) GetByID(ctx context.Context, id int64) (*models.Category, error) {
	var category models.Category
	found, err := first(r.withCount(ctx).Where("categories.id = ?", id), &category)
	if err != nil || !found {
		return nil, err
	}
	return &category, nil
}

// GetBySlug retrieves a category by slug
func (r *CategoryRepository) GetBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var category models.Category
	found, err := first(r.withCount(ctx).Where("categories.slug = ?", slug), &category)
	if err != nil || !found {
		return nil, err
	}
	return &category, nil
}

// NameExists reports whether another category uses name
func (r *CategoryRepository) NameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	return exists(r.db.WithContext(ctx).Model(&models.Category{}).Where("name = ? AND id <> ?", name, excludeID))
}

// SlugExists reports whether another category uses slug
func (r *CategoryRepository) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	return exists(r.db.WithContext(ctx).Model(&models.Category{}).Where("slug = ? AND id <> ?", slug, excludeID))
}

// CountPosts counts posts of a category, trashed ones included
func (r *CategoryRepository) CountPosts(ctx context.Context, id int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Unscoped().Model(&models.Post{}).Where("category_id = ?", id).Count(&n).Error
	return n, err
}

var (
	_ storage.UserRepository     = (*UserRepository)(nil)
	_ storage.TokenRepository    = (*TokenRepository)(nil)
	_ storage.CategoryRepository = (*CategoryRepository)(nil)
)
