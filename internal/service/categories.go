package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/inkwell/blog/internal/apperr"
	"github.com/inkwell/blog/internal/models"
	"github.com/inkwell/blog/internal/storage"
	"github.com/inkwell/blog/pkg/logging"
)

const (
	msgCategoryNotFound  = "Category not found"
	msgCategoryNameTaken = "A category with this name already exists"
	msgCategorySlugTaken = "A category with this slug already exists"
	msgCategoryInUse     = "Cannot delete category with existing posts"
)

// CategoryInput carries the fields of a category
type CategoryInput struct {
	Name        string  `json:"name" validate:"required,max=255,alphaspace"`
	Slug        string  `json:"slug" validate:"required,max=255,kebab"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

// UpdateCategoryInput carries the fields being changed
type UpdateCategoryInput struct {
	Name        Optional[string]
	Slug        Optional[string]
	Description Optional[*string]
}

// CategoryService manages categories. Any verified account may change them.
type CategoryService struct {
	categories storage.CategoryRepository
	posts      storage.PostRepository
	gate       *Gate
	validate   *Validator
	logger     *zap.Logger
}

// NewCategoryService creates a category service
func NewCategoryService(categories storage.CategoryRepository, posts storage.PostRepository, gate *Gate, v *Validator) *CategoryService {
	return &CategoryService{
		categories: categories,
		posts:      posts,
		gate:       gate,
		validate:   v,
		logger:     logging.WithComponent("category-service"),
	}
}

// List returns every category with its active post count
func (s *CategoryService) List(ctx context.Context) ([]*models.Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// Show returns a category with its newest active posts attached
func (s *CategoryService) Show(ctx context.Context, slug string) (*models.Category, error) {
	category, err := s.bySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	posts, _, err := s.posts.List(ctx,
		storage.PostFilter{CategoryID: category.ID, Order: storage.OrderCreatedDesc},
		storage.Page{Number: 1, Size: CategoryPostsLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to list posts of category %d: %w", category.ID, err)
	}
	category.Posts = make([]models.Post, len(posts))
	for i, p := range posts {
		category.Posts[i] = *p
	}
	return category, nil
}

// Create stores a new category
func (s *CategoryService) Create(ctx context.Context, who Identity, in CategoryInput) (*models.Category, error) {
	if err := s.gate.Mutate(who); err != nil {
		return nil, err
	}
	in.Name = trim(in.Name)
	in.Slug = trim(in.Slug)
	in.Description = trimPtr(in.Description)

	if err := s.check(ctx, &in, 0); err != nil {
		return nil, err
	}

	category := &models.Category{Name: in.Name, Slug: in.Slug, Description: nullString(in.Description)}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, s.writeError(err)
	}
	s.logger.Info("Category created", zap.Int64("category_id", category.ID), zap.String("slug", category.Slug))
	return s.byID(ctx, category.ID)
}

// Update changes the category identified by slug
func (s *CategoryService) Update(ctx context.Context, who Identity, slug string, in UpdateCategoryInput) (*models.Category, error) {
	if err := s.gate.Mutate(who); err != nil {
		return nil, err
	}
	category, err := s.bySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	fields := CategoryInput{Name: category.Name, Slug: category.Slug}
	if category.Description.Valid {
		d := category.Description.String
		fields.Description = &d
	}
	if in.Name.Set {
		fields.Name = trim(in.Name.Value)
	}
	if in.Slug.Set {
		fields.Slug = trim(in.Slug.Value)
	}
	if in.Description.Set {
		fields.Description = trimPtr(in.Description.Value)
	}

	if err := s.check(ctx, &fields, category.ID); err != nil {
		return nil, err
	}

	updated := *category
	updated.Posts = nil
	updated.Name = fields.Name
	updated.Slug = fields.Slug
	updated.Description = nullString(fields.Description)
	if err := s.categories.Update(ctx, &updated); err != nil {
		return nil, s.writeError(err)
	}
	return s.byID(ctx, category.ID)
}

// Delete removes a category that no post references, trashed posts included
func (s *CategoryService) Delete(ctx context.Context, who Identity, slug string) error {
	if err := s.gate.Mutate(who); err != nil {
		return err
	}
	category, err := s.bySlug(ctx, slug)
	if err != nil {
		return err
	}
	count, err := s.categories.CountPosts(ctx, category.ID)
	if err != nil {
		return fmt.Errorf("failed to count posts of category %d: %w", category.ID, err)
	}
	if count > 0 {
		return apperr.Conflict(msgCategoryInUse)
	}
	if err := s.categories.Delete(ctx, category.ID); err != nil {
		return fmt.Errorf("failed to delete category %d: %w", category.ID, err)
	}
	s.logger.Info("Category deleted", zap.Int64("category_id", category.ID))
	return nil
}

func (s *CategoryService) check(ctx context.Context, in *CategoryInput, excludeID int64) error {
	errs := s.validate.collect(in)
	if !errs.has("name") {
		taken, err := s.categories.NameExists(ctx, in.Name, excludeID)
		if err != nil {
			return fmt.Errorf("failed to check category name: %w", err)
		}
		if taken {
			errs.add("name", msgCategoryNameTaken)
		}
	}
	if !errs.has("slug") {
		taken, err := s.categories.SlugExists(ctx, in.Slug, excludeID)
		if err != nil {
			return fmt.Errorf("failed to check category slug: %w", err)
		}
		if taken {
			errs.add("slug", msgCategorySlugTaken)
		}
	}
	return errs.err()
}

// writeError maps a lost uniqueness race onto a conflict
func (s *CategoryService) writeError(err error) error {
	if errors.Is(err, apperr.ErrDuplicate) {
		return apperr.Conflict("A category with this name or slug already exists")
	}
	return fmt.Errorf("failed to save category: %w", err)
}

func (s *CategoryService) bySlug(ctx context.Context, slug string) (*models.Category, error) {
	category, err := s.categories.GetBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to load category %q: %w", slug, err)
	}
	if category == nil {
		return nil, apperr.NotFound(msgCategoryNotFound)
	}
	return category, nil
}

func (s *CategoryService) byID(ctx context.Context, id int64) (*models.Category, error) {
	category, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load category %d: %w", id, err)
	}
	if category == nil {
		return nil, apperr.NotFound(msgCategoryNotFound)
	}
	return category, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
