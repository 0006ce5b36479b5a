package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/inkwell/blog/internal/apperr"
	"github.com/inkwell/blog/internal/files"
	"github.com/inkwell/blog/internal/models"
	"github.com/inkwell/blog/internal/storage"
	"github.com/inkwell/blog/pkg/logging"
	"github.com/inkwell/blog/pkg/telemetry"
)

// maxSlugAttempts bounds the resolve-and-insert loop when a concurrent writer
// takes the slug between the existence check and the insert
const maxSlugAttempts = 2

const (
	msgPostNotFound   = "Post not found"
	msgTitleTaken     = "A post with this title already exists"
	msgSlugTaken      = "A post with this slug already exists"
	msgNoSuchCategory = "The selected category does not exist"
	msgBadPublishDate = "The publication date field must be a valid date."
)

// PostInput carries the fields of a new post
type PostInput struct {
	Title       string       `json:"title" validate:"required,max=255"`
	Content     string       `json:"content" validate:"required,min=50"`
	CategoryID  int64        `json:"category_id" validate:"required"`
	PublishedAt string       `json:"published_at"`
	Image       *files.Image `json:"-"`
}

// UpdatePostInput carries the fields being changed. Absent fields keep their
// value; an explicitly empty PublishedAt turns the post back into a draft.
type UpdatePostInput struct {
	Title       Optional[string]
	Content     Optional[string]
	CategoryID  Optional[int64]
	PublishedAt Optional[string]
	Image       *files.Image
}

// ListPostsInput filters the public post index
type ListPostsInput struct {
	UserID     int64
	CategoryID int64
	// Status is one of draft, scheduled, published, or empty for all
	Status string
	// Published is the legacy filter equivalent to Status "published"
	Published bool
	PageRequest
}

// PostService owns the post lifecycle
type PostService struct {
	posts      storage.PostRepository
	categories storage.CategoryRepository
	images     ImageStore
	slugs      *SlugResolver
	gate       *Gate
	validate   *Validator
	logger     *zap.Logger
	now        func() time.Time
}

// NewPostService creates a post service
func NewPostService(posts storage.PostRepository, categories storage.CategoryRepository, images ImageStore, gate *Gate, v *Validator) *PostService {
	return &PostService{
		posts:      posts,
		categories: categories,
		images:     images,
		slugs:      NewSlugResolver(posts),
		gate:       gate,
		validate:   v,
		logger:     logging.WithComponent("post-service"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Status derives the current status of post
func (s *PostService) Status(post *models.Post) models.Status {
	return StatusOf(post.PublishedAt, s.now())
}

// ImageURL returns the public URL of a stored image
func (s *PostService) ImageURL(name string) string {
	if s.images == nil {
		return ""
	}
	return s.images.URL(name)
}

// Index lists active posts, newest first
func (s *PostService) Index(ctx context.Context, in ListPostsInput) (*Paginated[*models.Post], error) {
	ctx, span := telemetry.StartSpan(ctx, "posts.index")
	defer span.End()

	filter := storage.PostFilter{
		UserID:     in.UserID,
		CategoryID: in.CategoryID,
		Scope:      storage.ScopeActive,
		Order:      storage.OrderCreatedDesc,
		Now:        s.now(),
	}
	switch {
	case trim(in.Status) != "":
		status, ok := ParseStatus(in.Status)
		if !ok {
			return nil, apperr.FieldError("status", messages["status.oneof"])
		}
		filter.Status = status
	case in.Published:
		filter.Status = models.StatusPublished
	}
	return s.list(ctx, filter, in.PageRequest.resolve(PostPages))
}

// Trashed lists the requester's soft-deleted posts, most recently deleted first
func (s *PostService) Trashed(ctx context.Context, who Identity, page PageRequest) (*Paginated[*models.Post], error) {
	return s.ownerListing(ctx, who, page, storage.PostFilter{Scope: storage.ScopeTrashed, Order: storage.OrderDeletedDesc})
}

// Drafts lists the requester's unpublished posts, most recently updated first
func (s *PostService) Drafts(ctx context.Context, who Identity, page PageRequest) (*Paginated[*models.Post], error) {
	return s.ownerListing(ctx, who, page, storage.PostFilter{Status: models.StatusDraft, Order: storage.OrderUpdatedDesc})
}

// Scheduled lists the requester's future posts, soonest first
func (s *PostService) Scheduled(ctx context.Context, who Identity, page PageRequest) (*Paginated[*models.Post], error) {
	return s.ownerListing(ctx, who, page, storage.PostFilter{Status: models.StatusScheduled, Order: storage.OrderPublishedAsc})
}

func (s *PostService) ownerListing(ctx context.Context, who Identity, page PageRequest, filter storage.PostFilter) (*Paginated[*models.Post], error) {
	if err := s.gate.Authenticate(who); err != nil {
		return nil, err
	}
	filter.UserID = who.UserID
	filter.Now = s.now()
	return s.list(ctx, filter, page.resolve(OwnerPages))
}

func (s *PostService) list(ctx context.Context, filter storage.PostFilter, page storage.Page) (*Paginated[*models.Post], error) {
	posts, total, err := s.posts.List(ctx, filter, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return newPaginated(posts, page, total), nil
}

// Show returns an active post by slug
func (s *PostService) Show(ctx context.Context, slug string) (*models.Post, error) {
	return s.activePost(ctx, slug)
}

// Create validates in and stores a new post owned by who
func (s *PostService) Create(ctx context.Context, who Identity, in PostInput) (*models.Post, error) {
	ctx, span := telemetry.StartSpan(ctx, "posts.create")
	defer span.End()

	if err := s.gate.Mutate(who); err != nil {
		return nil, err
	}

	in.Title = trim(in.Title)
	in.Content = trim(in.Content)

	errs := s.validate.collect(&in)
	if !errs.has("title") {
		if err := s.checkTitle(ctx, errs, in.Title, 0); err != nil {
			return nil, err
		}
	}
	if !errs.has("category_id") {
		if err := s.checkCategory(ctx, errs, in.CategoryID); err != nil {
			return nil, err
		}
	}
	publishedAt, perr := ParsePublishedAt(in.PublishedAt)
	if perr != nil {
		errs.add("published_at", msgBadPublishDate)
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	post := &models.Post{
		UserID:      who.UserID,
		CategoryID:  in.CategoryID,
		Title:       in.Title,
		Content:     in.Content,
		PublishedAt: publishedAt,
	}

	if in.Image != nil {
		name, err := s.saveImage(in.Image)
		if err != nil {
			return nil, err
		}
		post.FeaturedImage = sql.NullString{String: name, Valid: true}
	}

	if err := s.insert(ctx, post, true, s.posts.Create); err != nil {
		s.discardImage(post.FeaturedImage)
		return nil, err
	}

	s.logger.Info("Post created",
		zap.Int64("post_id", post.ID),
		zap.String("slug", post.Slug),
		zap.Int64("user_id", who.UserID),
	)
	return s.reload(ctx, post.ID)
}

// Update applies in to the active post identified by slug
func (s *PostService) Update(ctx context.Context, who Identity, slug string, in UpdatePostInput) (*models.Post, error) {
	ctx, span := telemetry.StartSpan(ctx, "posts.update")
	defer span.End()

	if err := s.gate.Mutate(who); err != nil {
		return nil, err
	}
	post, err := s.activePost(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Post(who, ActionUpdatePost, post); err != nil {
		return nil, err
	}

	fields := PostInput{Title: post.Title, Content: post.Content, CategoryID: post.CategoryID}
	if in.Title.Set {
		fields.Title = trim(in.Title.Value)
	}
	if in.Content.Set {
		fields.Content = trim(in.Content.Value)
	}
	if in.CategoryID.Set {
		fields.CategoryID = in.CategoryID.Value
	}

	errs := s.validate.collect(&fields)
	titleChanged := fields.Title != post.Title
	if titleChanged && !errs.has("title") {
		if err := s.checkTitle(ctx, errs, fields.Title, post.ID); err != nil {
			return nil, err
		}
	}
	if fields.CategoryID != post.CategoryID && !errs.has("category_id") {
		if err := s.checkCategory(ctx, errs, fields.CategoryID); err != nil {
			return nil, err
		}
	}
	publishedAt := post.PublishedAt
	if in.PublishedAt.Set {
		parsed, perr := ParsePublishedAt(in.PublishedAt.Value)
		if perr != nil {
			errs.add("published_at", msgBadPublishDate)
		}
		publishedAt = parsed
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	previousImage := post.FeaturedImage
	updated := *post
	updated.User, updated.Category = nil, nil
	updated.Title = fields.Title
	updated.Content = fields.Content
	updated.CategoryID = fields.CategoryID
	updated.PublishedAt = publishedAt

	if in.Image != nil {
		name, err := s.saveImage(in.Image)
		if err != nil {
			return nil, err
		}
		updated.FeaturedImage = sql.NullString{String: name, Valid: true}
	}

	if err := s.insert(ctx, &updated, titleChanged, s.posts.Update); err != nil {
		if in.Image != nil {
			s.discardImage(updated.FeaturedImage)
		}
		return nil, err
	}
	if in.Image != nil {
		s.discardImage(previousImage)
	}

	s.logger.Info("Post updated", zap.Int64("post_id", post.ID), zap.String("slug", updated.Slug))
	return s.reload(ctx, post.ID)
}

// Delete soft-deletes the active post identified by slug
func (s *PostService) Delete(ctx context.Context, who Identity, slug string) error {
	if err := s.gate.Mutate(who); err != nil {
		return err
	}
	post, err := s.activePost(ctx, slug)
	if err != nil {
		return err
	}
	if err := s.gate.Post(who, ActionDeletePost, post); err != nil {
		return err
	}
	if err := s.posts.SoftDelete(ctx, post.ID, s.now()); err != nil {
		return fmt.Errorf("failed to delete post %d: %w", post.ID, err)
	}
	s.logger.Info("Post trashed", zap.Int64("post_id", post.ID))
	return nil
}

// Restore brings a trashed post back. Posts that are not trashed are NotFound.
func (s *PostService) Restore(ctx context.Context, who Identity, slug string) (*models.Post, error) {
	if err := s.gate.Mutate(who); err != nil {
		return nil, err
	}
	post, err := s.anyPost(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Post(who, ActionRestorePost, post); err != nil {
		return nil, err
	}
	if !post.DeletedAt.Valid {
		return nil, apperr.NotFound("Post is not in the trash")
	}
	if err := s.posts.Restore(ctx, post.ID); err != nil {
		return nil, fmt.Errorf("failed to restore post %d: %w", post.ID, err)
	}
	s.logger.Info("Post restored", zap.Int64("post_id", post.ID))
	return s.reload(ctx, post.ID)
}

// ForceDelete permanently removes a post, trashed or not, with its comments and image
func (s *PostService) ForceDelete(ctx context.Context, who Identity, slug string) error {
	if err := s.gate.Mutate(who); err != nil {
		return err
	}
	post, err := s.anyPost(ctx, slug)
	if err != nil {
		return err
	}
	if err := s.gate.Post(who, ActionForceDeletePost, post); err != nil {
		return err
	}
	if err := s.posts.ForceDelete(ctx, post.ID); err != nil {
		return fmt.Errorf("failed to purge post %d: %w", post.ID, err)
	}
	s.discardImage(post.FeaturedImage)
	s.logger.Info("Post purged", zap.Int64("post_id", post.ID))
	return nil
}

// RemoveImage detaches and deletes the featured image of an active post
func (s *PostService) RemoveImage(ctx context.Context, who Identity, slug string) (*models.Post, error) {
	if err := s.gate.Mutate(who); err != nil {
		return nil, err
	}
	post, err := s.activePost(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Post(who, ActionRemoveImage, post); err != nil {
		return nil, err
	}
	if !post.FeaturedImage.Valid {
		return nil, apperr.NotFound("Post has no featured image")
	}

	previous := post.FeaturedImage
	updated := *post
	updated.User, updated.Category = nil, nil
	updated.FeaturedImage = sql.NullString{}
	if err := s.posts.Update(ctx, &updated); err != nil {
		return nil, fmt.Errorf("failed to update post %d: %w", post.ID, err)
	}
	s.discardImage(previous)
	return s.reload(ctx, post.ID)
}

// insert resolves the slug when requested and writes post, retrying once if
// the slug is taken concurrently
func (s *PostService) insert(ctx context.Context, post *models.Post, resolveSlug bool, write func(context.Context, *models.Post) error) error {
	for attempt := 1; ; attempt++ {
		if resolveSlug {
			slug, err := s.slugs.Resolve(ctx, post.Title, post.ID)
			if err != nil {
				return err
			}
			post.Slug = slug
		}

		err := write(ctx, post)
		if err == nil {
			return nil
		}
		if !errors.Is(err, apperr.ErrDuplicate) {
			return fmt.Errorf("failed to save post: %w", err)
		}

		taken, terr := s.posts.TitleExists(ctx, post.Title, post.ID)
		if terr != nil {
			return fmt.Errorf("failed to check title: %w", terr)
		}
		if taken {
			return apperr.FieldError("title", msgTitleTaken)
		}
		if !resolveSlug || attempt >= maxSlugAttempts {
			return apperr.Conflict(msgSlugTaken)
		}
		s.logger.Info("Slug taken concurrently, retrying", zap.String("slug", post.Slug), zap.Int("attempt", attempt))
	}
}

func (s *PostService) checkTitle(ctx context.Context, errs fieldErrors, title string, excludeID int64) error {
	if err := checkSluggable(title); err != nil {
		errs.add("title", apperr.As(err).Fields["title"][0])
		return nil
	}
	taken, err := s.posts.TitleExists(ctx, title, excludeID)
	if err != nil {
		return fmt.Errorf("failed to check title: %w", err)
	}
	if taken {
		errs.add("title", msgTitleTaken)
	}
	return nil
}

func (s *PostService) checkCategory(ctx context.Context, errs fieldErrors, id int64) error {
	category, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load category %d: %w", id, err)
	}
	if category == nil {
		errs.add("category_id", msgNoSuchCategory)
	}
	return nil
}

func (s *PostService) saveImage(img *files.Image) (string, error) {
	if s.images == nil {
		return "", errors.New("image storage is not configured")
	}
	name, err := s.images.Save(img)
	if err == nil {
		return name, nil
	}
	if msg, ok := imageMessage(err); ok {
		return "", apperr.FieldError("featured_image", msg)
	}
	return "", fmt.Errorf("failed to store image: %w", err)
}

func (s *PostService) discardImage(name sql.NullString) {
	if !name.Valid || s.images == nil {
		return
	}
	if err := s.images.Delete(name.String); err != nil {
		s.logger.Warn("Failed to delete image", zap.String("path", name.String), zap.Error(err))
	}
}

func imageMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, files.ErrNotImage):
		return "Featured image must be a valid image file", true
	case errors.Is(err, files.ErrUnsupportedType):
		return "Featured image must be a JPEG, PNG, JPG, or WebP file", true
	case errors.Is(err, files.ErrTooLarge):
		return "Featured image must not be larger than 2MB", true
	case errors.Is(err, files.ErrDimensions):
		return "Featured image must be between 300x200 and 2000x2000 pixels", true
	}
	return "", false
}

func (s *PostService) activePost(ctx context.Context, slug string) (*models.Post, error) {
	post, err := s.posts.GetBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to load post %q: %w", slug, err)
	}
	if post == nil {
		return nil, apperr.NotFound(msgPostNotFound)
	}
	return post, nil
}

func (s *PostService) anyPost(ctx context.Context, slug string) (*models.Post, error) {
	post, err := s.posts.GetBySlugWithTrashed(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to load post %q: %w", slug, err)
	}
	if post == nil {
		return nil, apperr.NotFound(msgPostNotFound)
	}
	return post, nil
}

func (s *PostService) reload(ctx context.Context, id int64) (*models.Post, error) {
	post, err := s.posts.GetByIDWithTrashed(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload post %d: %w", id, err)
	}
	if post == nil {
		return nil, apperr.NotFound(msgPostNotFound)
	}
	return post, nil
}
