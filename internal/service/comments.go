package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/inkwell/blog/internal/apperr"
	"github.com/inkwell/blog/internal/models"
	"github.com/inkwell/blog/internal/storage"
	"github.com/inkwell/blog/pkg/logging"
)

const msgCommentNotFound = "Comment not found"

// CommentInput carries the body of a comment
type CommentInput struct {
	Content string `json:"content" validate:"required,min=3,max=1000"`
}

// CommentService manages comments on active posts
type CommentService struct {
	comments storage.CommentRepository
	posts    storage.PostRepository
	gate     *Gate
	validate *Validator
	logger   *zap.Logger
	now      func() time.Time
}

// NewCommentService creates a comment service
func NewCommentService(comments storage.CommentRepository, posts storage.PostRepository, gate *Gate, v *Validator) *CommentService {
	return &CommentService{
		comments: comments,
		posts:    posts,
		gate:     gate,
		validate: v,
		logger:   logging.WithComponent("comment-service"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// List returns the comments of an active post, newest first
func (s *CommentService) List(ctx context.Context, postSlug string, page PageRequest) (*Paginated[*models.Comment], error) {
	post, err := s.activePost(ctx, postSlug)
	if err != nil {
		return nil, err
	}
	p := page.resolve(CommentPages)
	comments, total, err := s.comments.ListByPost(ctx, post.ID, p)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments of post %d: %w", post.ID, err)
	}
	return newPaginated(comments, p, total), nil
}

// Create adds a comment by who to an active post
func (s *CommentService) Create(ctx context.Context, who Identity, postSlug string, in CommentInput) (*models.Comment, error) {
	if err := s.gate.Mutate(who); err != nil {
		return nil, err
	}
	post, err := s.activePost(ctx, postSlug)
	if err != nil {
		return nil, err
	}
	in.Content = trim(in.Content)
	if err := s.validate.Struct(&in); err != nil {
		return nil, err
	}

	comment := &models.Comment{PostID: post.ID, UserID: who.UserID, Content: in.Content}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to save comment: %w", err)
	}
	s.logger.Info("Comment created", zap.Int64("comment_id", comment.ID), zap.Int64("post_id", post.ID))
	return s.byID(ctx, comment.ID)
}

// Update replaces the content of a comment. Only its author may do so.
func (s *CommentService) Update(ctx context.Context, who Identity, id int64, in CommentInput) (*models.Comment, error) {
	if err := s.gate.Mutate(who); err != nil {
		return nil, err
	}
	comment, err := s.byID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Comment(who, ActionUpdateComment, comment, nil); err != nil {
		return nil, err
	}
	in.Content = trim(in.Content)
	if err := s.validate.Struct(&in); err != nil {
		return nil, err
	}

	updated := *comment
	updated.User, updated.Post = nil, nil
	updated.Content = in.Content
	if err := s.comments.Update(ctx, &updated); err != nil {
		return nil, fmt.Errorf("failed to update comment %d: %w", id, err)
	}
	return s.byID(ctx, id)
}

// Delete soft-deletes a comment. Its author and the parent post's author may do so.
func (s *CommentService) Delete(ctx context.Context, who Identity, id int64) error {
	if err := s.gate.Mutate(who); err != nil {
		return err
	}
	comment, err := s.byID(ctx, id)
	if err != nil {
		return err
	}
	parent, err := s.posts.GetByIDWithTrashed(ctx, comment.PostID)
	if err != nil {
		return fmt.Errorf("failed to load post %d: %w", comment.PostID, err)
	}
	if err := s.gate.Comment(who, ActionDeleteComment, comment, parent); err != nil {
		return err
	}
	if err := s.comments.SoftDelete(ctx, id, s.now()); err != nil {
		return fmt.Errorf("failed to delete comment %d: %w", id, err)
	}
	s.logger.Info("Comment deleted", zap.Int64("comment_id", id), zap.Int64("by", who.UserID))
	return nil
}

func (s *CommentService) activePost(ctx context.Context, slug string) (*models.Post, error) {
	post, err := s.posts.GetBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to load post %q: %w", slug, err)
	}
	if post == nil {
		return nil, apperr.NotFound(msgPostNotFound)
	}
	return post, nil
}

func (s *CommentService) byID(ctx context.Context, id int64) (*models.Comment, error) {
	comment, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load comment %d: %w", id, err)
	}
	if comment == nil {
		return nil, apperr.NotFound(msgCommentNotFound)
	}
	return comment, nil
}
