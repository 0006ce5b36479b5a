// Package inmemory implements the storage contracts on top of maps guarded by
// a single RWMutex. It enforces the same unique constraints as the SQL schema.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/inkwell/blog/internal/apperr"
	"github.com/inkwell/blog/internal/models"
	"github.com/inkwell/blog/internal/storage"
)

// Store holds every table in memory
type Store struct {
	mu         sync.RWMutex
	users      map[int64]*models.User
	tokens     map[int64]*models.AccessToken
	categories map[int64]*models.Category
	posts      map[int64]*models.Post
	comments   map[int64]*models.Comment
	nextID     int64

	// Now stamps created_at/updated_at; replaceable in tests
	Now func() time.Time
}

// New creates an empty in-memory store
func New() *Store {
	return &Store{
		users:      make(map[int64]*models.User),
		tokens:     make(map[int64]*models.AccessToken),
		categories: make(map[int64]*models.Category),
		posts:      make(map[int64]*models.Post),
		comments:   make(map[int64]*models.Comment),
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

// Users returns the user repository view
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// Tokens returns the token repository view
func (s *Store) Tokens() *TokenRepository { return &TokenRepository{s: s} }

// Categories returns the category repository view
func (s *Store) Categories() *CategoryRepository { return &CategoryRepository{s: s} }

// Posts returns the post repository view
func (s *Store) Posts() *PostRepository { return &PostRepository{s: s} }

// Comments returns the comment repository view
func (s *Store) Comments() *CommentRepository { return &CommentRepository{s: s} }

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func duplicate(what string) error {
	return fmt.Errorf("%s: %w", what, apperr.ErrDuplicate)
}

func paginate[T any](items []T, page storage.Page) []T {
	start := page.Offset()
	if start < 0 || start >= len(items) {
		return []T{}
	}
	end := len(items)
	if page.Size > 0 && page.Size < end-start {
		end = start + page.Size
	}
	return items[start:end]
}

// === Users ===

// UserRepository implements storage.UserRepository
type UserRepository struct{ s *Store }

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.Email == user.Email {
			return duplicate("users.email")
		}
	}
	now := r.s.Now()
	user.ID = r.s.id()
	user.CreatedAt, user.UpdatedAt = now, now
	cp := *user
	r.s.users[user.ID] = &cp
	return nil
}

func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[user.ID]; !ok {
		return fmt.Errorf("user %d not found", user.ID)
	}
	for _, u := range r.s.users {
		if u.ID != user.ID && u.Email == user.Email {
			return duplicate("users.email")
		}
	}
	user.UpdatedAt = r.s.Now()
	cp := *user
	r.s.users[user.ID] = &cp
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.s.user(id), nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) user(id int64) *models.User {
	u, ok := s.users[id]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

// === Tokens ===

// TokenRepository implements storage.TokenRepository
type TokenRepository struct{ s *Store }

func (r *TokenRepository) Create(ctx context.Context, token *models.AccessToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, t := range r.s.tokens {
		if t.TokenHash == token.TokenHash {
			return duplicate("personal_access_tokens.token")
		}
	}
	now := r.s.Now()
	token.ID = r.s.id()
	token.CreatedAt, token.UpdatedAt = now, now
	cp := *token
	cp.User = nil
	r.s.tokens[token.ID] = &cp
	return nil
}

func (r *TokenRepository) GetByID(ctx context.Context, id int64) (*models.AccessToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.tokens[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	cp.User = r.s.user(t.UserID)
	return &cp, nil
}

func (r *TokenRepository) GetByHash(ctx context.Context, hash string) (*models.AccessToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, t := range r.s.tokens {
		if t.TokenHash == hash {
			cp := *t
			cp.User = r.s.user(t.UserID)
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *TokenRepository) Delete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.tokens, id)
	return nil
}

// === Categories ===

// CategoryRepository implements storage.CategoryRepository
type CategoryRepository struct{ s *Store }

func (r *CategoryRepository) Create(ctx context.Context, category *models.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.checkCategoryUnique(category); err != nil {
		return err
	}
	now := r.s.Now()
	category.ID = r.s.id()
	category.CreatedAt, category.UpdatedAt = now, now
	r.s.categories[category.ID] = stripCategory(category)
	return nil
}

func (r *CategoryRepository) Update(ctx context.Context, category *models.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.categories[category.ID]; !ok {
		return fmt.Errorf("category %d not found", category.ID)
	}
	if err := r.s.checkCategoryUnique(category); err != nil {
		return err
	}
	category.UpdatedAt = r.s.Now()
	r.s.categories[category.ID] = stripCategory(category)
	return nil
}

func (r *CategoryRepository) Delete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, p := range r.s.posts {
		if p.CategoryID == id {
			return fmt.Errorf("category %d is referenced by posts", id)
		}
	}
	delete(r.s.categories, id)
	return nil
}

func (r *CategoryRepository) List(ctx context.Context) ([]*models.Category, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*models.Category, 0, len(r.s.categories))
	for id := range r.s.categories {
		out = append(out, r.s.categoryWithCount(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *CategoryRepository) GetByID(ctx context.Context, id int64) (*models.Category, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if _, ok := r.s.categories[id]; !ok {
		return nil, nil
	}
	return r.s.categoryWithCount(id), nil
}

func (r *CategoryRepository) GetBySlug(ctx context.Context, slug string) (*models.Category, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for id, c := range r.s.categories {
		if c.Slug == slug {
			return r.s.categoryWithCount(id), nil
		}
	}
	return nil, nil
}

func (r *CategoryRepository) NameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, c := range r.s.categories {
		if c.ID != excludeID && c.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (r *CategoryRepository) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, c := range r.s.categories {
		if c.ID != excludeID && c.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (r *CategoryRepository) CountPosts(ctx context.Context, id int64) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var n int64
	for _, p := range r.s.posts {
		if p.CategoryID == id {
			n++
		}
	}
	return n, nil
}

func (s *Store) checkCategoryUnique(category *models.Category) error {
	for _, c := range s.categories {
		if c.ID == category.ID {
			continue
		}
		if c.Name == category.Name {
			return duplicate("categories.name")
		}
		if c.Slug == category.Slug {
			return duplicate("categories.slug")
		}
	}
	return nil
}

func stripCategory(category *models.Category) *models.Category {
	cp := *category
	cp.Posts = nil
	cp.PostsCount = 0
	return &cp
}

func (s *Store) category(id int64) *models.Category {
	c, ok := s.categories[id]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

func (s *Store) categoryWithCount(id int64) *models.Category {
	c := s.category(id)
	for _, p := range s.posts {
		if p.CategoryID == id && !p.DeletedAt.Valid {
			c.PostsCount++
		}
	}
	return c
}

// === Posts ===

// PostRepository implements storage.PostRepository
type PostRepository struct{ s *Store }

func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.checkPostUnique(post); err != nil {
		return err
	}
	if _, ok := r.s.categories[post.CategoryID]; !ok {
		return fmt.Errorf("category %d does not exist", post.CategoryID)
	}
	now := r.s.Now()
	post.ID = r.s.id()
	post.CreatedAt, post.UpdatedAt = now, now
	r.s.posts[post.ID] = stripPost(post)
	return nil
}

func (r *PostRepository) Update(ctx context.Context, post *models.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.posts[post.ID]
	if !ok {
		return fmt.Errorf("post %d not found", post.ID)
	}
	// trashed rows are left alone, like the soft-delete scope on the gorm side
	if stored.DeletedAt.Valid {
		return nil
	}
	if err := r.s.checkPostUnique(post); err != nil {
		return err
	}
	post.CreatedAt, post.DeletedAt = stored.CreatedAt, stored.DeletedAt
	post.UpdatedAt = r.s.Now()
	r.s.posts[post.ID] = stripPost(post)
	return nil
}

func (r *PostRepository) GetBySlug(ctx context.Context, slug string) (*models.Post, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, p := range r.s.posts {
		if p.Slug == slug && !p.DeletedAt.Valid {
			return r.s.postWithRelations(p), nil
		}
	}
	return nil, nil
}

func (r *PostRepository) GetBySlugWithTrashed(ctx context.Context, slug string) (*models.Post, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, p := range r.s.posts {
		if p.Slug == slug {
			return r.s.postWithRelations(p), nil
		}
	}
	return nil, nil
}

func (r *PostRepository) GetByIDWithTrashed(ctx context.Context, id int64) (*models.Post, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.posts[id]
	if !ok {
		return nil, nil
	}
	return r.s.postWithRelations(p), nil
}

func (r *PostRepository) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, p := range r.s.posts {
		if p.ID != excludeID && p.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (r *PostRepository) TitleExists(ctx context.Context, title string, excludeID int64) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, p := range r.s.posts {
		if p.ID != excludeID && p.Title == title {
			return true, nil
		}
	}
	return false, nil
}

func (r *PostRepository) List(ctx context.Context, filter storage.PostFilter, page storage.Page) ([]*models.Post, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var matched []*models.Post
	for _, p := range r.s.posts {
		if matchesPost(p, filter) {
			matched = append(matched, p)
		}
	}
	sortPosts(matched, filter.Order)

	window := paginate(matched, page)
	out := make([]*models.Post, len(window))
	for i, p := range window {
		out[i] = r.s.postWithRelations(p)
	}
	return out, int64(len(matched)), nil
}

func (r *PostRepository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.posts[id]
	if !ok || p.DeletedAt.Valid {
		return nil
	}
	p.DeletedAt = gorm.DeletedAt{Time: at, Valid: true}
	return nil
}

func (r *PostRepository) Restore(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if p, ok := r.s.posts[id]; ok {
		p.DeletedAt = gorm.DeletedAt{}
		p.UpdatedAt = r.s.Now()
	}
	return nil
}

func (r *PostRepository) ForceDelete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for cid, c := range r.s.comments {
		if c.PostID == id {
			delete(r.s.comments, cid)
		}
	}
	delete(r.s.posts, id)
	return nil
}

func (s *Store) checkPostUnique(post *models.Post) error {
	for _, p := range s.posts {
		if p.ID == post.ID {
			continue
		}
		if p.Title == post.Title {
			return duplicate("posts.title")
		}
		if p.Slug == post.Slug {
			return duplicate("posts.slug")
		}
	}
	return nil
}

func matchesPost(p *models.Post, f storage.PostFilter) bool {
	switch f.Scope {
	case storage.ScopeTrashed:
		if !p.DeletedAt.Valid {
			return false
		}
	default:
		if p.DeletedAt.Valid {
			return false
		}
	}
	if f.UserID != 0 && p.UserID != f.UserID {
		return false
	}
	if f.CategoryID != 0 && p.CategoryID != f.CategoryID {
		return false
	}
	switch f.Status {
	case models.StatusDraft:
		return !p.PublishedAt.Valid
	case models.StatusScheduled:
		return p.PublishedAt.Valid && p.PublishedAt.Time.After(f.Now)
	case models.StatusPublished:
		return p.PublishedAt.Valid && !p.PublishedAt.Time.After(f.Now)
	}
	return true
}

func sortPosts(posts []*models.Post, order storage.PostOrder) {
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := posts[i], posts[j]
		var ta, tb time.Time
		switch order {
		case storage.OrderUpdatedDesc:
			ta, tb = a.UpdatedAt, b.UpdatedAt
		case storage.OrderDeletedDesc:
			ta, tb = a.DeletedAt.Time, b.DeletedAt.Time
		case storage.OrderPublishedAsc:
			if !a.PublishedAt.Time.Equal(b.PublishedAt.Time) {
				return a.PublishedAt.Time.Before(b.PublishedAt.Time)
			}
			return a.ID < b.ID
		default:
			ta, tb = a.CreatedAt, b.CreatedAt
		}
		if !ta.Equal(tb) {
			return ta.After(tb)
		}
		return a.ID > b.ID
	})
}

func stripPost(post *models.Post) *models.Post {
	cp := *post
	cp.User = nil
	cp.Category = nil
	return &cp
}

func (s *Store) postWithRelations(p *models.Post) *models.Post {
	cp := *p
	cp.User = s.user(p.UserID)
	cp.Category = s.category(p.CategoryID)
	return &cp
}

// === Comments ===

// CommentRepository implements storage.CommentRepository
type CommentRepository struct{ s *Store }

func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.posts[comment.PostID]; !ok {
		return fmt.Errorf("post %d does not exist", comment.PostID)
	}
	now := r.s.Now()
	comment.ID = r.s.id()
	comment.CreatedAt, comment.UpdatedAt = now, now
	r.s.comments[comment.ID] = stripComment(comment)
	return nil
}

func (r *CommentRepository) Update(ctx context.Context, comment *models.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.comments[comment.ID]; !ok {
		return fmt.Errorf("comment %d not found", comment.ID)
	}
	comment.UpdatedAt = r.s.Now()
	r.s.comments[comment.ID] = stripComment(comment)
	return nil
}

func (r *CommentRepository) GetByID(ctx context.Context, id int64) (*models.Comment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.comments[id]
	if !ok || c.DeletedAt.Valid {
		return nil, nil
	}
	return r.s.commentWithUser(c), nil
}

func (r *CommentRepository) ListByPost(ctx context.Context, postID int64, page storage.Page) ([]*models.Comment, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var matched []*models.Comment
	for _, c := range r.s.comments {
		if c.PostID == postID && !c.DeletedAt.Valid {
			matched = append(matched, c)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	window := paginate(matched, page)
	out := make([]*models.Comment, len(window))
	for i, c := range window {
		out[i] = r.s.commentWithUser(c)
	}
	return out, int64(len(matched)), nil
}

func (r *CommentRepository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if c, ok := r.s.comments[id]; ok && !c.DeletedAt.Valid {
		c.DeletedAt = gorm.DeletedAt{Time: at, Valid: true}
	}
	return nil
}

func stripComment(comment *models.Comment) *models.Comment {
	cp := *comment
	cp.User = nil
	cp.Post = nil
	return &cp
}

func (s *Store) commentWithUser(c *models.Comment) *models.Comment {
	cp := *c
	cp.User = s.user(c.UserID)
	return &cp
}

var (
	_ storage.UserRepository     = (*UserRepository)(nil)
	_ storage.TokenRepository    = (*TokenRepository)(nil)
	_ storage.CategoryRepository = (*CategoryRepository)(nil)
	_ storage.PostRepository     = (*PostRepository)(nil)
	_ storage.CommentRepository  = (*CommentRepository)(nil)
)
