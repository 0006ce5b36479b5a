// Package storagetest holds a behavioural suite shared by every storage backend
package storagetest

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell/blog/internal/apperr"
	"github.com/inkwell/blog/internal/models"
	"github.com/inkwell/blog/internal/storage"
)

// Repos is one backend's set of repositories over an empty database
type Repos struct {
	Users      storage.UserRepository
	Tokens     storage.TokenRepository
	Categories storage.CategoryRepository
	Posts      storage.PostRepository
	Comments   storage.CommentRepository
}

// Run exercises the storage contracts against fresh repositories from open
func Run(t *testing.T, open func(t *testing.T) Repos) {
	t.Run("users", func(t *testing.T) { testUsers(t, open(t)) })
	t.Run("tokens", func(t *testing.T) { testTokens(t, open(t)) })
	t.Run("categories", func(t *testing.T) { testCategories(t, open(t)) })
	t.Run("post uniqueness", func(t *testing.T) { testPostUniqueness(t, open(t)) })
	t.Run("post lifecycle", func(t *testing.T) { testPostLifecycle(t, open(t)) })
	t.Run("post listing", func(t *testing.T) { testPostListing(t, open(t)) })
	t.Run("comments", func(t *testing.T) { testComments(t, open(t)) })
}

type fixture struct {
	t   *testing.T
	ctx context.Context
	r   Repos
}

func (f fixture) user(email string) *models.User {
	f.t.Helper()
	u := &models.User{Name: "Writer", Email: email, Phone: "+256779901499", Password: "hash"}
	require.NoError(f.t, f.r.Users.Create(f.ctx, u))
	require.NotZero(f.t, u.ID)
	return u
}

func (f fixture) category(name, slug string) *models.Category {
	f.t.Helper()
	c := &models.Category{Name: name, Slug: slug}
	require.NoError(f.t, f.r.Categories.Create(f.ctx, c))
	return c
}

func (f fixture) post(userID, categoryID int64, title, slug string, publishedAt sql.NullTime) *models.Post {
	f.t.Helper()
	p := &models.Post{
		UserID:      userID,
		CategoryID:  categoryID,
		Title:       title,
		Slug:        slug,
		Content:     "body",
		PublishedAt: publishedAt,
	}
	require.NoError(f.t, f.r.Posts.Create(f.ctx, p))
	return p
}

func at(t time.Time) sql.NullTime { return sql.NullTime{Time: t, Valid: true} }

func isDuplicate(err error) bool { return errors.Is(err, apperr.ErrDuplicate) }

func testUsers(t *testing.T, r Repos) {
	f := fixture{t, context.Background(), r}
	u := f.user("ada@example.com")

	got, err := r.Users.GetByEmail(f.ctx, "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)

	missing, err := r.Users.GetByEmail(f.ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	missing, err = r.Users.GetByID(f.ctx, u.ID+100)
	require.NoError(t, err)
	assert.Nil(t, missing)

	err = r.Users.Create(f.ctx, &models.User{Name: "Dup", Email: "ada@example.com", Phone: "+1", Password: "x"})
	assert.True(t, isDuplicate(err), "got %v", err)

	got.EmailVerifiedAt = at(time.Now().UTC())
	got.VerificationCode = sql.NullString{}
	require.NoError(t, r.Users.Update(f.ctx, got))
	reloaded, err := r.Users.GetByID(f.ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.EmailVerifiedAt.Valid)
}

func testTokens(t *testing.T, r Repos) {
	f := fixture{t, context.Background(), r}
	u := f.user("ada@example.com")

	tok := &models.AccessToken{UserID: u.ID, Name: "auth_token", TokenHash: "abc123"}
	require.NoError(t, r.Tokens.Create(f.ctx, tok))

	byHash, err := r.Tokens.GetByHash(f.ctx, "abc123")
	require.NoError(t, err)
	require.NotNil(t, byHash)
	assert.Equal(t, tok.ID, byHash.ID)
	require.NotNil(t, byHash.User)
	assert.Equal(t, u.Email, byHash.User.Email)

	byID, err := r.Tokens.GetByID(f.ctx, tok.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "abc123", byID.TokenHash)

	err = r.Tokens.Create(f.ctx, &models.AccessToken{UserID: u.ID, Name: "auth_token", TokenHash: "abc123"})
	assert.True(t, isDuplicate(err), "got %v", err)

	require.NoError(t, r.Tokens.Delete(f.ctx, tok.ID))
	gone, err := r.Tokens.GetByHash(f.ctx, "abc123")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func testCategories(t *testing.T, r Repos) {
	f := fixture{t, context.Background(), r}
	u := f.user("ada@example.com")
	tech := f.category("Tech", "tech")
	f.category("Travel", "travel")

	assert.True(t, isDuplicate(r.Categories.Create(f.ctx, &models.Category{Name: "Tech", Slug: "other"})))
	assert.True(t, isDuplicate(r.Categories.Create(f.ctx, &models.Category{Name: "Other", Slug: "tech"})))

	taken, err := r.Categories.NameExists(f.ctx, "Tech", 0)
	require.NoError(t, err)
	assert.True(t, taken)
	taken, err = r.Categories.NameExists(f.ctx, "Tech", tech.ID)
	require.NoError(t, err)
	assert.False(t, taken, "a category does not collide with itself")
	taken, err = r.Categories.SlugExists(f.ctx, "travel", tech.ID)
	require.NoError(t, err)
	assert.True(t, taken)

	f.post(u.ID, tech.ID, "One", "one", sql.NullTime{})
	two := f.post(u.ID, tech.ID, "Two", "two", sql.NullTime{})
	require.NoError(t, r.Posts.SoftDelete(f.ctx, two.ID, time.Now().UTC()))

	got, err := r.Categories.GetBySlug(f.ctx, "tech")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.EqualValues(t, 1, got.PostsCount, "trashed posts are not counted")

	all, err := r.Categories.List(f.ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Tech", all[0].Name)
	assert.EqualValues(t, 1, all[0].PostsCount)
	assert.EqualValues(t, 0, all[1].PostsCount)

	n, err := r.Categories.CountPosts(f.ctx, tech.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n, "trashed posts still reference the category")

	got.Description = sql.NullString{String: "Gadgets", Valid: true}
	require.NoError(t, r.Categories.Update(f.ctx, got))
	byID, err := r.Categories.GetByID(f.ctx, tech.ID)
	require.NoError(t, err)
	assert.Equal(t, "Gadgets", byID.Description.String)

	travel, err := r.Categories.GetBySlug(f.ctx, "travel")
	require.NoError(t, err)
	require.NoError(t, r.Categories.Delete(f.ctx, travel.ID))
	gone, err := r.Categories.GetBySlug(f.ctx, "travel")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func testPostUniqueness(t *testing.T, r Repos) {
	f := fixture{t, context.Background(), r}
	u := f.user("ada@example.com")
	c := f.category("Tech", "tech")
	p := f.post(u.ID, c.ID, "Hello World", "hello-world", sql.NullTime{})
	require.NoError(t, r.Posts.SoftDelete(f.ctx, p.ID, time.Now().UTC()))

	err := r.Posts.Create(f.ctx, &models.Post{UserID: u.ID, CategoryID: c.ID, Title: "Hello World", Slug: "other", Content: "x"})
	assert.True(t, isDuplicate(err), "trashed titles stay reserved, got %v", err)
	err = r.Posts.Create(f.ctx, &models.Post{UserID: u.ID, CategoryID: c.ID, Title: "Other", Slug: "hello-world", Content: "x"})
	assert.True(t, isDuplicate(err), "trashed slugs stay reserved, got %v", err)

	exists, err := r.Posts.SlugExists(f.ctx, "hello-world", 0)
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = r.Posts.SlugExists(f.ctx, "hello-world", p.ID)
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = r.Posts.TitleExists(f.ctx, "Hello World", 0)
	require.NoError(t, err)
	assert.True(t, exists)
}

func testPostLifecycle(t *testing.T, r Repos) {
	f := fixture{t, context.Background(), r}
	u := f.user("ada@example.com")
	c := f.category("Tech", "tech")
	p := f.post(u.ID, c.ID, "Hello", "hello", sql.NullTime{})

	got, err := r.Posts.GetBySlug(f.ctx, "hello")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.User)
	require.NotNil(t, got.Category)
	assert.Equal(t, u.Email, got.User.Email)
	assert.Equal(t, "tech", got.Category.Slug)

	got.Content = "changed"
	got.FeaturedImage = sql.NullString{String: "posts/a.png", Valid: true}
	require.NoError(t, r.Posts.Update(f.ctx, got))

	deletedAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, r.Posts.SoftDelete(f.ctx, p.ID, deletedAt))

	hidden, err := r.Posts.GetBySlug(f.ctx, "hello")
	require.NoError(t, err)
	assert.Nil(t, hidden)

	trashed, err := r.Posts.GetBySlugWithTrashed(f.ctx, "hello")
	require.NoError(t, err)
	require.NotNil(t, trashed)
	assert.True(t, trashed.DeletedAt.Valid)
	assert.True(t, deletedAt.Equal(trashed.DeletedAt.Time))
	assert.Equal(t, "changed", trashed.Content)
	assert.Equal(t, "posts/a.png", trashed.FeaturedImage.String)

	// a copy loaded before the delete must not bring the post back
	got.Content = "stale"
	require.NoError(t, r.Posts.Update(f.ctx, got))
	still, err := r.Posts.GetBySlugWithTrashed(f.ctx, "hello")
	require.NoError(t, err)
	require.NotNil(t, still)
	assert.True(t, still.DeletedAt.Valid)
	assert.Equal(t, "changed", still.Content)

	require.NoError(t, r.Posts.Restore(f.ctx, p.ID))
	restored, err := r.Posts.GetBySlug(f.ctx, "hello")
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.False(t, restored.DeletedAt.Valid)

	comment := &models.Comment{PostID: p.ID, UserID: u.ID, Content: "nice"}
	require.NoError(t, r.Comments.Create(f.ctx, comment))

	require.NoError(t, r.Posts.SoftDelete(f.ctx, p.ID, time.Now().UTC()))
	require.NoError(t, r.Posts.ForceDelete(f.ctx, p.ID))

	purged, err := r.Posts.GetByIDWithTrashed(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, purged)
	orphan, err := r.Comments.GetByID(f.ctx, comment.ID)
	require.NoError(t, err)
	assert.Nil(t, orphan, "comments go with their post")

	n, err := r.Categories.CountPosts(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testPostListing(t *testing.T, r Repos) {
	f := fixture{t, context.Background(), r}
	ada := f.user("ada@example.com")
	bob := f.user("bob@example.com")
	tech := f.category("Tech", "tech")
	travel := f.category("Travel", "travel")

	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	draft := f.post(ada.ID, tech.ID, "Draft", "draft", sql.NullTime{})
	soon := f.post(ada.ID, tech.ID, "Soon", "soon", at(now.Add(2*time.Hour)))
	sooner := f.post(ada.ID, travel.ID, "Sooner", "sooner", at(now.Add(time.Hour)))
	live := f.post(bob.ID, tech.ID, "Live", "live", at(now.Add(-time.Hour)))
	gone := f.post(ada.ID, tech.ID, "Gone", "gone", at(now.Add(-time.Hour)))
	require.NoError(t, r.Posts.SoftDelete(f.ctx, gone.ID, now))

	slugs := func(filter storage.PostFilter, page storage.Page) ([]string, int64) {
		t.Helper()
		posts, total, err := r.Posts.List(f.ctx, filter, page)
		require.NoError(t, err)
		out := make([]string, len(posts))
		for i, p := range posts {
			out[i] = p.Slug
		}
		return out, total
	}
	all := storage.Page{Number: 1, Size: 50}

	got, total := slugs(storage.PostFilter{Now: now}, all)
	assert.EqualValues(t, 4, total)
	assert.Equal(t, []string{live.Slug, sooner.Slug, soon.Slug, draft.Slug}, got, "newest first")

	got, _ = slugs(storage.PostFilter{Status: models.StatusPublished, Now: now}, all)
	assert.Equal(t, []string{"live"}, got)

	got, _ = slugs(storage.PostFilter{Status: models.StatusDraft, Now: now}, all)
	assert.Equal(t, []string{"draft"}, got)

	got, _ = slugs(storage.PostFilter{UserID: ada.ID, Status: models.StatusScheduled, Order: storage.OrderPublishedAsc, Now: now}, all)
	assert.Equal(t, []string{"sooner", "soon"}, got, "soonest first")

	got, _ = slugs(storage.PostFilter{CategoryID: travel.ID, Now: now}, all)
	assert.Equal(t, []string{"sooner"}, got)

	got, _ = slugs(storage.PostFilter{UserID: ada.ID, Scope: storage.ScopeTrashed, Order: storage.OrderDeletedDesc, Now: now}, all)
	assert.Equal(t, []string{"gone"}, got)

	got, total = slugs(storage.PostFilter{Now: now}, storage.Page{Number: 2, Size: 3})
	assert.EqualValues(t, 4, total)
	assert.Equal(t, []string{"draft"}, got)

	got, _ = slugs(storage.PostFilter{Now: now}, storage.Page{Number: 5, Size: 3})
	assert.Empty(t, got)

	got, total = slugs(storage.PostFilter{Now: now}, storage.Page{Number: math.MaxInt / 3, Size: 3})
	assert.EqualValues(t, 4, total)
	assert.Empty(t, got)

	draft.User, draft.Category = nil, nil
	draft.Content = "edited"
	require.NoError(t, r.Posts.Update(f.ctx, draft))
	got, _ = slugs(storage.PostFilter{UserID: ada.ID, Order: storage.OrderUpdatedDesc, Now: now}, storage.Page{Number: 1, Size: 1})
	assert.Equal(t, []string{"draft"}, got, "recently updated first")
}

func testComments(t *testing.T, r Repos) {
	f := fixture{t, context.Background(), r}
	u := f.user("ada@example.com")
	c := f.category("Tech", "tech")
	p := f.post(u.ID, c.ID, "Hello", "hello", sql.NullTime{})

	var ids []int64
	for _, body := range []string{"first", "second", "third"} {
		comment := &models.Comment{PostID: p.ID, UserID: u.ID, Content: body}
		require.NoError(t, r.Comments.Create(f.ctx, comment))
		ids = append(ids, comment.ID)
	}

	list, total, err := r.Comments.ListByPost(f.ctx, p.ID, storage.Page{Number: 1, Size: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, list, 2)
	assert.Equal(t, "third", list[0].Content)
	require.NotNil(t, list[0].User)
	assert.Equal(t, u.Email, list[0].User.Email)

	got, err := r.Comments.GetByID(f.ctx, ids[0])
	require.NoError(t, err)
	got.User = nil
	got.Content = "edited"
	require.NoError(t, r.Comments.Update(f.ctx, got))
	got, err = r.Comments.GetByID(f.ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Content)

	require.NoError(t, r.Comments.SoftDelete(f.ctx, ids[1], time.Now().UTC()))
	gone, err := r.Comments.GetByID(f.ctx, ids[1])
	require.NoError(t, err)
	assert.Nil(t, gone)

	_, total, err = r.Comments.ListByPost(f.ctx, p.ID, storage.Page{Number: 1, Size: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}
