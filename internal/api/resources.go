package api

import (
	"database/sql"
	"time"

	"github.com/inkwell/blog/internal/models"
	"github.com/inkwell/blog/internal/service"
)

// dateFormat is used for every timestamp rendered by a resource
const dateFormat = "2006-01-02 15:04:05"

func formatTime(t time.Time) string {
	return t.UTC().Format(dateFormat)
}

func formatNullTime(t sql.NullTime) *string {
	if !t.Valid {
		return nil
	}
	s := formatTime(t.Time)
	return &s
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

type authorJSON struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type categoryRefJSON struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type postJSON struct {
	ID               int64            `json:"id"`
	Title            string           `json:"title"`
	Slug             string           `json:"slug"`
	Content          string           `json:"content"`
	FeaturedImage    *string          `json:"featured_image"`
	FeaturedImageURL *string          `json:"featured_image_url"`
	PublishedAt      *string          `json:"published_at"`
	Status           models.Status    `json:"status"`
	StatusLabel      string           `json:"status_label"`
	IsPublished      bool             `json:"is_published"`
	IsDraft          bool             `json:"is_draft"`
	IsScheduled      bool             `json:"is_scheduled"`
	Author           *authorJSON      `json:"author"`
	Category         *categoryRefJSON `json:"category"`
	CreatedAt        string           `json:"created_at"`
	UpdatedAt        string           `json:"updated_at"`
	DeletedAt        *string          `json:"deleted_at,omitempty"`
}

type categoryJSON struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Slug        string      `json:"slug"`
	Description *string     `json:"description"`
	PostsCount  int64       `json:"posts_count"`
	Posts       *[]postJSON `json:"posts,omitempty"`
	CreatedAt   string      `json:"created_at"`
	UpdatedAt   string      `json:"updated_at"`
}

type commentUserJSON struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type commentJSON struct {
	ID        int64            `json:"id"`
	Content   string           `json:"content"`
	PostID    int64            `json:"post_id"`
	User      *commentUserJSON `json:"user"`
	CreatedAt string           `json:"created_at"`
	UpdatedAt string           `json:"updated_at"`
}

// userJSON is the account as shown to its owner
type userJSON struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Phone           string     `json:"phone"`
	EmailVerifiedAt *time.Time `json:"email_verified_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// presenter renders models with the post service's clock and image URLs
type presenter struct {
	posts *service.PostService
}

func (p presenter) post(post *models.Post) postJSON {
	status := p.posts.Status(post)
	out := postJSON{
		ID:            post.ID,
		Title:         post.Title,
		Slug:          post.Slug,
		Content:       post.Content,
		FeaturedImage: nullString(post.FeaturedImage),
		PublishedAt:   formatNullTime(post.PublishedAt),
		Status:        status,
		StatusLabel:   service.StatusLabel(status),
		IsPublished:   status == models.StatusPublished,
		IsDraft:       status == models.StatusDraft,
		IsScheduled:   status == models.StatusScheduled,
		CreatedAt:     formatTime(post.CreatedAt),
		UpdatedAt:     formatTime(post.UpdatedAt),
	}
	if post.FeaturedImage.Valid {
		url := p.posts.ImageURL(post.FeaturedImage.String)
		out.FeaturedImageURL = &url
	}
	if post.User != nil {
		out.Author = &authorJSON{ID: post.User.ID, Name: post.User.Name, Email: post.User.Email}
	}
	if post.Category != nil {
		out.Category = &categoryRefJSON{ID: post.Category.ID, Name: post.Category.Name, Slug: post.Category.Slug}
	}
	if post.DeletedAt.Valid {
		s := formatTime(post.DeletedAt.Time)
		out.DeletedAt = &s
	}
	return out
}

func (p presenter) postList(posts []*models.Post) []postJSON {
	out := make([]postJSON, len(posts))
	for i, post := range posts {
		out[i] = p.post(post)
	}
	return out
}

func (p presenter) category(c *models.Category) categoryJSON {
	out := categoryJSON{
		ID:          c.ID,
		Name:        c.Name,
		Slug:        c.Slug,
		Description: nullString(c.Description),
		PostsCount:  c.PostsCount,
		CreatedAt:   formatTime(c.CreatedAt),
		UpdatedAt:   formatTime(c.UpdatedAt),
	}
	if c.Posts != nil {
		posts := make([]postJSON, len(c.Posts))
		for i := range c.Posts {
			post := c.Posts[i]
			if post.Category == nil {
				post.Category = c
			}
			posts[i] = p.post(&post)
		}
		out.Posts = &posts
	}
	return out
}

func (p presenter) categoryList(categories []*models.Category) []categoryJSON {
	out := make([]categoryJSON, len(categories))
	for i, c := range categories {
		out[i] = p.category(c)
	}
	return out
}

func commentResource(c *models.Comment) commentJSON {
	out := commentJSON{
		ID:        c.ID,
		Content:   c.Content,
		PostID:    c.PostID,
		CreatedAt: formatTime(c.CreatedAt),
		UpdatedAt: formatTime(c.UpdatedAt),
	}
	if c.User != nil {
		out.User = &commentUserJSON{ID: c.User.ID, Name: c.User.Name}
	}
	return out
}

func commentList(comments []*models.Comment) []commentJSON {
	out := make([]commentJSON, len(comments))
	for i, c := range comments {
		out[i] = commentResource(c)
	}
	return out
}

func userResource(u *models.User) userJSON {
	out := userJSON{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		CreatedAt: u.CreatedAt.UTC(),
		UpdatedAt: u.UpdatedAt.UTC(),
	}
	if u.EmailVerifiedAt.Valid {
		t := u.EmailVerifiedAt.Time.UTC()
		out.EmailVerifiedAt = &t
	}
	return out
}
