package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/inkwell/blog/internal/models"
	"github.com/inkwell/blog/internal/service"
)

const (
	msgPostDeleted  = "Post deleted successfully"
	msgPostRestored = "Post restored successfully"
	msgPostPurged   = "Post permanently deleted"

	imageField = "featured_image"
)

// PostHandlers serves posts and their lifecycle transitions
type PostHandlers struct {
	posts *service.PostService
	view  presenter
}

func (h *PostHandlers) index(c *gin.Context) {
	in := service.ListPostsInput{
		Status:      c.Query("status"),
		PageRequest: pageRequest(c),
	}
	userID, err := queryInt(c, "user_id")
	if err != nil {
		fail(c, err)
		return
	}
	categoryID, err := queryInt(c, "category_id")
	if err != nil {
		fail(c, err)
		return
	}
	if userID != nil {
		in.UserID = int64(*userID)
	}
	if categoryID != nil {
		in.CategoryID = int64(*categoryID)
	}
	if raw := strings.TrimSpace(c.Query("published")); raw != "" {
		in.Published, _ = strconv.ParseBool(raw)
	}

	page, err := h.posts.Index(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	h.renderPage(c, page)
}

func (h *PostHandlers) trashed(c *gin.Context) {
	h.ownerListing(c, h.posts.Trashed)
}

func (h *PostHandlers) drafts(c *gin.Context) {
	h.ownerListing(c, h.posts.Drafts)
}

func (h *PostHandlers) scheduled(c *gin.Context) {
	h.ownerListing(c, h.posts.Scheduled)
}

type ownerListFunc func(ctx context.Context, who service.Identity, page service.PageRequest) (*service.Paginated[*models.Post], error)

func (h *PostHandlers) ownerListing(c *gin.Context, list ownerListFunc) {
	page, err := list(c.Request.Context(), identity(c), pageRequest(c))
	if err != nil {
		fail(c, err)
		return
	}
	h.renderPage(c, page)
}

func (h *PostHandlers) renderPage(c *gin.Context, page *service.Paginated[*models.Post]) {
	c.JSON(http.StatusOK, paginated(c, page, h.view.postList(page.Items)))
}

func (h *PostHandlers) show(c *gin.Context) {
	post, err := h.posts.Show(c.Request.Context(), c.Param("slug"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": h.view.post(post)})
}

func (h *PostHandlers) create(c *gin.Context) {
	f, err := readFields(c)
	if err != nil {
		fail(c, err)
		return
	}
	in := service.PostInput{
		Title:       f.str("title"),
		Content:     f.str("content"),
		PublishedAt: f.str("published_at"),
	}
	if in.CategoryID, err = f.id("category_id"); err != nil {
		fail(c, err)
		return
	}
	if in.Image, err = readImage(c, imageField); err != nil {
		fail(c, err)
		return
	}

	post, err := h.posts.Create(c.Request.Context(), identity(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": h.view.post(post)})
}

func (h *PostHandlers) update(c *gin.Context) {
	f, err := readFields(c)
	if err != nil {
		fail(c, err)
		return
	}
	in := service.UpdatePostInput{
		Title:       f.opt("title"),
		Content:     f.opt("content"),
		PublishedAt: f.opt("published_at"),
	}
	if f.has("category_id") {
		id, err := f.id("category_id")
		if err != nil {
			fail(c, err)
			return
		}
		in.CategoryID = service.Some(id)
	}
	if in.Image, err = readImage(c, imageField); err != nil {
		fail(c, err)
		return
	}

	post, err := h.posts.Update(c.Request.Context(), identity(c), c.Param("slug"), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": h.view.post(post)})
}

func (h *PostHandlers) destroy(c *gin.Context) {
	if err := h.posts.Delete(c.Request.Context(), identity(c), c.Param("slug")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msgPostDeleted})
}

func (h *PostHandlers) restore(c *gin.Context) {
	post, err := h.posts.Restore(c.Request.Context(), identity(c), c.Param("slug"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msgPostRestored, "data": h.view.post(post)})
}

func (h *PostHandlers) forceDelete(c *gin.Context) {
	if err := h.posts.ForceDelete(c.Request.Context(), identity(c), c.Param("slug")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msgPostPurged})
}

func (h *PostHandlers) removeImage(c *gin.Context) {
	post, err := h.posts.RemoveImage(c.Request.Context(), identity(c), c.Param("slug"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": h.view.post(post)})
}

// pathID parses a numeric route parameter. Malformed ids parse as 0, which
// never matches a row, so they fail the lookup after the access checks.
func pathID(c *gin.Context, name string) int64 {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 {
		return 0
	}
	return id
}
