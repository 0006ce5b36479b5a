package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/inkwell/blog/internal/service"
)

const msgCommentDeleted = "Comment deleted successfully"

// CommentHandlers serves comments on posts
type CommentHandlers struct {
	comments *service.CommentService
}

func (h *CommentHandlers) index(c *gin.Context) {
	page, err := h.comments.List(c.Request.Context(), c.Param("slug"), pageRequest(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, paginated(c, page, commentList(page.Items)))
}

func (h *CommentHandlers) create(c *gin.Context) {
	f, err := readFields(c)
	if err != nil {
		fail(c, err)
		return
	}
	comment, err := h.comments.Create(c.Request.Context(), identity(c), c.Param("slug"),
		service.CommentInput{Content: f.str("content")})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": commentResource(comment)})
}

func (h *CommentHandlers) update(c *gin.Context) {
	f, err := readFields(c)
	if err != nil {
		fail(c, err)
		return
	}
	comment, err := h.comments.Update(c.Request.Context(), identity(c), pathID(c, "id"),
		service.CommentInput{Content: f.str("content")})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": commentResource(comment)})
}

func (h *CommentHandlers) destroy(c *gin.Context) {
	if err := h.comments.Delete(c.Request.Context(), identity(c), pathID(c, "id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msgCommentDeleted})
}
