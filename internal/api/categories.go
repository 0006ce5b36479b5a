package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/inkwell/blog/internal/service"
)

const msgCategoryDeleted = "Category deleted successfully"

// CategoryHandlers serves the category catalogue
type CategoryHandlers struct {
	categories *service.CategoryService
	view       presenter
}

// index is not paginated
func (h *CategoryHandlers) index(c *gin.Context) {
	categories, err := h.categories.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": h.view.categoryList(categories)})
}

func (h *CategoryHandlers) show(c *gin.Context) {
	category, err := h.categories.Show(c.Request.Context(), c.Param("slug"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": h.view.category(category)})
}

func (h *CategoryHandlers) create(c *gin.Context) {
	f, err := readFields(c)
	if err != nil {
		fail(c, err)
		return
	}
	category, err := h.categories.Create(c.Request.Context(), identity(c), service.CategoryInput{
		Name:        f.str("name"),
		Slug:        f.str("slug"),
		Description: f["description"],
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": h.view.category(category)})
}

func (h *CategoryHandlers) update(c *gin.Context) {
	f, err := readFields(c)
	if err != nil {
		fail(c, err)
		return
	}
	in := service.UpdateCategoryInput{
		Name: f.opt("name"),
		Slug: f.opt("slug"),
	}
	if f.has("description") {
		in.Description = service.Some(f["description"])
	}

	category, err := h.categories.Update(c.Request.Context(), identity(c), c.Param("slug"), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": h.view.category(category)})
}

func (h *CategoryHandlers) destroy(c *gin.Context) {
	if err := h.categories.Delete(c.Request.Context(), identity(c), c.Param("slug")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msgCategoryDeleted})
}
