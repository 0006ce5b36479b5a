package api

import (
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/inkwell/blog/internal/service"
)

type pageLinks struct {
	First string  `json:"first"`
	Last  string  `json:"last"`
	Prev  *string `json:"prev"`
	Next  *string `json:"next"`
}

type pageMeta struct {
	CurrentPage int    `json:"current_page"`
	From        *int   `json:"from"`
	LastPage    int    `json:"last_page"`
	Path        string `json:"path"`
	PerPage     int    `json:"per_page"`
	To          *int   `json:"to"`
	Total       int64  `json:"total"`
}

type pageBody struct {
	Data  interface{} `json:"data"`
	Links pageLinks   `json:"links"`
	Meta  pageMeta    `json:"meta"`
}

// paginated wraps one page of data in the list envelope
func paginated[T any](c *gin.Context, page *service.Paginated[T], data interface{}) pageBody {
	path := requestPath(c)
	link := func(n int) string {
		return path + "?page=" + strconv.Itoa(n)
	}

	last := page.LastPage()
	links := pageLinks{First: link(1), Last: link(last)}
	if page.Page > 1 {
		prev := link(page.Page - 1)
		links.Prev = &prev
	}
	if page.Page < last {
		next := link(page.Page + 1)
		links.Next = &next
	}

	meta := pageMeta{
		CurrentPage: page.Page,
		LastPage:    last,
		Path:        path,
		PerPage:     page.PerPage,
		Total:       page.Total,
	}
	if len(page.Items) > 0 {
		from, to := page.From(), page.To()
		meta.From, meta.To = &from, &to
	}
	return pageBody{Data: data, Links: links, Meta: meta}
}

// requestPath is the absolute URL of the request without its query
func requestPath(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	u := url.URL{Scheme: scheme, Host: c.Request.Host, Path: c.Request.URL.Path}
	return u.String()
}
