package service

import (
	"database/sql"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/inkwell/blog/internal/models"
	"github.com/inkwell/blog/internal/storage"
)

// StatusOf derives the publication status from a publish time
func StatusOf(publishedAt sql.NullTime, now time.Time) models.Status {
	switch {
	case !publishedAt.Valid:
		return models.StatusDraft
	case publishedAt.Time.After(now):
		return models.StatusScheduled
	default:
		return models.StatusPublished
	}
}

// StatusLabel returns the display name of a status
func StatusLabel(s models.Status) string {
	switch s {
	case models.StatusDraft:
		return "Draft"
	case models.StatusScheduled:
		return "Scheduled"
	case models.StatusPublished:
		return "Published"
	}
	return ""
}

// ParseStatus accepts the three status names, case-insensitively
func ParseStatus(raw string) (models.Status, bool) {
	switch s := models.Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case models.StatusDraft, models.StatusScheduled, models.StatusPublished:
		return s, true
	}
	return "", false
}

// PageLimits bound the page size of one listing
type PageLimits struct {
	Default int
	Max     int
}

var (
	PostPages    = PageLimits{Default: 12, Max: 100}
	CommentPages = PageLimits{Default: 10, Max: 50}
	// OwnerPages covers the owner-scoped trashed, drafts and scheduled listings
	OwnerPages = PageLimits{Default: 9, Max: 100}
	// CategoryPostsLimit caps the posts embedded in a category
	CategoryPostsLimit = 100
)

// Size clamps a requested page size. nil selects the default.
func (l PageLimits) Size(requested *int) int {
	if requested == nil {
		return l.Default
	}
	switch n := *requested; {
	case n < 1:
		return 1
	case n > l.Max:
		return l.Max
	default:
		return n
	}
}

// PageRequest is the caller's requested window
type PageRequest struct {
	Page    int
	PerPage *int
}

func (p PageRequest) resolve(l PageLimits) storage.Page {
	size := l.Size(p.PerPage)
	number := p.Page
	if number < 1 {
		number = 1
	}
	// keep (number-1)*size inside an int
	if size > 0 && number > math.MaxInt/size {
		number = math.MaxInt / size
	}
	return storage.Page{Number: number, Size: size}
}

// Paginated is one page of a listing
type Paginated[T any] struct {
	Items   []T
	Page    int
	PerPage int
	Total   int64
}

func newPaginated[T any](items []T, page storage.Page, total int64) *Paginated[T] {
	if items == nil {
		items = []T{}
	}
	return &Paginated[T]{Items: items, Page: page.Number, PerPage: page.Size, Total: total}
}

// LastPage is the number of the final page, at least 1
func (p *Paginated[T]) LastPage() int {
	if p.PerPage <= 0 || p.Total == 0 {
		return 1
	}
	return int((p.Total + int64(p.PerPage) - 1) / int64(p.PerPage))
}

// From and To are the 1-based positions of the first and last item, 0 when empty
func (p *Paginated[T]) From() int {
	if len(p.Items) == 0 {
		return 0
	}
	return (p.Page-1)*p.PerPage + 1
}

func (p *Paginated[T]) To() int {
	if len(p.Items) == 0 {
		return 0
	}
	return p.From() + len(p.Items) - 1
}

var publishLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

var errBadDate = errors.New("invalid date")

// ParsePublishedAt parses a publish time. Blank input means "no publish time";
// times without a zone are taken as UTC.
func ParsePublishedAt(raw string) (sql.NullTime, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return sql.NullTime{}, nil
	}
	for _, layout := range publishLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return sql.NullTime{Time: t.UTC(), Valid: true}, nil
		}
	}
	return sql.NullTime{}, errBadDate
}

// Optional is an update value that may be absent. Set separates "absent" from
// an explicit zero value.
type Optional[T any] struct {
	Set   bool
	Value T
}

// Some wraps a present value
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}
