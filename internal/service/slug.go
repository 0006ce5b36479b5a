package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/inkwell/blog/internal/apperr"
)

var slugNoise = regexp.MustCompile(`[^a-z0-9-]+`)

// BaseSlug lower-cases title, collapses every run of characters outside
// [a-z0-9-] into one hyphen and trims hyphens from both ends.
func BaseSlug(title string) string {
	s := slugNoise.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(s, "-")
}

type slugChecker interface {
	SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error)
}

// SlugResolver derives unique post slugs from titles
type SlugResolver struct {
	posts slugChecker
}

// NewSlugResolver creates a resolver checking collisions against posts,
// trashed ones included
func NewSlugResolver(posts slugChecker) *SlugResolver {
	return &SlugResolver{posts: posts}
}

// Resolve returns the base slug of title, or the base slug with the lowest
// free numeric suffix. excludeID is the post being renamed, 0 for none.
func (r *SlugResolver) Resolve(ctx context.Context, title string, excludeID int64) (string, error) {
	if err := checkSluggable(title); err != nil {
		return "", err
	}
	base := BaseSlug(title)

	slug := base
	for n := 1; ; n++ {
		exists, err := r.posts.SlugExists(ctx, slug, excludeID)
		if err != nil {
			return "", fmt.Errorf("failed to check slug %q: %w", slug, err)
		}
		if !exists {
			return slug, nil
		}
		slug = base + "-" + strconv.Itoa(n)
	}
}

func checkSluggable(title string) error {
	if strings.TrimSpace(title) == "" {
		return apperr.FieldError("title", "The title field is required.")
	}
	if BaseSlug(title) == "" {
		return apperr.FieldError("title", "The title must contain at least one letter or number.")
	}
	return nil
}
