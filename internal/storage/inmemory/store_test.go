package inmemory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell/blog/internal/models"
	"github.com/inkwell/blog/internal/storage/storagetest"
)

func TestStoreContracts(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storagetest.Repos {
		s := New()
		return storagetest.Repos{
			Users:      s.Users(),
			Tokens:     s.Tokens(),
			Categories: s.Categories(),
			Posts:      s.Posts(),
			Comments:   s.Comments(),
		}
	})
}

func TestReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()

	u := &models.User{Name: "Ada", Email: "ada@example.com"}
	require.NoError(t, s.Users().Create(ctx, u))
	u.Name = "mutated after create"

	got, err := s.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Name)

	got.Name = "mutated after read"
	again, err := s.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", again.Name)
}

func TestPostRequiresCategory(t *testing.T) {
	ctx := context.Background()
	s := New()
	err := s.Posts().Create(ctx, &models.Post{UserID: 1, CategoryID: 42, Title: "Orphan", Slug: "orphan"})
	assert.Error(t, err)
}
