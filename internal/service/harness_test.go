package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/inkwell/blog/internal/files"
	"github.com/inkwell/blog/internal/models"
	"github.com/inkwell/blog/internal/storage/inmemory"
)

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

// plainHasher skips bcrypt to keep tests fast
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }
func (plainHasher) Verify(hash, password string) (bool, error) {
	return hash == "plain:"+password, nil
}

type fakeImages struct {
	mu      sync.Mutex
	next    int
	stored  map[string]bool
	deleted []string
}

func (f *fakeImages) Save(img *files.Image) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if strings.HasPrefix(string(img.Data), "bad") {
		return "", files.ErrDimensions
	}
	f.next++
	name := fmt.Sprintf("posts/%d.png", f.next)
	if f.stored == nil {
		f.stored = map[string]bool{}
	}
	f.stored[name] = true
	return name, nil
}

func (f *fakeImages) Delete(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.stored, name)
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeImages) URL(name string) string { return "http://test/storage/" + name }

type sentCode struct {
	UserID int64
	Code   string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentCode
}

func (n *fakeNotifier) SendVerificationCode(ctx context.Context, user *models.User, code string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentCode{UserID: user.ID, Code: code})
}

func (n *fakeNotifier) last() sentCode {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[len(n.sent)-1]
}

type harness struct {
	t        *testing.T
	ctx      context.Context
	store    *inmemory.Store
	svc      *Services
	images   *fakeImages
	notifier *fakeNotifier
	clock    *clock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := inmemory.New()
	clk := &clock{t: baseTime}
	store.Now = clk.Now

	images := &fakeImages{}
	notifier := &fakeNotifier{}
	svc := New(Options{
		Repos: Repositories{
			Users:      store.Users(),
			Tokens:     store.Tokens(),
			Categories: store.Categories(),
			Posts:      store.Posts(),
			Comments:   store.Comments(),
		},
		Images:               images,
		Notifier:             notifier,
		Hasher:               plainHasher{},
		RequireVerifiedEmail: true,
		VerificationCodeTTL:  10 * time.Minute,
	})
	svc.Auth.now = clk.Now
	svc.Posts.now = clk.Now
	svc.Comments.now = clk.Now

	return &harness{t: t, ctx: context.Background(), store: store, svc: svc, images: images, notifier: notifier, clock: clk}
}

// user creates a verified account and returns its identity
func (h *harness) user(name string) Identity {
	h.t.Helper()
	u := &models.User{
		Name:            name,
		Email:           strings.ToLower(name) + "@example.com",
		Phone:           "+256779901499",
		Password:        "plain:secret123",
		EmailVerifiedAt: sql.NullTime{Time: baseTime, Valid: true},
	}
	require.NoError(h.t, h.store.Users().Create(h.ctx, u))
	return Identity{UserID: u.ID, TokenID: 1, EmailVerified: true, User: u}
}

func (h *harness) category(name, slug string) *models.Category {
	h.t.Helper()
	c := &models.Category{Name: name, Slug: slug}
	require.NoError(h.t, h.store.Categories().Create(h.ctx, c))
	return c
}

const longContent = "This body is comfortably longer than the fifty character minimum for posts."

func (h *harness) post(who Identity, categoryID int64, title string) *models.Post {
	h.t.Helper()
	p, err := h.svc.Posts.Create(h.ctx, who, PostInput{Title: title, Content: longContent, CategoryID: categoryID})
	require.NoError(h.t, err)
	return p
}
