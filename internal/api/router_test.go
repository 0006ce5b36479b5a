package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell/blog/internal/files"
	"github.com/inkwell/blog/internal/models"
	"github.com/inkwell/blog/internal/service"
	"github.com/inkwell/blog/internal/storage/inmemory"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

const longContent = "This body is comfortably longer than the fifty character minimum for posts."

// plainHasher skips bcrypt to keep tests fast
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }
func (plainHasher) Verify(hash, password string) (bool, error) {
	return hash == "plain:"+password, nil
}

type codeBox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (b *codeBox) SendVerificationCode(ctx context.Context, user *models.User, code string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.codes[user.Email] = code
}

func (b *codeBox) code(email string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.codes[email]
}

type testServer struct {
	t      *testing.T
	engine *gin.Engine
	codes  *codeBox
	health error
}

type serverOption func(*Options)

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	store := inmemory.New()
	images := files.NewStore(afero.NewBasePathFs(afero.NewMemMapFs(), "/uploads"), "http://test")
	codes := &codeBox{codes: map[string]string{}}

	svc := service.New(service.Options{
		Repos: service.Repositories{
			Users:      store.Users(),
			Tokens:     store.Tokens(),
			Categories: store.Categories(),
			Posts:      store.Posts(),
			Comments:   store.Comments(),
		},
		Images:               images,
		Notifier:             codes,
		Hasher:               plainHasher{},
		RequireVerifiedEmail: true,
		VerificationCodeTTL:  10 * time.Minute,
	})

	ts := &testServer{t: t, codes: codes}
	o := Options{
		Services: svc,
		Files:    images.FS(),
		Health:   func(ctx context.Context) error { return ts.health },
	}
	for _, opt := range opts {
		opt(&o)
	}

	engine := gin.New()
	NewRouter(o).SetupRoutes(engine)
	ts.engine = engine
	return ts
}

type response struct {
	*httptest.ResponseRecorder
}

func (r response) json(t *testing.T) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(r.Body.Bytes(), &out), r.Body.String())
	return out
}

func (s *testServer) do(req *http.Request, token string) response {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return response{rec}
}

func (s *testServer) send(method, path, token string, body interface{}) response {
	s.t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return s.do(req, token)
}

// signUp registers an account and, when verified is set, confirms its email
func (s *testServer) signUp(name string, verified bool) string {
	s.t.Helper()
	email := strings.ToLower(name) + "@example.com"
	res := s.send(http.MethodPost, "/api/register", "", map[string]string{
		"name":                  name,
		"email":                 email,
		"phone":                 "+256779901499",
		"password":              "secret123",
		"password_confirmation": "secret123",
	})
	require.Equal(s.t, http.StatusCreated, res.Code, res.Body.String())
	token := res.json(s.t)["access_token"].(string)

	if verified {
		res = s.send(http.MethodPost, "/api/email/verify-code", token, map[string]string{"code": s.codes.code(email)})
		require.Equal(s.t, http.StatusOK, res.Code, res.Body.String())
	}
	return token
}

func (s *testServer) category(token, name, slug string) int64 {
	s.t.Helper()
	res := s.send(http.MethodPost, "/api/categories", token, map[string]string{"name": name, "slug": slug})
	require.Equal(s.t, http.StatusCreated, res.Code, res.Body.String())
	return int64(data(s.t, res)["id"].(float64))
}

func (s *testServer) post(token string, categoryID int64, title string, publishedAt string) map[string]interface{} {
	s.t.Helper()
	body := map[string]interface{}{"title": title, "content": longContent, "category_id": categoryID}
	if publishedAt != "" {
		body["published_at"] = publishedAt
	}
	res := s.send(http.MethodPost, "/api/posts", token, body)
	require.Equal(s.t, http.StatusCreated, res.Code, res.Body.String())
	return data(s.t, res)
}

func data(t *testing.T, res response) map[string]interface{} {
	t.Helper()
	d, ok := res.json(t)["data"].(map[string]interface{})
	require.True(t, ok, res.Body.String())
	return d
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t)

	res := s.send(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "OK", res.json(t)["status"])
	assert.NotEmpty(t, res.Header().Get(requestIDHeader))

	s.health = errors.New("database is down")
	res = s.send(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)
}

func TestUnknownRoutesRenderJSON(t *testing.T) {
	s := newTestServer(t)

	res := s.send(http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, "Not Found", res.json(t)["message"])

	res = s.send(http.MethodPut, "/api/posts", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, res.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	res := s.do(req, "")
	assert.Equal(t, "abc-123", res.Header().Get(requestIDHeader))
}

func TestAccountFlow(t *testing.T) {
	s := newTestServer(t)

	res := s.send(http.MethodPost, "/api/register", "", map[string]string{
		"name":                  "Ada",
		"email":                 "ada@example.com",
		"phone":                 "+256 779 901 499",
		"password":              "secret123",
		"password_confirmation": "secret123",
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	body := res.json(t)
	assert.Equal(t, msgRegistered, body["message"])
	assert.Equal(t, "Bearer", body["token_type"])
	assert.Equal(t, false, body["email_verified"])
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "+256779901499", user["phone"])
	assert.NotContains(t, user, "password")
	token := body["access_token"].(string)

	res = s.send(http.MethodGet, "/api/user", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, false, res.json(t)["email_verified"])

	res = s.send(http.MethodPost, "/api/email/verify-code", token, map[string]string{"code": "000000x"})
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)

	wrong := "000000"
	if s.codes.code("ada@example.com") == wrong {
		wrong = "111111"
	}
	res = s.send(http.MethodPost, "/api/email/verify-code", token, map[string]string{"code": wrong})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, false, res.json(t)["email_verified"])

	res = s.send(http.MethodPost, "/api/email/verify-code", token, map[string]string{"code": s.codes.code("ada@example.com")})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, msgVerified, res.json(t)["message"])

	res = s.send(http.MethodPost, "/api/email/verify-code", token, map[string]string{"code": "123456"})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, msgWasVerified, res.json(t)["message"])

	res = s.send(http.MethodPost, "/api/email/verification-code", token, nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = s.send(http.MethodPost, "/api/login", "", map[string]string{"email": "ada@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
	assert.Contains(t, res.json(t)["errors"], "email")

	res = s.send(http.MethodPost, "/api/login", "", map[string]string{"email": "ada@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, res.Code)
	body = res.json(t)
	assert.Equal(t, msgLoggedIn, body["message"])
	assert.Equal(t, true, body["email_verified"])
	second := body["access_token"].(string)

	res = s.send(http.MethodPost, "/api/logout", second, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, msgLoggedOut, res.json(t)["message"])

	res = s.send(http.MethodGet, "/api/user", second, nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	res = s.send(http.MethodGet, "/api/user", token, nil)
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/user"},
		{http.MethodPost, "/api/logout"},
		{http.MethodGet, "/api/posts/trashed"},
		{http.MethodGet, "/api/posts/drafts"},
		{http.MethodGet, "/api/posts/scheduled"},
		{http.MethodPost, "/api/posts"},
		{http.MethodPut, "/api/posts/some-post"},
		{http.MethodDelete, "/api/posts/some-post/force"},
		{http.MethodPost, "/api/categories"},
		{http.MethodDelete, "/api/comments/1"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			res := s.send(tt.method, tt.path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, res.Code)
			assert.Equal(t, "Unauthenticated.", res.json(t)["message"])
		})
	}
}

func TestInvalidTokenOnPublicRouteIsAnonymous(t *testing.T) {
	s := newTestServer(t)
	res := s.send(http.MethodGet, "/api/posts", "1|forged", nil)
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestUnverifiedAccountCannotMutate(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp("Uma", false)

	res := s.send(http.MethodPost, "/api/categories", token, map[string]string{"name": "News", "slug": "news"})
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, false, res.json(t)["email_verified"])
}

func TestPostLifecycle(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp("Ada", true)
	categoryID := s.category(token, "Tech News", "tech-news")

	post := s.post(token, categoryID, "Hello World", "")
	assert.Equal(t, "hello-world", post["slug"])
	assert.Equal(t, "draft", post["status"])
	assert.Equal(t, "Draft", post["status_label"])
	assert.Equal(t, true, post["is_draft"])
	assert.Nil(t, post["published_at"])
	assert.Equal(t, "tech-news", post["category"].(map[string]interface{})["slug"])
	assert.Equal(t, "ada@example.com", post["author"].(map[string]interface{})["email"])
	assert.NotContains(t, post, "deleted_at")

	again := s.post(token, categoryID, "Hello, World!", "")
	assert.Equal(t, "hello-world-1", again["slug"])

	res := s.send(http.MethodDelete, "/api/posts/hello-world", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, msgPostDeleted, res.json(t)["message"])

	res = s.send(http.MethodGet, "/api/posts/hello-world", "", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, "Post not found", res.json(t)["message"])

	res = s.send(http.MethodGet, "/api/posts/trashed", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	list := res.json(t)
	items := list["data"].([]interface{})
	require.Len(t, items, 1)
	assert.NotNil(t, items[0].(map[string]interface{})["deleted_at"])

	res = s.send(http.MethodPost, "/api/posts/hello-world/restore", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, msgPostRestored, res.json(t)["message"])
	assert.Equal(t, "hello-world", data(t, res)["slug"])

	res = s.send(http.MethodPost, "/api/posts/hello-world/restore", token, nil)
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = s.send(http.MethodDelete, "/api/posts/hello-world/force", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, msgPostPurged, res.json(t)["message"])

	res = s.send(http.MethodPost, "/api/posts/hello-world/restore", token, nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestPostOwnership(t *testing.T) {
	s := newTestServer(t)
	owner := s.signUp("Ada", true)
	other := s.signUp("Bob", true)
	categoryID := s.category(owner, "Tech", "tech")
	s.post(owner, categoryID, "Owned Post", "")

	tests := []struct {
		method string
		path   string
		body   interface{}
	}{
		{http.MethodPut, "/api/posts/owned-post", map[string]string{"title": "Taken Over"}},
		{http.MethodDelete, "/api/posts/owned-post", nil},
		{http.MethodDelete, "/api/posts/owned-post/force", nil},
		{http.MethodDelete, "/api/posts/owned-post/image", nil},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			res := s.send(tt.method, tt.path, other, tt.body)
			assert.Equal(t, http.StatusForbidden, res.Code)
		})
	}

	res := s.send(http.MethodPut, "/api/posts/missing", other, map[string]string{"title": "x"})
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestUpdatePost(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp("Ada", true)
	categoryID := s.category(token, "Tech", "tech")
	s.post(token, categoryID, "First Title", "2020-01-02 03:04:05")

	res := s.send(http.MethodPut, "/api/posts/first-title", token, map[string]interface{}{"title": "Second Title"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	post := data(t, res)
	assert.Equal(t, "second-title", post["slug"])
	assert.Equal(t, "published", post["status"])
	assert.Equal(t, "2020-01-02 03:04:05", post["published_at"])

	res = s.send(http.MethodPut, "/api/posts/second-title", token, map[string]interface{}{"published_at": nil})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Equal(t, "draft", data(t, res)["status"])

	res = s.send(http.MethodPut, "/api/posts/second-title", token, map[string]interface{}{"published_at": "2999-01-01"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Equal(t, "scheduled", data(t, res)["status"])

	res = s.send(http.MethodPut, "/api/posts/second-title", token, map[string]interface{}{"category_id": "abc"})
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
	assert.Contains(t, res.json(t)["errors"], "category_id")
}

func TestCreatePostValidationBody(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp("Ada", true)

	res := s.send(http.MethodPost, "/api/posts", token, map[string]interface{}{"title": "  ", "content": "short"})
	require.Equal(t, http.StatusUnprocessableEntity, res.Code)
	body := res.json(t)
	assert.NotEmpty(t, body["message"])
	errs := body["errors"].(map[string]interface{})
	assert.Contains(t, errs, "title")
	assert.Contains(t, errs, "content")
	assert.Contains(t, errs, "category_id")
}

func TestMalformedJSONIsBadRequest(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp("Ada", true)

	req := httptest.NewRequest(http.MethodPost, "/api/posts", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	res := s.do(req, token)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestIndexFiltersAndPagination(t *testing.T) {
	s := newTestServer(t)
	ada := s.signUp("Ada", true)
	bob := s.signUp("Bob", true)
	tech := s.category(ada, "Tech", "tech")
	life := s.category(ada, "Life", "life")

	s.post(ada, tech, "Draft One", "")
	s.post(ada, tech, "Published One", "2020-01-01 00:00:00")
	s.post(bob, life, "Scheduled One", "2999-01-01 00:00:00")

	tests := []struct {
		name  string
		query string
		total float64
	}{
		{"all", "", 3},
		{"published", "?status=published", 1},
		{"legacy published flag", "?published=true", 1},
		{"drafts", "?status=draft", 1},
		{"scheduled", "?status=scheduled", 1},
		{"by category", fmt.Sprintf("?category_id=%d", life), 1},
		{"by category and status", fmt.Sprintf("?category_id=%d&status=draft", tech), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.send(http.MethodGet, "/api/posts"+tt.query, "", nil)
			require.Equal(t, http.StatusOK, res.Code, res.Body.String())
			meta := res.json(t)["meta"].(map[string]interface{})
			assert.Equal(t, tt.total, meta["total"])
		})
	}

	res := s.send(http.MethodGet, "/api/posts?status=archived", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)

	res = s.send(http.MethodGet, "/api/posts?user_id=x", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)

	res = s.send(http.MethodGet, "/api/posts?per_page=2&page=2", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	body := res.json(t)
	assert.Len(t, body["data"], 1)
	meta := body["meta"].(map[string]interface{})
	assert.Equal(t, float64(2), meta["current_page"])
	assert.Equal(t, float64(2), meta["last_page"])
	assert.Equal(t, float64(3), meta["from"])
	assert.Equal(t, float64(3), meta["to"])
	assert.Equal(t, "http://example.com/api/posts", meta["path"])
	links := body["links"].(map[string]interface{})
	assert.Equal(t, "http://example.com/api/posts?page=1", links["prev"])
	assert.Nil(t, links["next"])

	res = s.send(http.MethodGet, "/api/posts?page=9", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	meta = res.json(t)["meta"].(map[string]interface{})
	assert.Nil(t, meta["from"])
	assert.Nil(t, meta["to"])
}

func TestOwnerListingsOverHTTP(t *testing.T) {
	s := newTestServer(t)
	ada := s.signUp("Ada", true)
	bob := s.signUp("Bob", true)
	tech := s.category(ada, "Tech", "tech")

	s.post(ada, tech, "Ada Draft", "")
	s.post(ada, tech, "Ada Later", "2999-01-01 00:00:00")
	s.post(bob, tech, "Bob Draft", "")

	res := s.send(http.MethodGet, "/api/posts/drafts", ada, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, res.json(t)["data"], 1)

	res = s.send(http.MethodGet, "/api/posts/scheduled", ada, nil)
	require.Equal(t, http.StatusOK, res.Code)
	items := res.json(t)["data"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "ada-later", items[0].(map[string]interface{})["slug"])
	assert.Equal(t, true, items[0].(map[string]interface{})["is_scheduled"])
}

func TestCategories(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp("Ada", true)
	id := s.category(token, "Tech News", "tech-news")

	res := s.send(http.MethodPost, "/api/categories", token, map[string]string{"name": "Tech News", "slug": "other"})
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)

	res = s.send(http.MethodPut, "/api/categories/tech-news", token, map[string]interface{}{"description": "All about tech"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Equal(t, "All about tech", data(t, res)["description"])
	assert.Equal(t, "Tech News", data(t, res)["name"])

	s.post(token, id, "Gadgets Review", "")

	res = s.send(http.MethodGet, "/api/categories", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	body := res.json(t)
	assert.NotContains(t, body, "meta")
	items := body["data"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, float64(1), items[0].(map[string]interface{})["posts_count"])

	res = s.send(http.MethodGet, "/api/categories/tech-news", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, data(t, res)["posts"], 1)

	res = s.send(http.MethodDelete, "/api/categories/tech-news", token, nil)
	assert.Equal(t, http.StatusConflict, res.Code)

	res = s.send(http.MethodDelete, "/api/posts/gadgets-review/force", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	res = s.send(http.MethodDelete, "/api/categories/tech-news", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, msgCategoryDeleted, res.json(t)["message"])

	res = s.send(http.MethodGet, "/api/categories/tech-news", "", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestComments(t *testing.T) {
	s := newTestServer(t)
	author := s.signUp("Ada", true)
	reader := s.signUp("Bob", true)
	third := s.signUp("Cid", true)
	tech := s.category(author, "Tech", "tech")
	s.post(author, tech, "Commented Post", "")

	res := s.send(http.MethodPost, "/api/posts/commented-post/comments", reader, map[string]string{"content": "Nice post!"})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	comment := data(t, res)
	assert.Equal(t, "Bob", comment["user"].(map[string]interface{})["name"])
	path := fmt.Sprintf("/api/comments/%d", int64(comment["id"].(float64)))

	res = s.send(http.MethodGet, "/api/posts/commented-post/comments", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, res.json(t)["data"], 1)

	res = s.send(http.MethodPut, path, author, map[string]string{"content": "Edited by author"})
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = s.send(http.MethodPut, path, reader, map[string]string{"content": "Edited text"})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "Edited text", data(t, res)["content"])

	res = s.send(http.MethodDelete, path, third, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = s.send(http.MethodDelete, path, author, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, msgCommentDeleted, res.json(t)["message"])

	res = s.send(http.MethodDelete, "/api/comments/not-a-number", author, nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func multipartPost(t *testing.T, path string, values map[string]string, img []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range values {
		require.NoError(t, w.WriteField(k, v))
	}
	if img != nil {
		part, err := w.CreateFormFile(imageField, "cover.png")
		require.NoError(t, err)
		_, err = part.Write(img)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestFeaturedImageUpload(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp("Ada", true)
	tech := s.category(token, "Tech", "tech")
	fieldsFor := func(title string) map[string]string {
		return map[string]string{"title": title, "content": longContent, "category_id": fmt.Sprint(tech)}
	}

	res := s.do(multipartPost(t, "/api/posts", fieldsFor("Tiny Image"), pngBytes(t, 10, 10)), token)
	require.Equal(t, http.StatusUnprocessableEntity, res.Code)
	assert.Contains(t, res.json(t)["errors"], imageField)

	res = s.do(multipartPost(t, "/api/posts", fieldsFor("With Image"), pngBytes(t, 400, 300)), token)
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	post := data(t, res)
	name := post["featured_image"].(string)
	assert.True(t, strings.HasPrefix(name, "posts/"))
	assert.Equal(t, "http://test/storage/"+name, post["featured_image_url"])

	res = s.send(http.MethodGet, "/storage/"+name, "", nil)
	assert.Equal(t, http.StatusOK, res.Code)

	res = s.send(http.MethodDelete, "/api/posts/with-image/image", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Nil(t, data(t, res)["featured_image"])

	res = s.send(http.MethodGet, "/storage/"+name, "", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestOversizedUploads(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp("Ada", true)
	tech := s.category(token, "Tech", "tech")
	values := map[string]string{"title": "Big Image", "content": longContent, "category_id": fmt.Sprint(tech)}

	res := s.do(multipartPost(t, "/api/posts", values, make([]byte, files.MaxImageBytes+1)), token)
	require.Equal(t, http.StatusUnprocessableEntity, res.Code, res.Body.String())
	assert.Contains(t, res.json(t)["errors"], imageField)

	res = s.do(multipartPost(t, "/api/posts", values, make([]byte, maxBodyBytes)), token)
	require.Equal(t, http.StatusRequestEntityTooLarge, res.Code, res.Body.String())
	assert.Equal(t, msgBodyTooLarge, res.json(t)["message"])

	res = s.send(http.MethodGet, "/api/posts/big-image", "", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestResendCodeIsRateLimited(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp("Uma", false)

	for i := 0; i < resendCodeLimit; i++ {
		res := s.send(http.MethodPost, "/api/email/verification-code", token, nil)
		require.Equal(t, http.StatusOK, res.Code, "attempt %d", i+1)
	}
	res := s.send(http.MethodPost, "/api/email/verification-code", token, nil)
	assert.Equal(t, http.StatusTooManyRequests, res.Code)
	assert.Equal(t, "Too Many Attempts.", res.json(t)["message"])
}

func TestGlobalRateLimit(t *testing.T) {
	s := newTestServer(t, func(o *Options) { o.RateLimitPerMinute = 2 })

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, s.send(http.MethodGet, "/api/categories", "", nil).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, s.send(http.MethodGet, "/api/posts", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.send(http.MethodGet, "/health", "", nil).Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/posts", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	res := s.do(req, "")
	assert.Equal(t, "*", res.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, res.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}
