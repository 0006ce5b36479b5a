package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/inkwell/blog/internal/service"
	"github.com/inkwell/blog/pkg/logging"
	"github.com/inkwell/blog/pkg/telemetry"
)

const (
	serviceName = "inkwell-blog-api"

	// resendCodeLimit applies per client to the verification mail route
	resendCodeLimit = 6
)

// Options configures the router
type Options struct {
	Services *service.Services
	// Files serves uploaded images under /storage; nil disables the route
	Files              http.FileSystem
	Metrics            *telemetry.HTTPMetrics
	CORSAllowedOrigins []string
	// RateLimitPerMinute applies per client IP to the whole API; 0 disables it
	RateLimitPerMinute int
	// Health reports the state of backing stores
	Health func(ctx context.Context) error
}

// Router sets up API routes
type Router struct {
	opts       Options
	accounts   *AccountHandlers
	posts      *PostHandlers
	categories *CategoryHandlers
	comments   *CommentHandlers
	logger     *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(opts Options) *Router {
	view := presenter{posts: opts.Services.Posts}
	return &Router{
		opts:       opts,
		accounts:   &AccountHandlers{auth: opts.Services.Auth},
		posts:      &PostHandlers{posts: opts.Services.Posts, view: view},
		categories: &CategoryHandlers{categories: opts.Services.Categories, view: view},
		comments:   &CommentHandlers{comments: opts.Services.Comments},
		logger:     logging.WithComponent("api-router"),
	}
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	engine.HandleMethodNotAllowed = true
	engine.NoRoute(notFound)
	engine.NoMethod(methodNotAllowed)

	engine.Use(requestID(), instrument(r.opts.Metrics), accessLog(), corsMiddleware(r.opts.CORSAllowedOrigins))

	// Health check endpoints
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)

	if r.opts.Files != nil {
		engine.StaticFS("/storage", r.opts.Files)
	}

	api := engine.Group("/api")
	if r.opts.RateLimitPerMinute > 0 {
		api.Use(rateLimit(r.opts.RateLimitPerMinute, time.Minute, false))
	}
	api.Use(authenticate(r.opts.Services.Auth))

	// Public
	api.POST("/register", r.accounts.register)
	api.POST("/login", r.accounts.login)
	api.GET("/posts", r.posts.index)
	api.GET("/posts/:slug", r.posts.show)
	api.GET("/posts/:slug/comments", r.comments.index)
	api.GET("/categories", r.categories.index)
	api.GET("/categories/:slug", r.categories.show)

	// Authenticated
	private := api.Group("", requireAuth())
	private.POST("/logout", r.accounts.logout)
	private.GET("/user", r.accounts.me)
	private.POST("/email/verify-code", r.accounts.verify)
	private.POST("/email/verification-code", rateLimit(resendCodeLimit, time.Minute, true), r.accounts.resendCode)

	private.GET("/posts/trashed", r.posts.trashed)
	private.GET("/posts/drafts", r.posts.drafts)
	private.GET("/posts/scheduled", r.posts.scheduled)
	private.POST("/posts", r.posts.create)
	private.PUT("/posts/:slug", r.posts.update)
	private.PATCH("/posts/:slug", r.posts.update)
	// multipart clients that cannot send PUT bodies
	private.POST("/posts/:slug", r.posts.update)
	private.DELETE("/posts/:slug", r.posts.destroy)
	private.POST("/posts/:slug/restore", r.posts.restore)
	private.DELETE("/posts/:slug/force", r.posts.forceDelete)
	private.DELETE("/posts/:slug/image", r.posts.removeImage)

	private.POST("/posts/:slug/comments", r.comments.create)
	private.PUT("/comments/:id", r.comments.update)
	private.PATCH("/comments/:id", r.comments.update)
	private.DELETE("/comments/:id", r.comments.destroy)

	private.POST("/categories", r.categories.create)
	private.PUT("/categories/:slug", r.categories.update)
	private.PATCH("/categories/:slug", r.categories.update)
	private.DELETE("/categories/:slug", r.categories.destroy)

	r.logger.Info("Routes registered", zap.Int("count", len(engine.Routes())))
}

// healthHandler handles health check requests
func (r *Router) healthHandler(c *gin.Context) {
	if r.opts.Health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := r.opts.Health(ctx); err != nil {
			requestLogger(c).Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "UNAVAILABLE",
				"service": serviceName,
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "OK",
		"service": serviceName,
	})
}
