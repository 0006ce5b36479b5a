package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/inkwell/blog/internal/apperr"
	"github.com/inkwell/blog/internal/service"
	"github.com/inkwell/blog/pkg/logging"
	"github.com/inkwell/blog/pkg/telemetry"
)

const (
	requestIDHeader = "X-Request-ID"

	ctxRequestID = "request_id"
	ctxIdentity  = "identity"
	ctxLogger    = "logger"
)

// requestID tags the request with the caller's X-Request-ID or a fresh uuid
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Set(ctxLogger, logging.WithRequestID(id))
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger(c *gin.Context) *zap.Logger {
	if l, ok := c.Get(ctxLogger); ok {
		if logger, ok := l.(*zap.Logger); ok {
			return logger
		}
	}
	return logging.GetLogger()
}

// accessLog writes one line per request. Server errors are logged at Error.
func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if who := identity(c); who.Authenticated() {
			fields = append(fields, zap.Int64("user_id", who.UserID))
		}

		logger := requestLogger(c)
		if status >= http.StatusInternalServerError {
			logger.Error("Request completed", fields...)
			return
		}
		logger.Info("Request completed", fields...)
	}
}

// instrument opens a span per request and records request metrics by route
func instrument(metrics *telemetry.HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx, span := telemetry.StartSpan(c.Request.Context(), "http.request")
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		span.SetAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
		)
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		metrics.Record(ctx, c.Request.Method, route, status, time.Since(start))
	}
}

// wrap adapts net/http middleware to gin. The gin chain continues only if
// the wrapped middleware calls its next handler.
func wrap(mw func(http.Handler) http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		passed := false
		mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			c.Next()
		})).ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
		}
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return wrap(cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", requestIDHeader},
		ExposedHeaders:   []string{"Link", requestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}).Handler)
}

// rateLimit limits requests per client IP, or per IP and route when perRoute is set
func rateLimit(limit int, window time.Duration, perRoute bool) gin.HandlerFunc {
	keys := []httprate.KeyFunc{httprate.KeyByIP}
	if perRoute {
		keys = append(keys, httprate.KeyByEndpoint)
	}
	return wrap(httprate.Limit(limit, window,
		httprate.WithKeyFuncs(keys...),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"message":"Too Many Attempts."}`))
		}),
	))
}

// authenticate resolves a bearer token into the request identity. Requests
// without a usable token continue anonymously.
func authenticate(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.Next()
			return
		}
		who, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			if !apperr.Is(err, apperr.KindUnauthenticated) {
				fail(c, err)
				return
			}
			c.Next()
			return
		}
		c.Set(ctxIdentity, who)
		c.Set(ctxLogger, requestLogger(c).With(zap.Int64("user_id", who.UserID)))
		c.Next()
	}
}

// requireAuth rejects anonymous requests
func requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !identity(c).Authenticated() {
			fail(c, apperr.Unauthenticated("Unauthenticated."))
			return
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func identity(c *gin.Context) service.Identity {
	if v, ok := c.Get(ctxIdentity); ok {
		if who, ok := v.(service.Identity); ok {
			return who
		}
	}
	return service.Identity{}
}
