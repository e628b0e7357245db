package logger

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerRequestID = "X-Request-Id"
	ginKey          = "logger"
)

// routeScopes names the :id param of each route family, so request logs
// carry the same keys the engine logs with.
var routeScopes = []struct {
	prefix string
	key    string
}{
	{"/v1/screening-calls/:id", "screening_call_id"},
	{"/v1/admin/screening-calls/:id", "screening_call_id"},
	{"/v1/applications/:id", "application_id"},
	{"/v1/jobs/:id", "job_id"},
}

// Middleware tags each request with a request id (echoed in X-Request-Id)
// and the entity it addresses, stores the logger on both the gin and the
// request context, and logs one summary line per request.
func Middleware(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid := c.GetHeader(headerRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(headerRequestID, rid)

		route := c.FullPath()
		reqLogger := l.With("request_id", rid)
		if key := scopeKey(route); key != "" {
			if id := c.Param("id"); id != "" {
				reqLogger = reqLogger.With(key, id)
			}
		}
		c.Set(ginKey, reqLogger)
		c.Request = c.Request.WithContext(With(c.Request.Context(), reqLogger))

		c.Next()

		if route == "" {
			route = c.Request.URL.Path
		}
		attrs := []any{
			"method", c.Request.Method,
			"route", route,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		switch {
		case len(c.Errors) > 0:
			reqLogger.Error("request", append(attrs, "errors", c.Errors.String())...)
		case c.Writer.Status() >= 500:
			reqLogger.Warn("request", attrs...)
		default:
			reqLogger.Info("request", attrs...)
		}
	}
}

func scopeKey(route string) string {
	for _, s := range routeScopes {
		if strings.HasPrefix(route, s.prefix) {
			return s.key
		}
	}
	return ""
}

// FromGin pulls the request-scoped logger from the gin context.
func FromGin(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(ginKey); ok {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}
