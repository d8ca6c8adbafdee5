package httpx

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ridKey    = "rid"
	loggerKey = "logger"
)

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(ridKey, rid)
		c.Writer.Header().Set("X-Request-ID", rid)
		c.Next()
	}
}

// Logger stores a request-scoped logger on the context and writes one line
// per request once it completes.
func Logger(base *zap.Logger) gin.HandlerFunc {
	if base == nil {
		base = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now()
		log := base.With(
			zap.String("request_id", RequestIDFrom(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
		c.Set(loggerKey, log)
		c.Next()

		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("remote_ip", c.ClientIP()),
		}
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			log.Error("request completed", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("request completed", fields...)
		default:
			log.Info("request completed", fields...)
		}
	}
}

// Recovery turns a panic into a logged 500 with the standard error body.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				Log(c).Error("panic recovered", zap.Any("panic", r), zap.Stack("stack"))
				c.AbortWithStatusJSON(http.StatusInternalServerError, HTTPError{
					Error:     "internal",
					Message:   "internal error",
					RequestID: RequestIDFrom(c),
				})
			}
		}()
		c.Next()
	}
}

func RequestIDFrom(c *gin.Context) string {
	return c.GetString(ridKey)
}

// Log returns the request-scoped logger, a no-op one outside Logger.
func Log(c *gin.Context) *zap.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(*zap.Logger); ok {
			return l
		}
	}
	return zap.NewNop()
}
