package diagnostics

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/hostkit/logger"
)

const requestIDHeader = "X-Request-Id"

func recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error("Panic recovered", logger.Fields(
					logger.FieldError, fmt.Sprintf("%v", err),
					"stack", string(debug.Stack()),
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
				})
			}
		}()
		c.Next()
	}
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// requestLogger logs each request at a level chosen by status. Health polls
// are logged only when they fail.
func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if strings.HasPrefix(c.Request.URL.Path, "/health") && status < http.StatusInternalServerError {
			return
		}
		fields := logger.Fields(
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			logger.FieldStatus, status,
			logger.FieldDuration, time.Since(start).Milliseconds(),
			"request_id", c.GetString("request_id"),
		)
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("Request completed", fields)
		case status >= http.StatusBadRequest:
			log.Warn("Request completed", fields)
		default:
			log.Debug("Request completed", fields)
		}
	}
}
