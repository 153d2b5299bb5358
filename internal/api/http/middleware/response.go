package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/EternisAI/botping/internal/api/http/dto"
	"github.com/gin-gonic/gin"
)

// ServerHeaders marks every response as JSON produced by this service.
func ServerHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "application/json")
		c.Header("X-Powered-By", "Go/Gin")
		c.Next()
	}
}

// ErrorCatcher rewrites 404 and 5xx responses that no handler wrote a body
// for into the standard message shape.
func ErrorCatcher() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		status := c.Writer.Status()
		switch {
		case status == http.StatusNotFound:
			c.JSON(http.StatusNotFound, dto.Message("Not Found", http.StatusNotFound))
		case status >= http.StatusInternalServerError:
			c.JSON(http.StatusInternalServerError, dto.Message("Server Error", http.StatusInternalServerError))
		}
	}
}

// Recover converts a handler panic into a 500 message response.
func Recover() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, err any) {
		slog.Error("Handler panic", "path", c.Request.URL.Path, "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError,
			dto.Message("Server Error", http.StatusInternalServerError))
	})
}

func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		slog.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP())
	}
}
