package middleware

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"

	"github.com/EternisAI/botping/internal/api/http/dto"
	"github.com/EternisAI/botping/internal/auth"
	"github.com/gin-gonic/gin"
)

const (
	authorizationHeader = "Authorization"
	apiKeyHeader        = "X-API-Key"
)

// TokenVerifier checks a parsed caller token.
type TokenVerifier interface {
	Verify(token string) bool
}

func TokenAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		values, present := c.Request.Header[authorizationHeader]
		if !present || len(values) == 0 {
			slog.Info("Missing `Authorization` header", "path", c.Request.URL.Path, "client_ip", c.ClientIP())
			abort(c, http.StatusForbidden, "Missing `Authorization` header")
			return
		}

		token, err := auth.ParseToken(values[0])
		if errors.Is(err, auth.ErrMalformedToken) {
			slog.Info("Invalid token value", "path", c.Request.URL.Path, "client_ip", c.ClientIP())
			abort(c, http.StatusBadRequest, "Invalid token value")
			return
		}
		if err != nil || !verifier.Verify(token) {
			slog.Info("Unauthorized token", "path", c.Request.URL.Path, "client_ip", c.ClientIP())
			abort(c, http.StatusForbidden, "Unauthorized")
			return
		}

		c.Next()
	}
}

func APIKeyAuth(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			slog.Warn("Admin API key not configured, rejecting request",
				"path", c.Request.URL.Path,
				"client_ip", c.ClientIP())
			abort(c, http.StatusServiceUnavailable, "Admin API is not configured")
			return
		}

		providedKey := c.GetHeader(apiKeyHeader)
		if providedKey == "" {
			abort(c, http.StatusUnauthorized, "Missing API key")
			return
		}

		if subtle.ConstantTimeCompare([]byte(providedKey), []byte(apiKey)) != 1 {
			slog.Warn("Invalid API key attempt",
				"path", c.Request.URL.Path,
				"client_ip", c.ClientIP())
			abort(c, http.StatusUnauthorized, "Invalid API key")
			return
		}

		c.Next()
	}
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, dto.Message(message, status))
}
