package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/coref-scorer/internal/logger"
)

// ──────────────────────────────────────────────────────────────────
// Bearer Token Authentication Middleware
//
// If a token is configured, all protected routes require:
//   Authorization: Bearer <token>
//
// Public endpoints (health, WebSocket stream, batch progress, Prometheus
// exposition) are excluded.
// ──────────────────────────────────────────────────────────────────

// AuthMiddleware returns a Gin middleware that validates bearer tokens.
// An empty token allows every request (development mode).
func AuthMiddleware(token string, releaseMode bool) gin.HandlerFunc {
	// Fail loudly in production if auth is not configured.
	if token == "" && releaseMode {
		logger.Warn("[Security] API_AUTH_TOKEN is not set in release mode; " +
			"all protected endpoints are publicly accessible")
	}

	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Missing Authorization header",
				"hint":  "Use: Authorization: Bearer <API_AUTH_TOKEN>",
			})
			c.Abort()
			return
		}

		// Parse "Bearer <token>"
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusForbidden, gin.H{"error": "Invalid Authorization header format"})
			c.Abort()
			return
		}

		// Constant-time comparison against timing-based token enumeration
		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
			c.JSON(http.StatusForbidden, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Next()
	}
}
