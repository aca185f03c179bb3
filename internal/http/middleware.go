package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"movie-watchlist/internal/auth"
)

const identityKey = "identity"

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger tags every request with an id and logs its outcome.
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.NewString()
		c.Writer.Header().Set("X-Request-ID", requestID)

		start := time.Now()
		c.Next()

		logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).String(),
		}).Info("request")
	}
}

// authRequired admits requests carrying a verifiable bearer token and
// attaches the decoded identity to the context. Verification never touches
// the store, and every failure mode yields the same response so callers
// cannot tell a missing token from a malformed or expired one.
func (h *Handler) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			unauthenticated(c)
			return
		}

		claims, err := h.issuer.Parse(token)
		if err != nil {
			unauthenticated(c)
			return
		}

		c.Set(identityKey, claims)
		c.Next()
	}
}

// bearerToken extracts the credential from an Authorization header value,
// accepting a case-insensitive "Bearer " prefix or a raw token.
func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

func unauthenticated(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
}

func identityFromContext(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(identityKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	// Protected handlers only run behind authRequired; reaching here is a
	// routing bug.
	panic("http: identity missing from request context")
}
