package httpapi

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/gin-gonic/gin"
)

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// authRequired resolves the bearer token to the acting user id and stores
// it under common.UserIDContextKey.
func (h *Handler) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			h.fail(c, common.ErrUnauthorized)
			return
		}

		userID, err := h.users.Authenticate(token)
		if err != nil {
			h.fail(c, err)
			return
		}

		c.Set(common.UserIDContextKey, userID)
		c.Next()
	}
}

func actor(c *gin.Context) int64 {
	return c.GetInt64(common.UserIDContextKey)
}

// requestLogger logs one line per request.
func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		h.logger.Info(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"bytes", c.Writer.Size(),
			"duration", time.Since(start),
		)
	}
}
