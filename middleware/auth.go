package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gamelive/server/cache"
	"github.com/gamelive/server/config"
	"github.com/gin-gonic/gin"
)

const UserIDKey = "user_id"

// SessionCookie is the cookie the Telegram web client carries the token in.
const SessionCookie = "session"

// sessionToken extracts the JWT from the session cookie or, failing that,
// from the Authorization header (used by API clients and tests).
func sessionToken(c *gin.Context) string {
	if tok, err := c.Cookie(SessionCookie); err == nil && tok != "" {
		return tok
	}
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// Auth validates the session JWT and checks the session cache.
func Auth(sec config.SecurityConfig, ch cache.Cache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenStr := sessionToken(ctx)
		if tokenStr == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": "unauthorized", "message": "Not authenticated",
			})
			return
		}

		claims, err := ParseToken(tokenStr, sec.JWTSecret)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": "unauthorized", "message": "Invalid session",
			})
			return
		}

		// Check session still valid in cache.
		sessionKey := "session:" + tokenStr
		cacheCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
		defer cancel()
		exists, err := ch.Exists(cacheCtx, sessionKey)
		if err != nil || !exists {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": "unauthorized", "message": "Invalid session",
			})
			return
		}

		ctx.Set(UserIDKey, claims.UserID)
		ctx.Next()
	}
}

// GetUserID retrieves the authenticated user ID from the Gin context.
func GetUserID(c *gin.Context) int64 {
	if v, exists := c.Get(UserIDKey); exists {
		return v.(int64)
	}
	return 0
}
