package rest

import (
	"github.com/gin-gonic/gin"
)

// jsonError writes the error envelope shared by every endpoint:
// {"code": ..., "message": ..., "details": ...} with details omitted
// when empty.
func jsonError(c *gin.Context, status int, code, message string, details ...string) {
	body := gin.H{"code": code, "message": message}
	if len(details) > 0 && details[0] != "" {
		body["details"] = details[0]
	}
	c.AbortWithStatusJSON(status, body)
}
