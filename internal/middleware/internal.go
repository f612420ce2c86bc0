package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"
	"github.com/yiback/gatherly/pkg/response"
)

const InternalTokenHeader = "X-Internal-Token"

// InternalToken guards server-to-server endpoints with a shared secret. With
// no token configured every request is refused.
func InternalToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sent := c.GetHeader(InternalTokenHeader)
		if token == "" || subtle.ConstantTimeCompare([]byte(sent), []byte(token)) != 1 {
			response.Unauthorized(c, "invalid internal token")
			c.Abort()
			return
		}
		c.Next()
	}
}
