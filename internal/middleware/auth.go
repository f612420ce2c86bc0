package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yiback/gatherly/internal/utils"
	"github.com/yiback/gatherly/pkg/response"
)

const (
	ContextUserID = "user_id"
	ContextEmail  = "email"
)

// bearerClaims parses the Authorization header. present is false when the
// header is missing; msg explains why claims is nil.
func bearerClaims(c *gin.Context) (claims *utils.Claims, present bool, msg string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, false, "authorization header required"
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return nil, true, "invalid authorization header format"
	}

	claims, err := utils.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, true, "invalid or expired token"
	}
	return claims, true, ""
}

// AuthRequired rejects requests without a valid session token.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, _, msg := bearerClaims(c)
		if claims == nil {
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextEmail, claims.Email)
		c.Next()
	}
}

// OptionalAuth attaches the caller when a token is sent but lets anonymous
// requests through. A malformed or expired token is still rejected.
func OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, present, msg := bearerClaims(c)
		if !present {
			c.Next()
			return
		}
		if claims == nil {
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextEmail, claims.Email)
		c.Next()
	}
}

// GetUserID returns the authenticated user id, or "" for anonymous requests.
func GetUserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

func GetEmail(c *gin.Context) string {
	return c.GetString(ContextEmail)
}
