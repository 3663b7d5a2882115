package auth

import (
	"context"
	"strings"

	pkgerrors "kitarekayasa/pkg/errors"
	"kitarekayasa/pkg/utils/contextkey"
	"kitarekayasa/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

const callerContextKey = "auth_caller"

// TokenParser turns a bearer token into a Caller.
type TokenParser interface {
	Parse(raw string) (Caller, error)
}

// Optional attaches the caller when a valid bearer token is present and lets
// anonymous requests through. An invalid token is still rejected.
func Optional(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.Next()
			return
		}
		caller, err := parser.Parse(token)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}
		setCaller(c, caller)
		c.Next()
	}
}

// Required rejects requests without a valid bearer token.
// When roles is non-empty the caller must hold one of them.
func Required(parser TokenParser, roles ...Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if parser == nil {
			response.AbortWithErrorCode(c, pkgerrors.ServiceUnavailable, "auth service unavailable")
			return
		}
		caller, err := parser.Parse(extractBearerToken(c.GetHeader("Authorization")))
		if err != nil {
			response.AbortWithError(c, err)
			return
		}
		if len(roles) > 0 && !caller.HasRole(roles...) {
			response.AbortWithErrorCode(c, pkgerrors.InsufficientPermission, "insufficient role")
			return
		}
		setCaller(c, caller)
		c.Next()
	}
}

// CallerFrom returns the caller attached by Optional or Required.
func CallerFrom(c *gin.Context) Caller {
	if v, ok := c.Get(callerContextKey); ok {
		if caller, ok := v.(Caller); ok {
			return caller
		}
	}
	return Caller{}
}

func setCaller(c *gin.Context, caller Caller) {
	c.Set(callerContextKey, caller)
	c.Set("user_id", caller.ID)
	c.Set("user_role", string(caller.Role))
	ctx := context.WithValue(c.Request.Context(), contextkey.UserID, caller.ID)
	ctx = context.WithValue(ctx, contextkey.UserRole, string(caller.Role))
	c.Request = c.Request.WithContext(ctx)
}

func extractBearerToken(authHeader string) string {
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
