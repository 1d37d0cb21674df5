package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dormtrack/internal/model"
)

const principalKey = "principal"

// RequireAuth enforces bearer JWT tokens signed with HS256 and stores the
// resolved principal on the request context.
func RequireAuth(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(principalKey, model.Principal{ID: claims.UserID, Role: claims.Role})
		c.Next()
	}
}

// RequireRoles rejects callers whose role is not in the allow-list.
// It must run after RequireAuth.
func RequireRoles(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		for _, role := range roles {
			if p.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient rights"})
	}
}

// PrincipalFrom returns the authenticated principal stored by RequireAuth.
func PrincipalFrom(c *gin.Context) (model.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return model.Principal{}, false
	}
	p, ok := v.(model.Principal)
	return p, ok
}
