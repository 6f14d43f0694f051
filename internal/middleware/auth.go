package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aicare/casemgr/internal/identity"
	"github.com/aicare/casemgr/internal/normalize"
	"github.com/aicare/casemgr/pkg/auth"
	"github.com/aicare/casemgr/pkg/httputil"
)

const ContextUserID = "user_id"

type AuthMiddleware struct {
	jwt auth.JWTService
}

func NewAuthMiddleware(jwt auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

// Authenticate verifies the bearer token and puts the caller into the
// request context, where services pick it up through identity.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httputil.Abort(c, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			httputil.Abort(c, http.StatusUnauthorized, "invalid authorization format")
			return
		}

		claims, err := m.jwt.ValidateToken(parts[1])
		if err != nil {
			httputil.Abort(c, http.StatusUnauthorized, "invalid token")
			return
		}

		user := identity.User{ID: claims.Subject, Name: claims.Name, Role: claims.Role}
		c.Request = c.Request.WithContext(identity.WithUser(c.Request.Context(), user))
		c.Set(ContextUserID, user.ID)
		c.Next()
	}
}

// RequireRole lets the request through only for the listed roles.
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := identity.FromContext(c.Request.Context())
		if !ok {
			httputil.Abort(c, http.StatusUnauthorized, "unauthenticated")
			return
		}
		if !slices.Contains(roles, user.Role) {
			httputil.Abort(c, http.StatusForbidden, "permission denied")
			return
		}
		c.Next()
	}
}

// SelfOrRole admits the listed roles, and anyone else only when the path
// parameter param names the caller.
func (m *AuthMiddleware) SelfOrRole(param string, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := identity.FromContext(c.Request.Context())
		if !ok {
			httputil.Abort(c, http.StatusUnauthorized, "unauthenticated")
			return
		}
		if !slices.Contains(roles, user.Role) && normalize.Identifier(c.Param(param)) != user.ID {
			httputil.Abort(c, http.StatusForbidden, "permission denied")
			return
		}
		c.Next()
	}
}
