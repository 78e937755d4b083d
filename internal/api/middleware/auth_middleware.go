package middleware

import (
	"log"
	"net/http"
	"slices"
	"strings"
	"tea_refill/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	AuthorizationHeaderKey  = "Authorization"
	AuthorizationTypeBearer = "Bearer"
	UserIDKey               = "userID"
	UserRoleKey             = "userRole"
	UsernameKey             = "username"
)

type AuthMiddleware struct {
	authService *service.AuthService
}

func NewAuthMiddleware(authService *service.AuthService) *AuthMiddleware {
	return &AuthMiddleware{authService: authService}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	token = strings.TrimSpace(token)
	if !found || token == "" || !strings.EqualFold(scheme, AuthorizationTypeBearer) {
		return "", false
	}
	return token, true
}

// Authenticate validates the bearer JWT and stores its subject, role and username on the context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader(AuthorizationHeaderKey))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or malformed bearer token"})
			return
		}

		_, claims, err := m.authService.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token is invalid or expired", "details": err.Error()})
			return
		}

		for key, claim := range map[string]string{UserIDKey: "sub", UserRoleKey: "role", UsernameKey: "username"} {
			value, ok := claims[claim].(string)
			if !ok || value == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token claim '" + claim + "' is missing"})
				return
			}
			c.Set(key, value)
		}
		c.Next()
	}
}

// AuthorizeRole lets the request through only for the listed roles. Requires Authenticate first.
func (m *AuthMiddleware) AuthorizeRole(requiredRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole := c.GetString(UserRoleKey)
		if slices.Contains(requiredRoles, userRole) {
			c.Next()
			return
		}
		log.Printf("AuthorizeRole: role %q denied on %s (requires %v)", userRole, c.FullPath(), requiredRoles)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden: role not allowed"})
	}
}

// AuthorizeSelfOrAdmin restricts :param routes to the user they name, or an admin.
func (m *AuthMiddleware) AuthorizeSelfOrAdmin(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(UserRoleKey) == "admin" || c.GetString(UserIDKey) == c.Param(param) {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden: not your resource"})
	}
}
