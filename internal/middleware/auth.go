package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"group_chat/internal/domain"
	"group_chat/internal/service"
	"group_chat/pkg/logger"
)

const (
	ContextUserID       = "user_id"
	ContextIsSuperAdmin = "is_super_admin"
	ContextIdentity     = "identity"
)

type AuthMiddleware struct {
	authService service.AuthService
	log         logger.Logger
}

func NewAuthMiddleware(authService service.AuthService, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		log:         log,
	}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}

		identity, err := m.authService.Authenticate(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(ContextUserID, identity.UserID)
		c.Set(ContextIsSuperAdmin, identity.IsSuperAdmin)
		c.Set(ContextIdentity, identity)
		c.Next()
	}
}

// IdentityFrom достает личность, положенную RequireAuth
func IdentityFrom(c *gin.Context) (*domain.Identity, bool) {
	value, exists := c.Get(ContextIdentity)
	if !exists {
		return nil, false
	}
	identity, ok := value.(*domain.Identity)
	return identity, ok
}
