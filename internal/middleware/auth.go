package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/OpraEria/gather/internal/handler"
	"github.com/OpraEria/gather/internal/model"
	"github.com/OpraEria/gather/pkg/auth"
)

// ContextIdentity is the gin context key carrying the caller's identity.
const ContextIdentity = "session_identity"

type AuthMiddleware struct {
	jwtSvc auth.JWTService
}

func NewAuthMiddleware(jwtSvc auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwtSvc: jwtSvc}
}

// Authenticate verifies the JWT token and sets the session identity in
// the request context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing authorization header"))
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid authorization format"))
			c.Abort()
			return
		}

		claims, err := m.jwtSvc.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid token"))
			c.Abort()
			return
		}

		c.Set(ContextIdentity, &model.SessionIdentity{
			UserID:  claims.UserID,
			GroupID: claims.GroupID,
		})
		c.Next()
	}
}

// AuthenticateOptional sets the session identity when a valid token is
// present but never rejects the request. Callers that accept explicit
// identifiers in the body use this instead of Authenticate.
func (m *AuthMiddleware) AuthenticateOptional() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			if claims, err := m.jwtSvc.ValidateToken(parts[1]); err == nil {
				c.Set(ContextIdentity, &model.SessionIdentity{
					UserID:  claims.UserID,
					GroupID: claims.GroupID,
				})
			}
		}
		c.Next()
	}
}

// Identity reads the session identity set by Authenticate. A nil return
// means the request was not authenticated.
func Identity(c *gin.Context) *model.SessionIdentity {
	if v, ok := c.Get(ContextIdentity); ok {
		if identity, ok := v.(*model.SessionIdentity); ok {
			return identity
		}
	}
	return nil
}
