package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/meal-queue-api/internal/models"
	appErrors "github.com/noah-isme/meal-queue-api/pkg/errors"
	"github.com/noah-isme/meal-queue-api/pkg/response"
)

// RequireRoles admits only callers holding one of roles.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdministrator admits administrators only.
func RequireAdministrator() gin.HandlerFunc {
	return RequireRoles(models.RoleAdministrator)
}
