package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sfd-aulas-api/internal/models"
	appErrors "github.com/noah-isme/sfd-aulas-api/pkg/errors"
	"github.com/noah-isme/sfd-aulas-api/pkg/response"
)

// RequireRoles only lets requests through whose token carries one of roles.
// It must run after JWT.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
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

// Operators are allowed to change aulas.
var Operators = []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin}

// Readers can view aulas, calendars and archives.
var Readers = []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher}
