package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-portal/internal/model"
	"github.com/stemsi/exstem-portal/internal/response"
)

// RequireRole rejects requests whose token carries a different role.
func RequireRole(role model.Role) gin.HandlerFunc {
	code := response.ErrForbidden
	switch role {
	case model.RoleStudent:
		code = response.ErrStudentAccessOnly
	case model.RoleAdmin:
		code = response.ErrAdminAccessOnly
	}

	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		if claims.Role != role {
			response.AbortFail(c, http.StatusForbidden, code)
			return
		}
		c.Next()
	}
}
