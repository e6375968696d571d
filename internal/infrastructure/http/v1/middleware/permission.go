package middleware

import (
	"github.com/gin-gonic/gin"

	"docjournal/internal/core/apperror"
	appctx "docjournal/internal/core/context"
)

// RequireAdmin lets only journal administrators through.
// Must run after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := appctx.GetUser(c.Request.Context())
		if user == nil {
			_ = c.Error(apperror.NewUnauthorized("authentication required"))
			c.Abort()
			return
		}

		if !user.IsAdmin {
			_ = c.Error(apperror.NewForbidden("administrator privileges required"))
			c.Abort()
			return
		}

		c.Next()
	}
}
