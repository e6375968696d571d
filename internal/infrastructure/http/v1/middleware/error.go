package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docjournal/internal/core/apperror"
	appctx "docjournal/internal/core/context"
	"docjournal/pkg/logger"
)

// ErrorHandler middleware transforms errors into consistent JSON responses.
// Hides internal errors from clients while logging full details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		// If response already written by handler, do not override it.
		if c.Writer.Written() {
			return
		}

		ctx := c.Request.Context()
		status := apperror.GetHTTPStatus(err)
		requestID := appctx.GetRequestID(ctx)

		if appErr, ok := apperror.AsAppError(err); ok {
			if appErr.Err != nil || status >= http.StatusInternalServerError {
				logger.Error(ctx, "request error",
					"code", appErr.Code,
					"status", status,
					"cause", appErr.Err,
				)
			}

			details := appErr.Details
			if status >= http.StatusInternalServerError {
				details = map[string]any{"request_id": requestID}
			}
			c.JSON(status, gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
				"details": details,
			})
			return
		}

		// Unknown error - log and return generic message
		logger.Error(ctx, "unhandled error",
			"error", err,
		)

		c.JSON(status, gin.H{
			"code":    apperror.CodeInternal,
			"message": "Internal server error",
			"details": map[string]any{
				"request_id": requestID,
			},
		})
	}
}
