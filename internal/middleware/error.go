package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "treasurer/internal/errors"
	"treasurer/internal/logger"
)

// ErrorHandler renders the last error attached to the gin context as
// {"error":{"code","message"}}. Internal causes are logged, never returned.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		log := logger.With("request_id", RequestID(c), "method", c.Request.Method, "path", c.Request.URL.Path)

		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			log.Errorw("unexpected error", "error", err.Error())
			appErr = apperrors.ErrInternalServer
		} else if appErr.Internal != nil {
			if appErr.StatusCode >= 500 {
				log.Errorw("request failed", "code", appErr.Code, "internal", appErr.Internal.Error())
			} else {
				log.Warnw("request rejected", "code", appErr.Code, "internal", appErr.Internal.Error())
			}
		}

		c.JSON(appErr.StatusCode, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
	}
}
