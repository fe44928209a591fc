package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/modelrelay/relay/pkg/schema"
)

// ErrorHandler serializes errors attached by handlers into the unified
// {"error": {...}} body. Unknown error types become a plain 500.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		var apiErr *schema.Error
		if errors.As(err, &apiErr) {
			c.JSON(apiErr.Status, schema.ErrorResponse{Error: apiErr})
			c.Abort()
			return
		}

		c.JSON(http.StatusInternalServerError, schema.ErrorResponse{
			Error: schema.NewError(http.StatusInternalServerError, schema.ErrTypeInternal,
				"An unexpected error occurred."),
		})
		c.Abort()
	}
}
