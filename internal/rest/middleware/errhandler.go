package middleware

import (
	"strings"

	"github.com/cockroachdb/errors"
	ierr "github.com/giropos/fiscal/internal/errors"
	"github.com/gin-gonic/gin"
)

// ErrorHandler middleware handles error responses
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last().Err

			response := ierr.NewErrorResponse(err)
			if display := getDisplayMessage(err); display != "" {
				response.Error.Display = display
			}

			status := ierr.HTTPStatusFromErr(err)
			c.JSON(status, response)
		}
	}
}

func getDisplayMessage(err error) string {
	// GetAllHints is post-order traversal; the first non-empty hint is
	// the one closest to the failure
	for _, hint := range errors.GetAllHints(err) {
		if hint = strings.TrimSpace(hint); hint != "" {
			return hint
		}
	}
	return ""
}
