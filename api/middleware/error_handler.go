// api/middleware/error_handler.go
package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/christopher-kapic/solved-problems-mcp/internal/auth"
	"github.com/christopher-kapic/solved-problems-mcp/internal/core"
	"github.com/christopher-kapic/solved-problems-mcp/internal/storage"
)

// ErrorHandler creates a Gin middleware for centralized error handling.
// Handlers attach sentinel errors with c.Error; this maps them to statuses.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		// Only the last error drives the response.
		err := c.Errors.Last().Err
		customLog.Printf("[ErrorHandler] Detected error: %v | Type: %T", err, err)

		var statusCode int
		var userMessage string
		var validationErrs validator.ValidationErrors

		switch {
		// Absent and present-but-inaccessible are deliberately the same
		// answer, so existence never leaks to unauthorized callers.
		case errors.Is(err, storage.ErrUserNotFound) ||
			errors.Is(err, storage.ErrProblemNotFound) ||
			errors.Is(err, storage.ErrVersionNotFound) ||
			errors.Is(err, storage.ErrGroupNotFound) ||
			errors.Is(err, storage.ErrShareNotFound) ||
			errors.Is(err, storage.ErrAPIKeyNotFound) ||
			errors.Is(err, storage.ErrDraftNotFound) ||
			errors.Is(err, storage.ErrMembershipNotFound):
			statusCode = http.StatusNotFound
			userMessage = err.Error()

		case errors.Is(err, storage.ErrEmailExists) ||
			errors.Is(err, storage.ErrShareExists) ||
			errors.Is(err, storage.ErrMembershipExists) ||
			errors.Is(err, storage.ErrAPIKeyRevoked):
			statusCode = http.StatusConflict
			userMessage = err.Error()

		case errors.Is(err, storage.ErrDraftNotPending) ||
			errors.Is(err, storage.ErrSelfTarget) ||
			errors.Is(err, core.ErrInvalidInput) ||
			errors.Is(err, auth.ErrBadRequest):
			statusCode = http.StatusBadRequest
			userMessage = err.Error()

		case errors.Is(err, auth.ErrTokenExpired):
			statusCode = http.StatusUnauthorized
			userMessage = "Authentication token has expired."

		case errors.Is(err, auth.ErrTokenMalformed) ||
			errors.Is(err, auth.ErrTokenInvalid) ||
			errors.Is(err, auth.ErrTokenClaimsInvalid) ||
			errors.Is(err, auth.ErrUnexpectedSigningMethod):
			statusCode = http.StatusUnauthorized
			userMessage = "Invalid or malformed authentication token."

		case errors.Is(err, auth.ErrUnauthorized) ||
			errors.Is(err, storage.ErrInvalidCredentials):
			statusCode = http.StatusUnauthorized
			userMessage = err.Error()

		case errors.Is(err, auth.ErrForbidden):
			statusCode = http.StatusForbidden
			userMessage = err.Error()

		case errors.As(err, &validationErrs):
			// Validation errors from c.ShouldBindJSON
			statusCode = http.StatusBadRequest
			userMessage = "Validation failed. Please check your input."
			for _, fe := range validationErrs {
				customLog.Printf("Validation Error: Field %s failed on %s", fe.Field(), fe.Tag())
			}

		default:
			statusCode = http.StatusInternalServerError
			userMessage = "An unexpected internal server error occurred."
			customLog.Warnf("Unhandled error type: %T, Error: %v", err, err)
		}

		if !c.Writer.Written() {
			c.AbortWithStatusJSON(statusCode, gin.H{"error": userMessage})
		} else {
			customLog.Printf("[ErrorHandler] Warning: Response already written before handling error.")
		}
	}
}
