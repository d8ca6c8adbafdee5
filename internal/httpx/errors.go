package httpx

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MikeMC777/storefront-ecom/internal/apperr"
)

// HTTPError represents a standard error in JSON.
// swagger:model
type HTTPError struct {
	// machine readable error kind
	// example: not_found
	Error string `json:"error"`
	// example: order not found
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Status maps an error kind to its HTTP status code.
func Status(k apperr.Kind) int {
	switch k {
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.OutOfStock, apperr.EmptyCart, apperr.InvalidTransition, apperr.ValidationFailed:
		return http.StatusBadRequest
	case apperr.Unauthenticated:
		return http.StatusUnauthorized
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteError aborts the request with the status and body for err. Internal
// errors are logged and their detail is not sent to the client.
func WriteError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal {
		Log(c).Error("request failed", zap.Error(err))
	}
	c.AbortWithStatusJSON(Status(kind), HTTPError{
		Error:     kind.String(),
		Message:   apperr.Message(err),
		RequestID: RequestIDFrom(c),
	})
}

// BadRequest aborts with a validation error carrying msg.
func BadRequest(c *gin.Context, msg string) {
	WriteError(c, apperr.New(apperr.ValidationFailed, msg))
}
