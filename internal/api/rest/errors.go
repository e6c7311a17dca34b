package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "github.com/feral-file/lt-indexer/internal/api/shared/errors"
)

// respondBadRequest responds with a bad request error
func respondBadRequest(c *gin.Context, message string, details ...string) {
	c.JSON(http.StatusBadRequest, apierrors.NewBadRequestError(message, details...))
}

// respondNotFound responds with a not found error
func respondNotFound(c *gin.Context, message string, details ...string) {
	c.JSON(http.StatusNotFound, apierrors.NewNotFoundError(message, details...))
}

// respondValidationError responds with a validation error
func respondValidationError(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, apierrors.NewValidationError(message))
}

// respondError responds with the status carried by an executor error.
// The executor logs the cause before wrapping it.
func respondError(c *gin.Context, err error) {
	apiErr := apierrors.AsAPIError(err)
	c.JSON(apiErr.StatusCode(), apiErr)
}
