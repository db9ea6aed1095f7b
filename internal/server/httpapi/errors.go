package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error      string   `json:"error"`
	Violations []string `json:"violations,omitempty"`
}

// statusFor maps a service error to an HTTP status.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, common.ErrInconsistent):
		return http.StatusInternalServerError
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrUnauthorized), errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrForbidden), errors.Is(err, common.ErrForbiddenAssignment):
		return http.StatusForbidden
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrAlreadyAssigned), errors.Is(err, common.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, common.ErrExpired):
		return http.StatusGone
	case errors.Is(err, common.ErrStreamError):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// publicMessage hides internal details of 5xx errors.
func publicMessage(status int, err error) string {
	switch status {
	case http.StatusInternalServerError:
		return "internal error"
	case http.StatusServiceUnavailable:
		return common.ErrStorageUnavailable.Error()
	case http.StatusRequestEntityTooLarge:
		return "request body too large"
	}
	return err.Error()
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: publicMessage(status, err)}

	var ve *common.ValidationError
	if errors.As(err, &ve) {
		resp.Error = common.ErrValidation.Error()
		resp.Violations = ve.Violations
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "status", status, "error", err)
	}
	c.AbortWithStatusJSON(status, resp)
}
