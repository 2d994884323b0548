package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roach88/slotswap/internal/domain"
)

type errorBody struct {
	Detail    string `json:"detail"`
	Code      string `json:"code,omitempty"`
	Retryable bool   `json:"retryable"`
}

// statusFor maps an error code to its HTTP status.
func statusFor(code domain.ErrorCode) int {
	switch code {
	case domain.ErrCodeValidation, domain.ErrCodeSelfSwap,
		domain.ErrCodeForbiddenTransition, domain.ErrCodeDuplicate:
		return http.StatusBadRequest
	case domain.ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case domain.ErrCodeNotOwner:
		return http.StatusForbidden
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeInvalidState, domain.ErrCodeConflict, domain.ErrCodeAlreadyResolved:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err and aborts the chain. Uncoded errors are logged
// and reported as a generic 500 so internals do not leak.
func writeError(c *gin.Context, err error) {
	var de *domain.Error
	if errors.As(err, &de) {
		c.AbortWithStatusJSON(statusFor(de.Code), errorBody{
			Detail:    de.Message,
			Code:      string(de.Code),
			Retryable: de.Retryable(),
		})
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorBody{
			Detail:    "request timed out",
			Retryable: true,
		})
		return
	}

	slog.Error("request failed",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"request_id", c.GetString(requestIDKey),
		"error", err,
	)
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Detail: "Internal Server Error"})
}
