package handlers

import (
	"errors"
	"net/http"

	"storefront-order-service/internal/dto"
	"storefront-order-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const retryAfterSeconds = "1"

// writeError переводит ошибку сервиса в HTTP ответ по её категории.
func writeError(c *gin.Context, log *zap.Logger, err error) {
	var verr *service.ValidationError
	var cerr *service.ConflictStateError

	switch {
	case errors.As(err, &verr):
		fields := make([]dto.FieldError, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			fields = append(fields, dto.FieldError{Field: f.Field, Message: f.Message})
		}
		c.JSON(http.StatusBadRequest, dto.NewValidationError("validation failed", fields))
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, dto.NewValidationError(err.Error(), nil))
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, dto.NewUnauthorizedError("authentication required"))
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, dto.NewForbiddenError("access denied"))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, dto.NewNotFoundError(err.Error()))
	case errors.As(err, &cerr):
		resp := dto.NewConflictError(err.Error())
		resp.CurrentStatus = string(cerr.Current)
		if service.IsRetryable(err) {
			resp.Retryable = true
			c.Header("Retry-After", retryAfterSeconds)
		}
		c.JSON(http.StatusConflict, resp)
	case errors.Is(err, service.ErrConflict):
		resp := dto.NewConflictError(err.Error())
		if service.IsRetryable(err) {
			resp.Retryable = true
			c.Header("Retry-After", retryAfterSeconds)
		}
		c.JSON(http.StatusConflict, resp)
	case errors.Is(err, service.ErrStoreUnavailable):
		log.Warn("store unavailable", zap.Error(err))
		c.Header("Retry-After", retryAfterSeconds)
		c.JSON(http.StatusServiceUnavailable, dto.NewUnavailableError("service temporarily unavailable"))
	case errors.Is(err, service.ErrStore):
		log.Error("store failure", zap.String("path", c.FullPath()), zap.Error(err))
		resp := dto.NewInternalError("")
		resp.Retryable = true
		c.Header("Retry-After", retryAfterSeconds)
		c.JSON(http.StatusInternalServerError, resp)
	default:
		log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.NewInternalError(""))
	}
}
