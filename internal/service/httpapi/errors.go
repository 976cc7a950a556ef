package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

// requestError это ошибка разбора запроса до вызова доменного сервиса.
type requestError struct {
	field   string
	message string
}

func (e *requestError) Error() string { return e.message }

func (e *requestError) Unwrap() error { return domain.ErrInvalidArgument }

func invalidRequest(field, message string) error {
	return &requestError{field: field, message: message}
}

// ErrorHandlingMiddleware пишет JSON-ответ по последней ошибке из c.Errors.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  []ValidationError{{Field: reqErr.field, Code: "invalid_request", Message: reqErr.message}},
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorPayload{Type: "timeout", Message: "request timed out"}
	case errors.Is(err, context.Canceled):
		return 499, errorPayload{Type: "canceled", Message: "request canceled"}
	}

	switch domain.KindOf(err) {
	case domain.KindNotFound:
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: err.Error()}
	case domain.KindInvalidArgument:
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  []ValidationError{{Code: "invalid_argument", Message: err.Error()}},
		}
	case domain.KindInsufficientStock:
		payload := errorPayload{Type: "insufficient_stock", Message: err.Error()}
		var stockErr *domain.StockError
		if errors.As(err, &stockErr) {
			payload.Errors = []ValidationError{{Field: "product_id", Code: "insufficient_stock", Message: stockErr.ProductID}}
		}
		return http.StatusConflict, payload
	case domain.KindConflict:
		return http.StatusConflict, errorPayload{Type: "conflict", Message: err.Error()}
	default:
		return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal server error"}
	}
}
