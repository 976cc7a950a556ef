package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/service/idempotency"
)

// IdempotencyKeyHeader это заголовок с ключом идемпотентности.
const IdempotencyKeyHeader = "Idempotency-Key"

// idempotent выполняет run один раз на ключ и повторяет сохранённый ответ.
// Без ключа или без хранилища run выполняется как обычно.
func (s *Server) idempotent(c *gin.Context, method string, req any, run func() (int, any, error)) {
	key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
	if s.idemRepo == nil || key == "" {
		status, body, err := run()
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(status, body)
		return
	}

	key, err := domain.NormalizeIdempotencyKey(key)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	hash, err := idempotency.RequestHash(method, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	record, err := s.idemRepo.CreateProcessing(ctx, key, hash, s.now().Add(s.idemTTL))
	if err != nil {
		s.replay(c, err, record)
		return
	}

	status, body, runErr := run()
	if runErr != nil {
		status, payload := mapError(runErr)
		data, _ := json.Marshal(errorResponse{Error: payload})
		if markErr := s.idemRepo.MarkFailed(ctx, key, data, status); markErr != nil {
			s.logger.WithError(markErr).WithField("idempotency_key", key).Warn("failed to store idempotency failure response")
		}
		AbortWithError(c, runErr)
		return
	}

	data, err := json.Marshal(body)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if markErr := s.idemRepo.MarkDone(ctx, key, data, status); markErr != nil {
		s.logger.WithError(markErr).WithField("idempotency_key", key).Warn("failed to store idempotent success response")
	}
	c.Data(status, "application/json; charset=utf-8", data)
}

func (s *Server) replay(c *gin.Context, createErr error, record domain.IdempotencyRecord) {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, errorResponse{Error: errorPayload{
			Type:    "idempotency_mismatch",
			Message: "idempotency key is already used with different request payload",
		}})
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		switch record.Status {
		case domain.IdempotencyStatusProcessing:
			c.AbortWithStatusJSON(http.StatusConflict, errorResponse{Error: errorPayload{
				Type:    "idempotency_in_progress",
				Message: "request with the same idempotency key is already processing",
			}})
		case domain.IdempotencyStatusDone, domain.IdempotencyStatusFailed:
			status := record.ResponseStatus
			if status < http.StatusOK || status > 599 {
				status = http.StatusInternalServerError
			}
			c.Header("Idempotent-Replayed", "true")
			c.Data(status, "application/json; charset=utf-8", record.ResponseBody)
			c.Abort()
		default:
			AbortWithError(c, errors.New("unknown idempotency record status"))
		}
	default:
		s.logger.WithError(createErr).Warn("failed to create idempotency record")
		AbortWithError(c, createErr)
	}
}
