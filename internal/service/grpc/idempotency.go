package grpcsvc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/service/idempotency"
)

const idempotencyKeyHeader = "idempotency-key"

type idempotencyErrorPayload struct {
	Code    int32  `json:"code"`
	Message string `json:"message"`
}

// withIdempotency выполняет handler один раз на ключ из metadata.
// Без ключа запрос выполняется как обычный.
func withIdempotency[Req any, Resp any](
	s *InvoiceService,
	ctx context.Context,
	method string,
	req *Req,
	handler func(context.Context) (*Resp, error),
) (*Resp, error) {
	idemKey := readIdempotencyKey(ctx)
	if s.idemRepo == nil || idemKey == "" {
		return handler(ctx)
	}

	idemKey, err := domain.NormalizeIdempotencyKey(idemKey)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	reqHash, err := idempotency.RequestHash(method, req)
	if err != nil {
		s.logger.WithError(err).WithField("method", method).Warn("failed to build idempotency request hash")
		return nil, status.Error(codes.Internal, "failed to initialize idempotency request")
	}

	record, err := s.idemRepo.CreateProcessing(ctx, idemKey, reqHash, s.now().Add(s.idemTTL))
	if err != nil {
		return replayIdempotency[Resp](s, err, record)
	}

	resp, runErr := handler(ctx)
	if runErr != nil {
		s.cacheIdempotencyFailure(ctx, idemKey, runErr)
		return nil, runErr
	}

	if cacheErr := s.cacheIdempotencySuccess(ctx, idemKey, resp); cacheErr != nil {
		s.logger.WithError(cacheErr).WithField("idempotency_key", idemKey).Warn("failed to store idempotent success response")
	}

	return resp, nil
}

func replayIdempotency[Resp any](s *InvoiceService, createErr error, record domain.IdempotencyRecord) (*Resp, error) {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		return nil, status.Error(codes.AlreadyExists, "idempotency key is already used with different request payload")
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		switch record.Status {
		case domain.IdempotencyStatusDone:
			if len(record.ResponseBody) == 0 {
				return nil, status.Error(codes.Internal, "idempotency cache is empty")
			}
			resp := new(Resp)
			if err := json.Unmarshal(record.ResponseBody, resp); err != nil {
				s.logger.WithError(err).WithField("idempotency_key", record.Key).Warn("failed to decode cached idempotency response")
				return nil, status.Error(codes.Internal, "failed to decode cached idempotency response")
			}
			return resp, nil
		case domain.IdempotencyStatusProcessing:
			return nil, status.Error(codes.Aborted, "request with the same idempotency key is already processing")
		case domain.IdempotencyStatusFailed:
			return nil, decodeIdempotencyFailure(record)
		default:
			return nil, status.Error(codes.Internal, "unknown idempotency record status")
		}
	default:
		s.logger.WithError(createErr).Warn("failed to create idempotency record")
		return nil, status.Error(codes.Internal, "failed to initialize idempotency request")
	}
}

func (s *InvoiceService) cacheIdempotencySuccess(ctx context.Context, key string, resp any) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.idemRepo.MarkDone(ctx, key, data, int(codes.OK))
}

func (s *InvoiceService) cacheIdempotencyFailure(ctx context.Context, key string, runErr error) {
	st := status.Convert(runErr)
	code := st.Code()
	if code == codes.OK {
		code = codes.Internal
	}

	payload, err := json.Marshal(idempotencyErrorPayload{
		Code:    int32(code), //nolint:gosec // codes.Code is a bounded enum value.
		Message: st.Message(),
	})
	if err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to encode idempotency failure payload")
		payload = nil
	}

	if err := s.idemRepo.MarkFailed(ctx, key, payload, int(code)); err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotency failure response")
	}
}

func decodeIdempotencyFailure(record domain.IdempotencyRecord) error {
	if len(record.ResponseBody) > 0 {
		var payload idempotencyErrorPayload
		if err := json.Unmarshal(record.ResponseBody, &payload); err == nil {
			if code, ok := grpcCode(int(payload.Code)); ok && code != codes.OK {
				if payload.Message == "" {
					payload.Message = "previous request with the same idempotency key failed"
				}
				return status.Error(code, payload.Message)
			}
		}
	}

	if code, ok := grpcCode(record.ResponseStatus); ok && code != codes.OK {
		return status.Error(code, "previous request with the same idempotency key failed")
	}

	return status.Error(codes.Internal, "previous request with the same idempotency key failed")
}

func grpcCode(value int) (codes.Code, bool) {
	if value < int(codes.OK) || value > int(codes.Unauthenticated) {
		return codes.Internal, false
	}
	return codes.Code(uint32(value)), true //nolint:gosec // bounds checked above
}

func readIdempotencyKey(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(idempotencyKeyHeader); len(values) > 0 {
			return strings.TrimSpace(values[0])
		}
	}
	return ""
}
