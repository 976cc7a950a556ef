package grpcsvc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	invoicingv1 "github.com/vladislavdragonenkov/ims/api/invoicing/v1"
	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/storage/memory"
)

func quietLogger() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return log.NewEntry(logger)
}

func mustStatusCode(t *testing.T, err error, expected codes.Code) {
	t.Helper()
	if status.Code(err) != expected {
		t.Fatalf("expected code %s, got %v", expected, err)
	}
}

func TestStatusFromError_Mapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"not found", fmt.Errorf("%w: p-9", domain.ErrProductNotFound), codes.NotFound},
		{"invalid", domain.ErrLinesRequired, codes.InvalidArgument},
		{"stock", &domain.StockError{ProductID: "p-1", Available: 1, Requested: 5}, codes.FailedPrecondition},
		{"conflict", domain.ErrInvoiceVersionConflict, codes.Aborted},
		{"canceled", context.Canceled, codes.Canceled},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), codes.DeadlineExceeded},
		{"internal", errors.New("disk on fire"), codes.Internal},
		{"already status", status.Error(codes.Unavailable, "down"), codes.Unavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mustStatusCode(t, statusFromError(tt.err), tt.code)
		})
	}

	assert.NoError(t, statusFromError(nil))
	assert.Equal(t, "internal error", status.Convert(statusFromError(errors.New("secret dsn"))).Message())
}

func TestStatusFromError_Details(t *testing.T) {
	st := status.Convert(statusFromError(fmt.Errorf("%w: inv-1", domain.ErrInvoiceNotFound)))
	require.Len(t, st.Details(), 1)
	info, ok := st.Details()[0].(*errdetails.ResourceInfo)
	require.True(t, ok)
	assert.Equal(t, "invoice", info.ResourceType)

	st = status.Convert(statusFromError(domain.ErrDiscountOutOfRange))
	require.Len(t, st.Details(), 1)
	br, ok := st.Details()[0].(*errdetails.BadRequest)
	require.True(t, ok)
	assert.Equal(t, "percentage", br.FieldViolations[0].Field)

	assert.Equal(t, "invoice_line", resourceType(domain.ErrLineNotFound))
	assert.Equal(t, "resource", resourceType(domain.ErrNotFound))
	assert.Equal(t, "", fieldOf(domain.ErrInvalidArgument))
}

func TestDecodeIdempotencyFailure_Branches(t *testing.T) {
	err := decodeIdempotencyFailure(domain.IdempotencyRecord{
		ResponseBody: []byte(`{"code":9,"message":"insufficient stock"}`),
	})
	mustStatusCode(t, err, codes.FailedPrecondition)
	assert.Equal(t, "insufficient stock", status.Convert(err).Message())

	err = decodeIdempotencyFailure(domain.IdempotencyRecord{ResponseBody: []byte(`not-json`), ResponseStatus: int(codes.NotFound)})
	mustStatusCode(t, err, codes.NotFound)

	err = decodeIdempotencyFailure(domain.IdempotencyRecord{ResponseStatus: 999})
	mustStatusCode(t, err, codes.Internal)

	err = decodeIdempotencyFailure(domain.IdempotencyRecord{ResponseBody: []byte(`{"code":0}`)})
	mustStatusCode(t, err, codes.Internal)
}

func TestReplayIdempotency_Statuses(t *testing.T) {
	s := &InvoiceService{logger: quietLogger()}

	_, err := replayIdempotency[invoicingv1.CreateInvoiceResponse](s, domain.ErrIdempotencyKeyAlreadyExists,
		domain.IdempotencyRecord{Status: domain.IdempotencyStatusProcessing})
	mustStatusCode(t, err, codes.Aborted)

	_, err = replayIdempotency[invoicingv1.CreateInvoiceResponse](s, domain.ErrIdempotencyKeyAlreadyExists,
		domain.IdempotencyRecord{Status: domain.IdempotencyStatusDone})
	mustStatusCode(t, err, codes.Internal)

	_, err = replayIdempotency[invoicingv1.CreateInvoiceResponse](s, domain.ErrIdempotencyKeyAlreadyExists,
		domain.IdempotencyRecord{Status: domain.IdempotencyStatusDone, ResponseBody: []byte("{")})
	mustStatusCode(t, err, codes.Internal)

	resp, err := replayIdempotency[invoicingv1.CreateInvoiceResponse](s, domain.ErrIdempotencyKeyAlreadyExists,
		domain.IdempotencyRecord{Status: domain.IdempotencyStatusDone, ResponseBody: []byte(`{"invoice":{"id":"inv-7","total":"1.00"}}`)})
	require.NoError(t, err)
	assert.Equal(t, "inv-7", resp.Invoice.ID)

	_, err = replayIdempotency[invoicingv1.CreateInvoiceResponse](s, errors.New("redis down"), domain.IdempotencyRecord{})
	mustStatusCode(t, err, codes.Internal)
}

func TestWithIdempotency_WithoutKeyRunsHandler(t *testing.T) {
	s := &InvoiceService{logger: quietLogger(), idemRepo: memory.NewIdempotencyRepository()}

	calls := 0
	handler := func(context.Context) (*invoicingv1.VoidInvoiceResponse, error) {
		calls++
		return &invoicingv1.VoidInvoiceResponse{InvoiceID: "inv-1"}, nil
	}

	req := &invoicingv1.VoidInvoiceRequest{InvoiceID: "inv-1"}
	_, err := withIdempotency(s, context.Background(), "m", req, handler)
	require.NoError(t, err)
	_, err = withIdempotency(s, context.Background(), "m", req, handler)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	blank := metadata.NewIncomingContext(context.Background(), metadata.Pairs(idempotencyKeyHeader, "  "))
	assert.Equal(t, "", readIdempotencyKey(blank))
}

func TestWithIdempotency_RejectsMalformedKey(t *testing.T) {
	s := &InvoiceService{logger: quietLogger(), idemRepo: memory.NewIdempotencyRepository()}

	calls := 0
	handler := func(context.Context) (*invoicingv1.VoidInvoiceResponse, error) {
		calls++
		return &invoicingv1.VoidInvoiceResponse{InvoiceID: "inv-1"}, nil
	}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(idempotencyKeyHeader, strings.Repeat("k", domain.MaxIdempotencyKeyLength+1)))
	_, err := withIdempotency(s, ctx, "m", &invoicingv1.VoidInvoiceRequest{InvoiceID: "inv-1"}, handler)
	mustStatusCode(t, err, codes.InvalidArgument)
	assert.Zero(t, calls)
}
