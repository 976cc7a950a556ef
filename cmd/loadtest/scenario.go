package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	invoicingv1 "github.com/vladislavdragonenkov/ims/api/invoicing/v1"
)

const idempotencyHeader = "idempotency-key"

// stockCounters считает единицы, реально списанные и возвращённые за прогон.
type stockCounters struct {
	sold     atomic.Int64
	returned atomic.Int64
	rejected atomic.Int64
}

// timed выполняет один RPC с таймаутом и пишет код ответа в collector.
func timed(col *collector, method string, timeout time.Duration, call func(ctx context.Context) error) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := call(ctx)
	col.record(method, time.Since(start), grpcCode(err))
	return err
}

// runScenario продаёт товар одним счётом и доводит его по режиму.
// Отказ из-за нехватки остатка ожидаем и не считается ошибкой.
func runScenario(
	client invoicingv1.InvoiceServiceClient,
	cfg config,
	index int,
	runID string,
	col *collector,
	counters *stockCounters,
) (err error) {
	start := time.Now()
	defer func() { col.record(scenarioMethod, time.Since(start), grpcCode(err)) }()

	var created *invoicingv1.CreateInvoiceResponse
	err = timed(col, "CreateInvoice", cfg.timeout, func(ctx context.Context) error {
		ctx = metadata.AppendToOutgoingContext(ctx, idempotencyHeader, fmt.Sprintf("lt-create-%s-%d", runID, index))
		var callErr error
		created, callErr = client.CreateInvoice(ctx, &invoicingv1.CreateInvoiceRequest{
			CustomerID: cfg.customerID,
			Lines:      []*invoicingv1.LineItem{{ProductID: cfg.productID, Quantity: cfg.quantity}},
		})
		return callErr
	})
	if status.Code(err) == codes.FailedPrecondition {
		counters.rejected.Add(1)
		return nil
	}
	if err != nil {
		return err
	}
	if created == nil || created.Invoice == nil || created.Invoice.ID == "" {
		return status.Error(codes.Internal, "create response returned empty invoice id")
	}
	inv := created.Invoice
	counters.sold.Add(cfg.quantity)

	switch cfg.mode {
	case modeCreateDiscount:
		if err = applyDiscount(client, cfg, inv.ID, col); err != nil {
			return err
		}
		if shouldVoidScenario(index, cfg.voidRate) {
			return voidInvoice(client, cfg, inv.ID, col, counters)
		}
	case modeCreateVoid:
		return voidInvoice(client, cfg, inv.ID, col, counters)
	case modeCreateCorrect:
		return shrinkFirstLine(client, cfg, inv, col, counters)
	}
	return nil
}

func applyDiscount(client invoicingv1.InvoiceServiceClient, cfg config, invoiceID string, col *collector) error {
	return timed(col, "ApplyDiscount", cfg.timeout, func(ctx context.Context) error {
		_, err := client.ApplyDiscount(ctx, &invoicingv1.ApplyDiscountRequest{InvoiceID: invoiceID, Percentage: cfg.discount})
		return err
	})
}

func voidInvoice(client invoicingv1.InvoiceServiceClient, cfg config, invoiceID string, col *collector, counters *stockCounters) error {
	err := timed(col, "VoidInvoice", cfg.timeout, func(ctx context.Context) error {
		_, err := client.VoidInvoice(ctx, &invoicingv1.VoidInvoiceRequest{InvoiceID: invoiceID, Reason: "load-void"})
		return err
	})
	if err == nil {
		counters.returned.Add(cfg.quantity)
	}
	return err
}

// shrinkFirstLine возвращает на склад одну единицу через CorrectLine.
func shrinkFirstLine(client invoicingv1.InvoiceServiceClient, cfg config, inv *invoicingv1.Invoice, col *collector, counters *stockCounters) error {
	if len(inv.Lines) == 0 || inv.Lines[0].ID == "" {
		return status.Error(codes.Internal, "create response returned no lines")
	}
	qty := cfg.quantity - 1
	err := timed(col, "CorrectLine", cfg.timeout, func(ctx context.Context) error {
		_, err := client.CorrectLine(ctx, &invoicingv1.CorrectLineRequest{InvoiceID: inv.ID, LineID: inv.Lines[0].ID, Quantity: &qty})
		return err
	})
	if err == nil {
		counters.returned.Add(1)
	}
	return err
}

func grpcCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if _, ok := status.FromError(err); !ok && errors.Is(err, context.DeadlineExceeded) {
		return codes.DeadlineExceeded
	}
	return status.Code(err)
}

func shouldVoidScenario(index, voidRate int) bool {
	switch {
	case voidRate <= 0:
		return false
	case voidRate >= 100:
		return true
	default:
		return index%100 < voidRate
	}
}
