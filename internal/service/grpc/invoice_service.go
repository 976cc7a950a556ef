package grpcsvc

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	invoicingv1 "github.com/vladislavdragonenkov/ims/api/invoicing/v1"
	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/service/convert"
	"github.com/vladislavdragonenkov/ims/internal/service/idempotency"
	"github.com/vladislavdragonenkov/ims/internal/service/inventory"
	"github.com/vladislavdragonenkov/ims/internal/service/invoice"
	"github.com/vladislavdragonenkov/ims/internal/service/reporting"
)

// InvoiceService реализует invoicing.v1.InvoiceService поверх доменных сервисов.
type InvoiceService struct {
	invoicingv1.UnimplementedInvoiceServiceServer

	invoices *invoice.Service
	ledger   *inventory.Ledger
	reports  *reporting.Engine
	idemRepo domain.IdempotencyRepository
	idemTTL  time.Duration
	logger   *log.Entry
	now      func() time.Time
}

// NewInvoiceService конструирует сервис с зависимостями. idemRepo может быть nil.
func NewInvoiceService(
	invoices *invoice.Service,
	ledger *inventory.Ledger,
	reports *reporting.Engine,
	idemRepo domain.IdempotencyRepository,
	logger *log.Entry,
) *InvoiceService {
	if logger == nil {
		logger = log.New().WithField("component", "grpc-invoice-service")
	}
	return &InvoiceService{
		invoices: invoices,
		ledger:   ledger,
		reports:  reports,
		idemRepo: idemRepo,
		idemTTL:  idempotency.DefaultKeyTTL,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *InvoiceService) fail(method string, err error) error {
	st := statusFromError(err)
	entry := s.logger.WithError(err).WithField("method", method)
	if status.Code(st) == codes.Internal {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}
	return st
}

// CreateInvoice оформляет продажу. Поддерживает metadata idempotency-key.
func (s *InvoiceService) CreateInvoice(ctx context.Context, req *invoicingv1.CreateInvoiceRequest) (*invoicingv1.CreateInvoiceResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	return withIdempotency(s, ctx, invoicingv1.InvoiceService_CreateInvoice_FullMethodName, req,
		func(ctx context.Context) (*invoicingv1.CreateInvoiceResponse, error) {
			lines, err := convert.LineRequests(req.Lines)
			if err != nil {
				return nil, s.fail("CreateInvoice", err)
			}
			inv, err := s.invoices.Create(ctx, invoice.CreateRequest{
				CustomerID: req.CustomerID,
				EmployeeID: req.EmployeeID,
				Lines:      lines,
			})
			if err != nil {
				return nil, s.fail("CreateInvoice", err)
			}
			return &invoicingv1.CreateInvoiceResponse{Invoice: convert.Invoice(inv)}, nil
		},
	)
}

// GetInvoice возвращает счёт и его таймлайн.
func (s *InvoiceService) GetInvoice(ctx context.Context, req *invoicingv1.GetInvoiceRequest) (*invoicingv1.GetInvoiceResponse, error) {
	if req == nil || req.InvoiceID == "" {
		return nil, status.Error(codes.InvalidArgument, "invoice_id is required")
	}

	inv, err := s.invoices.Get(ctx, req.InvoiceID)
	if err != nil {
		return nil, s.fail("GetInvoice", err)
	}

	resp := &invoicingv1.GetInvoiceResponse{Invoice: convert.Invoice(inv)}
	events, err := s.invoices.Timeline(ctx, inv.ID)
	if err != nil {
		s.logger.WithError(err).WithField("invoice_id", inv.ID).Warn("failed to list timeline events")
	} else {
		resp.Timeline = convert.Timeline(events)
	}
	return resp, nil
}

// GetInvoiceTimeline возвращает историю счёта, в том числе аннулированного.
func (s *InvoiceService) GetInvoiceTimeline(ctx context.Context, req *invoicingv1.GetInvoiceTimelineRequest) (*invoicingv1.GetInvoiceTimelineResponse, error) {
	if req == nil || req.InvoiceID == "" {
		return nil, status.Error(codes.InvalidArgument, "invoice_id is required")
	}
	events, err := s.invoices.AuditTrail(ctx, req.InvoiceID)
	if err != nil {
		return nil, s.fail("GetInvoiceTimeline", err)
	}
	return &invoicingv1.GetInvoiceTimelineResponse{InvoiceID: req.InvoiceID, Events: convert.Timeline(events)}, nil
}

func (s *InvoiceService) ListInvoices(ctx context.Context, req *invoicingv1.ListInvoicesRequest) (*invoicingv1.ListInvoicesResponse, error) {
	if req == nil {
		req = &invoicingv1.ListInvoicesRequest{}
	}
	invoices, err := s.invoices.List(ctx, domain.InvoiceFilter{CustomerID: req.CustomerID, Limit: int(req.Limit)})
	if err != nil {
		return nil, s.fail("ListInvoices", err)
	}
	return &invoicingv1.ListInvoicesResponse{Invoices: convert.Invoices(invoices)}, nil
}

func (s *InvoiceService) ListInvoiceLines(ctx context.Context, req *invoicingv1.ListInvoiceLinesRequest) (*invoicingv1.ListInvoiceLinesResponse, error) {
	if req == nil || req.InvoiceID == "" {
		return nil, status.Error(codes.InvalidArgument, "invoice_id is required")
	}
	views, err := s.invoices.Lines(ctx, req.InvoiceID)
	if err != nil {
		return nil, s.fail("ListInvoiceLines", err)
	}
	return &invoicingv1.ListInvoiceLinesResponse{Lines: convert.LineViews(views)}, nil
}

// ApplyDiscount применяет процентную скидку к текущему итогу.
func (s *InvoiceService) ApplyDiscount(ctx context.Context, req *invoicingv1.ApplyDiscountRequest) (*invoicingv1.ApplyDiscountResponse, error) {
	if req == nil || req.InvoiceID == "" {
		return nil, status.Error(codes.InvalidArgument, "invoice_id is required")
	}
	pct, err := convert.Decimal("percentage", req.Percentage)
	if err != nil {
		return nil, s.fail("ApplyDiscount", err)
	}
	total, err := s.invoices.ApplyDiscount(ctx, req.InvoiceID, pct)
	if err != nil {
		return nil, s.fail("ApplyDiscount", err)
	}
	return &invoicingv1.ApplyDiscountResponse{InvoiceID: req.InvoiceID, Total: total.StringFixed(2)}, nil
}

func (s *InvoiceService) CorrectLine(ctx context.Context, req *invoicingv1.CorrectLineRequest) (*invoicingv1.CorrectLineResponse, error) {
	if req == nil || req.InvoiceID == "" {
		return nil, status.Error(codes.InvalidArgument, "invoice_id is required")
	}
	if req.LineID == "" {
		return nil, status.Error(codes.InvalidArgument, "line_id is required")
	}
	correction, err := convert.Correction(req.Quantity, req.UnitPrice)
	if err != nil {
		return nil, s.fail("CorrectLine", err)
	}
	inv, err := s.invoices.CorrectLine(ctx, req.InvoiceID, req.LineID, correction)
	if err != nil {
		return nil, s.fail("CorrectLine", err)
	}
	return &invoicingv1.CorrectLineResponse{Invoice: convert.Invoice(inv)}, nil
}

// VoidInvoice возвращает товар на склад и удаляет счёт.
func (s *InvoiceService) VoidInvoice(ctx context.Context, req *invoicingv1.VoidInvoiceRequest) (*invoicingv1.VoidInvoiceResponse, error) {
	if req == nil || req.InvoiceID == "" {
		return nil, status.Error(codes.InvalidArgument, "invoice_id is required")
	}
	if err := s.invoices.Void(ctx, req.InvoiceID, req.Reason); err != nil {
		return nil, s.fail("VoidInvoice", err)
	}
	return &invoicingv1.VoidInvoiceResponse{InvoiceID: req.InvoiceID}, nil
}

func (s *InvoiceService) AdjustStock(ctx context.Context, req *invoicingv1.AdjustStockRequest) (*invoicingv1.AdjustStockResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	policy, err := domain.ParseStockPolicy(req.Policy)
	if err != nil {
		return nil, s.fail("AdjustStock", err)
	}
	movement, err := s.ledger.AdjustStock(ctx, req.ProductID, req.Delta, policy)
	if err != nil {
		return nil, s.fail("AdjustStock", err)
	}
	return &invoicingv1.AdjustStockResponse{Movement: convert.Movement(movement)}, nil
}

func (s *InvoiceService) TopCustomers(ctx context.Context, req *invoicingv1.TopCustomersRequest) (*invoicingv1.TopCustomersResponse, error) {
	var limit int
	if req != nil {
		limit = int(req.Limit)
	}
	rows, err := s.reports.TopCustomers(ctx, limit)
	if err != nil {
		return nil, s.fail("TopCustomers", err)
	}
	return &invoicingv1.TopCustomersResponse{Customers: convert.CustomerCounts(rows)}, nil
}

func (s *InvoiceService) ProductRanking(ctx context.Context, req *invoicingv1.ProductRankingRequest) (*invoicingv1.ProductRankingResponse, error) {
	var raw string
	if req != nil {
		raw = req.Direction
	}
	direction, err := domain.ParseSortDirection(raw)
	if err != nil {
		return nil, s.fail("ProductRanking", err)
	}
	rows, err := s.reports.ProductRanking(ctx, direction)
	if err != nil {
		return nil, s.fail("ProductRanking", err)
	}
	return &invoicingv1.ProductRankingResponse{Products: convert.ProductSales(rows)}, nil
}

func (s *InvoiceService) LowStockRanking(ctx context.Context, _ *invoicingv1.LowStockRankingRequest) (*invoicingv1.LowStockRankingResponse, error) {
	rows, err := s.reports.LowStock(ctx)
	if err != nil {
		return nil, s.fail("LowStockRanking", err)
	}
	return &invoicingv1.LowStockRankingResponse{Products: convert.ProductStocks(rows)}, nil
}

func (s *InvoiceService) SalespersonRanking(ctx context.Context, _ *invoicingv1.SalespersonRankingRequest) (*invoicingv1.SalespersonRankingResponse, error) {
	rows, err := s.reports.SalespersonRanking(ctx)
	if err != nil {
		return nil, s.fail("SalespersonRanking", err)
	}
	return &invoicingv1.SalespersonRankingResponse{Employees: convert.EmployeeCounts(rows)}, nil
}

var _ invoicingv1.InvoiceServiceServer = (*InvoiceService)(nil)
