package invoice

import (
	"context"
	"errors"
	"fmt"
	"slices"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

// CreateRequest это запрос на оформление продажи.
type CreateRequest struct {
	CustomerID string
	// EmployeeID необязателен.
	EmployeeID string
	Lines      []domain.LineRequest
}

// Validate проверяет запрос до открытия транзакции.
func (r CreateRequest) Validate() error {
	if r.CustomerID == "" {
		return domain.ErrCustomerRequired
	}
	if len(r.Lines) == 0 {
		return domain.ErrLinesRequired
	}
	for i, line := range r.Lines {
		if line.ProductID == "" {
			return fmt.Errorf("%w: line %d", domain.ErrProductIDRequired, i+1)
		}
		if err := domain.CheckLineQuantity(line.Quantity); err != nil {
			return fmt.Errorf("line %d has quantity %d: %w", i+1, line.Quantity, err)
		}
	}
	return nil
}

// Create собирает счёт атомарно: проверяет клиента и продавца, фиксирует цены,
// списывает остатки и сохраняет счёт. При любой ошибке хранилище не меняется.
func (s *Service) Create(ctx context.Context, req CreateRequest) (inv domain.Invoice, err error) {
	start := s.now()
	ctx, span := s.startSpan(ctx, "create")
	span.SetAttributes(
		attribute.String("customer.id", req.CustomerID),
		attribute.Int("invoice.lines", len(req.Lines)),
	)
	defer func() { s.finish(span, err) }()

	if err := req.Validate(); err != nil {
		return domain.Invoice{}, err
	}

	invoiceID := s.newID()
	var movements []domain.StockMovement
	err = s.uow.Do(ctx, func(tx domain.Tx) error {
		movements = movements[:0]
		if _, err := tx.Customer(ctx, req.CustomerID); err != nil {
			return err
		}
		if req.EmployeeID != "" {
			if _, err := tx.Employee(ctx, req.EmployeeID); err != nil {
				return err
			}
		}

		products, err := lockProducts(ctx, tx, req.Lines)
		if err != nil {
			return err
		}

		now := s.now()
		inv = domain.Invoice{
			ID:         invoiceID,
			CustomerID: req.CustomerID,
			EmployeeID: req.EmployeeID,
			Lines:      make([]domain.InvoiceLine, 0, len(req.Lines)),
			Version:    1,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		for i, lineReq := range req.Lines {
			product := products[lineReq.ProductID]
			line := domain.InvoiceLine{
				ID:          s.newID(),
				InvoiceID:   invoiceID,
				ProductID:   product.ID,
				ProductName: product.Name,
				Quantity:    lineReq.Quantity,
				UnitPrice:   domain.RoundMoney(product.Price),
				Position:    i + 1,
			}
			line.Subtotal = line.ComputeSubtotal()
			if err := domain.CheckAmount(line.Subtotal); err != nil {
				return fmt.Errorf("line %d: %w", i+1, err)
			}
			inv.Lines = append(inv.Lines, line)

			movement, err := s.ledger.Apply(ctx, tx, domain.StockMovement{
				ProductID: product.ID,
				Delta:     -lineReq.Quantity,
				Reason:    domain.MovementSale,
				InvoiceID: invoiceID,
				CreatedAt: now,
			}, "")
			if err != nil {
				return err
			}
			movements = append(movements, movement)
		}
		inv.Total = domain.SumLines(inv.Lines)
		if err := domain.CheckAmount(inv.Total); err != nil {
			return fmt.Errorf("invoice total: %w", err)
		}

		// Запрос уже проверен, значит расхождение здесь это ошибка сборки, а не клиента.
		if errs := inv.ValidateInvariants(); len(errs) > 0 {
			return fmt.Errorf("%w: build invoice %s: %w", domain.ErrInternal, invoiceID, errors.Join(errs...))
		}

		if err := tx.InsertInvoice(ctx, inv); err != nil {
			return err
		}
		if err := s.enqueueInvoiceEvent(ctx, tx, domain.EventInvoiceCreated, domain.NewInvoiceEvent(inv, now)); err != nil {
			return err
		}
		return s.appendTimeline(ctx, tx, invoiceID, domain.TimelineInvoiceCreated, "", now)
	})
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"customer_id": req.CustomerID,
			"lines":       len(req.Lines),
		}).Warn("invoice creation failed")
		return domain.Invoice{}, err
	}

	s.ledger.RecordCommitted(movements...)
	if s.metrics != nil {
		total, _ := inv.Total.Float64()
		s.metrics.RecordInvoiceCreated(total, s.now().Sub(start))
	}
	span.SetAttributes(attribute.String("invoice.id", inv.ID), attribute.String("invoice.total", inv.Total.StringFixed(domain.MoneyScale)))
	s.logger.WithFields(log.Fields{
		"invoice_id":  inv.ID,
		"customer_id": inv.CustomerID,
		"total":       inv.Total.StringFixed(domain.MoneyScale),
	}).Info("invoice created")
	return inv, nil
}

// lockProducts блокирует товары в порядке возрастания id, чтобы параллельные
// продажи с пересекающимися товарами не взаимоблокировались.
func lockProducts(ctx context.Context, tx domain.Tx, lines []domain.LineRequest) (map[string]domain.Product, error) {
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	products := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		product, err := tx.ProductForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		products[id] = product
	}
	return products, nil
}
