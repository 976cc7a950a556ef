package invoice

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

// ApplyDiscount уменьшает total на pct процентов и возвращает новую сумму.
// Скидки складываются мультипликативно: 10% и затем 20% дают 72% от исходной суммы.
func (s *Service) ApplyDiscount(ctx context.Context, invoiceID string, pct decimal.Decimal) (total decimal.Decimal, err error) {
	ctx, span := s.startSpan(ctx, "apply_discount")
	span.SetAttributes(attribute.String("invoice.id", invoiceID), attribute.String("discount.pct", pct.String()))
	defer func() { s.finish(span, err) }()

	if invoiceID == "" {
		return decimal.Zero, domain.ErrInvoiceIDRequired
	}
	if _, err := domain.DiscountedTotal(decimal.Zero, pct); err != nil {
		return decimal.Zero, err
	}

	err = s.uow.Do(ctx, func(tx domain.Tx) error {
		inv, err := tx.InvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}

		discounted, err := domain.DiscountedTotal(inv.Total, pct)
		if err != nil {
			return err
		}
		now := s.now()
		inv.Total = discounted
		inv.UpdatedAt = now
		if err := tx.UpdateInvoice(ctx, inv); err != nil {
			return err
		}
		inv.Version++

		event := domain.NewInvoiceEvent(inv, now)
		event.Discount = &pct
		if err := s.enqueueInvoiceEvent(ctx, tx, domain.EventInvoiceDiscounted, event); err != nil {
			return err
		}
		if err := s.appendTimeline(ctx, tx, invoiceID, domain.TimelineDiscountApplied, pct.String()+"%", now); err != nil {
			return err
		}
		total = discounted
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	if s.metrics != nil {
		s.metrics.RecordDiscount()
	}
	s.logger.WithFields(log.Fields{
		"invoice_id": invoiceID,
		"pct":        pct.String(),
		"total":      total.StringFixed(domain.MoneyScale),
	}).Info("discount applied")
	return total, nil
}

// Get возвращает счёт с позициями.
func (s *Service) Get(ctx context.Context, invoiceID string) (domain.Invoice, error) {
	if invoiceID == "" {
		return domain.Invoice{}, domain.ErrInvoiceIDRequired
	}
	return s.invoices.Invoice(ctx, invoiceID)
}

// Lines возвращает позиции счёта в порядке добавления.
func (s *Service) Lines(ctx context.Context, invoiceID string) ([]domain.LineView, error) {
	inv, err := s.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return inv.Views(), nil
}

// List возвращает счета от новых к старым, опционально по одному клиенту.
func (s *Service) List(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	if filter.Limit < 0 {
		return nil, fmt.Errorf("%w: limit must be non-negative", domain.ErrInvalidArgument)
	}
	return s.invoices.ListInvoices(ctx, filter)
}

// CorrectLine исправляет количество и/или цену позиции.
// Изменение количества проводится через журнал остатков, total меняется на разницу subtotal.
// Корректировка, совпадающая с текущей позицией, ничего не пишет и возвращает счёт как есть.
func (s *Service) CorrectLine(ctx context.Context, invoiceID, lineID string, correction domain.LineCorrection) (inv domain.Invoice, err error) {
	ctx, span := s.startSpan(ctx, "correct_line")
	span.SetAttributes(attribute.String("invoice.id", invoiceID), attribute.String("line.id", lineID))
	defer func() { s.finish(span, err) }()

	if invoiceID == "" {
		return domain.Invoice{}, domain.ErrInvoiceIDRequired
	}
	if err := correction.Validate(); err != nil {
		return domain.Invoice{}, err
	}

	var (
		movements []domain.StockMovement
		changed   bool
	)
	err = s.uow.Do(ctx, func(tx domain.Tx) error {
		movements = movements[:0]
		var err error
		inv, err = tx.InvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		idx, ok := inv.Line(lineID)
		if !ok {
			return fmt.Errorf("%w: %s in invoice %s", domain.ErrLineNotFound, lineID, invoiceID)
		}

		now := s.now()
		line := inv.Lines[idx]
		before := line.Subtotal

		qtyChanged := correction.Quantity != nil && *correction.Quantity != line.Quantity
		var price decimal.Decimal
		priceChanged := false
		if correction.UnitPrice != nil {
			price = domain.RoundMoney(*correction.UnitPrice)
			priceChanged = !price.Equal(line.UnitPrice)
		}
		changed = qtyChanged || priceChanged
		if !changed {
			return nil
		}

		if qtyChanged {
			// Рост количества списывает остаток, уменьшение возвращает его.
			movement, err := s.ledger.Apply(ctx, tx, domain.StockMovement{
				ProductID: line.ProductID,
				Delta:     line.Quantity - *correction.Quantity,
				Reason:    domain.MovementCorrection,
				InvoiceID: invoiceID,
				CreatedAt: now,
			}, "")
			if err != nil {
				return err
			}
			movements = append(movements, movement)
			line.Quantity = *correction.Quantity
		}
		if priceChanged {
			line.UnitPrice = price
		}
		line.Subtotal = line.ComputeSubtotal()
		if err := domain.CheckAmount(line.Subtotal); err != nil {
			return fmt.Errorf("line %s: %w", lineID, err)
		}
		inv.Lines[idx] = line

		total := inv.Total.Add(line.Subtotal.Sub(before))
		if total.IsNegative() {
			total = decimal.Zero
		}
		if err := domain.CheckAmount(total); err != nil {
			return fmt.Errorf("invoice total: %w", err)
		}
		inv.Total = total
		inv.UpdatedAt = now
		if err := tx.UpdateInvoice(ctx, inv); err != nil {
			return err
		}
		inv.Version++

		if err := s.enqueueInvoiceEvent(ctx, tx, domain.EventInvoiceLineCorrected, domain.NewInvoiceEvent(inv, now)); err != nil {
			return err
		}
		return s.appendTimeline(ctx, tx, invoiceID, domain.TimelineLineCorrected, lineID, now)
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	if !changed {
		s.logger.WithFields(log.Fields{
			"invoice_id": invoiceID,
			"line_id":    lineID,
		}).Debug("line correction changes nothing")
		return inv, nil
	}

	s.ledger.RecordCommitted(movements...)
	if s.metrics != nil {
		s.metrics.RecordLineCorrection()
	}
	s.logger.WithFields(log.Fields{
		"invoice_id": invoiceID,
		"line_id":    lineID,
		"total":      inv.Total.StringFixed(domain.MoneyScale),
	}).Info("invoice line corrected")
	return inv, nil
}

// Void аннулирует счёт: возвращает товары на склад и удаляет счёт вместе с позициями.
func (s *Service) Void(ctx context.Context, invoiceID, reason string) (err error) {
	ctx, span := s.startSpan(ctx, "void")
	span.SetAttributes(attribute.String("invoice.id", invoiceID))
	defer func() { s.finish(span, err) }()

	if invoiceID == "" {
		return domain.ErrInvoiceIDRequired
	}

	var movements []domain.StockMovement
	err = s.uow.Do(ctx, func(tx domain.Tx) error {
		movements = movements[:0]
		inv, err := tx.InvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}

		now := s.now()
		for _, line := range inv.Lines {
			movement, err := s.ledger.Apply(ctx, tx, domain.StockMovement{
				ProductID: line.ProductID,
				Delta:     line.Quantity,
				Reason:    domain.MovementVoid,
				InvoiceID: invoiceID,
				CreatedAt: now,
			}, domain.StockPolicyPermissive)
			if err != nil {
				return err
			}
			movements = append(movements, movement)
		}

		if err := tx.DeleteInvoice(ctx, invoiceID); err != nil {
			return err
		}
		if err := s.enqueueInvoiceEvent(ctx, tx, domain.EventInvoiceVoided, domain.NewInvoiceEvent(inv, now)); err != nil {
			return err
		}
		return s.appendTimeline(ctx, tx, invoiceID, domain.TimelineInvoiceVoided, reason, now)
	})
	if err != nil {
		return err
	}

	s.ledger.RecordCommitted(movements...)
	if s.metrics != nil {
		s.metrics.RecordVoid()
	}
	s.logger.WithFields(log.Fields{
		"invoice_id": invoiceID,
		"reason":     reason,
	}).Info("invoice voided")
	return nil
}
