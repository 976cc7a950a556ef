// Package convert переводит доменные типы в сообщения invoicing.v1 и обратно.
// Используется и gRPC, и REST транспортом.
package convert

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	invoicingv1 "github.com/vladislavdragonenkov/ims/api/invoicing/v1"
	"github.com/vladislavdragonenkov/ims/internal/domain"
)

func money(d decimal.Decimal) string {
	return domain.RoundMoney(d).StringFixed(2)
}

// Invoice переводит счёт вместе со строками.
func Invoice(inv domain.Invoice) *invoicingv1.Invoice {
	lines := make([]*invoicingv1.InvoiceLine, 0, len(inv.Lines))
	for _, line := range inv.Lines {
		lines = append(lines, &invoicingv1.InvoiceLine{
			ID:          line.ID,
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   money(line.UnitPrice),
			Subtotal:    money(line.Subtotal),
			Position:    int32(line.Position), //nolint:gosec // позиция ограничена числом строк
		})
	}

	return &invoicingv1.Invoice{
		ID:         inv.ID,
		CustomerID: inv.CustomerID,
		EmployeeID: inv.EmployeeID,
		Total:      money(inv.Total),
		Version:    inv.Version,
		Lines:      lines,
		CreatedAt:  inv.CreatedAt,
		UpdatedAt:  inv.UpdatedAt,
	}
}

func Invoices(invoices []domain.Invoice) []*invoicingv1.Invoice {
	out := make([]*invoicingv1.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, Invoice(inv))
	}
	return out
}

func LineViews(views []domain.LineView) []*invoicingv1.InvoiceLine {
	out := make([]*invoicingv1.InvoiceLine, 0, len(views))
	for i, v := range views {
		out = append(out, &invoicingv1.InvoiceLine{
			ID:          v.LineID,
			ProductID:   v.ProductID,
			ProductName: v.ProductName,
			Quantity:    v.Quantity,
			UnitPrice:   money(v.UnitPrice),
			Subtotal:    money(v.Subtotal),
			Position:    int32(i + 1), //nolint:gosec // позиция ограничена числом строк
		})
	}
	return out
}

func Timeline(events []domain.TimelineEvent) []*invoicingv1.TimelineEvent {
	out := make([]*invoicingv1.TimelineEvent, 0, len(events))
	for _, e := range events {
		out = append(out, &invoicingv1.TimelineEvent{
			Type:     e.Type,
			Reason:   e.Reason,
			UnixTime: e.Occurred.Unix(),
		})
	}
	return out
}

func Movement(m domain.StockMovement) *invoicingv1.StockMovement {
	return &invoicingv1.StockMovement{
		ID:         m.ID,
		ProductID:  m.ProductID,
		Delta:      m.Delta,
		Reason:     string(m.Reason),
		InvoiceID:  m.InvoiceID,
		StockAfter: m.StockAfter,
		CreatedAt:  m.CreatedAt,
	}
}

func Movements(ms []domain.StockMovement) []*invoicingv1.StockMovement {
	out := make([]*invoicingv1.StockMovement, 0, len(ms))
	for _, m := range ms {
		out = append(out, Movement(m))
	}
	return out
}

func CustomerCounts(rows []domain.CustomerInvoiceCount) []*invoicingv1.CustomerInvoiceCount {
	out := make([]*invoicingv1.CustomerInvoiceCount, 0, len(rows))
	for _, r := range rows {
		out = append(out, &invoicingv1.CustomerInvoiceCount{
			CustomerID:   r.CustomerID,
			CustomerName: r.CustomerName,
			InvoiceCount: r.InvoiceCount,
		})
	}
	return out
}

func ProductSales(rows []domain.ProductSales) []*invoicingv1.ProductSales {
	out := make([]*invoicingv1.ProductSales, 0, len(rows))
	for _, r := range rows {
		out = append(out, &invoicingv1.ProductSales{
			ProductID:   r.ProductID,
			ProductName: r.ProductName,
			UnitsSold:   r.UnitsSold,
		})
	}
	return out
}

func ProductStocks(rows []domain.ProductStock) []*invoicingv1.ProductStock {
	out := make([]*invoicingv1.ProductStock, 0, len(rows))
	for _, r := range rows {
		out = append(out, &invoicingv1.ProductStock{
			ProductID:   r.ProductID,
			ProductName: r.ProductName,
			Stock:       r.Stock,
		})
	}
	return out
}

func EmployeeCounts(rows []domain.EmployeeInvoiceCount) []*invoicingv1.EmployeeInvoiceCount {
	out := make([]*invoicingv1.EmployeeInvoiceCount, 0, len(rows))
	for _, r := range rows {
		out = append(out, &invoicingv1.EmployeeInvoiceCount{
			EmployeeID:   r.EmployeeID,
			EmployeeName: r.EmployeeName,
			InvoiceCount: r.InvoiceCount,
		})
	}
	return out
}

// LineRequests переводит позиции корзины; nil-позиция считается ошибкой.
func LineRequests(items []*invoicingv1.LineItem) ([]domain.LineRequest, error) {
	out := make([]domain.LineRequest, 0, len(items))
	for i, item := range items {
		if item == nil {
			return nil, fmt.Errorf("%w: lines[%d] is null", domain.ErrInvalidArgument, i)
		}
		out = append(out, domain.LineRequest{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return out, nil
}

// Decimal разбирает денежную строку запроса.
func Decimal(field, raw string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s must be a decimal number, got %q", domain.ErrInvalidArgument, field, raw)
	}
	return value, nil
}

// Correction собирает корректировку строки; пустая цена означает "не менять".
func Correction(quantity *int64, unitPrice string) (domain.LineCorrection, error) {
	correction := domain.LineCorrection{Quantity: quantity}
	if strings.TrimSpace(unitPrice) != "" {
		price, err := Decimal("unit_price", unitPrice)
		if err != nil {
			return domain.LineCorrection{}, err
		}
		correction.UnitPrice = &price
	}
	return correction, nil
}
