package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Типы событий transactional outbox.
const (
	EventInvoiceCreated       = "invoice.created"
	EventInvoiceDiscounted    = "invoice.discounted"
	EventInvoiceLineCorrected = "invoice.line_corrected"
	EventInvoiceVoided        = "invoice.voided"
	EventStockAdjusted        = "stock.adjusted"
)

// Типы агрегатов outbox.
const (
	AggregateInvoice = "invoice"
	AggregateProduct = "product"
)

// InvoiceEvent это полезная нагрузка событий по счёту.
type InvoiceEvent struct {
	InvoiceID  string           `json:"invoice_id"`
	CustomerID string           `json:"customer_id"`
	EmployeeID string           `json:"employee_id,omitempty"`
	Total      decimal.Decimal  `json:"total"`
	Version    int64            `json:"version"`
	Lines      []InvoiceLineRef `json:"lines,omitempty"`
	Discount   *decimal.Decimal `json:"discount_pct,omitempty"`
	Occurred   time.Time        `json:"occurred"`
}

// InvoiceLineRef это позиция в событии.
type InvoiceLineRef struct {
	LineID    string          `json:"line_id"`
	ProductID string          `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// NewInvoiceEvent формирует событие по текущему состоянию счёта.
func NewInvoiceEvent(inv Invoice, occurred time.Time) InvoiceEvent {
	refs := make([]InvoiceLineRef, 0, len(inv.Lines))
	for _, line := range inv.Lines {
		refs = append(refs, InvoiceLineRef{
			LineID:    line.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	return InvoiceEvent{
		InvoiceID:  inv.ID,
		CustomerID: inv.CustomerID,
		EmployeeID: inv.EmployeeID,
		Total:      inv.Total,
		Version:    inv.Version,
		Lines:      refs,
		Occurred:   occurred,
	}
}

// StockEvent это полезная нагрузка события stock.adjusted.
type StockEvent struct {
	MovementID string         `json:"movement_id"`
	ProductID  string         `json:"product_id"`
	Delta      int64          `json:"delta"`
	Reason     MovementReason `json:"reason"`
	StockAfter int64          `json:"stock_after"`
	Occurred   time.Time      `json:"occurred"`
}
