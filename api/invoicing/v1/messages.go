// Package invoicingv1 описывает gRPC-контракт invoicing.v1.InvoiceService.
// Сообщения кодируются JSON-кодеком (content-subtype "json"), денежные суммы
// передаются строками с двумя знаками после запятой.
package invoicingv1

import "time"

type Invoice struct {
	ID         string         `json:"id"`
	CustomerID string         `json:"customer_id"`
	EmployeeID string         `json:"employee_id,omitempty"`
	Total      string         `json:"total"`
	Version    int64          `json:"version"`
	Lines      []*InvoiceLine `json:"lines,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

type InvoiceLine struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Subtotal    string `json:"subtotal"`
	Position    int32  `json:"position,omitempty"`
}

type TimelineEvent struct {
	Type     string `json:"type"`
	Reason   string `json:"reason,omitempty"`
	UnixTime int64  `json:"unix_time"`
}

type StockMovement struct {
	ID         string    `json:"id"`
	ProductID  string    `json:"product_id"`
	Delta      int64     `json:"delta"`
	Reason     string    `json:"reason"`
	InvoiceID  string    `json:"invoice_id,omitempty"`
	StockAfter int64     `json:"stock_after"`
	CreatedAt  time.Time `json:"created_at"`
}

// LineItem это позиция корзины: товар и количество.
type LineItem struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

type CreateInvoiceRequest struct {
	CustomerID string      `json:"customer_id"`
	EmployeeID string      `json:"employee_id,omitempty"`
	Lines      []*LineItem `json:"lines"`
}

type CreateInvoiceResponse struct {
	Invoice *Invoice `json:"invoice"`
}

type GetInvoiceRequest struct {
	InvoiceID string `json:"invoice_id"`
}

type GetInvoiceResponse struct {
	Invoice  *Invoice         `json:"invoice"`
	Timeline []*TimelineEvent `json:"timeline,omitempty"`
}

type ListInvoicesRequest struct {
	CustomerID string `json:"customer_id,omitempty"`
	Limit      int32  `json:"limit,omitempty"`
}

type ListInvoicesResponse struct {
	Invoices []*Invoice `json:"invoices"`
}

type ListInvoiceLinesRequest struct {
	InvoiceID string `json:"invoice_id"`
}

type ListInvoiceLinesResponse struct {
	Lines []*InvoiceLine `json:"lines"`
}

type GetInvoiceTimelineRequest struct {
	InvoiceID string `json:"invoice_id"`
}

// GetInvoiceTimelineResponse доступен и после аннулирования счёта.
type GetInvoiceTimelineResponse struct {
	InvoiceID string           `json:"invoice_id"`
	Events    []*TimelineEvent `json:"events"`
}

type ApplyDiscountRequest struct {
	InvoiceID  string `json:"invoice_id"`
	Percentage string `json:"percentage"`
}

type ApplyDiscountResponse struct {
	InvoiceID string `json:"invoice_id"`
	Total     string `json:"total"`
}

// CorrectLineRequest меняет количество и/или цену строки; пустые поля не трогаются.
type CorrectLineRequest struct {
	InvoiceID string `json:"invoice_id"`
	LineID    string `json:"line_id"`
	Quantity  *int64 `json:"quantity,omitempty"`
	UnitPrice string `json:"unit_price,omitempty"`
}

type CorrectLineResponse struct {
	Invoice *Invoice `json:"invoice"`
}

type VoidInvoiceRequest struct {
	InvoiceID string `json:"invoice_id"`
	Reason    string `json:"reason,omitempty"`
}

type VoidInvoiceResponse struct {
	InvoiceID string `json:"invoice_id"`
}

type AdjustStockRequest struct {
	ProductID string `json:"product_id"`
	Delta     int64  `json:"delta"`
	Policy    string `json:"policy,omitempty"`
}

type AdjustStockResponse struct {
	Movement *StockMovement `json:"movement"`
}

type TopCustomersRequest struct {
	Limit int32 `json:"limit,omitempty"`
}

type CustomerInvoiceCount struct {
	CustomerID   string `json:"customer_id"`
	CustomerName string `json:"customer_name"`
	InvoiceCount int64  `json:"invoice_count"`
}

type TopCustomersResponse struct {
	Customers []*CustomerInvoiceCount `json:"customers"`
}

type ProductRankingRequest struct {
	// asc или desc; пусто означает desc.
	Direction string `json:"direction,omitempty"`
}

type ProductSales struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitsSold   int64  `json:"units_sold"`
}

type ProductRankingResponse struct {
	Products []*ProductSales `json:"products"`
}

type LowStockRankingRequest struct{}

type ProductStock struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Stock       int64  `json:"stock"`
}

type LowStockRankingResponse struct {
	Products []*ProductStock `json:"products"`
}

type SalespersonRankingRequest struct{}

type EmployeeInvoiceCount struct {
	EmployeeID   string `json:"employee_id"`
	EmployeeName string `json:"employee_name"`
	InvoiceCount int64  `json:"invoice_count"`
}

type SalespersonRankingResponse struct {
	Employees []*EmployeeInvoiceCount `json:"employees"`
}
