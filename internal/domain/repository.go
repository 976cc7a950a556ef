package domain

import (
	"context"
	"time"
)

// CatalogReader читает справочники вне транзакции.
type CatalogReader interface {
	Product(ctx context.Context, id string) (Product, error)
	Customer(ctx context.Context, id string) (Customer, error)
	Employee(ctx context.Context, id string) (Employee, error)
	ListProducts(ctx context.Context) ([]Product, error)
}

// CatalogWriter загружает справочники (seed, фикстуры).
type CatalogWriter interface {
	UpsertProduct(ctx context.Context, product Product) error
	UpsertCustomer(ctx context.Context, customer Customer) error
	UpsertEmployee(ctx context.Context, employee Employee) error
}

// InvoiceFilter ограничивает выборку счетов.
type InvoiceFilter struct {
	CustomerID string
	Limit      int
}

// InvoiceReader описывает чтение счетов.
type InvoiceReader interface {
	// Invoice возвращает счёт по идентификатору или ErrInvoiceNotFound.
	Invoice(ctx context.Context, id string) (Invoice, error)
	// ListInvoices возвращает счета от новых к старым.
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error)
}

// MovementReader читает журнал остатков.
type MovementReader interface {
	// Movements возвращает записи журнала товара от новых к старым.
	Movements(ctx context.Context, productID string, limit int) ([]StockMovement, error)
}

// ReportReader это агрегирующие запросы для отчётов. Порядок строк не гарантируется.
type ReportReader interface {
	InvoiceCountsByCustomer(ctx context.Context) ([]CustomerInvoiceCount, error)
	UnitsSoldByProduct(ctx context.Context) ([]ProductSales, error)
	ProductStocks(ctx context.Context) ([]ProductStock, error)
	InvoiceCountsByEmployee(ctx context.Context) ([]EmployeeInvoiceCount, error)
}

// TimelineRepository хранит события жизненного цикла счёта.
type TimelineRepository interface {
	Append(ctx context.Context, event TimelineEvent) error
	List(ctx context.Context, invoiceID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, responseStatus int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, responseStatus int) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}
