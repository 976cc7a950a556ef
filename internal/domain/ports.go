package domain

import (
	"context"
	"time"
)

// UnitOfWork выполняет fn атомарно: либо все изменения фиксируются, либо ни одно.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(tx Tx) error) error
}

// Tx это операции, доступные внутри единицы работы.
// ProductForUpdate и InvoiceForUpdate блокируют запись до конца транзакции.
type Tx interface {
	Customer(ctx context.Context, id string) (Customer, error)
	Employee(ctx context.Context, id string) (Employee, error)
	ProductForUpdate(ctx context.Context, id string) (Product, error)
	SetStock(ctx context.Context, productID string, stock int64) error
	AppendMovement(ctx context.Context, movement StockMovement) error

	InsertInvoice(ctx context.Context, invoice Invoice) error
	InvoiceForUpdate(ctx context.Context, id string) (Invoice, error)
	// UpdateInvoice сохраняет total и позиции, ожидая версию invoice.Version; версия увеличивается на 1.
	UpdateInvoice(ctx context.Context, invoice Invoice) error
	// DeleteInvoice удаляет счёт вместе с позициями.
	DeleteInvoice(ctx context.Context, id string) error

	EnqueueOutbox(ctx context.Context, msg OutboxMessage) error
	AppendTimeline(ctx context.Context, event TimelineEvent) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(ctx context.Context, event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
