package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

// Do выполняет fn в единице работы. Изменения копятся в memTx и применяются
// к хранилищу только при успешном завершении fn.
func (s *Store) Do(ctx context.Context, fn func(tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memTx{
		store:    s,
		products: make(map[string]domain.Product),
		invoices: make(map[string]domain.Invoice),
		deleted:  make(map[string]struct{}),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tx.commit(ctx)
	return nil
}

type memTx struct {
	store     *Store
	products  map[string]domain.Product
	invoices  map[string]domain.Invoice
	deleted   map[string]struct{}
	movements []domain.StockMovement
	outbox    []domain.OutboxMessage
	timeline  []domain.TimelineEvent
}

func (t *memTx) Customer(ctx context.Context, id string) (domain.Customer, error) {
	return t.store.Customer(ctx, id)
}

func (t *memTx) Employee(ctx context.Context, id string) (domain.Employee, error) {
	return t.store.Employee(ctx, id)
}

func (t *memTx) ProductForUpdate(ctx context.Context, id string) (domain.Product, error) {
	if product, ok := t.products[id]; ok {
		return product, nil
	}
	return t.store.Product(ctx, id)
}

func (t *memTx) SetStock(ctx context.Context, productID string, stock int64) error {
	product, err := t.ProductForUpdate(ctx, productID)
	if err != nil {
		return err
	}
	product.Stock = stock
	product.UpdatedAt = time.Now().UTC()
	t.products[productID] = product
	return nil
}

func (t *memTx) AppendMovement(_ context.Context, movement domain.StockMovement) error {
	if movement.ID == "" {
		movement.ID = uuid.NewString()
	}
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now().UTC()
	}
	t.movements = append(t.movements, movement)
	return nil
}

func (t *memTx) InsertInvoice(ctx context.Context, invoice domain.Invoice) error {
	if _, err := t.InvoiceForUpdate(ctx, invoice.ID); err == nil {
		return fmt.Errorf("%w: %s", domain.ErrInvoiceAlreadyExists, invoice.ID)
	}
	delete(t.deleted, invoice.ID)
	t.invoices[invoice.ID] = invoice.Clone()
	return nil
}

func (t *memTx) InvoiceForUpdate(ctx context.Context, id string) (domain.Invoice, error) {
	if _, gone := t.deleted[id]; gone {
		return domain.Invoice{}, fmt.Errorf("%w: %s", domain.ErrInvoiceNotFound, id)
	}
	if invoice, ok := t.invoices[id]; ok {
		return invoice.Clone(), nil
	}
	return t.store.Invoice(ctx, id)
}

func (t *memTx) UpdateInvoice(ctx context.Context, invoice domain.Invoice) error {
	current, err := t.InvoiceForUpdate(ctx, invoice.ID)
	if err != nil {
		return err
	}
	if current.Version != invoice.Version {
		return domain.ErrInvoiceVersionConflict
	}
	updated := invoice.Clone()
	updated.Version++
	t.invoices[invoice.ID] = updated
	return nil
}

func (t *memTx) DeleteInvoice(ctx context.Context, id string) error {
	if _, err := t.InvoiceForUpdate(ctx, id); err != nil {
		return err
	}
	delete(t.invoices, id)
	t.deleted[id] = struct{}{}
	return nil
}

func (t *memTx) EnqueueOutbox(_ context.Context, msg domain.OutboxMessage) error {
	t.outbox = append(t.outbox, msg)
	return nil
}

func (t *memTx) AppendTimeline(_ context.Context, event domain.TimelineEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	t.timeline = append(t.timeline, event)
	return nil
}

func (t *memTx) commit(ctx context.Context) {
	s := t.store

	s.mu.Lock()
	for id, product := range t.products {
		s.products[id] = product
	}
	for id := range t.deleted {
		delete(s.invoices, id)
	}
	for id, invoice := range t.invoices {
		s.invoices[id] = invoice
	}
	s.movements = append(s.movements, t.movements...)
	s.mu.Unlock()

	for _, msg := range t.outbox {
		_, _ = s.outbox.Enqueue(ctx, msg)
	}
	for _, event := range t.timeline {
		_ = s.timeline.Append(ctx, event)
	}
}

var (
	_ domain.UnitOfWork = (*Store)(nil)
	_ domain.Tx         = (*memTx)(nil)
)
