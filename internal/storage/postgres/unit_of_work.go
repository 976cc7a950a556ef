package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

// Do выполняет fn в одной транзакции READ COMMITTED.
// Строки товаров и счетов блокируются через SELECT ... FOR UPDATE.
func (s *Store) Do(ctx context.Context, fn func(tx domain.Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	if err = fn(&pgTx{tx: sqlTx}); err != nil {
		return mapTxError(err)
	}
	if err = sqlTx.Commit(); err != nil {
		return mapTxError(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

func mapTxError(err error) error {
	if classifyPgError(err) == pgRetryable {
		return fmt.Errorf("%w: %v", domain.ErrConflict, err)
	}
	return err
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) Customer(ctx context.Context, id string) (domain.Customer, error) {
	return loadCustomer(ctx, t.tx, id)
}

func (t *pgTx) Employee(ctx context.Context, id string) (domain.Employee, error) {
	return loadEmployee(ctx, t.tx, id)
}

func (t *pgTx) ProductForUpdate(ctx context.Context, id string) (domain.Product, error) {
	return loadProduct(ctx, t.tx, id, true)
}

func (t *pgTx) SetStock(ctx context.Context, productID string, stock int64) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE products SET stock = $2, updated_at = NOW() WHERE id = $1
	`, productID, stock)
	if err != nil {
		return fmt.Errorf("update product stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for product stock: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}
	return nil
}

func (t *pgTx) AppendMovement(ctx context.Context, m domain.StockMovement) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO stock_movements (id, product_id, delta, reason, invoice_id, stock_after, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, m.ID, m.ProductID, m.Delta, string(m.Reason), nullIfEmpty(m.InvoiceID), m.StockAfter, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert stock movement: %w", err)
	}
	return nil
}

func (t *pgTx) InsertInvoice(ctx context.Context, inv domain.Invoice) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO invoices (id, customer_id, employee_id, total, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, inv.ID, inv.CustomerID, nullIfEmpty(inv.EmployeeID), inv.Total, inv.Version, inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		switch classifyPgError(err) {
		case pgDuplicate:
			return fmt.Errorf("%w: %s", domain.ErrInvoiceAlreadyExists, inv.ID)
		case pgMissingReference:
			return fmt.Errorf("%w: invoice %s references missing customer or employee", domain.ErrNotFound, inv.ID)
		default:
			return fmt.Errorf("insert invoice: %w", err)
		}
	}

	for _, line := range inv.Lines {
		if _, err := t.tx.ExecContext(ctx, `
			INSERT INTO invoice_lines (id, invoice_id, product_id, product_name, quantity, unit_price, subtotal, position)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, line.ID, inv.ID, line.ProductID, line.ProductName, line.Quantity, line.UnitPrice, line.Subtotal, line.Position); err != nil {
			return fmt.Errorf("insert invoice line %d: %w", line.Position, err)
		}
	}
	return nil
}

func (t *pgTx) InvoiceForUpdate(ctx context.Context, id string) (domain.Invoice, error) {
	return loadInvoice(ctx, t.tx, id, true)
}

func (t *pgTx) UpdateInvoice(ctx context.Context, inv domain.Invoice) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE invoices
		SET total = $3, version = version + 1, updated_at = $4
		WHERE id = $1 AND version = $2
	`, inv.ID, inv.Version, inv.Total, inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for invoice update: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := t.tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM invoices WHERE id = $1)`, inv.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check invoice existence: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: %s", domain.ErrInvoiceNotFound, inv.ID)
		}
		return fmt.Errorf("%w: %s expected version %d", domain.ErrInvoiceVersionConflict, inv.ID, inv.Version)
	}

	for _, line := range inv.Lines {
		res, err := t.tx.ExecContext(ctx, `
			UPDATE invoice_lines
			SET quantity = $3, unit_price = $4, subtotal = $5
			WHERE invoice_id = $1 AND id = $2
		`, inv.ID, line.ID, line.Quantity, line.UnitPrice, line.Subtotal)
		if err != nil {
			return fmt.Errorf("update invoice line %s: %w", line.ID, err)
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return fmt.Errorf("%w: %s", domain.ErrLineNotFound, line.ID)
		}
	}
	return nil
}

func (t *pgTx) DeleteInvoice(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for invoice delete: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvoiceNotFound, id)
	}
	return nil
}

func (t *pgTx) EnqueueOutbox(ctx context.Context, msg domain.OutboxMessage) error {
	_, err := insertOutbox(ctx, t.tx, msg)
	return err
}

func (t *pgTx) AppendTimeline(ctx context.Context, event domain.TimelineEvent) error {
	return insertTimeline(ctx, t.tx, event)
}

var (
	_ domain.UnitOfWork = (*Store)(nil)
	_ domain.Tx         = (*pgTx)(nil)
)
