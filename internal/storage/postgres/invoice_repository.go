package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

// InvoiceRepository читает счета и журнал остатков.
type InvoiceRepository struct {
	db *sql.DB
}

// NewInvoiceRepository создаёт PostgreSQL-реализацию чтения счетов и журнала остатков.
func NewInvoiceRepository(store *Store) *InvoiceRepository {
	return &InvoiceRepository{db: store.DB()}
}

const invoiceColumns = `id, customer_id, COALESCE(employee_id, ''), total, version, created_at, updated_at`

func scanInvoiceHeader(row interface{ Scan(...any) error }) (domain.Invoice, error) {
	var inv domain.Invoice
	err := row.Scan(&inv.ID, &inv.CustomerID, &inv.EmployeeID, &inv.Total, &inv.Version, &inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

func loadInvoice(ctx context.Context, q querier, id string, forUpdate bool) (domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	inv, err := scanInvoiceHeader(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Invoice{}, fmt.Errorf("%w: %s", domain.ErrInvoiceNotFound, id)
		}
		return domain.Invoice{}, fmt.Errorf("select invoice: %w", err)
	}

	lines, err := loadLines(ctx, q, inv.ID)
	if err != nil {
		return domain.Invoice{}, err
	}
	inv.Lines = lines
	return inv, nil
}

func loadLines(ctx context.Context, q querier, invoiceID string) ([]domain.InvoiceLine, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, invoice_id, product_id, product_name, quantity, unit_price, subtotal, position
		FROM invoice_lines
		WHERE invoice_id = $1
		ORDER BY position ASC
	`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("load invoice lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.InvoiceLine, 0)
	for rows.Next() {
		var line domain.InvoiceLine
		if err := rows.Scan(
			&line.ID, &line.InvoiceID, &line.ProductID, &line.ProductName,
			&line.Quantity, &line.UnitPrice, &line.Subtotal, &line.Position,
		); err != nil {
			return nil, fmt.Errorf("scan invoice line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoice lines: %w", err)
	}
	return lines, nil
}

func (r *InvoiceRepository) Invoice(ctx context.Context, id string) (domain.Invoice, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return loadInvoice(ctx, r.db, id, false)
}

func (r *InvoiceRepository) ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE ($1 = '' OR customer_id = $1)
		ORDER BY created_at DESC, id DESC
	`
	args := []any{filter.CustomerID}
	if filter.Limit > 0 {
		query += " LIMIT $2"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	invoices := make([]domain.Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoiceHeader(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice row: %w", err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoice rows: %w", err)
	}

	for i := range invoices {
		lines, err := loadLines(ctx, r.db, invoices[i].ID)
		if err != nil {
			return nil, err
		}
		invoices[i].Lines = lines
	}
	return invoices, nil
}

func (r *InvoiceRepository) Movements(ctx context.Context, productID string, limit int) ([]domain.StockMovement, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `
		SELECT id, product_id, delta, reason, COALESCE(invoice_id, ''), stock_after, created_at
		FROM stock_movements
		WHERE product_id = $1
		ORDER BY seq DESC
	`
	args := []any{productID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stock movements: %w", err)
	}
	defer rows.Close()

	movements := make([]domain.StockMovement, 0)
	for rows.Next() {
		var m domain.StockMovement
		var reason string
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Delta, &reason, &m.InvoiceID, &m.StockAfter, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan stock movement: %w", err)
		}
		m.Reason = domain.MovementReason(reason)
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock movements: %w", err)
	}
	return movements, nil
}

var (
	_ domain.InvoiceReader  = (*InvoiceRepository)(nil)
	_ domain.MovementReader = (*InvoiceRepository)(nil)
)
