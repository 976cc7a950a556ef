package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

type reportRepository struct {
	db *sql.DB
}

// NewReportRepository создаёт PostgreSQL-реализацию агрегирующих запросов.
func NewReportRepository(store *Store) domain.ReportReader {
	return &reportRepository{db: store.DB()}
}

func (r *reportRepository) InvoiceCountsByCustomer(ctx context.Context) ([]domain.CustomerInvoiceCount, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT i.customer_id, COALESCE(c.name, ''), COUNT(*)
		FROM invoices i
		LEFT JOIN customers c ON c.id = i.customer_id
		GROUP BY i.customer_id, c.name
		ORDER BY COUNT(*) DESC, i.customer_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query invoice counts by customer: %w", err)
	}
	defer rows.Close()

	result := make([]domain.CustomerInvoiceCount, 0)
	for rows.Next() {
		var row domain.CustomerInvoiceCount
		if err := rows.Scan(&row.CustomerID, &row.CustomerName, &row.InvoiceCount); err != nil {
			return nil, fmt.Errorf("scan customer count: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customer counts: %w", err)
	}
	return result, nil
}

func (r *reportRepository) UnitsSoldByProduct(ctx context.Context) ([]domain.ProductSales, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT l.product_id, COALESCE(p.name, MAX(l.product_name)), SUM(l.quantity)
		FROM invoice_lines l
		LEFT JOIN products p ON p.id = l.product_id
		GROUP BY l.product_id, p.name
		ORDER BY SUM(l.quantity) DESC, l.product_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query units sold by product: %w", err)
	}
	defer rows.Close()

	result := make([]domain.ProductSales, 0)
	for rows.Next() {
		var row domain.ProductSales
		if err := rows.Scan(&row.ProductID, &row.ProductName, &row.UnitsSold); err != nil {
			return nil, fmt.Errorf("scan product sales: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product sales: %w", err)
	}
	return result, nil
}

func (r *reportRepository) ProductStocks(ctx context.Context) ([]domain.ProductStock, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, stock
		FROM products
		ORDER BY stock ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query product stocks: %w", err)
	}
	defer rows.Close()

	result := make([]domain.ProductStock, 0)
	for rows.Next() {
		var row domain.ProductStock
		if err := rows.Scan(&row.ProductID, &row.ProductName, &row.Stock); err != nil {
			return nil, fmt.Errorf("scan product stock: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product stocks: %w", err)
	}
	return result, nil
}

func (r *reportRepository) InvoiceCountsByEmployee(ctx context.Context) ([]domain.EmployeeInvoiceCount, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT i.employee_id, COALESCE(TRIM(e.first_name || ' ' || e.last_name), ''), COUNT(*)
		FROM invoices i
		LEFT JOIN employees e ON e.id = i.employee_id
		WHERE i.employee_id IS NOT NULL
		GROUP BY i.employee_id, e.first_name, e.last_name
		ORDER BY COUNT(*) DESC, i.employee_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query invoice counts by employee: %w", err)
	}
	defer rows.Close()

	result := make([]domain.EmployeeInvoiceCount, 0)
	for rows.Next() {
		var row domain.EmployeeInvoiceCount
		if err := rows.Scan(&row.EmployeeID, &row.EmployeeName, &row.InvoiceCount); err != nil {
			return nil, fmt.Errorf("scan employee count: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate employee counts: %w", err)
	}
	return result, nil
}
