package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

// CatalogRepository читает и загружает справочники товаров, клиентов и сотрудников.
type CatalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository создаёт PostgreSQL-реализацию каталога.
func NewCatalogRepository(store *Store) *CatalogRepository {
	return &CatalogRepository{db: store.DB()}
}

const productColumns = `id, name, description, price, stock, active, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func loadProduct(ctx context.Context, q querier, id string, forUpdate bool) (domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	product, err := scanProduct(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	return product, nil
}

func loadCustomer(ctx context.Context, q querier, id string) (domain.Customer, error) {
	var c domain.Customer
	err := q.QueryRowContext(ctx, `
		SELECT id, name, email, phone, address, active
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, fmt.Errorf("%w: %s", domain.ErrCustomerNotFound, id)
		}
		return domain.Customer{}, fmt.Errorf("select customer: %w", err)
	}
	return c, nil
}

func loadEmployee(ctx context.Context, q querier, id string) (domain.Employee, error) {
	var e domain.Employee
	err := q.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, email, active
		FROM employees
		WHERE id = $1
	`, id).Scan(&e.ID, &e.FirstName, &e.LastName, &e.Email, &e.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Employee{}, fmt.Errorf("%w: %s", domain.ErrEmployeeNotFound, id)
		}
		return domain.Employee{}, fmt.Errorf("select employee: %w", err)
	}
	return e, nil
}

func (r *CatalogRepository) Product(ctx context.Context, id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return loadProduct(ctx, r.db, id, false)
}

func (r *CatalogRepository) Customer(ctx context.Context, id string) (domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return loadCustomer(ctx, r.db, id)
}

func (r *CatalogRepository) Employee(ctx context.Context, id string) (domain.Employee, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return loadEmployee(ctx, r.db, id)
}

func (r *CatalogRepository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return products, nil
}

func (r *CatalogRepository) UpsertProduct(ctx context.Context, p domain.Product) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, name, description, price, stock, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    description = EXCLUDED.description,
		    price = EXCLUDED.price,
		    stock = EXCLUDED.stock,
		    active = EXCLUDED.active,
		    updated_at = NOW()
	`, p.ID, p.Name, p.Description, domain.RoundMoney(p.Price), p.Stock, p.Active); err != nil {
		return fmt.Errorf("upsert product %s: %w", p.ID, err)
	}
	return nil
}

func (r *CatalogRepository) UpsertCustomer(ctx context.Context, c domain.Customer) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, email, phone, address, active)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    email = EXCLUDED.email,
		    phone = EXCLUDED.phone,
		    address = EXCLUDED.address,
		    active = EXCLUDED.active
	`, c.ID, c.Name, c.Email, c.Phone, c.Address, c.Active); err != nil {
		return fmt.Errorf("upsert customer %s: %w", c.ID, err)
	}
	return nil
}

func (r *CatalogRepository) UpsertEmployee(ctx context.Context, e domain.Employee) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO employees (id, first_name, last_name, email, active)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE
		SET first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name,
		    email = EXCLUDED.email,
		    active = EXCLUDED.active
	`, e.ID, e.FirstName, e.LastName, e.Email, e.Active); err != nil {
		return fmt.Errorf("upsert employee %s: %w", e.ID, err)
	}
	return nil
}

var (
	_ domain.CatalogReader = (*CatalogRepository)(nil)
	_ domain.CatalogWriter = (*CatalogRepository)(nil)
)
