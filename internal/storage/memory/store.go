package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

// Store это in-memory хранилище каталога, счетов и журнала остатков (для разработки/тестов).
// Запись идёт только через единицу работы (Do), чтение видит лишь зафиксированное состояние.
type Store struct {
	mu        sync.RWMutex
	products  map[string]domain.Product
	customers map[string]domain.Customer
	employees map[string]domain.Employee
	invoices  map[string]domain.Invoice
	movements []domain.StockMovement

	// txMu сериализует единицы работы, заменяя блокировки строк.
	txMu sync.Mutex

	outbox   *Outbox
	timeline *Timeline
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{
		products:  make(map[string]domain.Product),
		customers: make(map[string]domain.Customer),
		employees: make(map[string]domain.Employee),
		invoices:  make(map[string]domain.Invoice),
		outbox:    NewOutboxRepository(),
		timeline:  NewTimelineRepository(),
	}
}

// Outbox возвращает outbox, в который пишет единица работы.
func (s *Store) Outbox() domain.OutboxRepository {
	return s.outbox
}

// Timeline возвращает хранилище истории счетов.
func (s *Store) Timeline() domain.TimelineRepository {
	return s.timeline
}

// UpsertProduct добавляет или заменяет товар.
func (s *Store) UpsertProduct(_ context.Context, product domain.Product) error {
	if product.ID == "" {
		return fmt.Errorf("%w: product id is required", domain.ErrInvalidArgument)
	}
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.products[product.ID]; ok {
		product.CreatedAt = existing.CreatedAt
	} else if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	s.products[product.ID] = product
	return nil
}

// UpsertCustomer добавляет или заменяет клиента.
func (s *Store) UpsertCustomer(_ context.Context, customer domain.Customer) error {
	if customer.ID == "" {
		return domain.ErrCustomerRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[customer.ID] = customer
	return nil
}

// UpsertEmployee добавляет или заменяет сотрудника.
func (s *Store) UpsertEmployee(_ context.Context, employee domain.Employee) error {
	if employee.ID == "" {
		return fmt.Errorf("%w: employee id is required", domain.ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees[employee.ID] = employee
	return nil
}

func (s *Store) Product(_ context.Context, id string) (domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	product, ok := s.products[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	return product, nil
}

func (s *Store) Customer(_ context.Context, id string) (domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	customer, ok := s.customers[id]
	if !ok {
		return domain.Customer{}, fmt.Errorf("%w: %s", domain.ErrCustomerNotFound, id)
	}
	return customer, nil
}

func (s *Store) Employee(_ context.Context, id string) (domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	employee, ok := s.employees[id]
	if !ok {
		return domain.Employee{}, fmt.Errorf("%w: %s", domain.ErrEmployeeNotFound, id)
	}
	return employee, nil
}

// ListProducts возвращает товары, упорядоченные по ID.
func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Product, 0, len(s.products))
	for _, product := range s.products {
		result = append(result, product)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) Invoice(_ context.Context, id string) (domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	invoice, ok := s.invoices[id]
	if !ok {
		return domain.Invoice{}, fmt.Errorf("%w: %s", domain.ErrInvoiceNotFound, id)
	}
	return invoice.Clone(), nil
}

// ListInvoices возвращает счета от новых к старым с опциональным фильтром по клиенту.
func (s *Store) ListInvoices(_ context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Invoice, 0)
	for _, invoice := range s.invoices {
		if filter.CustomerID != "" && invoice.CustomerID != filter.CustomerID {
			continue
		}
		result = append(result, invoice.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Movements возвращает записи журнала товара от новых к старым.
func (s *Store) Movements(_ context.Context, productID string, limit int) ([]domain.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.StockMovement, 0)
	for i := len(s.movements) - 1; i >= 0; i-- {
		if s.movements[i].ProductID != productID {
			continue
		}
		result = append(result, s.movements[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

var (
	_ domain.CatalogReader  = (*Store)(nil)
	_ domain.CatalogWriter  = (*Store)(nil)
	_ domain.InvoiceReader  = (*Store)(nil)
	_ domain.MovementReader = (*Store)(nil)
)
