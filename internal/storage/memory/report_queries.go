package memory

import (
	"context"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

// InvoiceCountsByCustomer группирует счета по клиенту.
func (s *Store) InvoiceCountsByCustomer(_ context.Context) ([]domain.CustomerInvoiceCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int64)
	for _, invoice := range s.invoices {
		counts[invoice.CustomerID]++
	}

	result := make([]domain.CustomerInvoiceCount, 0, len(counts))
	for customerID, count := range counts {
		result = append(result, domain.CustomerInvoiceCount{
			CustomerID:   customerID,
			CustomerName: s.customers[customerID].Name,
			InvoiceCount: count,
		})
	}
	return result, nil
}

// UnitsSoldByProduct суммирует проданные единицы по товарам.
func (s *Store) UnitsSoldByProduct(_ context.Context) ([]domain.ProductSales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	units := make(map[string]int64)
	names := make(map[string]string)
	for _, invoice := range s.invoices {
		for _, line := range invoice.Lines {
			units[line.ProductID] += line.Quantity
			names[line.ProductID] = line.ProductName
		}
	}

	result := make([]domain.ProductSales, 0, len(units))
	for productID, sold := range units {
		name := names[productID]
		if product, ok := s.products[productID]; ok {
			name = product.Name
		}
		result = append(result, domain.ProductSales{
			ProductID:   productID,
			ProductName: name,
			UnitsSold:   sold,
		})
	}
	return result, nil
}

// ProductStocks возвращает текущие остатки всех товаров.
func (s *Store) ProductStocks(_ context.Context) ([]domain.ProductStock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ProductStock, 0, len(s.products))
	for _, product := range s.products {
		result = append(result, domain.ProductStock{
			ProductID:   product.ID,
			ProductName: product.Name,
			Stock:       product.Stock,
		})
	}
	return result, nil
}

// InvoiceCountsByEmployee группирует счета по продавцу; счета без продавца не учитываются.
func (s *Store) InvoiceCountsByEmployee(_ context.Context) ([]domain.EmployeeInvoiceCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int64)
	for _, invoice := range s.invoices {
		if invoice.EmployeeID == "" {
			continue
		}
		counts[invoice.EmployeeID]++
	}

	result := make([]domain.EmployeeInvoiceCount, 0, len(counts))
	for employeeID, count := range counts {
		result = append(result, domain.EmployeeInvoiceCount{
			EmployeeID:   employeeID,
			EmployeeName: s.employees[employeeID].FullName(),
			InvoiceCount: count,
		})
	}
	return result, nil
}

var _ domain.ReportReader = (*Store)(nil)
