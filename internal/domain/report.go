package domain

import (
	"fmt"
	"strings"
)

// SortDirection задаёт порядок сортировки рейтинга.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ParseSortDirection разбирает направление; пустая строка означает убывание.
func ParseSortDirection(raw string) (SortDirection, error) {
	switch SortDirection(strings.ToLower(strings.TrimSpace(raw))) {
	case "", SortDesc:
		return SortDesc, nil
	case SortAsc:
		return SortAsc, nil
	default:
		return "", fmt.Errorf("%w: got %q", ErrSortDirectionInvalid, raw)
	}
}

// CustomerInvoiceCount это число счетов клиента.
type CustomerInvoiceCount struct {
	CustomerID   string
	CustomerName string
	InvoiceCount int64
}

// ProductSales это суммарное количество проданных единиц товара.
type ProductSales struct {
	ProductID   string
	ProductName string
	UnitsSold   int64
}

// ProductStock это текущий остаток товара.
type ProductStock struct {
	ProductID   string
	ProductName string
	Stock       int64
}

// EmployeeInvoiceCount это число счетов, оформленных продавцом.
type EmployeeInvoiceCount struct {
	EmployeeID   string
	EmployeeName string
	InvoiceCount int64
}
