package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product это товар каталога. Stock может уйти в минус только при мягкой политике остатков.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int64
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Customer это покупатель, на которого выставляется счёт.
type Customer struct {
	ID      string
	Name    string
	Email   string
	Phone   string
	Address string
	Active  bool
}

// Employee это продавец, оформивший продажу.
type Employee struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Active    bool
}

// FullName возвращает имя для отчётов.
func (e Employee) FullName() string {
	switch {
	case e.FirstName == "":
		return e.LastName
	case e.LastName == "":
		return e.FirstName
	default:
		return e.FirstName + " " + e.LastName
	}
}
