package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MoneyScale это количество знаков после запятой для денежных сумм.
const MoneyScale = 2

var hundred = decimal.NewFromInt(100)

// MaxMoneyAmount это наибольшая сумма позиции или счёта, NUMERIC(14, 2) в PostgreSQL.
var MaxMoneyAmount = decimal.New(1, 12).Sub(decimal.New(1, -MoneyScale))

// MaxLineQuantity ограничивает количество в одной позиции.
const MaxLineQuantity int64 = 1_000_000

// CheckAmount отклоняет сумму, которая не помещается в денежные колонки.
func CheckAmount(amount decimal.Decimal) error {
	if amount.GreaterThan(MaxMoneyAmount) {
		return fmt.Errorf("%w: got %s", ErrAmountTooLarge, amount.StringFixed(MoneyScale))
	}
	return nil
}

// CheckLineQuantity проверяет количество позиции.
func CheckLineQuantity(qty int64) error {
	switch {
	case qty <= 0:
		return ErrLineQtyInvalid
	case qty > MaxLineQuantity:
		return fmt.Errorf("%w: got %d", ErrLineQtyTooLarge, qty)
	}
	return nil
}

// RoundMoney округляет сумму до копеек.
func RoundMoney(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(MoneyScale)
}

// InvoiceLine представляет одну позицию счёта.
type InvoiceLine struct {
	ID        string
	InvoiceID string
	ProductID string
	// ProductName фиксируется на момент продажи для отображения.
	ProductName string
	Quantity    int64
	// UnitPrice это цена товара на момент продажи, дальнейшие изменения каталога её не трогают.
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
	Position  int
}

// ComputeSubtotal возвращает quantity * unit_price.
func (l InvoiceLine) ComputeSubtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity))
}

// Invoice агрегирует счёт и его позиции.
type Invoice struct {
	ID         string
	CustomerID string
	// EmployeeID пустой, если продавец не указан.
	EmployeeID string
	Total      decimal.Decimal
	Lines      []InvoiceLine
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Line ищет позицию по идентификатору.
func (inv *Invoice) Line(lineID string) (int, bool) {
	for i := range inv.Lines {
		if inv.Lines[i].ID == lineID {
			return i, true
		}
	}
	return -1, false
}

// Clone возвращает копию счёта с независимым срезом позиций.
func (inv Invoice) Clone() Invoice {
	out := inv
	out.Lines = append([]InvoiceLine(nil), inv.Lines...)
	return out
}

// SumLines суммирует subtotal всех позиций.
func SumLines(lines []InvoiceLine) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(line.Subtotal)
	}
	return sum
}

// ValidateInvariants проверяет инварианты только что собранного счёта и возвращает список замечаний.
// После скидки total законно отличается от суммы позиций, поэтому проверка применяется до мутаций.
func (inv *Invoice) ValidateInvariants() []error {
	var errs []error

	if inv.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if len(inv.Lines) == 0 {
		errs = append(errs, ErrLinesRequired)
	}
	if inv.Total.IsNegative() {
		errs = append(errs, ErrTotalNegative)
	}

	for _, line := range inv.Lines {
		if line.Quantity <= 0 {
			errs = append(errs, ErrLineQtyInvalid)
		}
		if line.UnitPrice.IsNegative() {
			errs = append(errs, ErrUnitPriceInvalid)
		}
		if !line.Subtotal.Equal(line.ComputeSubtotal()) {
			errs = append(errs, ErrSubtotalMismatch)
		}
	}
	if !SumLines(inv.Lines).Equal(inv.Total) {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}

// DiscountedTotal применяет процентную скидку: total * (1 - pct/100), с округлением до копеек.
// Повторное применение складывается мультипликативно.
func DiscountedTotal(total, pct decimal.Decimal) (decimal.Decimal, error) {
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return decimal.Zero, fmt.Errorf("%w: got %s", ErrDiscountOutOfRange, pct.String())
	}
	return RoundMoney(total.Mul(hundred.Sub(pct)).Div(hundred)), nil
}

// LineRequest это запрошенная позиция продажи.
type LineRequest struct {
	ProductID string
	Quantity  int64
}

// LineRequestsFromPairs собирает позиции из параллельных списков товаров и количеств.
func LineRequestsFromPairs(productIDs []string, quantities []int64) ([]LineRequest, error) {
	if len(productIDs) != len(quantities) {
		return nil, fmt.Errorf("%w: %d product ids, %d quantities", ErrLineArityMismatch, len(productIDs), len(quantities))
	}
	lines := make([]LineRequest, 0, len(productIDs))
	for i := range productIDs {
		lines = append(lines, LineRequest{ProductID: productIDs[i], Quantity: quantities[i]})
	}
	return lines, nil
}

// LineCorrection описывает исправление позиции; nil-поле не меняется.
type LineCorrection struct {
	Quantity  *int64
	UnitPrice *decimal.Decimal
}

// Validate проверяет корректировку до начала транзакции.
func (c LineCorrection) Validate() error {
	if c.Quantity == nil && c.UnitPrice == nil {
		return ErrCorrectionEmpty
	}
	if c.Quantity != nil {
		if err := CheckLineQuantity(*c.Quantity); err != nil {
			return err
		}
	}
	if c.UnitPrice != nil && c.UnitPrice.IsNegative() {
		return ErrUnitPriceInvalid
	}
	return nil
}

// LineView это позиция счёта в виде для отображения.
type LineView struct {
	LineID      string
	ProductID   string
	ProductName string
	Quantity    int64
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
}

// Views возвращает позиции в порядке добавления.
func (inv *Invoice) Views() []LineView {
	views := make([]LineView, 0, len(inv.Lines))
	for _, line := range inv.Lines {
		views = append(views, LineView{
			LineID:      line.ID,
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Subtotal:    line.Subtotal,
		})
	}
	return views
}
