package domain

import (
	"errors"
	"fmt"
)

// Базовые категории ошибок. Транспортный слой выбирает код ответа по ним.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConflict          = errors.New("conflict")
	// ErrInternal помечает нарушение внутренних инвариантов, в котором нет вины клиента.
	ErrInternal = errors.New("internal error")
)

var (
	// ErrProductNotFound возвращается, если товар не найден в каталоге.
	ErrProductNotFound = fmt.Errorf("product %w", ErrNotFound)
	// ErrCustomerNotFound возвращается, если клиент не найден.
	ErrCustomerNotFound = fmt.Errorf("customer %w", ErrNotFound)
	// ErrEmployeeNotFound возвращается, если сотрудник (продавец) не найден.
	ErrEmployeeNotFound = fmt.Errorf("employee %w", ErrNotFound)
	// ErrInvoiceNotFound возвращается, если счёт не найден.
	ErrInvoiceNotFound = fmt.Errorf("invoice %w", ErrNotFound)
	// ErrLineNotFound возвращается, если позиция не принадлежит счёту.
	ErrLineNotFound = fmt.Errorf("invoice line %w", ErrNotFound)

	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = fmt.Errorf("%w: customer_id is required", ErrInvalidArgument)
	// Ошибка отсутствующего идентификатора счёта.
	ErrInvoiceIDRequired = fmt.Errorf("%w: invoice_id is required", ErrInvalidArgument)
	// Ошибка отсутствия хотя бы одной позиции.
	ErrLinesRequired = fmt.Errorf("%w: invoice must contain at least one line", ErrInvalidArgument)
	// Ошибка пустого идентификатора товара в позиции.
	ErrProductIDRequired = fmt.Errorf("%w: product_id is required", ErrInvalidArgument)
	// Ошибка при некорректном количестве (<= 0).
	ErrLineQtyInvalid = fmt.Errorf("%w: line quantity must be greater than zero", ErrInvalidArgument)
	// Ошибка, если цена за единицу отрицательная.
	ErrUnitPriceInvalid = fmt.Errorf("%w: unit price must be non-negative", ErrInvalidArgument)
	// Ошибка несовпадения длины списков товаров и количеств.
	ErrLineArityMismatch = fmt.Errorf("%w: product ids and quantities must have the same length", ErrInvalidArgument)
	// Ошибка отрицательной суммы счёта.
	ErrTotalNegative = fmt.Errorf("%w: invoice total must be non-negative", ErrInvalidArgument)
	// Ошибка несоответствия суммы счёта и сумм позиций.
	ErrTotalMismatch = fmt.Errorf("%w: invoice total does not match lines sum", ErrInvalidArgument)
	// Ошибка subtotal, не равного quantity * unit_price.
	ErrSubtotalMismatch = fmt.Errorf("%w: line subtotal does not match quantity * unit price", ErrInvalidArgument)
	// Ошибка процента скидки вне диапазона [0, 100].
	ErrDiscountOutOfRange = fmt.Errorf("%w: discount percentage must be within [0, 100]", ErrInvalidArgument)
	// Ошибка нулевого изменения остатка.
	ErrStockDeltaZero = fmt.Errorf("%w: stock delta must not be zero", ErrInvalidArgument)
	// ErrLineQtyTooLarge возвращается для количества больше MaxLineQuantity.
	ErrLineQtyTooLarge = fmt.Errorf("%w: line quantity must not exceed %d", ErrInvalidArgument, MaxLineQuantity)
	// ErrStockDeltaTooLarge возвращается для ручной корректировки больше MaxStockDelta по модулю.
	ErrStockDeltaTooLarge = fmt.Errorf("%w: stock delta must be within [-%d, %d]", ErrInvalidArgument, MaxStockDelta, MaxStockDelta)
	// ErrStockOutOfRange возвращается, если остаток после движения не помещается в int64.
	ErrStockOutOfRange = fmt.Errorf("%w: resulting stock is out of range", ErrInvalidArgument)
	// ErrAmountTooLarge возвращается, если сумма позиции или счёта превышает MaxMoneyAmount.
	ErrAmountTooLarge = fmt.Errorf("%w: amount exceeds %s", ErrInvalidArgument, MaxMoneyAmount.StringFixed(MoneyScale))
	// Ошибка неизвестной политики остатков.
	ErrStockPolicyInvalid = fmt.Errorf("%w: stock policy must be strict or permissive", ErrInvalidArgument)
	// Ошибка корректировки позиции без изменений.
	ErrCorrectionEmpty = fmt.Errorf("%w: line correction must change quantity or unit price", ErrInvalidArgument)
	// Ошибка неизвестного направления сортировки.
	ErrSortDirectionInvalid = fmt.Errorf("%w: sort direction must be asc or desc", ErrInvalidArgument)

	// ErrInvoiceVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrInvoiceVersionConflict = fmt.Errorf("invoice version %w", ErrConflict)
	// ErrInvoiceAlreadyExists возвращается при повторной вставке счёта с тем же ID.
	ErrInvoiceAlreadyExists = fmt.Errorf("invoice already exists: %w", ErrConflict)
	// ErrOutboxMessageNotFound возвращается при отметке неизвестного или уже обработанного события.
	ErrOutboxMessageNotFound = fmt.Errorf("outbox message %w", ErrNotFound)
)

// StockError описывает отказ в списании остатка при строгой политике.
type StockError struct {
	ProductID string
	Available int64
	Requested int64
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d", e.ProductID, e.Available, e.Requested)
}

// Unwrap позволяет проверять ошибку через errors.Is(err, ErrInsufficientStock).
func (e *StockError) Unwrap() error {
	return ErrInsufficientStock
}

// ErrorKind это категория ошибки для транспорта.
type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindInvalidArgument   ErrorKind = "invalid_argument"
	KindInsufficientStock ErrorKind = "insufficient_stock"
	KindConflict          ErrorKind = "conflict"
	KindInternal          ErrorKind = "internal"
)

// KindOf классифицирует ошибку по базовым категориям.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInternal):
		return KindInternal
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrInsufficientStock):
		return KindInsufficientStock
	case errors.Is(err, ErrConflict):
		return KindConflict
	default:
		return KindInternal
	}
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrInvoiceVersionConflict)
}
