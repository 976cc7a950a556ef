package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// StockPolicy определяет, может ли остаток уходить в минус.
type StockPolicy string

const (
	// StockPolicyStrict запрещает отрицательный остаток.
	StockPolicyStrict StockPolicy = "strict"
	// StockPolicyPermissive разрешает отрицательный остаток (backorder).
	StockPolicyPermissive StockPolicy = "permissive"
)

// ParseStockPolicy разбирает политику; пустая строка означает политику по умолчанию.
func ParseStockPolicy(raw string) (StockPolicy, error) {
	switch StockPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return "", nil
	case StockPolicyStrict:
		return StockPolicyStrict, nil
	case StockPolicyPermissive:
		return StockPolicyPermissive, nil
	default:
		return "", fmt.Errorf("%w: got %q", ErrStockPolicyInvalid, raw)
	}
}

// MaxStockDelta ограничивает ручную корректировку остатка по модулю.
const MaxStockDelta int64 = 1_000_000_000

// CheckStockDelta проверяет ручную корректировку остатка.
func CheckStockDelta(delta int64) error {
	switch {
	case delta == 0:
		return ErrStockDeltaZero
	case delta > MaxStockDelta || delta < -MaxStockDelta:
		return fmt.Errorf("%w: got %d", ErrStockDeltaTooLarge, delta)
	}
	return nil
}

// StockAfter складывает остаток и изменение с проверкой переполнения int64.
func StockAfter(stock, delta int64) (int64, error) {
	if (delta > 0 && stock > math.MaxInt64-delta) || (delta < 0 && stock < math.MinInt64-delta) {
		return 0, fmt.Errorf("%w: stock %d, delta %d", ErrStockOutOfRange, stock, delta)
	}
	return stock + delta, nil
}

// Allows сообщает, допустим ли итоговый остаток.
func (p StockPolicy) Allows(stockAfter int64) bool {
	return p == StockPolicyPermissive || stockAfter >= 0
}

// MovementReason это причина изменения остатка.
type MovementReason string

const (
	MovementSale       MovementReason = "sale"
	MovementVoid       MovementReason = "void"
	MovementCorrection MovementReason = "correction"
	MovementManual     MovementReason = "manual"
)

// StockMovement это запись журнала остатков. Журнал только дополняется.
type StockMovement struct {
	ID         string
	ProductID  string
	Delta      int64
	Reason     MovementReason
	InvoiceID  string
	StockAfter int64
	CreatedAt  time.Time
}
