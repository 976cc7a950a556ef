package domain

import (
	"fmt"
	"time"
)

// Типы событий в истории счёта.
const (
	TimelineInvoiceCreated  = "InvoiceCreated"
	TimelineDiscountApplied = "DiscountApplied"
	TimelineLineCorrected   = "LineCorrected"
	TimelineInvoiceVoided   = "InvoiceVoided"
)

// TimelineEvent описывает событие в жизненном цикле счёта.
type TimelineEvent struct {
	InvoiceID string
	Type      string
	Reason    string
	Occurred  time.Time
}

// Validate проверяет, что событие привязано к счёту и имеет тип.
func (e TimelineEvent) Validate() error {
	if e.InvoiceID == "" {
		return ErrInvoiceIDRequired
	}
	if e.Type == "" {
		return fmt.Errorf("%w: timeline event type is required", ErrInvalidArgument)
	}
	return nil
}
