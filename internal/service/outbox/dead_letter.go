package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

// DeadLetter это содержимое сообщения DLQ: исходное событие счёта или остатка
// и причина, по которой его не удалось опубликовать.
type DeadLetter struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishError  string          `json:"publish_error"`
	Attempts      int             `json:"attempts"`
	FailedAt      time.Time       `json:"failed_at"`
}

// NewDeadLetter упаковывает неопубликованное событие.
func NewDeadLetter(event domain.OutboxMessage, publishErr error, attempts int, at time.Time) DeadLetter {
	letter := DeadLetter{
		OutboxID:      event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       json.RawMessage(event.Payload),
		Attempts:      attempts,
		FailedAt:      at.UTC(),
	}
	if publishErr != nil {
		letter.PublishError = publishErr.Error()
	}
	return letter
}

// ParseDeadLetter разбирает содержимое сообщения DLQ.
func ParseDeadLetter(raw []byte) (DeadLetter, error) {
	var letter DeadLetter
	if err := json.Unmarshal(raw, &letter); err != nil {
		return DeadLetter{}, fmt.Errorf("decode dead letter: %w", err)
	}
	if len(letter.Payload) == 0 || string(letter.Payload) == "null" {
		return DeadLetter{}, errors.New("dead letter does not contain original event payload")
	}
	return letter, nil
}

// Message восстанавливает исходное outbox-событие.
func (l DeadLetter) Message() domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:            l.OutboxID,
		AggregateType: l.AggregateType,
		AggregateID:   l.AggregateID,
		EventType:     l.EventType,
		Payload:       append([]byte(nil), l.Payload...),
	}
}

// envelope заворачивает письмо в outbox-сообщение для DLQ-publisher.
func (l DeadLetter) envelope() (domain.OutboxMessage, error) {
	payload, err := json.Marshal(l)
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("marshal dead letter: %w", err)
	}
	msg := l.Message()
	msg.Payload = payload
	return msg, nil
}
