package kafka

import (
	"encoding/json"
	"time"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

// Topics для Kafka
const (
	TopicInvoiceEvents   = "ims.invoice.events"
	TopicStockEvents     = "ims.stock.events"
	TopicDeadLetterQueue = "ims.dlq"
)

// Заголовки сообщений
const (
	HeaderEventType     = "x-event-type"
	HeaderAggregateType = "x-aggregate-type"
	HeaderOutboxID      = "x-outbox-id"
)

// Envelope оборачивает outbox-сообщение перед отправкой в Kafka.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// NewEnvelope строит конверт из outbox-сообщения.
func NewEnvelope(msg domain.OutboxMessage, publishedAt time.Time) Envelope {
	payload := json.RawMessage(msg.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return Envelope{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       payload,
		PublishedAt:   publishedAt.UTC(),
	}
}

// TopicFor возвращает topic по типу агрегата.
func TopicFor(aggregateType string) string {
	switch aggregateType {
	case domain.AggregateProduct:
		return TopicStockEvents
	default:
		return TopicInvoiceEvents
	}
}
