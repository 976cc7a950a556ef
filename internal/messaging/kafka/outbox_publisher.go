package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

var errPublisherNotReady = errors.New("kafka outbox publisher is not initialized")

// OutboxTopicPublisher отправляет outbox-события в Kafka в виде Envelope.
// Ключ сообщения это id счёта или товара, поэтому события одного агрегата
// попадают в одну партицию. Пустой topic означает маршрутизацию через TopicFor.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
	now      func() time.Time
}

func NewOutboxPublisher(producer *Producer, topic string) *OutboxTopicPublisher {
	return &OutboxTopicPublisher{producer: producer, topic: topic, now: time.Now}
}

func (p *OutboxTopicPublisher) Publish(ctx context.Context, event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return errPublisherNotReady
	}

	_, err := p.producer.Send(ctx, p.record(event))
	return err
}

func (p *OutboxTopicPublisher) record(event domain.OutboxMessage) Record {
	key := event.AggregateID
	if key == "" {
		key = event.ID
	}
	topic := p.topic
	if topic == "" {
		topic = TopicFor(event.AggregateType)
	}
	return Record{
		Topic: topic,
		Key:   key,
		Value: NewEnvelope(event, p.now()),
		Headers: map[string]string{
			HeaderEventType:     event.EventType,
			HeaderAggregateType: event.AggregateType,
			HeaderOutboxID:      event.ID,
		},
	}
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
