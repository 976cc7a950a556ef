package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/ims/internal/service/outbox"
)

// eventSink это куда outbox relay отправляет события счетов и dead letters.
type eventSink struct {
	producer  *kafka.Producer
	publisher domain.OutboxPublisher
	// dlq пуст без Kafka: событие после исчерпания попыток только помечается failed.
	dlq domain.OutboxPublisher
}

// openEventSink подключается к Kafka. Пустой список брокеров или ошибка
// подключения дают sink, который пишет события в лог.
func openEventSink(brokers []string, logger *log.Entry) eventSink {
	if len(brokers) == 0 {
		return logSink(logger)
	}
	producer, err := kafka.NewProducer(brokers, kafka.WithProducerLogger(logger.WithField("component", "kafka-producer")))
	if err != nil {
		logger.WithError(err).WithField("brokers", brokers).Warn("kafka unavailable, outbox events go to the log")
		return logSink(logger)
	}
	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return kafkaSink(producer)
}

func logSink(logger *log.Entry) eventSink {
	return eventSink{publisher: outbox.NewLogPublisher(logger.WithField("publisher", "log"))}
}

func kafkaSink(producer *kafka.Producer) eventSink {
	return eventSink{
		producer:  producer,
		publisher: kafka.NewOutboxPublisher(producer, ""),
		dlq:       kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue),
	}
}

func (s eventSink) close(logger *log.Entry) {
	if s.producer == nil {
		return
	}
	if err := s.producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
		return
	}
	logger.Info("kafka producer closed")
}
