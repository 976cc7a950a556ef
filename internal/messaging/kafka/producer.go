package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

const defaultClientID = "ims-invoices"

// Record это одно сообщение для Kafka. Value сериализуется в JSON.
type Record struct {
	Topic   string
	Key     string
	Value   any
	Headers map[string]string
}

// Delivery описывает, куда брокер записал сообщение.
type Delivery struct {
	Topic     string
	Partition int32
	Offset    int64
}

// ProducerOption настраивает Producer.
type ProducerOption func(*Producer)

// WithProducerLogger задаёт логгер producer.
func WithProducerLogger(logger *log.Entry) ProducerOption {
	return func(p *Producer) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithProducerClock подменяет время, которым помечаются сообщения.
func WithProducerClock(clock func() time.Time) ProducerOption {
	return func(p *Producer) {
		if clock != nil {
			p.now = clock
		}
	}
}

// Producer синхронно публикует JSON-сообщения. Порядок внутри ключа
// сохраняется: idempotent producer и один in-flight запрос.
type Producer struct {
	sync   sarama.SyncProducer
	logger *log.Entry
	now    func() time.Time
}

// SaramaConfig возвращает настройки idempotent producer.
func SaramaConfig(clientID string) *sarama.Config {
	if clientID == "" {
		clientID = defaultClientID
	}
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Return.Successes = true
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	cfg.Net.MaxOpenRequests = 1
	return cfg
}

// NewProducer подключается к brokers.
func NewProducer(brokers []string, options ...ProducerOption) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("create kafka producer: no brokers")
	}
	sync, err := sarama.NewSyncProducer(brokers, SaramaConfig(defaultClientID))
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewProducerFromSync(sync, options...), nil
}

// NewProducerFromSync оборачивает готовый SyncProducer (в тестах это sarama/mocks).
func NewProducerFromSync(sync sarama.SyncProducer, options ...ProducerOption) *Producer {
	p := &Producer{
		sync:   sync,
		logger: log.WithField("component", "kafka-producer"),
		now:    time.Now,
	}
	for _, option := range options {
		option(p)
	}
	return p
}

// Send сериализует rec.Value и ждёт подтверждения брокера.
func (p *Producer) Send(ctx context.Context, rec Record) (Delivery, error) {
	if err := ctx.Err(); err != nil {
		return Delivery{}, err
	}
	if rec.Topic == "" {
		return Delivery{}, fmt.Errorf("send kafka message: empty topic")
	}

	value, err := json.Marshal(rec.Value)
	if err != nil {
		return Delivery{}, fmt.Errorf("marshal event for %s: %w", rec.Topic, err)
	}

	msg := &sarama.ProducerMessage{
		Topic:     rec.Topic,
		Value:     sarama.ByteEncoder(value),
		Headers:   recordHeaders(rec.Headers),
		Timestamp: p.now().UTC(),
	}
	if rec.Key != "" {
		msg.Key = sarama.StringEncoder(rec.Key)
	}

	fields := log.Fields{"topic": rec.Topic, "key": rec.Key}
	partition, offset, err := p.sync.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).WithFields(fields).Error("kafka send failed")
		return Delivery{}, fmt.Errorf("send message to %s: %w", rec.Topic, err)
	}

	fields["partition"] = partition
	fields["offset"] = offset
	p.logger.WithFields(fields).Debug("kafka message sent")
	return Delivery{Topic: rec.Topic, Partition: partition, Offset: offset}, nil
}

func (p *Producer) Close() error {
	if err := p.sync.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}

// recordHeaders раскладывает заголовки в порядке ключей.
func recordHeaders(headers map[string]string) []sarama.RecordHeader {
	if len(headers) == 0 {
		return nil
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]sarama.RecordHeader, 0, len(keys))
	for _, k := range keys {
		out = append(out, sarama.RecordHeader{Key: []byte(k), Value: []byte(headers[k])})
	}
	return out
}
