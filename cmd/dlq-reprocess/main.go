// Команда dlq-reprocess перечитывает dead-letter topic и возвращает outbox-события
// счетов и остатков в их рабочие topics. По умолчанию работает в режиме dry-run.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/ims/internal/service/outbox"
)

const (
	defaultReplayLimit = 100
	defaultIdleTimeout = 2 * time.Second
)

type config struct {
	brokers     []string
	sourceTopic string
	targetTopic string
	eventType   string
	aggregateID string
	limit       int
	execute     bool
	fromNewest  bool
	idleTimeout time.Duration
}

type offsetClient interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
	Close() error
}

type partitionConsumer interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type partitionConsumerSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error)
	Close() error
}

type saramaConsumerAdapter struct {
	consumer sarama.Consumer
}

func (a saramaConsumerAdapter) ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error) {
	pc, err := a.consumer.ConsumePartition(topic, partition, offset)
	if err != nil {
		return nil, err
	}
	return pc, nil
}

func (a saramaConsumerAdapter) Close() error {
	if a.consumer == nil {
		return nil
	}
	return a.consumer.Close()
}

// replayDeps собирает всё, что нужно для прохода по DLQ. publisher равен nil в dry-run.
type replayDeps struct {
	client    offsetClient
	consumer  partitionConsumerSource
	publisher domain.OutboxPublisher
	closeFns  []func() error
}

func (d replayDeps) close() {
	for i := len(d.closeFns) - 1; i >= 0; i-- {
		_ = d.closeFns[i]()
	}
}

var newReplayDeps = func(cfg config, logger *log.Entry) (replayDeps, error) {
	consumerConfig := sarama.NewConfig()
	consumerConfig.Consumer.Return.Errors = true

	client, err := sarama.NewClient(cfg.brokers, consumerConfig)
	if err != nil {
		return replayDeps{}, fmt.Errorf("create kafka client: %w", err)
	}
	rawConsumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return replayDeps{}, fmt.Errorf("create kafka consumer: %w", err)
	}

	deps := replayDeps{
		client:   client,
		consumer: saramaConsumerAdapter{consumer: rawConsumer},
		closeFns: []func() error{client.Close, rawConsumer.Close},
	}
	if !cfg.execute {
		return deps, nil
	}

	producer, err := kafka.NewProducer(cfg.brokers)
	if err != nil {
		deps.close()
		return replayDeps{}, err
	}
	deps.publisher = kafka.NewOutboxPublisher(producer, cfg.targetTopic)
	deps.closeFns = append(deps.closeFns, producer.Close)
	return deps, nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	cfg, err := parseConfig(os.Args[1:], os.Getenv)
	if err != nil {
		fail("%v", err)
	}

	if err := run(context.Background(), cfg, log.WithField("component", "dlq-reprocess")); err != nil {
		fail("dlq replay failed: %v", err)
	}
}

func parseConfig(args []string, lookup func(string) string) (config, error) {
	var (
		brokersRaw string
		cfg        config
	)

	fs := flag.NewFlagSet("dlq-reprocess", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: KAFKA_BROKERS)")
	fs.StringVar(&cfg.sourceTopic, "source-topic", kafka.TopicDeadLetterQueue, "DLQ source topic")
	fs.StringVar(&cfg.targetTopic, "target-topic", "", "force every replayed event into this topic; empty routes by aggregate type")
	fs.StringVar(&cfg.eventType, "event-type", "", "replay only events of this type (e.g. invoice.voided)")
	fs.StringVar(&cfg.aggregateID, "aggregate-id", "", "replay only events of this invoice or product id")
	fs.IntVar(&cfg.limit, "limit", defaultReplayLimit, "max number of messages to scan")
	fs.BoolVar(&cfg.execute, "execute", false, "execute replay; default is dry-run")
	fs.BoolVar(&cfg.fromNewest, "from-newest", false, "scan latest messages first (bounded by limit)")
	fs.DurationVar(&cfg.idleTimeout, "idle-timeout", defaultIdleTimeout, "idle timeout per partition")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = lookup("KAFKA_BROKERS")
	}

	cfg.brokers = parseBrokers(brokersRaw)
	if len(cfg.brokers) == 0 {
		return config{}, errors.New("kafka brokers are required (-brokers or KAFKA_BROKERS)")
	}
	if strings.TrimSpace(cfg.sourceTopic) == "" {
		return config{}, errors.New("source-topic is required")
	}
	if cfg.targetTopic == cfg.sourceTopic {
		return config{}, errors.New("target-topic must differ from source-topic")
	}
	if cfg.limit <= 0 {
		return config{}, errors.New("limit must be > 0")
	}
	if cfg.idleTimeout <= 0 {
		return config{}, errors.New("idle-timeout must be > 0")
	}

	return cfg, nil
}

func parseBrokers(raw string) []string {
	chunks := strings.Split(raw, ",")
	brokers := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		broker := strings.TrimSpace(chunk)
		if broker == "" {
			continue
		}
		brokers = append(brokers, broker)
	}
	return brokers
}

func run(ctx context.Context, cfg config, logger *log.Entry) error {
	logger.WithFields(log.Fields{
		"source_topic": cfg.sourceTopic,
		"target_topic": cfg.targetTopic,
		"event_type":   cfg.eventType,
		"aggregate_id": cfg.aggregateID,
		"limit":        cfg.limit,
		"execute":      cfg.execute,
	}).Info("starting dlq replay")

	deps, err := newReplayDeps(cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close()

	stats, err := runReplay(ctx, cfg, deps, logger)
	if err != nil {
		return err
	}

	mode := "dry-run"
	if cfg.execute {
		mode = "execute"
	}
	logger.WithFields(log.Fields{
		"mode":      mode,
		"processed": stats.processed,
		"replayed":  stats.replayed,
		"skipped":   stats.skipped,
	}).Info("dlq replay finished")
	return nil
}

type replayStats struct {
	processed int
	replayed  int
	skipped   int
}

func (s *replayStats) add(other replayStats) {
	s.processed += other.processed
	s.replayed += other.replayed
	s.skipped += other.skipped
}

func runReplay(ctx context.Context, cfg config, deps replayDeps, logger *log.Entry) (replayStats, error) {
	var total replayStats
	if deps.client == nil || deps.consumer == nil {
		return total, errors.New("kafka client and consumer are required")
	}
	if cfg.execute && deps.publisher == nil {
		return total, errors.New("publisher is required in execute mode")
	}

	partitions, err := deps.client.Partitions(cfg.sourceTopic)
	if err != nil {
		return total, fmt.Errorf("get partitions for topic %s: %w", cfg.sourceTopic, err)
	}
	if len(partitions) == 0 {
		logger.WithField("topic", cfg.sourceTopic).Warn("source topic has no partitions")
		return total, nil
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	for _, partition := range partitions {
		if total.processed >= cfg.limit {
			break
		}
		stats, err := processPartition(ctx, cfg, deps, partition, cfg.limit-total.processed, logger)
		total.add(stats)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func processPartition(
	ctx context.Context,
	cfg config,
	deps replayDeps,
	partition int32,
	limit int,
	logger *log.Entry,
) (replayStats, error) {
	var stats replayStats
	if limit <= 0 {
		return stats, nil
	}

	oldest, err := deps.client.GetOffset(cfg.sourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return stats, fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	newest, err := deps.client.GetOffset(cfg.sourceTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return stats, fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}
	if newest <= oldest {
		return stats, nil
	}

	startOffset := oldest
	if cfg.fromNewest {
		startOffset = max(newest-int64(limit), oldest)
	}

	pc, err := deps.consumer.ConsumePartition(cfg.sourceTopic, partition, startOffset)
	if err != nil {
		return stats, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	idleTimer := time.NewTimer(cfg.idleTimeout)
	defer idleTimer.Stop()

	for stats.processed < limit {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case consumerErr := <-pc.Errors():
			if consumerErr != nil {
				return stats, fmt.Errorf("partition %d consumer error: %w", partition, consumerErr)
			}
		case msg, ok := <-pc.Messages():
			if !ok || msg == nil || msg.Offset >= newest {
				return stats, nil
			}
			idleTimer.Reset(cfg.idleTimeout)
			stats.processed++

			entry := logger.WithFields(log.Fields{"partition": msg.Partition, "offset": msg.Offset})
			event, err := decodeDeadLetter(msg.Value)
			if err != nil {
				stats.skipped++
				entry.WithError(err).Warn("skip unsupported dlq message")
				continue
			}
			if !cfg.matches(event) {
				stats.skipped++
				continue
			}

			entry = entry.WithFields(log.Fields{
				"outbox_id":    event.ID,
				"event_type":   event.EventType,
				"aggregate_id": event.AggregateID,
			})
			if cfg.execute {
				if err := deps.publisher.Publish(ctx, event); err != nil {
					return stats, fmt.Errorf("publish replay message: %w", err)
				}
				entry.Info("dlq event replayed")
			} else {
				entry.WithField("target_topic", cfg.topicFor(event)).Info("dlq replay candidate")
			}
			stats.replayed++

			if msg.Offset+1 >= newest {
				return stats, nil
			}
		case <-idleTimer.C:
			return stats, nil
		}
	}

	return stats, nil
}

func (c config) matches(event domain.OutboxMessage) bool {
	if c.eventType != "" && event.EventType != c.eventType {
		return false
	}
	if c.aggregateID != "" && event.AggregateID != c.aggregateID {
		return false
	}
	return true
}

func (c config) topicFor(event domain.OutboxMessage) string {
	if c.targetTopic != "" {
		return c.targetTopic
	}
	return kafka.TopicFor(event.AggregateType)
}

// decodeDeadLetter разворачивает Kafka-конверт DLQ и восстанавливает исходное outbox-сообщение.
func decodeDeadLetter(raw []byte) (domain.OutboxMessage, error) {
	var envelope kafka.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("decode dlq envelope: %w", err)
	}
	if len(envelope.Payload) == 0 || string(envelope.Payload) == "null" {
		return domain.OutboxMessage{}, errors.New("dlq envelope has no payload")
	}

	letter, err := outbox.ParseDeadLetter(envelope.Payload)
	if err != nil {
		return domain.OutboxMessage{}, err
	}

	event := letter.Message()
	event.ID = firstNonEmpty(event.ID, envelope.ID)
	event.AggregateType = firstNonEmpty(event.AggregateType, envelope.AggregateType)
	event.AggregateID = firstNonEmpty(event.AggregateID, envelope.AggregateID)
	event.EventType = firstNonEmpty(event.EventType, envelope.EventType)
	return event, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
