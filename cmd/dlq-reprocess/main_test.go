package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/ims/internal/service/outbox"
)

func testLogger() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger.WithField("component", "dlq-reprocess-test")
}

// deadLetterValue собирает сообщение DLQ в том же виде, что пишет outbox worker.
func deadLetterValue(t *testing.T, event domain.OutboxMessage) []byte {
	t.Helper()

	letter := outbox.NewDeadLetter(event, errors.New("kafka: client has run out of available brokers"), 3, time.Now())
	payload, err := json.Marshal(letter)
	if err != nil {
		t.Fatalf("marshal dead letter: %v", err)
	}
	wrapped := event
	wrapped.Payload = payload

	raw, err := json.Marshal(kafka.NewEnvelope(wrapped, time.Now()))
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return raw
}

var (
	voidedEvent = domain.OutboxMessage{
		ID:            "outbox-1",
		AggregateType: domain.AggregateInvoice,
		AggregateID:   "inv-1",
		EventType:     domain.EventInvoiceVoided,
		Payload:       []byte(`{"reason":"duplicate"}`),
	}
	stockEvent = domain.OutboxMessage{
		ID:            "outbox-2",
		AggregateType: domain.AggregateProduct,
		AggregateID:   "p-1",
		EventType:     domain.EventStockAdjusted,
		Payload:       []byte(`{"delta":-2}`),
	}
)

type recordingPublisher struct {
	err    error
	events []domain.OutboxMessage
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.OutboxMessage) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func TestParseBrokers(t *testing.T) {
	brokers := parseBrokers(" broker-1:9092, ,broker-2:9092 ")
	if len(brokers) != 2 || brokers[0] != "broker-1:9092" || brokers[1] != "broker-2:9092" {
		t.Fatalf("unexpected brokers: %+v", brokers)
	}
}

func TestParseConfig(t *testing.T) {
	env := func(values map[string]string) func(string) string {
		return func(key string) string { return values[key] }
	}

	cfg, err := parseConfig([]string{"-event-type=invoice.voided", "-aggregate-id=inv-1", "-execute", "-limit=5"}, env(map[string]string{"KAFKA_BROKERS": "k1:9092,k2:9092"}))
	if err != nil {
		t.Fatalf("parseConfig failed: %v", err)
	}
	if len(cfg.brokers) != 2 || cfg.sourceTopic != kafka.TopicDeadLetterQueue || cfg.targetTopic != "" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if !cfg.execute || cfg.limit != 5 || cfg.eventType != "invoice.voided" || cfg.aggregateID != "inv-1" || cfg.idleTimeout != defaultIdleTimeout {
		t.Fatalf("unexpected flags: %+v", cfg)
	}

	cfg, err = parseConfig([]string{"-brokers=flag:9092"}, env(map[string]string{"KAFKA_BROKERS": "env:9092"}))
	if err != nil || len(cfg.brokers) != 1 || cfg.brokers[0] != "flag:9092" {
		t.Fatalf("flag must win over env: %+v, %v", cfg, err)
	}

	testCases := []struct {
		name string
		args []string
	}{
		{name: "no brokers", args: nil},
		{name: "empty source", args: []string{"-brokers=k:9092", "-source-topic= "}},
		{name: "loop", args: []string{"-brokers=k:9092", "-target-topic=" + kafka.TopicDeadLetterQueue}},
		{name: "limit", args: []string{"-brokers=k:9092", "-limit=0"}},
		{name: "idle", args: []string{"-brokers=k:9092", "-idle-timeout=0s"}},
		{name: "unknown flag", args: []string{"-brokers=k:9092", "-orders"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parseConfig(tc.args, env(nil)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestDecodeDeadLetter(t *testing.T) {
	event, err := decodeDeadLetter(deadLetterValue(t, voidedEvent))
	if err != nil {
		t.Fatalf("decodeDeadLetter failed: %v", err)
	}
	if event.ID != "outbox-1" || event.AggregateType != domain.AggregateInvoice || event.AggregateID != "inv-1" || event.EventType != domain.EventInvoiceVoided {
		t.Fatalf("unexpected event: %+v", event)
	}
	if string(event.Payload) != `{"reason":"duplicate"}` {
		t.Fatalf("original payload must be restored, got %s", event.Payload)
	}

	bad := map[string][]byte{
		"not json":        []byte("plain"),
		"no payload":      []byte(`{"id":"x"}`),
		"null payload":    []byte(`{"id":"x","payload":null}`),
		"payload string":  []byte(`{"id":"x","payload":"oops"}`),
		"missing payload": []byte(`{"id":"x","payload":{"outbox_id":"x"}}`),
	}
	for name, raw := range bad {
		if _, err := decodeDeadLetter(raw); err == nil {
			t.Fatalf("%s: expected decode error", name)
		}
	}
}

func TestConfigMatchesAndTopic(t *testing.T) {
	cfg := config{}
	if !cfg.matches(voidedEvent) || cfg.topicFor(voidedEvent) != kafka.TopicInvoiceEvents || cfg.topicFor(stockEvent) != kafka.TopicStockEvents {
		t.Fatal("empty filter must match and route by aggregate type")
	}

	cfg = config{eventType: domain.EventInvoiceVoided, targetTopic: "ims.replay"}
	if !cfg.matches(voidedEvent) || cfg.matches(stockEvent) {
		t.Fatal("event type filter mismatch")
	}
	if cfg.topicFor(stockEvent) != "ims.replay" {
		t.Fatal("target topic override ignored")
	}

	cfg = config{aggregateID: "p-1"}
	if cfg.matches(voidedEvent) || !cfg.matches(stockEvent) {
		t.Fatal("aggregate filter mismatch")
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", " ", "x", "y"); got != "x" {
		t.Fatalf("unexpected value: %q", got)
	}
	if got := firstNonEmpty("", " "); got != "" {
		t.Fatalf("expected empty value, got %q", got)
	}
}

func singlePartitionDeps(messages []*sarama.ConsumerMessage, publisher domain.OutboxPublisher) (replayDeps, *stubPartitionConsumerSource) {
	consumer := &stubPartitionConsumerSource{
		consumers: map[int32]partitionConsumer{0: closedPartitionConsumer(messages)},
	}
	deps := replayDeps{
		client: &stubOffsetClient{
			partitions: []int32{0},
			offsets:    map[int32]offsetRange{0: {oldest: 0, newest: int64(len(messages))}},
		},
		consumer:  consumer,
		publisher: publisher,
	}
	return deps, consumer
}

func TestProcessPartition_DryRun(t *testing.T) {
	deps, consumer := singlePartitionDeps([]*sarama.ConsumerMessage{
		{Offset: 0, Value: deadLetterValue(t, voidedEvent)},
		{Offset: 1, Value: []byte("garbage")},
	}, nil)
	cfg := config{sourceTopic: kafka.TopicDeadLetterQueue, idleTimeout: 20 * time.Millisecond}

	stats, err := processPartition(context.Background(), cfg, deps, 0, 10, testLogger())
	if err != nil {
		t.Fatalf("processPartition failed: %v", err)
	}
	if stats.processed != 2 || stats.replayed != 1 || stats.skipped != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(consumer.calls) != 1 || consumer.calls[0].offset != 0 {
		t.Fatalf("unexpected consume calls: %+v", consumer.calls)
	}
}

func TestProcessPartition_ExecuteFiltersByEventType(t *testing.T) {
	publisher := &recordingPublisher{}
	deps, _ := singlePartitionDeps([]*sarama.ConsumerMessage{
		{Offset: 0, Value: deadLetterValue(t, stockEvent)},
		{Offset: 1, Value: deadLetterValue(t, voidedEvent)},
	}, publisher)
	cfg := config{sourceTopic: kafka.TopicDeadLetterQueue, eventType: domain.EventInvoiceVoided, execute: true, idleTimeout: 20 * time.Millisecond}

	stats, err := processPartition(context.Background(), cfg, deps, 0, 10, testLogger())
	if err != nil {
		t.Fatalf("processPartition failed: %v", err)
	}
	if stats.replayed != 1 || stats.skipped != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(publisher.events) != 1 || publisher.events[0].ID != "outbox-1" {
		t.Fatalf("unexpected published events: %+v", publisher.events)
	}
}

func TestProcessPartition_FromNewestHonoursLimit(t *testing.T) {
	consumer := &stubPartitionConsumerSource{
		consumers: map[int32]partitionConsumer{0: closedPartitionConsumer(nil)},
	}
	deps := replayDeps{
		client:   &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 3, newest: 10}}},
		consumer: consumer,
	}
	cfg := config{sourceTopic: kafka.TopicDeadLetterQueue, fromNewest: true, idleTimeout: 20 * time.Millisecond}

	if _, err := processPartition(context.Background(), cfg, deps, 0, 4, testLogger()); err != nil {
		t.Fatalf("processPartition failed: %v", err)
	}
	if len(consumer.calls) != 1 || consumer.calls[0].offset != 6 {
		t.Fatalf("expected start offset 6, got %+v", consumer.calls)
	}

	consumer.calls = nil
	if _, err := processPartition(context.Background(), cfg, deps, 0, 50, testLogger()); err != nil {
		t.Fatalf("processPartition failed: %v", err)
	}
	if consumer.calls[0].offset != 3 {
		t.Fatalf("start offset must not precede oldest, got %+v", consumer.calls)
	}
}

func TestProcessPartition_ErrorBranches(t *testing.T) {
	cfg := config{sourceTopic: kafka.TopicDeadLetterQueue, execute: true, idleTimeout: 20 * time.Millisecond}
	logger := testLogger()

	offsetErr := replayDeps{
		client:   &stubOffsetClient{offsetErr: map[int32]error{0: errors.New("offset")}},
		consumer: &stubPartitionConsumerSource{},
	}
	if _, err := processPartition(context.Background(), cfg, offsetErr, 0, 1, logger); err == nil {
		t.Fatal("expected offset error")
	}

	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 2}}}
	consumeErr := replayDeps{client: client, consumer: &stubPartitionConsumerSource{consumeErr: errors.New("consume")}}
	if _, err := processPartition(context.Background(), cfg, consumeErr, 0, 1, logger); err == nil {
		t.Fatal("expected consume error")
	}

	pcWithErr := &stubPartitionConsumer{
		messages: make(chan *sarama.ConsumerMessage),
		errors:   make(chan *sarama.ConsumerError, 1),
	}
	pcWithErr.errors <- &sarama.ConsumerError{Err: errors.New("consumer boom")}
	withErr := replayDeps{client: client, consumer: &stubPartitionConsumerSource{consumers: map[int32]partitionConsumer{0: pcWithErr}}}
	if _, err := processPartition(context.Background(), cfg, withErr, 0, 1, logger); err == nil {
		t.Fatal("expected consumer error branch")
	}

	failing := &recordingPublisher{err: errors.New("send fail")}
	deps, _ := singlePartitionDeps([]*sarama.ConsumerMessage{{Offset: 0, Value: deadLetterValue(t, voidedEvent)}}, failing)
	if _, err := processPartition(context.Background(), cfg, deps, 0, 1, logger); err == nil {
		t.Fatal("expected publish error")
	}
}

func TestProcessPartition_IdleTimeoutAndContext(t *testing.T) {
	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 2}}}
	cfg := config{sourceTopic: kafka.TopicDeadLetterQueue, idleTimeout: 10 * time.Millisecond}

	idle := &stubPartitionConsumer{
		messages: make(chan *sarama.ConsumerMessage),
		errors:   make(chan *sarama.ConsumerError),
	}
	deps := replayDeps{client: client, consumer: &stubPartitionConsumerSource{consumers: map[int32]partitionConsumer{0: idle}}}
	stats, err := processPartition(context.Background(), cfg, deps, 0, 1, testLogger())
	if err != nil || stats.processed != 0 {
		t.Fatalf("unexpected idle result: %+v, %v", stats, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := processPartition(ctx, cfg, deps, 0, 1, testLogger()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestRunReplay(t *testing.T) {
	cfg := config{sourceTopic: kafka.TopicDeadLetterQueue, limit: 10, idleTimeout: 20 * time.Millisecond}
	logger := testLogger()

	if _, err := runReplay(context.Background(), cfg, replayDeps{}, logger); err == nil {
		t.Fatal("expected missing deps error")
	}

	deps, _ := singlePartitionDeps(nil, nil)
	execCfg := cfg
	execCfg.execute = true
	if _, err := runReplay(context.Background(), execCfg, deps, logger); err == nil {
		t.Fatal("expected missing publisher error")
	}

	partitionsErr := replayDeps{client: &stubOffsetClient{partitionsErr: errors.New("meta")}, consumer: &stubPartitionConsumerSource{}}
	if _, err := runReplay(context.Background(), cfg, partitionsErr, logger); err == nil {
		t.Fatal("expected partitions error")
	}

	empty := replayDeps{client: &stubOffsetClient{}, consumer: &stubPartitionConsumerSource{}}
	if stats, err := runReplay(context.Background(), cfg, empty, logger); err != nil || stats.processed != 0 {
		t.Fatalf("empty topic must be a no-op: %+v, %v", stats, err)
	}

	multi := replayDeps{
		client: &stubOffsetClient{
			partitions: []int32{1, 0},
			offsets:    map[int32]offsetRange{0: {oldest: 0, newest: 1}, 1: {oldest: 0, newest: 1}},
		},
		consumer: &stubPartitionConsumerSource{consumers: map[int32]partitionConsumer{
			0: closedPartitionConsumer([]*sarama.ConsumerMessage{{Partition: 0, Offset: 0, Value: deadLetterValue(t, voidedEvent)}}),
			1: closedPartitionConsumer([]*sarama.ConsumerMessage{{Partition: 1, Offset: 0, Value: deadLetterValue(t, stockEvent)}}),
		}},
	}
	limited := cfg
	limited.limit = 1
	stats, err := runReplay(context.Background(), limited, multi, logger)
	if err != nil {
		t.Fatalf("runReplay failed: %v", err)
	}
	consumer := multi.consumer.(*stubPartitionConsumerSource)
	if stats.processed != 1 || len(consumer.calls) != 1 || consumer.calls[0].partition != 0 {
		t.Fatalf("limit must stop after the first sorted partition: %+v %+v", stats, consumer.calls)
	}
}

func TestRun_RepublishesThroughKafkaPublisher(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != kafka.TopicInvoiceEvents {
			return fmt.Errorf("unexpected topic %s", msg.Topic)
		}
		raw, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var env kafka.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return err
		}
		if env.ID != "outbox-1" || env.EventType != domain.EventInvoiceVoided || string(env.Payload) != `{"reason":"duplicate"}` {
			return fmt.Errorf("unexpected envelope: %+v", env)
		}
		return nil
	})

	deps, consumer := singlePartitionDeps([]*sarama.ConsumerMessage{{Offset: 0, Value: deadLetterValue(t, voidedEvent)}}, nil)
	client := deps.client.(*stubOffsetClient)
	deps.publisher = kafka.NewOutboxPublisher(kafka.NewProducerFromSync(mockProducer, kafka.WithProducerLogger(testLogger())), "")
	deps.closeFns = []func() error{client.Close, consumer.Close, mockProducer.Close}

	original := newReplayDeps
	t.Cleanup(func() { newReplayDeps = original })
	newReplayDeps = func(config, *log.Entry) (replayDeps, error) { return deps, nil }

	cfg := config{sourceTopic: kafka.TopicDeadLetterQueue, limit: 10, execute: true, idleTimeout: 20 * time.Millisecond}
	if err := run(context.Background(), cfg, testLogger()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !client.closed || !consumer.closed {
		t.Fatal("dependencies must be closed after run")
	}

	newReplayDeps = func(config, *log.Entry) (replayDeps, error) { return replayDeps{}, errors.New("no brokers") }
	if err := run(context.Background(), cfg, testLogger()); err == nil {
		t.Fatal("expected dependency error")
	}
}

type offsetRange struct {
	oldest int64
	newest int64
}

type stubOffsetClient struct {
	partitions    []int32
	partitionsErr error
	offsets       map[int32]offsetRange
	offsetErr     map[int32]error
	closed        bool
}

func (s *stubOffsetClient) GetOffset(_ string, partition int32, marker int64) (int64, error) {
	if err, ok := s.offsetErr[partition]; ok {
		return 0, err
	}

	r := s.offsets[partition]
	switch marker {
	case sarama.OffsetOldest:
		return r.oldest, nil
	case sarama.OffsetNewest:
		return r.newest, nil
	default:
		return 0, fmt.Errorf("unsupported marker %d", marker)
	}
}

func (s *stubOffsetClient) Partitions(string) ([]int32, error) {
	if s.partitionsErr != nil {
		return nil, s.partitionsErr
	}
	return append([]int32(nil), s.partitions...), nil
}

func (s *stubOffsetClient) Close() error {
	s.closed = true
	return nil
}

type consumeCall struct {
	partition int32
	offset    int64
}

type stubPartitionConsumerSource struct {
	consumers  map[int32]partitionConsumer
	consumeErr error
	calls      []consumeCall
	closed     bool
}

func (s *stubPartitionConsumerSource) ConsumePartition(_ string, partition int32, offset int64) (partitionConsumer, error) {
	s.calls = append(s.calls, consumeCall{partition: partition, offset: offset})
	if s.consumeErr != nil {
		return nil, s.consumeErr
	}
	pc, ok := s.consumers[partition]
	if !ok {
		return nil, fmt.Errorf("partition %d not configured", partition)
	}
	return pc, nil
}

func (s *stubPartitionConsumerSource) Close() error {
	s.closed = true
	return nil
}

type stubPartitionConsumer struct {
	messages chan *sarama.ConsumerMessage
	errors   chan *sarama.ConsumerError
	closed   bool
}

func (s *stubPartitionConsumer) Messages() <-chan *sarama.ConsumerMessage { return s.messages }
func (s *stubPartitionConsumer) Errors() <-chan *sarama.ConsumerError     { return s.errors }
func (s *stubPartitionConsumer) Close() error {
	s.closed = true
	return nil
}

func closedPartitionConsumer(messages []*sarama.ConsumerMessage) *stubPartitionConsumer {
	msgCh := make(chan *sarama.ConsumerMessage, len(messages))
	errCh := make(chan *sarama.ConsumerError)
	for _, msg := range messages {
		msgCh <- msg
	}
	close(msgCh)
	close(errCh)
	return &stubPartitionConsumer{messages: msgCh, errors: errCh}
}
