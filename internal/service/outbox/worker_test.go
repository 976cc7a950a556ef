package outbox

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/metrics"
	"github.com/vladislavdragonenkov/ims/internal/storage/memory"
)

func quietLogger() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger.WithField("component", "outbox-test")
}

func invoiceEvent(id, invoiceID, eventType string) domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:            id,
		AggregateType: domain.AggregateInvoice,
		AggregateID:   invoiceID,
		EventType:     eventType,
		Payload:       []byte(`{"invoice_id":"` + invoiceID + `"}`),
	}
}

// fakeOutbox хранит pending-события в порядке записи.
type fakeOutbox struct {
	mu      sync.Mutex
	pending []domain.OutboxMessage
	sent    []string
	failed  []string
	pullErr error
}

func (f *fakeOutbox) Enqueue(_ context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, msg)
	return msg, nil
}

func (f *fakeOutbox) PullPending(_ context.Context, limit int) ([]domain.OutboxMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	n := len(f.pending)
	if limit > 0 && limit < n {
		n = limit
	}
	return append([]domain.OutboxMessage(nil), f.pending[:n]...), nil
}

func (f *fakeOutbox) Stats(context.Context) (domain.OutboxStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.OutboxStats{PendingCount: len(f.pending)}, nil
}

func (f *fakeOutbox) MarkSent(_ context.Context, id string) error {
	return f.resolve(id, &f.sent)
}

func (f *fakeOutbox) MarkFailed(_ context.Context, id string) error {
	return f.resolve(id, &f.failed)
}

func (f *fakeOutbox) resolve(id string, into *[]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, msg := range f.pending {
		if msg.ID == id {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			*into = append(*into, id)
			return nil
		}
	}
	return domain.ErrOutboxMessageNotFound
}

func (f *fakeOutbox) pendingIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.pending))
	for _, msg := range f.pending {
		ids = append(ids, msg.ID)
	}
	return ids
}

// brokerStub отклоняет события указанных агрегатов и запоминает остальные.
type brokerStub struct {
	mu        sync.Mutex
	down      map[string]error
	flaky     []error
	published []domain.OutboxMessage
	attempts  int
}

func (b *brokerStub) Publish(_ context.Context, msg domain.OutboxMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts++
	if len(b.flaky) > 0 {
		err := b.flaky[0]
		b.flaky = b.flaky[1:]
		if err != nil {
			return err
		}
	}
	if err := b.down[msg.AggregateID]; err != nil {
		return err
	}
	b.published = append(b.published, msg)
	return nil
}

func (b *brokerStub) publishedIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]string, 0, len(b.published))
	for _, msg := range b.published {
		ids = append(ids, msg.ID)
	}
	return ids
}

var (
	_ domain.OutboxRepository = (*fakeOutbox)(nil)
	_ domain.OutboxPublisher  = (*brokerStub)(nil)
)

func TestWorker_PublishesInvoiceEventsInOrder(t *testing.T) {
	t.Parallel()

	repo := &fakeOutbox{pending: []domain.OutboxMessage{
		invoiceEvent("e1", "inv-1", domain.EventInvoiceCreated),
		invoiceEvent("e2", "inv-1", domain.EventInvoiceDiscounted),
		invoiceEvent("e3", "inv-2", domain.EventInvoiceCreated),
	}}
	broker := &brokerStub{}
	worker := NewWorker(repo, broker, WithLogger(quietLogger()), WithRetryBaseDelay(0))

	result := worker.ProcessOnce(context.Background())

	assert.Equal(t, BatchResult{Pulled: 3, Sent: 3}, result)
	assert.Equal(t, []string{"e1", "e2", "e3"}, broker.publishedIDs())
	assert.Equal(t, []string{"e1", "e2", "e3"}, repo.sent)
	assert.Empty(t, repo.pendingIDs())
}

func TestWorker_FailedEventDefersLaterEventsOfSameInvoice(t *testing.T) {
	t.Parallel()

	repo := &fakeOutbox{pending: []domain.OutboxMessage{
		invoiceEvent("e1", "inv-1", domain.EventInvoiceCreated),
		invoiceEvent("e2", "inv-2", domain.EventInvoiceCreated),
		invoiceEvent("e3", "inv-1", domain.EventInvoiceVoided),
	}}
	broker := &brokerStub{down: map[string]error{"inv-1": errors.New("leader not available")}}
	dlq := &brokerStub{}
	reg := prometheus.NewRegistry()
	worker := NewWorker(repo, broker,
		WithLogger(quietLogger()),
		WithDLQPublisher(dlq),
		WithMaxAttempts(2),
		WithRetryBaseDelay(0),
		WithMetrics(metrics.NewOutboxMetricsWithRegisterer(reg)),
	)

	result := worker.ProcessOnce(context.Background())

	assert.Equal(t, BatchResult{Pulled: 3, Sent: 1, DeadLettered: 1, Deferred: 1}, result)
	assert.Equal(t, []string{"e2"}, broker.publishedIDs())
	assert.Equal(t, []string{"e1"}, repo.failed)
	assert.Equal(t, []string{"e3"}, repo.pendingIDs(), "void must not overtake the undelivered create")

	require.Len(t, dlq.published, 1)
	letter, err := ParseDeadLetter(dlq.published[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, "e1", letter.OutboxID)
	assert.Equal(t, domain.EventInvoiceCreated, letter.EventType)
	assert.Equal(t, 2, letter.Attempts)
	assert.Contains(t, letter.PublishError, "leader not available")
	assert.JSONEq(t, `{"invoice_id":"inv-1"}`, string(letter.Payload))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestWorker_SucceedsAfterTransientError(t *testing.T) {
	t.Parallel()

	repo := &fakeOutbox{pending: []domain.OutboxMessage{invoiceEvent("e1", "inv-1", domain.EventInvoiceCreated)}}
	broker := &brokerStub{flaky: []error{errors.New("timeout"), errors.New("timeout")}}
	worker := NewWorker(repo, broker, WithLogger(quietLogger()), WithMaxAttempts(3), WithRetryBaseDelay(time.Millisecond))

	result := worker.ProcessOnce(context.Background())

	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 3, broker.attempts)
	assert.Empty(t, repo.failed)
}

func TestWorker_CancelDuringRetryKeepsEventPending(t *testing.T) {
	t.Parallel()

	repo := &fakeOutbox{pending: []domain.OutboxMessage{invoiceEvent("e1", "inv-1", domain.EventInvoiceCreated)}}
	broker := &brokerStub{down: map[string]error{"inv-1": errors.New("broker down")}}
	dlq := &brokerStub{}
	worker := NewWorker(repo, broker,
		WithLogger(quietLogger()),
		WithDLQPublisher(dlq),
		WithMaxAttempts(5),
		WithRetryBaseDelay(time.Hour),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result := worker.ProcessOnce(ctx)

	assert.Zero(t, result.DeadLettered)
	assert.Empty(t, dlq.published)
	assert.Equal(t, []string{"e1"}, repo.pendingIDs())
}

func TestWorker_PullErrorIsReported(t *testing.T) {
	t.Parallel()

	repo := &fakeOutbox{pullErr: errors.New("db down")}
	result := NewWorker(repo, &brokerStub{}, WithLogger(quietLogger())).ProcessOnce(context.Background())
	assert.Equal(t, BatchResult{}, result)
}

func TestWorker_RetryBackoff(t *testing.T) {
	t.Parallel()

	worker := NewWorker(&fakeOutbox{}, &brokerStub{}, WithRetryBaseDelay(100*time.Millisecond))
	assert.Equal(t, 100*time.Millisecond, worker.retryBackoff(1))
	assert.Equal(t, 400*time.Millisecond, worker.retryBackoff(3))
	assert.Equal(t, maxRetryDelay, worker.retryBackoff(40))

	assert.Zero(t, NewWorker(&fakeOutbox{}, &brokerStub{}, WithRetryBaseDelay(0)).retryBackoff(2))
}

func TestWorker_RunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	repo := &fakeOutbox{}
	worker := NewWorker(repo, &brokerStub{}, WithLogger(quietLogger()), WithPollInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(15 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
}

func TestWorker_RelaysInvoiceEventsFromMemoryStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewStore()
	err := store.Do(ctx, func(tx domain.Tx) error {
		return tx.EnqueueOutbox(ctx, invoiceEvent("evt-1", "inv-9", domain.EventInvoiceVoided))
	})
	require.NoError(t, err)

	broker := &brokerStub{}
	result := NewWorker(store.Outbox(), broker, WithLogger(quietLogger()), WithRetryBaseDelay(0)).ProcessOnce(ctx)
	assert.Equal(t, 1, result.Sent)

	pending, err := store.Outbox().PullPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDeadLetterRoundTrip(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 6, 1, 12, 0, 0, 0, time.FixedZone("MSK", 3*3600))
	event := invoiceEvent("e7", "inv-7", domain.EventInvoiceLineCorrected)
	letter := NewDeadLetter(event, errors.New("message too large"), 3, at)
	assert.Equal(t, time.UTC, letter.FailedAt.Location())

	msg, err := letter.envelope()
	require.NoError(t, err)
	assert.Equal(t, event.ID, msg.ID)

	parsed, err := ParseDeadLetter(msg.Payload)
	require.NoError(t, err)
	assert.Equal(t, event, parsed.Message())

	_, err = ParseDeadLetter([]byte(`{"outbox_id":"e7","payload":null}`))
	require.Error(t, err)
}

func TestLogPublisher(t *testing.T) {
	t.Parallel()

	publisher := NewLogPublisher(quietLogger())
	require.NoError(t, publisher.Publish(context.Background(), invoiceEvent("x", "inv-1", domain.EventInvoiceCreated)))
}
