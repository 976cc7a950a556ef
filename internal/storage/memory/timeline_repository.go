package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

// Timeline хранит историю счетов в памяти процесса.
// События одного момента остаются в порядке записи.
type Timeline struct {
	mu        sync.RWMutex
	byInvoice map[string][]domain.TimelineEvent
}

func NewTimelineRepository() *Timeline {
	return &Timeline{byInvoice: make(map[string][]domain.TimelineEvent)}
}

func (t *Timeline) Append(_ context.Context, event domain.TimelineEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	if event.Occurred.IsZero() {
		event.Occurred = time.Now().UTC()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	history := t.byInvoice[event.InvoiceID]
	at := sort.Search(len(history), func(i int) bool { return history[i].Occurred.After(event.Occurred) })
	history = append(history, domain.TimelineEvent{})
	copy(history[at+1:], history[at:])
	history[at] = event
	t.byInvoice[event.InvoiceID] = history
	return nil
}

// List возвращает копию истории счёта от старых событий к новым.
func (t *Timeline) List(_ context.Context, invoiceID string) ([]domain.TimelineEvent, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]domain.TimelineEvent{}, t.byInvoice[invoiceID]...), nil
}

var _ domain.TimelineRepository = (*Timeline)(nil)
