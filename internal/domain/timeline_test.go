package domain

import (
	"errors"
	"testing"
)

func TestTimelineEventValidate(t *testing.T) {
	tests := []struct {
		name    string
		event   TimelineEvent
		wantErr error
	}{
		{name: "ok", event: TimelineEvent{InvoiceID: "inv-1", Type: TimelineInvoiceVoided}},
		{name: "no invoice", event: TimelineEvent{Type: TimelineInvoiceCreated}, wantErr: ErrInvoiceIDRequired},
		{name: "no type", event: TimelineEvent{InvoiceID: "inv-1"}, wantErr: ErrInvalidArgument},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.event.Validate()
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
		})
	}
}
