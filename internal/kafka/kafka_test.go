package kafka

import (
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/shubhsaxena/furniture-search/internal/models"
)

func TestDecodeChangeEvent(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"create", `{"type":"CREATE","document_id":"p1","collection":"products","document":{"name":"Sofa"}}`, false},
		{"delete", `{"type":"DELETE","document_id":"p1","collection":"products"}`, false},
		{"malformed json", `{"type":`, true},
		{"missing id", `{"type":"UPDATE","collection":"products"}`, true},
		{"unknown type", `{"type":"UPSERT","document_id":"p1"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := decodeChangeEvent([]byte(tt.payload))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got event %+v", ev)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ev.DocumentID != "p1" {
				t.Errorf("expected p1, got %s", ev.DocumentID)
			}
		})
	}

	if _, err := decodeChangeEvent([]byte(`{"type":"CREATE"}`)); !errors.Is(err, errMissingDocumentID) {
		t.Errorf("expected errMissingDocumentID, got %v", err)
	}
}

func TestChangeMessage(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	ev := &models.ChangeEvent{Type: models.ChangeUpdate, DocumentID: "p9", Collection: "products"}

	msg, err := changeMessage(ev, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(msg.Key) != "p9" {
		t.Errorf("expected key p9, got %s", msg.Key)
	}
	if !msg.Time.Equal(now) {
		t.Errorf("expected time %v, got %v", now, msg.Time)
	}

	back, err := decodeChangeEvent(msg.Value)
	if err != nil {
		t.Fatalf("published payload does not decode: %v", err)
	}
	if back.Type != models.ChangeUpdate || back.Collection != "products" {
		t.Errorf("unexpected decoded event %+v", back)
	}
}

func TestDLQHeaders(t *testing.T) {
	msg := kafka.Message{
		Partition: 3,
		Offset:    42,
		Headers:   []kafka.Header{{Key: "event_type", Value: []byte("CREATE")}},
	}

	headers := dlqHeaders(msg, "catalog-changes", "boom")

	want := map[string]string{
		"event_type":         "CREATE",
		"dlq_reason":         "boom",
		"original_topic":     "catalog-changes",
		"original_partition": "3",
		"original_offset":    "42",
	}
	if len(headers) != len(want) {
		t.Fatalf("expected %d headers, got %d", len(want), len(headers))
	}
	for _, h := range headers {
		if want[h.Key] != string(h.Value) {
			t.Errorf("header %s = %q, want %q", h.Key, h.Value, want[h.Key])
		}
	}
	if len(msg.Headers) != 1 {
		t.Errorf("source message headers mutated: %v", msg.Headers)
	}
}

func TestHandlerRetryConfig(t *testing.T) {
	if got := handlerRetryConfig(0).MaxAttempts; got != 1 {
		t.Errorf("expected at least one attempt, got %d", got)
	}
	if got := handlerRetryConfig(4).MaxAttempts; got != 4 {
		t.Errorf("expected 4 attempts, got %d", got)
	}
}

func TestPartitionLag(t *testing.T) {
	tests := []struct {
		offset, hwm int64
		want        int64
	}{
		{offset: 9, hwm: 10, want: 0},
		{offset: 4, hwm: 10, want: 5},
		{offset: 0, hwm: 0, want: 0},
	}
	for _, tt := range tests {
		if got := partitionLag(kafka.Message{Offset: tt.offset, HighWaterMark: tt.hwm}); got != tt.want {
			t.Errorf("offset=%d hwm=%d: expected %d, got %d", tt.offset, tt.hwm, tt.want, got)
		}
	}
}
