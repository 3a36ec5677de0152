package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-statement-ledger/internal/app/core/domain"
)

type fakeWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestPublisher_PublishStatementCreated(t *testing.T) {
	w := &fakeWriter{}
	p := &Publisher{writer: w}

	occurred := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	event := domain.StatementCreated{
		StatementID: "s1",
		UserID:      "u1",
		Type:        domain.StatementTypeWithdraw,
		Amount:      decimal.RequireFromString("12.50"),
		OccurredAt:  occurred,
	}
	if err := p.PublishStatementCreated(context.Background(), event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "u1" {
		t.Errorf("expected key u1, got %q", msg.Key)
	}
	if !msg.Time.Equal(occurred) {
		t.Errorf("unexpected message time %v", msg.Time)
	}

	var body map[string]any
	if err := json.Unmarshal(msg.Value, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["statement_id"] != "s1" || body["type"] != "withdraw" || body["amount"] != "12.5" {
		t.Fatalf("unexpected body %v", body)
	}

	if err := p.Close(); err != nil || !w.closed {
		t.Fatalf("expected writer to be closed")
	}
}

func TestNewPublisher_DefaultTopic(t *testing.T) {
	p := NewPublisher([]string{"localhost:9092"}, "")
	w, ok := p.writer.(*kafka.Writer)
	if !ok {
		t.Fatalf("expected *kafka.Writer, got %T", p.writer)
	}
	if w.Topic != DefaultTopic {
		t.Fatalf("expected topic %s, got %s", DefaultTopic, w.Topic)
	}
	if w.BatchTimeout != 10*time.Millisecond {
		t.Fatalf("expected 10ms batch timeout, got %s", w.BatchTimeout)
	}
}
