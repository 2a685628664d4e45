package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/propad/propad_wallet/internal/logging"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaSinkPublishesJSONKeyedByTarget(t *testing.T) {
	w := &fakeWriter{}
	sink := NewKafkaSink(w)

	entry := Entry{Action: ActionPayoutApproved, ActorID: "admin", TargetType: "payout_request", TargetID: "p1", Metadata: map[string]string{"tx_ref": "r1"}}
	if err := sink.Record(context.Background(), entry); err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(w.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(w.messages))
	}
	msg := w.messages[0]
	if string(msg.Key) != "payout_request:p1" {
		t.Fatalf("unexpected key %q", msg.Key)
	}
	var decoded Entry
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Action != ActionPayoutApproved || decoded.Metadata["tx_ref"] != "r1" {
		t.Fatalf("unexpected payload %+v", decoded)
	}
}

func TestRecorderSwallowsSinkFailures(t *testing.T) {
	mem := NewMemorySink()
	failing := NewKafkaSink(&fakeWriter{err: errors.New("broker down")})
	rec := NewRecorder(Multi{failing, mem}, logging.Discard())

	rec.Record(context.Background(), Entry{Action: ActionWalletCredit, TargetType: "wallet", TargetID: "w1"})

	entries := mem.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected memory sink to still receive the entry, got %d", len(entries))
	}
	if entries[0].At.IsZero() {
		t.Fatalf("expected recorder to stamp the entry")
	}
}

func TestMultiJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	m := Multi{NewKafkaSink(&fakeWriter{err: boom}), NewMemorySink()}
	if err := m.Record(context.Background(), Entry{Action: ActionKycSubmitted}); !errors.Is(err, boom) {
		t.Fatalf("expected joined error to contain boom, got %v", err)
	}
}
