package notification

import (
	"context"
	"testing"

	"github.com/propad/propad_wallet/internal/ledger"
	"github.com/propad/propad_wallet/internal/logging"
)

func TestForPayoutFormatsAmount(t *testing.T) {
	msg, ok := ForPayout(ledger.PayoutPaid, "u1", 2_000, "USD")
	if !ok {
		t.Fatalf("expected a message for PAID")
	}
	if msg.Kind != KindPayoutPaid || msg.Destination != "u1" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg.Body != "Your payout of USD 20.00 has been paid." {
		t.Fatalf("unexpected body %q", msg.Body)
	}
	if _, ok := ForPayout(ledger.PayoutSent, "u1", 2_000, "USD"); ok {
		t.Fatalf("SENT should not notify")
	}
}

func TestLoggerNotifierNilSafe(t *testing.T) {
	var n *LoggerNotifier
	if err := n.Send(context.Background(), Message{Kind: KindPayoutPaid}); err != nil {
		t.Fatalf("nil notifier: %v", err)
	}
	if err := NewLoggerNotifier(logging.Discard()).Send(context.Background(), Message{Kind: KindPayoutFailed}); err != nil {
		t.Fatalf("send: %v", err)
	}
}
