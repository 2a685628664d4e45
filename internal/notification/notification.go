package notification

import (
	"context"
	"log/slog"
)

const (
	// KindPayoutPaid tells the owner their payout reached them.
	KindPayoutPaid = "payout_paid"
	// KindPayoutFailed tells the owner a payout did not go through.
	KindPayoutFailed = "payout_failed"
	// KindKycReviewed tells the owner their KYC submission was reviewed.
	KindKycReviewed = "kyc_reviewed"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Title       string
	Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger until a delivery channel exists.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(ctx context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.InfoContext(ctx, "notification",
		slog.String("kind", message.Kind),
		slog.String("destination", message.Destination),
		slog.String("title", message.Title),
		slog.String("body", message.Body),
	)
	return nil
}

// Recorder keeps sent messages in memory for tests.
type Recorder struct {
	Messages []Message
}

// Send implements Notifier.
func (r *Recorder) Send(_ context.Context, message Message) error {
	r.Messages = append(r.Messages, message)
	return nil
}
