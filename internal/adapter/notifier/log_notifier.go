// Package notifier provides delivery transports for rendered notifications.
package notifier

import (
	"context"
	"log/slog"

	"github.com/V4T54L/display-watch/internal/adapter/pii"
	"github.com/V4T54L/display-watch/internal/domain"
)

// LogNotifier implements domain.Notifier by emitting each delivery as a
// structured log record. It is the default transport; the mail relay that
// handles real delivery tails these records out of band.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a new LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "notifier")}
}

// Notify emits one delivery record for the recipient. Addresses are masked
// before they reach the log stream; aggregators downstream must not hold
// contact details.
func (n *LogNotifier) Notify(ctx context.Context, recipient domain.Recipient, body string) error {
	n.logger.InfoContext(ctx, "notification delivered",
		"recipient_id", pii.MaskRecipientID(recipient.ID),
		"recipient_type", string(recipient.Type),
		"email", pii.MaskEmail(recipient.Email),
		"subject", recipient.Subject,
		"body_bytes", len(body),
	)
	return nil
}
