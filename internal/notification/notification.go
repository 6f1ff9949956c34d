package notification

import (
	"context"
	"log/slog"
	"strings"

	"github.com/naggery/naggery/internal/vault"
)

const (
	KindEmailVerification = "email_verification"
	KindSMSCode           = "sms_code"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Subject     string
	Body        string
	HTML        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger. Bodies carry links and
// codes, so only the kind and a masked destination are logged.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message metadata to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "destination", maskDestination(message.Destination))
	return nil
}

func maskDestination(d string) string {
	if strings.Contains(d, "@") {
		return vault.MaskEmail(d)
	}
	return vault.MaskPhone(d)
}
