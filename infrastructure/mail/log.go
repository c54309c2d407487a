package mail

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"todo-backend/application/ports"
)

// LogMailer writes mail to the log instead of sending it. Used in development.
type LogMailer struct {
	logger *zap.Logger

	mu   sync.Mutex
	sent []ports.MailMessage
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg ports.MailMessage) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()

	m.logger.Info("Mail",
		zap.String("from", msg.From),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}

// Sent returns everything written so far
func (m *LogMailer) Sent() []ports.MailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.MailMessage(nil), m.sent...)
}
