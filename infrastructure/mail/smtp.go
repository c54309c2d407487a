package mail

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"todo-backend/application/ports"
	pkgerrors "todo-backend/pkg/errors"
)

// SMTPConfig addresses a relay
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SMTPMailer sends mail through an SMTP relay
type SMTPMailer struct {
	cfg    SMTPConfig
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now    func() time.Time
	logger *zap.Logger
}

// NewSMTPMailer creates an SMTP mailer. Authentication is only used when a
// username is configured.
func NewSMTPMailer(cfg SMTPConfig, logger *zap.Logger) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail, now: time.Now, logger: logger}
}

// Send delivers msg. The context only guards against starting after cancellation.
func (m *SMTPMailer) Send(ctx context.Context, msg ports.MailMessage) error {
	if err := ctx.Err(); err != nil {
		return pkgerrors.NewDeliveryError("smtp", err)
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	if err := m.send(addr, auth, msg.From, []string{msg.To}, m.render(msg)); err != nil {
		return pkgerrors.NewDeliveryError("smtp", err)
	}

	m.logger.Debug("Mail handed to SMTP relay", zap.String("to", msg.To), zap.String("relay", addr))
	return nil
}

func (m *SMTPMailer) render(msg ports.MailMessage) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", m.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}
