// Package sharing delivers collaboration invitations and runs auto-confirmation.
package sharing

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"go.uber.org/zap"

	"todo-backend/application/ports"
	"todo-backend/domain/collaboration"
	"todo-backend/domain/tracing"
	pkgerrors "todo-backend/pkg/errors"
	"todo-backend/pkg/observability"
)

// InvitationSubject is the subject of every invitation email
const InvitationSubject = "A todo was shared with you"

var invitationTemplate = template.Must(template.New("invitation").Parse(`Hi {{.Notification.CollaboratorEmail}},

someone shared a Todo from {{.ExternalURL}} with you.

Information about the shared Todo item:

Title: {{.Notification.TodoTitle}}
Description: {{.Notification.TodoDescription}}
Priority: {{.Notification.TodoPriority}}

You can accept the collaboration by clicking this link: {{.Link}}

Kind regards,
{{.ApplicationName}}
`))

// Confirmer completes a collaboration request
type Confirmer interface {
	ConfirmCollaboration(ctx context.Context, collaboratorEmail string, todoID, collaboratorID int64, token string) error
}

// DispatcherConfig configures invitation delivery
type DispatcherConfig struct {
	ExternalURL      string
	FromAddress      string
	ApplicationName  string
	AutoConfirm      bool
	AutoConfirmDelay time.Duration
}

// Dispatcher consumes collaboration notifications and emails the invitee
type Dispatcher struct {
	mailer    ports.Mailer
	tracer    ports.TraceRecorder
	scheduler ports.ConfirmationScheduler
	confirmer Confirmer
	cfg       DispatcherConfig
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewDispatcher creates a dispatcher. scheduler and confirmer are only used
// when auto-confirm is enabled.
func NewDispatcher(
	mailer ports.Mailer,
	tracer ports.TraceRecorder,
	scheduler ports.ConfirmationScheduler,
	confirmer Confirmer,
	cfg DispatcherConfig,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Dispatcher {
	if cfg.AutoConfirmDelay <= 0 {
		cfg.AutoConfirmDelay = 2500 * time.Millisecond
	}
	if cfg.ApplicationName == "" {
		cfg.ApplicationName = "todo-app"
	}
	return &Dispatcher{
		mailer:    mailer,
		tracer:    tracer,
		scheduler: scheduler,
		confirmer: confirmer,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger,
	}
}

// Handle sends exactly one invitation email for n. Mail failures are returned
// as DeliveryError without retrying; redelivery is left to the broker.
func (d *Dispatcher) Handle(ctx context.Context, n collaboration.Notification) error {
	if err := n.Validate(); err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}

	d.logger.Info("Incoming todo sharing notification",
		zap.Int64("todo_id", n.TodoID),
		zap.Int64("collaborator_id", n.CollaboratorID),
	)
	d.tracer.Record(ctx, tracing.RequestTag(n.TodoID), n.CollaboratorEmail)

	msg, err := d.Compose(n)
	if err != nil {
		return err
	}

	if err := d.mailer.Send(ctx, msg); err != nil {
		d.metrics.RecordMail(false)
		d.logger.Error("Failed to send collaboration invitation",
			zap.Error(err),
			zap.Int64("todo_id", n.TodoID),
			zap.Int64("collaborator_id", n.CollaboratorID),
		)
		if pkgerrors.IsDelivery(err) {
			return err
		}
		return pkgerrors.NewDeliveryError("email", err)
	}
	d.metrics.RecordMail(true)
	d.logger.Info("Informed collaborator about shared todo",
		zap.Int64("todo_id", n.TodoID),
		zap.Int64("collaborator_id", n.CollaboratorID),
	)

	if d.cfg.AutoConfirm {
		d.scheduleAutoConfirm(n)
	}
	return nil
}

// Compose renders the invitation email for n
func (d *Dispatcher) Compose(n collaboration.Notification) (ports.MailMessage, error) {
	var body bytes.Buffer
	err := invitationTemplate.Execute(&body, struct {
		Notification    collaboration.Notification
		ExternalURL     string
		Link            string
		ApplicationName string
	}{
		Notification:    n,
		ExternalURL:     d.cfg.ExternalURL,
		Link:            n.ConfirmationURL(d.cfg.ExternalURL),
		ApplicationName: d.cfg.ApplicationName,
	})
	if err != nil {
		return ports.MailMessage{}, fmt.Errorf("render invitation: %w", err)
	}

	return ports.MailMessage{
		From:    d.cfg.FromAddress,
		To:      n.CollaboratorEmail,
		Subject: InvitationSubject,
		Body:    body.String(),
	}, nil
}

func (d *Dispatcher) scheduleAutoConfirm(n collaboration.Notification) {
	d.scheduler.Schedule(n.TodoID, n.CollaboratorID, d.cfg.AutoConfirmDelay, func(ctx context.Context) {
		err := d.confirmer.ConfirmCollaboration(ctx, n.CollaboratorEmail, n.TodoID, n.CollaboratorID, n.Token)
		if err != nil {
			d.logger.Warn("Auto-confirmation failed",
				zap.Error(err),
				zap.Int64("todo_id", n.TodoID),
				zap.Int64("collaborator_id", n.CollaboratorID),
			)
			return
		}
		d.logger.Info("Auto-confirmed collaboration request",
			zap.Int64("todo_id", n.TodoID),
			zap.Int64("collaborator_id", n.CollaboratorID),
		)
	})
}
