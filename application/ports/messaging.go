package ports

import (
	"context"
	"time"

	"todo-backend/domain/collaboration"
	"todo-backend/domain/events"
)

// NotificationPublisher hands collaboration notifications to the sharing queue
type NotificationPublisher interface {
	Publish(ctx context.Context, n collaboration.Notification) error
}

// NotificationHandler consumes one collaboration notification
type NotificationHandler interface {
	Handle(ctx context.Context, n collaboration.Notification) error
}

// EventPublisher publishes domain events
type EventPublisher interface {
	Publish(ctx context.Context, event events.DomainEvent) error
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// MailMessage is a single plain-text email
type MailMessage struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Mailer delivers email
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

// IdentityProvider creates sign-in identities for newly registered people
type IdentityProvider interface {
	CreateUser(ctx context.Context, username, email string) error
}

// TraceRecorder accepts audit trail events without blocking
type TraceRecorder interface {
	Record(ctx context.Context, uri, username string)
}

// ConfirmationScheduler runs deferred auto-confirmations keyed by (todo, collaborator)
type ConfirmationScheduler interface {
	Schedule(todoID, collaboratorID int64, delay time.Duration, fn func(ctx context.Context))
	Cancel(todoID, collaboratorID int64) bool
	CancelTodo(todoID int64) int
}

// FunctionTracer wraps a unit of work in a trace span
type FunctionTracer interface {
	TraceFunction(ctx context.Context, name string, fn func(context.Context) error) error
	AddAnnotation(ctx context.Context, key, value string)
}
