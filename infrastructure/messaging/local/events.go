package local

import (
	"context"

	"go.uber.org/zap"

	"todo-backend/domain/events"
)

// EventLog is the development stand-in for the event bus
type EventLog struct {
	logger *zap.Logger
}

func NewEventLog(logger *zap.Logger) *EventLog {
	return &EventLog{logger: logger}
}

func (l *EventLog) Publish(ctx context.Context, event events.DomainEvent) error {
	l.logger.Info("Domain event",
		zap.String("type", event.GetEventType()),
		zap.String("aggregateID", event.GetAggregateID()),
		zap.Any("event", event),
	)
	return nil
}

func (l *EventLog) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	for _, e := range batch {
		_ = l.Publish(ctx, e)
	}
	return nil
}
