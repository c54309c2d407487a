package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"todo-backend/application/ports"
	"todo-backend/domain/collaboration"
	"todo-backend/domain/events"
	"todo-backend/domain/todo"
	"todo-backend/domain/tracing"
	"todo-backend/pkg/auth"
	pkgerrors "todo-backend/pkg/errors"
	"todo-backend/pkg/observability"
)

// ShareRateLimit is the number of shares an owner may issue per minute
const ShareRateLimit = 30

// CollaborationService shares todos with other people and confirms the
// resulting invitations.
type CollaborationService struct {
	todos          ports.TodoRepository
	persons        ports.PersonRepository
	collaborations ports.CollaborationRepository
	publisher      ports.NotificationPublisher
	events         ports.EventPublisher
	tracer         ports.TraceRecorder
	scheduler      ports.ConfirmationScheduler
	limiter        auth.RateLimiter
	metrics        *observability.Metrics
	logger         *zap.Logger
	now            func() time.Time
}

// NewCollaborationService creates a new collaboration service. scheduler and
// limiter may be nil.
func NewCollaborationService(
	todos ports.TodoRepository,
	persons ports.PersonRepository,
	collaborations ports.CollaborationRepository,
	publisher ports.NotificationPublisher,
	eventPublisher ports.EventPublisher,
	tracer ports.TraceRecorder,
	scheduler ports.ConfirmationScheduler,
	limiter auth.RateLimiter,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *CollaborationService {
	return &CollaborationService{
		todos:          todos,
		persons:        persons,
		collaborations: collaborations,
		publisher:      publisher,
		events:         eventPublisher,
		tracer:         tracer,
		scheduler:      scheduler,
		limiter:        limiter,
		metrics:        metrics,
		logger:         logger,
		now:            time.Now,
	}
}

// ShareTodo invites collaboratorID to work on todoID. Only the owner may
// share, and a pair can only be invited once.
func (s *CollaborationService) ShareTodo(ctx context.Context, todoID int64, ownerEmail string, collaboratorID int64) (*collaboration.Request, error) {
	t, err := s.todos.GetByID(ctx, todoID)
	if err != nil {
		return nil, fmt.Errorf("load todo %d: %w", todoID, err)
	}
	if !t.IsOwnedBy(ownerEmail) {
		return nil, pkgerrors.NewForbiddenError("only the owner can share a todo")
	}

	collaborator, err := s.persons.GetByID(ctx, collaboratorID)
	if err != nil {
		return nil, fmt.Errorf("load collaborator %d: %w", collaboratorID, err)
	}
	if collaborator.ID == t.Owner.ID || t.IsOwnedBy(collaborator.Email) {
		return nil, pkgerrors.NewValidationError(todo.ErrSelfCollaboration.Error())
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, "share:"+ownerEmail)
		if err != nil {
			s.logger.Warn("Rate limiter unavailable", zap.Error(err))
		} else if !allowed {
			s.metrics.RecordShare("rate_limited")
			return nil, pkgerrors.NewRateLimitError(ShareRateLimit, "minute")
		}
	}

	req, err := collaboration.NewRequest(t.ID, collaborator.ID, s.now())
	if err != nil {
		return nil, pkgerrors.NewInternalError("could not create confirmation token").WithCause(err)
	}
	if err := s.collaborations.Create(ctx, req); err != nil {
		if pkgerrors.IsConflict(err) {
			s.metrics.RecordShare("duplicate")
		}
		return nil, fmt.Errorf("create collaboration request: %w", err)
	}

	notification := collaboration.Notification{
		TodoID:            t.ID,
		TodoTitle:         t.Title,
		TodoDescription:   t.Description,
		TodoPriority:      t.Priority,
		CollaboratorID:    collaborator.ID,
		CollaboratorEmail: collaborator.Email,
		Token:             req.Token,
	}
	if err := s.publisher.Publish(ctx, notification); err != nil {
		// Without the message nobody can ever confirm, so release the pair.
		if delErr := s.collaborations.Delete(ctx, t.ID, collaborator.ID); delErr != nil {
			s.logger.Error("Failed to roll back collaboration request",
				zap.Error(delErr),
				zap.Int64("todo_id", t.ID),
				zap.Int64("collaborator_id", collaborator.ID),
			)
		}
		s.metrics.RecordShare("publish_failed")
		return nil, pkgerrors.NewExternalError("sharing queue", err)
	}

	s.publishEvent(ctx, events.NewTodoShared(t.ID, collaborator.ID, t.Owner.Email, s.now()))
	s.tracer.Record(ctx, tracing.ShareTag(t.ID), ownerEmail)
	s.metrics.RecordShare("created")

	s.logger.Info("Todo shared",
		zap.Int64("todo_id", t.ID),
		zap.Int64("collaborator_id", collaborator.ID),
	)
	return req, nil
}

// ConfirmCollaboration accepts an invitation. Every mismatch yields the same
// InvalidTokenError, and confirming twice is a no-op.
func (s *CollaborationService) ConfirmCollaboration(ctx context.Context, collaboratorEmail string, todoID, collaboratorID int64, token string) error {
	req, err := s.collaborations.Get(ctx, todoID, collaboratorID)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return s.rejectConfirmation(todoID, collaboratorID)
		}
		return fmt.Errorf("load collaboration request: %w", err)
	}
	if !req.Matches(token) {
		return s.rejectConfirmation(todoID, collaboratorID)
	}

	collaborator, err := s.persons.GetByID(ctx, collaboratorID)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return s.rejectConfirmation(todoID, collaboratorID)
		}
		return fmt.Errorf("load collaborator: %w", err)
	}
	if !todo.SameEmail(collaborator.Email, collaboratorEmail) {
		return s.rejectConfirmation(todoID, collaboratorID)
	}

	if req.IsConfirmed() {
		s.cancelAutoConfirm(todoID, collaboratorID)
		return nil
	}

	changed, err := s.collaborations.Confirm(ctx, todoID, collaboratorID, s.now())
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return s.rejectConfirmation(todoID, collaboratorID)
		}
		return fmt.Errorf("confirm collaboration: %w", err)
	}
	s.cancelAutoConfirm(todoID, collaboratorID)
	if !changed {
		return nil
	}

	s.metrics.RecordConfirmation("confirmed")
	s.tracer.Record(ctx, tracing.ConfirmTag(todoID), collaborator.Email)

	t, err := s.todos.GetByID(ctx, todoID)
	if err != nil {
		s.logger.Warn("Confirmed collaboration on a todo that can no longer be loaded",
			zap.Error(err),
			zap.Int64("todo_id", todoID),
		)
		return nil
	}
	s.publishEvent(ctx, events.NewCollaborationConfirmed(
		t.ID, t.Title, collaborator.ID, collaborator.Email, t.Owner.Email, s.now(),
	))

	s.logger.Info("Collaboration confirmed",
		zap.Int64("todo_id", todoID),
		zap.Int64("collaborator_id", collaboratorID),
	)
	return nil
}

func (s *CollaborationService) rejectConfirmation(todoID, collaboratorID int64) error {
	s.metrics.RecordConfirmation("rejected")
	s.logger.Info("Rejected collaboration confirmation",
		zap.Int64("todo_id", todoID),
		zap.Int64("collaborator_id", collaboratorID),
	)
	return pkgerrors.NewInvalidTokenError()
}

func (s *CollaborationService) cancelAutoConfirm(todoID, collaboratorID int64) {
	if s.scheduler != nil {
		s.scheduler.Cancel(todoID, collaboratorID)
	}
}

func (s *CollaborationService) publishEvent(ctx context.Context, event events.DomainEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish domain event",
			zap.Error(err),
			zap.String("event_type", event.GetEventType()),
			zap.String("aggregate_id", event.GetAggregateID()),
		)
	}
}
