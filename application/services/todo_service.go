package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"todo-backend/application/ports"
	"todo-backend/domain/todo"
	pkgerrors "todo-backend/pkg/errors"
	"todo-backend/pkg/utils"
)

// TodoInput carries the editable fields of a todo
type TodoInput struct {
	Title       string     `json:"title" validate:"required,max=30"`
	Description string     `json:"description" validate:"max=100"`
	Priority    int        `json:"priority" validate:"min=1,max=10"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
}

// TodoService manages todos on behalf of their owner and collaborators
type TodoService struct {
	todos     ports.TodoRepository
	persons   ports.PersonRepository
	scheduler ports.ConfirmationScheduler
	logger    *zap.Logger
	now       func() time.Time
}

// NewTodoService creates a new todo service. scheduler may be nil.
func NewTodoService(todos ports.TodoRepository, persons ports.PersonRepository, scheduler ports.ConfirmationScheduler, logger *zap.Logger) *TodoService {
	return &TodoService{
		todos:     todos,
		persons:   persons,
		scheduler: scheduler,
		logger:    logger,
		now:       time.Now,
	}
}

// Create adds a todo owned by ownerEmail
func (s *TodoService) Create(ctx context.Context, ownerEmail string, in TodoInput) (*todo.Todo, error) {
	if err := utils.ValidateStruct(in); err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	owner, err := s.persons.GetByEmail(ctx, ownerEmail)
	if err != nil {
		return nil, fmt.Errorf("load owner: %w", err)
	}

	t, err := todo.New(*owner, in.Title, in.Description, in.Priority, in.DueDate, s.now())
	if err != nil {
		return nil, domainValidation(err)
	}
	if err := s.todos.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create todo: %w", err)
	}

	s.logger.Info("Todo created", zap.Int64("todo_id", t.ID))
	return t, nil
}

// Get returns a todo the caller owns or collaborates on
func (s *TodoService) Get(ctx context.Context, email string, id int64) (*todo.Todo, error) {
	t, err := s.todos.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load todo %d: %w", id, err)
	}
	if !t.CanAccess(email) {
		return nil, pkgerrors.NewForbiddenError("you do not have access to this todo")
	}
	return t, nil
}

// Update replaces the editable fields of a todo
func (s *TodoService) Update(ctx context.Context, email string, id int64, in TodoInput) (*todo.Todo, error) {
	if err := utils.ValidateStruct(in); err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	t, err := s.Get(ctx, email, id)
	if err != nil {
		return nil, err
	}
	if err := t.Edit(in.Title, in.Description, in.Priority, in.DueDate, s.now()); err != nil {
		return nil, domainValidation(err)
	}
	if err := s.todos.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("update todo %d: %w", id, err)
	}
	return t, nil
}

// Complete marks a todo done
func (s *TodoService) Complete(ctx context.Context, email string, id int64) (*todo.Todo, error) {
	t, err := s.Get(ctx, email, id)
	if err != nil {
		return nil, err
	}
	t.Complete(s.now())
	if err := s.todos.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("complete todo %d: %w", id, err)
	}
	return t, nil
}

// Delete removes a todo. Only the owner may delete it.
func (s *TodoService) Delete(ctx context.Context, email string, id int64) error {
	t, err := s.todos.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load todo %d: %w", id, err)
	}
	if !t.IsOwnedBy(email) {
		return pkgerrors.NewForbiddenError("only the owner can delete a todo")
	}
	if err := s.todos.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete todo %d: %w", id, err)
	}

	if s.scheduler != nil {
		if n := s.scheduler.CancelTodo(id); n > 0 {
			s.logger.Info("Cancelled pending auto-confirmations", zap.Int64("todo_id", id), zap.Int("count", n))
		}
	}
	s.logger.Info("Todo deleted", zap.Int64("todo_id", id))
	return nil
}

func domainValidation(err error) error {
	switch {
	case errors.Is(err, todo.ErrEmptyTitle), errors.Is(err, todo.ErrInvalidPriority), errors.Is(err, todo.ErrSelfCollaboration):
		return pkgerrors.NewValidationError(err.Error())
	}
	return err
}
