package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"todo-backend/application/ports"
	"todo-backend/domain/todo"
	pkgerrors "todo-backend/pkg/errors"
	"todo-backend/pkg/observability"
)

const (
	// PeopleCacheKey caches the person directory
	PeopleCacheKey = "persons:all"
	peopleCacheTTL = 5 * time.Minute
)

// Collaborator is a person that can be invited to a todo
type Collaborator struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// TodoView is a todo as listed on the dashboard
type TodoView struct {
	*todo.Todo
	Collaborative bool `json:"collaborative"`
}

// DashboardService assembles the signed-in user's overview
type DashboardService struct {
	todos   ports.TodoRepository
	persons ports.PersonRepository
	cache   ports.Cache
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewDashboardService creates a new dashboard service. cache may be nil.
func NewDashboardService(todos ports.TodoRepository, persons ports.PersonRepository, cache ports.Cache, metrics *observability.Metrics, logger *zap.Logger) *DashboardService {
	return &DashboardService{
		todos:   todos,
		persons: persons,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}
}

// EnsurePerson returns the person for email, creating it on first sign-in
func (s *DashboardService) EnsurePerson(ctx context.Context, name, email string) (*todo.Person, error) {
	p, err := s.persons.GetByEmail(ctx, email)
	if err == nil {
		return p, nil
	}
	if !pkgerrors.IsNotFound(err) {
		return nil, fmt.Errorf("load person: %w", err)
	}

	p = &todo.Person{Name: name, Email: email}
	if err := s.persons.Create(ctx, p); err != nil {
		if pkgerrors.IsConflict(err) {
			// Created concurrently by another request.
			return s.persons.GetByEmail(ctx, email)
		}
		return nil, fmt.Errorf("create person: %w", err)
	}
	s.InvalidatePeople(ctx)
	s.logger.Info("Person created on first sign-in", zap.Int64("person_id", p.ID))
	return p, nil
}

// AvailableCollaborators lists everyone except the caller
func (s *DashboardService) AvailableCollaborators(ctx context.Context, email string) ([]Collaborator, error) {
	people, err := s.people(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Collaborator, 0, len(people))
	for _, p := range people {
		if todo.SameEmail(p.Email, email) {
			continue
		}
		out = append(out, Collaborator{ID: p.ID, Name: p.Name})
	}
	return out, nil
}

// OwnedAndSharedTodos lists the caller's own todos followed by todos shared with them
func (s *DashboardService) OwnedAndSharedTodos(ctx context.Context, email string) ([]TodoView, error) {
	owned, err := s.todos.ListOwnedBy(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("list owned todos: %w", err)
	}
	shared, err := s.todos.ListSharedWith(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("list shared todos: %w", err)
	}

	views := make([]TodoView, 0, len(owned)+len(shared))
	for _, t := range owned {
		views = append(views, TodoView{Todo: t})
	}
	for _, t := range shared {
		views = append(views, TodoView{Todo: t, Collaborative: true})
	}
	return views, nil
}

// InvalidatePeople drops the cached person directory
func (s *DashboardService) InvalidatePeople(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, PeopleCacheKey); err != nil {
		s.logger.Warn("Failed to invalidate person cache", zap.Error(err))
	}
}

func (s *DashboardService) people(ctx context.Context) ([]todo.Person, error) {
	if s.cache != nil {
		if raw, ok := s.cache.Get(ctx, PeopleCacheKey); ok {
			var people []todo.Person
			if err := json.Unmarshal(raw, &people); err == nil {
				s.metrics.RecordCache(true)
				return people, nil
			}
		}
		s.metrics.RecordCache(false)
	}

	people, err := s.persons.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}

	if s.cache != nil {
		if raw, err := json.Marshal(people); err == nil {
			if err := s.cache.Set(ctx, PeopleCacheKey, raw, peopleCacheTTL); err != nil {
				s.logger.Warn("Failed to cache person directory", zap.Error(err))
			}
		}
	}
	return people, nil
}
