// Package memory is an in-process store used for local development and tests.
// It enforces the same uniqueness rules as the relational schema.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"todo-backend/domain/collaboration"
	"todo-backend/domain/todo"
	pkgerrors "todo-backend/pkg/errors"
)

type todoRow struct {
	todo.Todo
	collaboratorIDs []int64
}

// Store holds people, todos and collaboration requests behind one lock so
// multi-entity operations are atomic.
type Store struct {
	mu       sync.RWMutex
	seq      int64
	people   map[int64]todo.Person
	todos    map[int64]*todoRow
	requests map[string]*collaboration.Request
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		people:   make(map[int64]todo.Person),
		todos:    make(map[int64]*todoRow),
		requests: make(map[string]*collaboration.Request),
	}
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

// Persons returns the PersonRepository view of the store
func (s *Store) Persons() *PersonRepository { return &PersonRepository{s: s} }

// Todos returns the TodoRepository view of the store
func (s *Store) Todos() *TodoRepository { return &TodoRepository{s: s} }

// Collaborations returns the CollaborationRepository view of the store
func (s *Store) Collaborations() *CollaborationRepository { return &CollaborationRepository{s: s} }

// PersonRepository implements ports.PersonRepository
type PersonRepository struct{ s *Store }

func (r *PersonRepository) Create(ctx context.Context, p *todo.Person) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.people {
		if todo.SameEmail(existing.Email, p.Email) {
			return pkgerrors.NewConflictError("a person with this email already exists")
		}
	}
	p.ID = r.s.nextID()
	r.s.people[p.ID] = *p
	return nil
}

func (r *PersonRepository) GetByID(ctx context.Context, id int64) (*todo.Person, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.people[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("person")
	}
	return &p, nil
}

func (r *PersonRepository) GetByEmail(ctx context.Context, email string) (*todo.Person, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, p := range r.s.people {
		if todo.SameEmail(p.Email, email) {
			found := p
			return &found, nil
		}
	}
	return nil, pkgerrors.NewNotFoundError("person")
}

func (r *PersonRepository) List(ctx context.Context) ([]todo.Person, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]todo.Person, 0, len(r.s.people))
	for _, p := range r.s.people {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// TodoRepository implements ports.TodoRepository
type TodoRepository struct{ s *Store }

func (r *TodoRepository) Create(ctx context.Context, t *todo.Todo) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.people[t.Owner.ID]; !ok {
		return pkgerrors.NewNotFoundError("person")
	}
	t.ID = r.s.nextID()
	row := &todoRow{Todo: *t}
	row.Collaborators = nil
	r.s.todos[t.ID] = row
	return nil
}

func (r *TodoRepository) Update(ctx context.Context, t *todo.Todo) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.todos[t.ID]
	if !ok {
		return pkgerrors.NewNotFoundError("todo")
	}
	row.Title = t.Title
	row.Description = t.Description
	row.Priority = t.Priority
	row.Status = t.Status
	row.DueDate = t.DueDate
	row.UpdatedAt = t.UpdatedAt
	return nil
}

func (r *TodoRepository) Delete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.todos[id]; !ok {
		return pkgerrors.NewNotFoundError("todo")
	}
	delete(r.s.todos, id)
	for key, req := range r.s.requests {
		if req.TodoID == id {
			delete(r.s.requests, key)
		}
	}
	return nil
}

func (r *TodoRepository) GetByID(ctx context.Context, id int64) (*todo.Todo, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	row, ok := r.s.todos[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("todo")
	}
	return r.s.materialize(row), nil
}

func (r *TodoRepository) ListOwnedBy(ctx context.Context, email string) ([]*todo.Todo, error) {
	return r.list(func(t *todo.Todo) bool { return t.IsOwnedBy(email) }), nil
}

func (r *TodoRepository) ListSharedWith(ctx context.Context, email string) ([]*todo.Todo, error) {
	return r.list(func(t *todo.Todo) bool { return t.IsCollaborator(email) }), nil
}

func (r *TodoRepository) list(match func(*todo.Todo) bool) []*todo.Todo {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*todo.Todo{}
	for _, row := range r.s.todos {
		t := r.s.materialize(row)
		if match(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// materialize copies a row with current owner and collaborator details. Callers hold the lock.
func (s *Store) materialize(row *todoRow) *todo.Todo {
	t := row.Todo
	if owner, ok := s.people[t.Owner.ID]; ok {
		t.Owner = owner
	}
	t.Collaborators = make([]todo.Person, 0, len(row.collaboratorIDs))
	for _, id := range row.collaboratorIDs {
		if p, ok := s.people[id]; ok {
			t.Collaborators = append(t.Collaborators, p)
		}
	}
	return &t
}

// CollaborationRepository implements ports.CollaborationRepository
type CollaborationRepository struct{ s *Store }

func (r *CollaborationRepository) Create(ctx context.Context, req *collaboration.Request) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.todos[req.TodoID]; !ok {
		return pkgerrors.NewNotFoundError("todo")
	}
	if _, ok := r.s.people[req.CollaboratorID]; !ok {
		return pkgerrors.NewNotFoundError("person")
	}
	key := collaboration.Key(req.TodoID, req.CollaboratorID)
	if _, exists := r.s.requests[key]; exists {
		return pkgerrors.NewConflictError("a collaboration request for this todo and person already exists")
	}
	req.ID = r.s.nextID()
	stored := *req
	r.s.requests[key] = &stored
	return nil
}

func (r *CollaborationRepository) Get(ctx context.Context, todoID, collaboratorID int64) (*collaboration.Request, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	req, ok := r.s.requests[collaboration.Key(todoID, collaboratorID)]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("collaboration request")
	}
	out := *req
	return &out, nil
}

func (r *CollaborationRepository) Confirm(ctx context.Context, todoID, collaboratorID int64, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	req, ok := r.s.requests[collaboration.Key(todoID, collaboratorID)]
	if !ok {
		return false, pkgerrors.NewNotFoundError("collaboration request")
	}
	if req.IsConfirmed() {
		return false, nil
	}
	row, ok := r.s.todos[todoID]
	if !ok {
		return false, pkgerrors.NewNotFoundError("todo")
	}
	if row.Owner.ID == collaboratorID {
		return false, pkgerrors.NewValidationError(todo.ErrSelfCollaboration.Error())
	}

	req.MarkConfirmed(at)
	for _, id := range row.collaboratorIDs {
		if id == collaboratorID {
			return true, nil
		}
	}
	row.collaboratorIDs = append(row.collaboratorIDs, collaboratorID)
	return true, nil
}

func (r *CollaborationRepository) Delete(ctx context.Context, todoID, collaboratorID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.requests, collaboration.Key(todoID, collaboratorID))
	return nil
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error { return nil }

// Close is a no-op
func (s *Store) Close() error { return nil }
