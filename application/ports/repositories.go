package ports

import (
	"context"
	"time"

	"todo-backend/domain/collaboration"
	"todo-backend/domain/tracing"
	"todo-backend/domain/todo"
)

// PersonRepository persists registered people.
// Lookups of missing people return a NotFound AppError.
type PersonRepository interface {
	// Create stores p and assigns its ID. A duplicate email is a Conflict.
	Create(ctx context.Context, p *todo.Person) error

	GetByID(ctx context.Context, id int64) (*todo.Person, error)
	GetByEmail(ctx context.Context, email string) (*todo.Person, error)

	// List returns everyone ordered by id
	List(ctx context.Context) ([]todo.Person, error)
}

// TodoRepository persists todos together with their confirmed collaborators
type TodoRepository interface {
	// Create stores t and assigns its ID
	Create(ctx context.Context, t *todo.Todo) error

	// Update saves the editable fields and status of t
	Update(ctx context.Context, t *todo.Todo) error

	// Delete removes the todo, its collaborators and its collaboration requests
	Delete(ctx context.Context, id int64) error

	// GetByID returns the todo with owner and collaborators loaded
	GetByID(ctx context.Context, id int64) (*todo.Todo, error)

	// ListOwnedBy returns the todos owned by email ordered by id
	ListOwnedBy(ctx context.Context, email string) ([]*todo.Todo, error)

	// ListSharedWith returns the todos email collaborates on ordered by id
	ListSharedWith(ctx context.Context, email string) ([]*todo.Todo, error)
}

// CollaborationRepository persists collaboration requests. Uniqueness of the
// (todo, collaborator) pair is enforced by the store itself.
type CollaborationRepository interface {
	// Create inserts req and assigns its ID. An existing request for the
	// same pair yields a Conflict AppError.
	Create(ctx context.Context, req *collaboration.Request) error

	// Get returns the request for the pair or a NotFound AppError
	Get(ctx context.Context, todoID, collaboratorID int64) (*collaboration.Request, error)

	// Confirm atomically moves a PENDING request to CONFIRMED and adds the
	// collaborator to the todo. changed is false if it was already confirmed.
	Confirm(ctx context.Context, todoID, collaboratorID int64, at time.Time) (changed bool, err error)

	// Delete removes the request for the pair. Missing requests are ignored.
	Delete(ctx context.Context, todoID, collaboratorID int64) error
}

// BreadcrumbStore is the append-only backend of the tracing sink
type BreadcrumbStore interface {
	Save(ctx context.Context, b tracing.Breadcrumb) error
	FindByUsername(ctx context.Context, username string) ([]tracing.Breadcrumb, error)
	FindByUsernameSince(ctx context.Context, username string, since time.Time) ([]tracing.Breadcrumb, error)
}

// Cache stores opaque values with a TTL
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
