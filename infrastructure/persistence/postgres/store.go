package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"todo-backend/domain/collaboration"
	"todo-backend/domain/todo"
	pkgerrors "todo-backend/pkg/errors"
)

// Store exposes the relational repositories over one connection pool
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying pool
func (s *Store) DB() *sql.DB { return s.db }

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close closes the pool
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Persons() *PersonRepository { return &PersonRepository{db: s.db} }
func (s *Store) Todos() *TodoRepository { return &TodoRepository{db: s.db} }
func (s *Store) Collaborations() *CollaborationRepository { return &CollaborationRepository{db: s.db} }

// PersonRepository implements ports.PersonRepository
type PersonRepository struct{ db *sql.DB }

func (r *PersonRepository) Create(ctx context.Context, p *todo.Person) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO person (name, email) VALUES ($1, $2) RETURNING id`,
		p.Name, p.Email,
	).Scan(&p.ID)
	if isUniqueViolation(err) {
		return pkgerrors.NewConflictError("a person with this email already exists")
	}
	if err != nil {
		return pkgerrors.NewDatabaseError("insert person", err)
	}
	return nil
}

func (r *PersonRepository) GetByID(ctx context.Context, id int64) (*todo.Person, error) {
	return r.getOne(ctx, `SELECT id, name, email FROM person WHERE id = $1`, id)
}

func (r *PersonRepository) GetByEmail(ctx context.Context, email string) (*todo.Person, error) {
	return r.getOne(ctx, `SELECT id, name, email FROM person WHERE LOWER(email) = LOWER($1)`, email)
}

func (r *PersonRepository) getOne(ctx context.Context, query string, arg any) (*todo.Person, error) {
	var p todo.Person
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&p.ID, &p.Name, &p.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.NewNotFoundError("person")
	}
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("select person", err)
	}
	return &p, nil
}

func (r *PersonRepository) List(ctx context.Context) ([]todo.Person, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, email FROM person ORDER BY id`)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("list persons", err)
	}
	defer rows.Close()

	var out []todo.Person
	for rows.Next() {
		var p todo.Person
		if err := rows.Scan(&p.ID, &p.Name, &p.Email); err != nil {
			return nil, pkgerrors.NewDatabaseError("scan person", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewDatabaseError("list persons", err)
	}
	return out, nil
}

// TodoRepository implements ports.TodoRepository
type TodoRepository struct{ db *sql.DB }

const todoColumns = `
	t.id, t.title, t.description, t.priority, t.status, t.due_date, t.created_at, t.updated_at,
	o.id, o.name, o.email`

func (r *TodoRepository) Create(ctx context.Context, t *todo.Todo) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO todo (title, description, priority, status, due_date, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		t.Title, t.Description, t.Priority, string(t.Status), t.DueDate, t.Owner.ID, t.CreatedAt, t.UpdatedAt,
	).Scan(&t.ID)
	if isForeignKeyViolation(err) {
		return pkgerrors.NewNotFoundError("person")
	}
	if err != nil {
		return pkgerrors.NewDatabaseError("insert todo", err)
	}
	return nil
}

func (r *TodoRepository) Update(ctx context.Context, t *todo.Todo) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE todo
		SET title = $2, description = $3, priority = $4, status = $5, due_date = $6, updated_at = $7
		WHERE id = $1`,
		t.ID, t.Title, t.Description, t.Priority, string(t.Status), t.DueDate, t.UpdatedAt,
	)
	if err != nil {
		return pkgerrors.NewDatabaseError("update todo", err)
	}
	return requireAffected(res, "todo")
}

func (r *TodoRepository) Delete(ctx context.Context, id int64) error {
	// Collaborators and requests cascade.
	res, err := r.db.ExecContext(ctx, `DELETE FROM todo WHERE id = $1`, id)
	if err != nil {
		return pkgerrors.NewDatabaseError("delete todo", err)
	}
	return requireAffected(res, "todo")
}

func (r *TodoRepository) GetByID(ctx context.Context, id int64) (*todo.Todo, error) {
	todos, err := r.query(ctx, `SELECT`+todoColumns+`
		FROM todo t JOIN person o ON o.id = t.owner_id
		WHERE t.id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(todos) == 0 {
		return nil, pkgerrors.NewNotFoundError("todo")
	}
	return todos[0], nil
}

func (r *TodoRepository) ListOwnedBy(ctx context.Context, email string) ([]*todo.Todo, error) {
	return r.query(ctx, `SELECT`+todoColumns+`
		FROM todo t JOIN person o ON o.id = t.owner_id
		WHERE LOWER(o.email) = LOWER($1)
		ORDER BY t.id`, email)
}

func (r *TodoRepository) ListSharedWith(ctx context.Context, email string) ([]*todo.Todo, error) {
	return r.query(ctx, `SELECT`+todoColumns+`
		FROM todo t
		JOIN person o ON o.id = t.owner_id
		JOIN todo_collaborator tc ON tc.todo_id = t.id
		JOIN person c ON c.id = tc.person_id
		WHERE LOWER(c.email) = LOWER($1)
		ORDER BY t.id`, email)
}

func (r *TodoRepository) query(ctx context.Context, query string, args ...any) ([]*todo.Todo, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("select todos", err)
	}
	defer rows.Close()

	out := []*todo.Todo{}
	byID := map[int64]*todo.Todo{}
	for rows.Next() {
		var (
			t      todo.Todo
			status string
			due    sql.NullTime
		)
		if err := rows.Scan(
			&t.ID, &t.Title, &t.Description, &t.Priority, &status, &due, &t.CreatedAt, &t.UpdatedAt,
			&t.Owner.ID, &t.Owner.Name, &t.Owner.Email,
		); err != nil {
			return nil, pkgerrors.NewDatabaseError("scan todo", err)
		}
		t.Status = todo.Status(status)
		if due.Valid {
			d := due.Time.UTC()
			t.DueDate = &d
		}
		t.Collaborators = []todo.Person{}
		out = append(out, &t)
		byID[t.ID] = &t
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewDatabaseError("select todos", err)
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]int64, 0, len(out))
	for _, t := range out {
		ids = append(ids, t.ID)
	}
	if err := r.loadCollaborators(ctx, ids, byID); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *TodoRepository) loadCollaborators(ctx context.Context, ids []int64, byID map[int64]*todo.Todo) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT tc.todo_id, p.id, p.name, p.email
		FROM todo_collaborator tc JOIN person p ON p.id = tc.person_id
		WHERE tc.todo_id = ANY($1)
		ORDER BY tc.todo_id, p.id`, ids)
	if err != nil {
		return pkgerrors.NewDatabaseError("select collaborators", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			todoID int64
			p      todo.Person
		)
		if err := rows.Scan(&todoID, &p.ID, &p.Name, &p.Email); err != nil {
			return pkgerrors.NewDatabaseError("scan collaborator", err)
		}
		if t, ok := byID[todoID]; ok {
			t.Collaborators = append(t.Collaborators, p)
		}
	}
	if err := rows.Err(); err != nil {
		return pkgerrors.NewDatabaseError("select collaborators", err)
	}
	return nil
}

// CollaborationRepository implements ports.CollaborationRepository
type CollaborationRepository struct{ db *sql.DB }

func (r *CollaborationRepository) Create(ctx context.Context, req *collaboration.Request) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO collaboration_request (todo_id, collaborator_id, token, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		req.TodoID, req.CollaboratorID, req.Token, string(req.Status), req.CreatedAt,
	).Scan(&req.ID)
	switch {
	case isUniqueViolation(err):
		return pkgerrors.NewConflictError("a collaboration request for this todo and person already exists")
	case isForeignKeyViolation(err):
		return pkgerrors.NewNotFoundError("todo or person")
	case err != nil:
		return pkgerrors.NewDatabaseError("insert collaboration request", err)
	}
	return nil
}

func (r *CollaborationRepository) Get(ctx context.Context, todoID, collaboratorID int64) (*collaboration.Request, error) {
	var (
		req         collaboration.Request
		status      string
		confirmedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, todo_id, collaborator_id, token, status, created_at, confirmed_at
		FROM collaboration_request
		WHERE todo_id = $1 AND collaborator_id = $2`,
		todoID, collaboratorID,
	).Scan(&req.ID, &req.TodoID, &req.CollaboratorID, &req.Token, &status, &req.CreatedAt, &confirmedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.NewNotFoundError("collaboration request")
	}
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("select collaboration request", err)
	}
	req.Status = collaboration.Status(status)
	if confirmedAt.Valid {
		at := confirmedAt.Time
		req.ConfirmedAt = &at
	}
	return &req, nil
}

// Confirm flips a pending request and adds the collaborator in one transaction
func (r *CollaborationRepository) Confirm(ctx context.Context, todoID, collaboratorID int64, at time.Time) (changed bool, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, pkgerrors.NewDatabaseError("begin confirm", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var ownerID int64
	err = tx.QueryRowContext(ctx, `
		UPDATE collaboration_request r
		SET status = 'CONFIRMED', confirmed_at = $3
		FROM todo t
		WHERE r.todo_id = $1 AND r.collaborator_id = $2 AND r.status = 'PENDING' AND t.id = r.todo_id
		RETURNING t.owner_id`,
		todoID, collaboratorID, at,
	).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err = tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM collaboration_request WHERE todo_id = $1 AND collaborator_id = $2)`,
			todoID, collaboratorID,
		).Scan(&exists); err != nil {
			return false, pkgerrors.NewDatabaseError("check collaboration request", err)
		}
		if !exists {
			err = pkgerrors.NewNotFoundError("collaboration request")
			return false, err
		}
		return false, tx.Commit()
	}
	if err != nil {
		return false, pkgerrors.NewDatabaseError("confirm collaboration request", err)
	}
	if ownerID == collaboratorID {
		err = pkgerrors.NewValidationError(todo.ErrSelfCollaboration.Error())
		return false, err
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO todo_collaborator (todo_id, person_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		todoID, collaboratorID,
	); err != nil {
		return false, pkgerrors.NewDatabaseError("insert collaborator", err)
	}
	if err = tx.Commit(); err != nil {
		return false, pkgerrors.NewDatabaseError("commit confirm", err)
	}
	return true, nil
}

func (r *CollaborationRepository) Delete(ctx context.Context, todoID, collaboratorID int64) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM collaboration_request WHERE todo_id = $1 AND collaborator_id = $2`,
		todoID, collaboratorID,
	); err != nil {
		return pkgerrors.NewDatabaseError("delete collaboration request", err)
	}
	return nil
}

func requireAffected(res sql.Result, resource string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return pkgerrors.NewDatabaseError(fmt.Sprintf("rows affected for %s", resource), err)
	}
	if n == 0 {
		return pkgerrors.NewNotFoundError(resource)
	}
	return nil
}
