package todo

import (
	"errors"
	"strings"
	"time"
)

// Status is the lifecycle state of a todo
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusDone:
		return true
	}
	return false
}

const (
	MinPriority = 1
	MaxPriority = 10
)

var (
	ErrSelfCollaboration = errors.New("owner cannot collaborate on their own todo")
	ErrInvalidPriority   = errors.New("priority out of range")
	ErrEmptyTitle        = errors.New("title cannot be empty")
)

// Person is a registered user of the application
type Person struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SameEmail compares emails case-insensitively
func SameEmail(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Todo is a task owned by a single person and optionally shared with
// collaborators who confirmed an invitation.
type Todo struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Priority      int        `json:"priority"`
	Status        Status     `json:"status"`
	DueDate       *time.Time `json:"dueDate,omitempty"`
	Owner         Person     `json:"owner"`
	Collaborators []Person   `json:"collaborators"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// New creates an open todo for owner
func New(owner Person, title, description string, priority int, dueDate *time.Time, now time.Time) (*Todo, error) {
	t := &Todo{
		Owner:         owner,
		Status:        StatusOpen,
		Collaborators: []Person{},
		CreatedAt:     now,
	}
	if err := t.Edit(title, description, priority, dueDate, now); err != nil {
		return nil, err
	}
	return t, nil
}

// Edit replaces the editable fields
func (t *Todo) Edit(title, description string, priority int, dueDate *time.Time, now time.Time) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	if priority < MinPriority || priority > MaxPriority {
		return ErrInvalidPriority
	}
	t.Title = title
	t.Description = description
	t.Priority = priority
	t.DueDate = dueDate
	t.UpdatedAt = now
	return nil
}

// Complete marks the todo done
func (t *Todo) Complete(now time.Time) {
	t.Status = StatusDone
	t.UpdatedAt = now
}

// IsOwnedBy reports whether email belongs to the owner
func (t *Todo) IsOwnedBy(email string) bool {
	return SameEmail(t.Owner.Email, email)
}

// HasCollaborator reports whether the person with id is a confirmed collaborator
func (t *Todo) HasCollaborator(id int64) bool {
	for _, c := range t.Collaborators {
		if c.ID == id {
			return true
		}
	}
	return false
}

// IsCollaborator reports whether email belongs to a confirmed collaborator
func (t *Todo) IsCollaborator(email string) bool {
	for _, c := range t.Collaborators {
		if SameEmail(c.Email, email) {
			return true
		}
	}
	return false
}

// CanAccess reports whether email may read and edit the todo
func (t *Todo) CanAccess(email string) bool {
	return t.IsOwnedBy(email) || t.IsCollaborator(email)
}

// AddCollaborator adds p to the collaborator set. Adding an existing
// collaborator is a no-op.
func (t *Todo) AddCollaborator(p Person) error {
	if p.ID == t.Owner.ID || t.IsOwnedBy(p.Email) {
		return ErrSelfCollaboration
	}
	if t.HasCollaborator(p.ID) {
		return nil
	}
	t.Collaborators = append(t.Collaborators, p)
	return nil
}
