// Package collaboration models invitations to work on another person's todo.
package collaboration

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status of a collaboration request
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
)

// Request is an invitation for a person to collaborate on a todo. It moves from
// PENDING to CONFIRMED exactly once.
type Request struct {
	ID             int64      `json:"id"`
	TodoID         int64      `json:"todoId"`
	CollaboratorID int64      `json:"collaboratorId"`
	Token          string     `json:"-"`
	Status         Status     `json:"status"`
	CreatedAt      time.Time  `json:"createdAt"`
	ConfirmedAt    *time.Time `json:"confirmedAt,omitempty"`
}

// NewRequest creates a pending request with a fresh random token
func NewRequest(todoID, collaboratorID int64, now time.Time) (*Request, error) {
	token, err := NewToken()
	if err != nil {
		return nil, err
	}
	return &Request{
		TodoID:         todoID,
		CollaboratorID: collaboratorID,
		Token:          token,
		Status:         StatusPending,
		CreatedAt:      now,
	}, nil
}

// NewToken returns an unguessable token backed by crypto/rand
func NewToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate confirmation token: %w", err)
	}
	return id.String(), nil
}

// Matches compares token in constant time
func (r *Request) Matches(token string) bool {
	if token == "" || r.Token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(r.Token), []byte(token)) == 1
}

// IsConfirmed reports whether the request was already confirmed
func (r *Request) IsConfirmed() bool {
	return r.Status == StatusConfirmed
}

// MarkConfirmed moves the request to CONFIRMED at the given time. It reports
// false and keeps the first confirmation time when already confirmed. Callers
// check the token with Matches first.
func (r *Request) MarkConfirmed(at time.Time) bool {
	if r.IsConfirmed() {
		return false
	}
	r.Status = StatusConfirmed
	r.ConfirmedAt = &at
	return true
}

// Key identifies a request by its (todo, collaborator) pair
func Key(todoID, collaboratorID int64) string {
	return fmt.Sprintf("%d/%d", todoID, collaboratorID)
}

// Notification is the message handed from the sharing service to the
// notification dispatcher.
type Notification struct {
	TodoID            int64  `json:"todoId"`
	TodoTitle         string `json:"todoTitle"`
	TodoDescription   string `json:"todoDescription"`
	TodoPriority      int    `json:"todoPriority"`
	CollaboratorID    int64  `json:"collaboratorId"`
	CollaboratorEmail string `json:"collaboratorEmail"`
	Token             string `json:"token"`
}

// Validate checks the fields the dispatcher relies on
func (n Notification) Validate() error {
	switch {
	case n.TodoID <= 0:
		return errors.New("notification missing todoId")
	case n.CollaboratorID <= 0:
		return errors.New("notification missing collaboratorId")
	case strings.TrimSpace(n.CollaboratorEmail) == "":
		return errors.New("notification missing collaboratorEmail")
	case n.Token == "":
		return errors.New("notification missing token")
	}
	return nil
}

// ConfirmationURL builds the link the collaborator follows to accept
func (n Notification) ConfirmationURL(baseURL string) string {
	return fmt.Sprintf("%s/todo/%d/collaborations/%d/confirm?token=%s",
		strings.TrimRight(baseURL, "/"), n.TodoID, n.CollaboratorID, url.QueryEscape(n.Token))
}
