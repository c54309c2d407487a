package events

import (
	"strconv"
	"time"
)

// DomainEvent is something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

const (
	TypeTodoShared             = "todo.shared"
	TypeCollaborationConfirmed = "collaboration.confirmed"
)

// TodoShared is raised when an owner invites a collaborator
type TodoShared struct {
	BaseEvent
	TodoID         int64  `json:"todo_id"`
	CollaboratorID int64  `json:"collaborator_id"`
	UserID         string `json:"user_id"`
}

// NewTodoShared creates a TodoShared event. userID is the owner email.
func NewTodoShared(todoID, collaboratorID int64, ownerEmail string, timestamp time.Time) TodoShared {
	return TodoShared{
		BaseEvent: BaseEvent{
			AggregateID: strconv.FormatInt(todoID, 10),
			EventType:   TypeTodoShared,
			Timestamp:   timestamp,
			Version:     1,
		},
		TodoID:         todoID,
		CollaboratorID: collaboratorID,
		UserID:         ownerEmail,
	}
}

// CollaborationConfirmed is raised the first time a collaborator accepts.
// UserID addresses the owner so push notifications reach them.
type CollaborationConfirmed struct {
	BaseEvent
	TodoID            int64  `json:"todo_id"`
	TodoTitle         string `json:"todo_title"`
	CollaboratorID    int64  `json:"collaborator_id"`
	CollaboratorEmail string `json:"collaborator_email"`
	UserID            string `json:"user_id"`
}

// NewCollaborationConfirmed creates a CollaborationConfirmed event
func NewCollaborationConfirmed(todoID int64, todoTitle string, collaboratorID int64, collaboratorEmail, ownerEmail string, timestamp time.Time) CollaborationConfirmed {
	return CollaborationConfirmed{
		BaseEvent: BaseEvent{
			AggregateID: strconv.FormatInt(todoID, 10),
			EventType:   TypeCollaborationConfirmed,
			Timestamp:   timestamp,
			Version:     1,
		},
		TodoID:            todoID,
		TodoTitle:         todoTitle,
		CollaboratorID:    collaboratorID,
		CollaboratorEmail: collaboratorEmail,
		UserID:            ownerEmail,
	}
}
