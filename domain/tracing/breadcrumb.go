// Package tracing holds the audit trail records written for user actions.
package tracing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UnknownUser is recorded when a request principal cannot be resolved
const UnknownUser = "unknown"

// TwoWeeks is the window used by the recent trail query
const TwoWeeks = 14 * 24 * time.Hour

// Breadcrumb is one persisted trace record
type Breadcrumb struct {
	ID        string    `json:"id" dynamodbav:"id"`
	URI       string    `json:"uri" dynamodbav:"uri"`
	Username  string    `json:"username" dynamodbav:"username"`
	Timestamp time.Time `json:"timestamp" dynamodbav:"timestamp"`
}

// NewBreadcrumb stamps an event with a fresh id and a UTC timestamp truncated
// to whole seconds.
func NewBreadcrumb(uri, username string, now time.Time) Breadcrumb {
	return Breadcrumb{
		ID:        uuid.NewString(),
		URI:       uri,
		Username:  username,
		Timestamp: now.UTC().Truncate(time.Second),
	}
}

// Event is an action to be traced
type Event struct {
	URI      string
	Username string
}

// Tags used for collaboration lifecycle events
func ShareTag(todoID int64) string   { return fmt.Sprintf("collab:share:%d", todoID) }
func RequestTag(todoID int64) string { return fmt.Sprintf("collab:request:%d", todoID) }
func ConfirmTag(todoID int64) string { return fmt.Sprintf("collab:confirm:%d", todoID) }

// UnknownPrincipalPolicy decides what happens to events whose user cannot be resolved
type UnknownPrincipalPolicy string

const (
	UnknownPrincipalLabel UnknownPrincipalPolicy = "label"
	UnknownPrincipalDrop  UnknownPrincipalPolicy = "drop"
)

// Resolve applies the policy to username. ok is false when the event should be skipped.
func (p UnknownPrincipalPolicy) Resolve(username string) (string, bool) {
	if username != "" && username != UnknownUser {
		return username, true
	}
	if p == UnknownPrincipalDrop {
		return "", false
	}
	return UnknownUser, true
}
