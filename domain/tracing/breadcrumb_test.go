package tracing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewBreadcrumb(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	now := time.Date(2024, 1, 2, 3, 4, 5, 987654321, loc)

	b := NewBreadcrumb("/dashboard", "alice", now)

	assert.NotEmpty(t, b.ID)
	assert.Equal(t, time.UTC, b.Timestamp.Location())
	assert.Equal(t, time.Date(2024, 1, 2, 2, 4, 5, 0, time.UTC), b.Timestamp)
}

func TestTags(t *testing.T) {
	assert.Equal(t, "collab:request:42", RequestTag(42))
	assert.Equal(t, "collab:confirm:42", ConfirmTag(42))
	assert.Equal(t, "collab:share:42", ShareTag(42))
}

func TestUnknownPrincipalPolicy(t *testing.T) {
	name, ok := UnknownPrincipalLabel.Resolve("")
	assert.True(t, ok)
	assert.Equal(t, UnknownUser, name)

	_, ok = UnknownPrincipalDrop.Resolve(UnknownUser)
	assert.False(t, ok)

	name, ok = UnknownPrincipalDrop.Resolve("bob")
	assert.True(t, ok)
	assert.Equal(t, "bob", name)
}
