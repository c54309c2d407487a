package memory

import (
	"context"
	"sync"
	"time"

	"todo-backend/domain/tracing"
)

// BreadcrumbStore is an append-only in-memory trail
type BreadcrumbStore struct {
	mu     sync.RWMutex
	crumbs []tracing.Breadcrumb
}

// NewBreadcrumbStore creates an empty trail
func NewBreadcrumbStore() *BreadcrumbStore {
	return &BreadcrumbStore{}
}

func (s *BreadcrumbStore) Save(ctx context.Context, b tracing.Breadcrumb) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crumbs = append(s.crumbs, b)
	return nil
}

func (s *BreadcrumbStore) FindByUsername(ctx context.Context, username string) ([]tracing.Breadcrumb, error) {
	return s.filter(func(b tracing.Breadcrumb) bool { return b.Username == username }), nil
}

func (s *BreadcrumbStore) FindByUsernameSince(ctx context.Context, username string, since time.Time) ([]tracing.Breadcrumb, error) {
	return s.filter(func(b tracing.Breadcrumb) bool {
		return b.Username == username && b.Timestamp.After(since)
	}), nil
}

// Len returns the number of stored breadcrumbs
func (s *BreadcrumbStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.crumbs)
}

func (s *BreadcrumbStore) filter(keep func(tracing.Breadcrumb) bool) []tracing.Breadcrumb {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []tracing.Breadcrumb{}
	for _, b := range s.crumbs {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out
}
