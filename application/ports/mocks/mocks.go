// Package mocks provides testify mocks for the outbound application ports.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"todo-backend/application/ports"
	"todo-backend/domain/collaboration"
	"todo-backend/domain/events"
	"todo-backend/domain/tracing"
)

type MockNotificationPublisher struct {
	mock.Mock
}

func (m *MockNotificationPublisher) Publish(ctx context.Context, n collaboration.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	args := m.Called(ctx, evts)
	return args.Error(0)
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, msg ports.MailMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) CreateUser(ctx context.Context, username, email string) error {
	args := m.Called(ctx, username, email)
	return args.Error(0)
}

type MockBreadcrumbStore struct {
	mock.Mock
}

func (m *MockBreadcrumbStore) Save(ctx context.Context, b tracing.Breadcrumb) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *MockBreadcrumbStore) FindByUsername(ctx context.Context, username string) ([]tracing.Breadcrumb, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]tracing.Breadcrumb), args.Error(1)
}

func (m *MockBreadcrumbStore) FindByUsernameSince(ctx context.Context, username string, since time.Time) ([]tracing.Breadcrumb, error) {
	args := m.Called(ctx, username, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]tracing.Breadcrumb), args.Error(1)
}

// TraceRecorder captures recorded events for assertions
type TraceRecorder struct {
	mu     sync.Mutex
	Events []tracing.Event
}

func (r *TraceRecorder) Record(ctx context.Context, uri, username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, tracing.Event{URI: uri, Username: username})
}

// Recorded returns a copy of the captured events
func (r *TraceRecorder) Recorded() []tracing.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]tracing.Event(nil), r.Events...)
}
