package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"todo-backend/application/ports/mocks"
	"todo-backend/application/sharing"
	"todo-backend/domain/collaboration"
	"todo-backend/domain/todo"
	"todo-backend/domain/tracing"
	"todo-backend/infrastructure/persistence/memory"
	"todo-backend/pkg/auth"
	pkgerrors "todo-backend/pkg/errors"
)

type collabFixture struct {
	store     *memory.Store
	publisher *mocks.MockNotificationPublisher
	events    *mocks.MockEventPublisher
	tracer    *mocks.TraceRecorder
	scheduler *sharing.Scheduler
	service   *CollaborationService

	alice *todo.Person
	bob   *todo.Person
	todo  *todo.Todo

	mu   sync.Mutex
	sent []collaboration.Notification
}

func newCollabFixture(t *testing.T, limiter auth.RateLimiter) *collabFixture {
	t.Helper()
	ctx := context.Background()

	f := &collabFixture{
		store:     memory.NewStore(),
		publisher: &mocks.MockNotificationPublisher{},
		events:    &mocks.MockEventPublisher{},
		tracer:    &mocks.TraceRecorder{},
		scheduler: sharing.NewScheduler(zap.NewNop()),
	}
	t.Cleanup(f.scheduler.Stop)

	f.alice = &todo.Person{Name: "Alice", Email: "alice@example.com"}
	require.NoError(t, f.store.Persons().Create(ctx, f.alice))
	f.bob = &todo.Person{Name: "Bob", Email: "bob@example.com"}
	require.NoError(t, f.store.Persons().Create(ctx, f.bob))

	td, err := todo.New(*f.alice, "Buy milk", "2 liters", 3, nil, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.store.Todos().Create(ctx, td))
	f.todo = td

	f.events.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()

	f.service = NewCollaborationService(
		f.store.Todos(),
		f.store.Persons(),
		f.store.Collaborations(),
		f.publisher,
		f.events,
		f.tracer,
		f.scheduler,
		limiter,
		nil,
		zap.NewNop(),
	)
	return f
}

func (f *collabFixture) expectPublish(err error) {
	f.publisher.On("Publish", mock.Anything, mock.AnythingOfType("collaboration.Notification")).
		Run(func(args mock.Arguments) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.sent = append(f.sent, args.Get(1).(collaboration.Notification))
		}).
		Return(err)
}

func (f *collabFixture) published() []collaboration.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]collaboration.Notification(nil), f.sent...)
}

func TestShareTodo_PublishesOneNotification(t *testing.T) {
	// Arrange
	f := newCollabFixture(t, nil)
	f.expectPublish(nil)
	ctx := context.Background()

	// Act
	req, err := f.service.ShareTodo(ctx, f.todo.ID, "alice@example.com", f.bob.ID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, collaboration.StatusPending, req.Status)
	assert.NotEmpty(t, req.Token)

	sent := f.published()
	require.Len(t, sent, 1)
	assert.Equal(t, collaboration.Notification{
		TodoID:            f.todo.ID,
		TodoTitle:         "Buy milk",
		TodoDescription:   "2 liters",
		TodoPriority:      3,
		CollaboratorID:    f.bob.ID,
		CollaboratorEmail: "bob@example.com",
		Token:             req.Token,
	}, sent[0])

	stored, err := f.store.Collaborations().Get(ctx, f.todo.ID, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, req.Token, stored.Token)

	assert.Equal(t, []tracing.Event{{URI: tracing.ShareTag(f.todo.ID), Username: "alice@example.com"}}, f.tracer.Recorded())
	f.events.AssertCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestShareTodo_ErrorOrder(t *testing.T) {
	f := newCollabFixture(t, nil)
	ctx := context.Background()

	carol := &todo.Person{Name: "Carol", Email: "carol@example.com"}
	require.NoError(t, f.store.Persons().Create(ctx, carol))

	tests := []struct {
		name    string
		todoID  int64
		owner   string
		collab  int64
		errType pkgerrors.ErrorType
	}{
		{"missing todo", 9999, "alice@example.com", f.bob.ID, pkgerrors.ErrorTypeNotFound},
		{"missing todo wins over missing collaborator", 9999, "alice@example.com", 9998, pkgerrors.ErrorTypeNotFound},
		{"not the owner", f.todo.ID, "carol@example.com", f.bob.ID, pkgerrors.ErrorTypeForbidden},
		{"not the owner wins over missing collaborator", f.todo.ID, "carol@example.com", 9998, pkgerrors.ErrorTypeForbidden},
		{"missing collaborator", f.todo.ID, "alice@example.com", 9998, pkgerrors.ErrorTypeNotFound},
		{"sharing with yourself", f.todo.ID, "alice@example.com", f.alice.ID, pkgerrors.ErrorTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.ShareTodo(ctx, tt.todoID, tt.owner, tt.collab)

			require.Error(t, err)
			assert.True(t, pkgerrors.IsType(err, tt.errType), "got %v", err)
		})
	}

	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	assert.Empty(t, f.tracer.Recorded())
}

func TestShareTodo_OwnerMatchIsCaseInsensitive(t *testing.T) {
	f := newCollabFixture(t, nil)
	f.expectPublish(nil)

	_, err := f.service.ShareTodo(context.Background(), f.todo.ID, "Alice@Example.COM", f.bob.ID)

	assert.NoError(t, err)
}

func TestShareTodo_DuplicateIsConflict(t *testing.T) {
	f := newCollabFixture(t, nil)
	f.expectPublish(nil)
	ctx := context.Background()

	_, err := f.service.ShareTodo(ctx, f.todo.ID, "alice@example.com", f.bob.ID)
	require.NoError(t, err)

	_, err = f.service.ShareTodo(ctx, f.todo.ID, "alice@example.com", f.bob.ID)

	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))
	assert.Len(t, f.published(), 1)
}

func TestShareTodo_ConcurrentSharesCreateOneRequest(t *testing.T) {
	f := newCollabFixture(t, nil)
	f.expectPublish(nil)
	ctx := context.Background()

	const callers = 10
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.ShareTodo(ctx, f.todo.ID, "alice@example.com", f.bob.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, pkgerrors.IsConflict(err), "got %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, f.published(), 1)
}

func TestShareTodo_PublishFailureReleasesPair(t *testing.T) {
	// Arrange
	f := newCollabFixture(t, nil)
	f.expectPublish(errors.New("queue unavailable"))
	ctx := context.Background()

	// Act
	_, err := f.service.ShareTodo(ctx, f.todo.ID, "alice@example.com", f.bob.ID)

	// Assert
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeExternal))

	_, err = f.store.Collaborations().Get(ctx, f.todo.ID, f.bob.ID)
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.Empty(t, f.tracer.Recorded())
}

func TestShareTodo_RateLimited(t *testing.T) {
	limiter := auth.NewTokenBucketLimiter(1, time.Hour)
	t.Cleanup(limiter.Stop)

	f := newCollabFixture(t, limiter)
	f.expectPublish(nil)
	ctx := context.Background()

	carol := &todo.Person{Name: "Carol", Email: "carol@example.com"}
	require.NoError(t, f.store.Persons().Create(ctx, carol))

	_, err := f.service.ShareTodo(ctx, f.todo.ID, "alice@example.com", f.bob.ID)
	require.NoError(t, err)

	_, err = f.service.ShareTodo(ctx, f.todo.ID, "alice@example.com", carol.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeRateLimit))
}

func TestConfirmCollaboration_AddsCollaborator(t *testing.T) {
	// Arrange
	f := newCollabFixture(t, nil)
	f.expectPublish(nil)
	ctx := context.Background()
	req, err := f.service.ShareTodo(ctx, f.todo.ID, "alice@example.com", f.bob.ID)
	require.NoError(t, err)

	// Act
	err = f.service.ConfirmCollaboration(ctx, "bob@example.com", f.todo.ID, f.bob.ID, req.Token)

	// Assert
	require.NoError(t, err)

	stored, err := f.store.Collaborations().Get(ctx, f.todo.ID, f.bob.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsConfirmed())

	td, err := f.store.Todos().GetByID(ctx, f.todo.ID)
	require.NoError(t, err)
	assert.True(t, td.HasCollaborator(f.bob.ID))
	assert.False(t, td.HasCollaborator(f.alice.ID))

	assert.Contains(t, f.tracer.Recorded(), tracing.Event{URI: tracing.ConfirmTag(f.todo.ID), Username: "bob@example.com"})
}

func TestConfirmCollaboration_IsIdempotent(t *testing.T) {
	f := newCollabFixture(t, nil)
	f.expectPublish(nil)
	ctx := context.Background()
	req, err := f.service.ShareTodo(ctx, f.todo.ID, "alice@example.com", f.bob.ID)
	require.NoError(t, err)

	require.NoError(t, f.service.ConfirmCollaboration(ctx, "bob@example.com", f.todo.ID, f.bob.ID, req.Token))
	require.NoError(t, f.service.ConfirmCollaboration(ctx, "bob@example.com", f.todo.ID, f.bob.ID, req.Token))

	td, err := f.store.Todos().GetByID(ctx, f.todo.ID)
	require.NoError(t, err)
	assert.Len(t, td.Collaborators, 1)

	confirms := 0
	for _, e := range f.tracer.Recorded() {
		if e.URI == tracing.ConfirmTag(f.todo.ID) {
			confirms++
		}
	}
	assert.Equal(t, 1, confirms)
}

func TestConfirmCollaboration_InvalidTokenDoesNotLeakCause(t *testing.T) {
	f := newCollabFixture(t, nil)
	f.expectPublish(nil)
	ctx := context.Background()
	req, err := f.service.ShareTodo(ctx, f.todo.ID, "alice@example.com", f.bob.ID)
	require.NoError(t, err)

	tests := []struct {
		name   string
		email  string
		todoID int64
		collab int64
		token  string
	}{
		{"wrong token", "bob@example.com", f.todo.ID, f.bob.ID, "not-the-token"},
		{"empty token", "bob@example.com", f.todo.ID, f.bob.ID, ""},
		{"unknown pair", "bob@example.com", 9999, f.bob.ID, req.Token},
		{"wrong signed-in user", "alice@example.com", f.todo.ID, f.bob.ID, req.Token},
	}

	var messages []string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.service.ConfirmCollaboration(ctx, tt.email, tt.todoID, tt.collab, tt.token)

			require.Error(t, err)
			assert.True(t, pkgerrors.IsInvalidToken(err))
			messages = append(messages, err.Error())
		})
	}

	for _, m := range messages {
		assert.Equal(t, messages[0], m)
	}

	stored, err := f.store.Collaborations().Get(ctx, f.todo.ID, f.bob.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsConfirmed())
}

func TestConfirmCollaboration_CancelsPendingAutoConfirm(t *testing.T) {
	// Arrange
	f := newCollabFixture(t, nil)
	f.expectPublish(nil)
	ctx := context.Background()
	req, err := f.service.ShareTodo(ctx, f.todo.ID, "alice@example.com", f.bob.ID)
	require.NoError(t, err)

	fired := make(chan struct{}, 1)
	f.scheduler.Schedule(f.todo.ID, f.bob.ID, time.Hour, func(context.Context) { fired <- struct{}{} })
	require.Equal(t, 1, f.scheduler.Pending())

	// Act
	require.NoError(t, f.service.ConfirmCollaboration(ctx, "bob@example.com", f.todo.ID, f.bob.ID, req.Token))

	// Assert
	assert.Equal(t, 0, f.scheduler.Pending())
	select {
	case <-fired:
		t.Fatal("auto-confirm ran after a manual confirmation")
	default:
	}
}

func TestConfirmCollaboration_ViaDispatcherAutoConfirm(t *testing.T) {
	f := newCollabFixture(t, nil)
	f.expectPublish(nil)
	ctx := context.Background()
	req, err := f.service.ShareTodo(ctx, f.todo.ID, "alice@example.com", f.bob.ID)
	require.NoError(t, err)

	mailer := &mocks.MockMailer{}
	mailer.On("Send", mock.Anything, mock.Anything).Return(nil)
	dispatcher := sharing.NewDispatcher(mailer, f.tracer, f.scheduler, f.service, sharing.DispatcherConfig{
		ExternalURL:      "http://localhost:8080",
		FromAddress:      "noreply@example.com",
		AutoConfirm:      true,
		AutoConfirmDelay: 10 * time.Millisecond,
	}, nil, zap.NewNop())

	require.NoError(t, dispatcher.Handle(ctx, f.published()[0]))

	require.Eventually(t, func() bool {
		stored, err := f.store.Collaborations().Get(ctx, f.todo.ID, f.bob.ID)
		return err == nil && stored.IsConfirmed()
	}, 2*time.Second, 10*time.Millisecond)
	mailer.AssertNumberOfCalls(t, "Send", 1)
	assert.NotEmpty(t, req.Token)
}
