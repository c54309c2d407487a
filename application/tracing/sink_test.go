package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"todo-backend/application/ports/mocks"
	domaintracing "todo-backend/domain/tracing"
	"todo-backend/infrastructure/persistence/memory"
)

// blockingStore holds every Save until release is closed
type blockingStore struct {
	*memory.BreadcrumbStore
	release chan struct{}
}

func (s *blockingStore) Save(ctx context.Context, b domaintracing.Breadcrumb) error {
	<-s.release
	return s.BreadcrumbStore.Save(ctx, b)
}

func TestSink_RecordAndDrain(t *testing.T) {
	// Arrange
	store := memory.NewBreadcrumbStore()
	sink := NewSink(store, Config{Workers: 3, BufferSize: 16}, nil, zap.NewNop())
	sink.Start(context.Background())

	// Act
	for i := 0; i < 10; i++ {
		sink.Record(context.Background(), "/dashboard", "alice")
	}
	require.NoError(t, sink.Stop(context.Background()))

	// Assert
	assert.Equal(t, 10, store.Len())
	crumbs, err := sink.FindAllEventsForUser(context.Background(), "alice")
	require.NoError(t, err)
	for _, b := range crumbs {
		assert.Equal(t, 0, b.Timestamp.Nanosecond())
		assert.NotEmpty(t, b.ID)
	}
}

func TestSink_RecordNeverBlocks(t *testing.T) {
	store := &blockingStore{BreadcrumbStore: memory.NewBreadcrumbStore(), release: make(chan struct{})}
	sink := NewSink(store, Config{Workers: 1, BufferSize: 2}, nil, zap.NewNop())
	sink.Start(context.Background())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			sink.Record(context.Background(), "/x", "alice")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked on a full buffer")
	}

	close(store.release)
	require.NoError(t, sink.Stop(context.Background()))
	assert.LessOrEqual(t, store.Len(), 3)
	assert.GreaterOrEqual(t, store.Len(), 1)
}

func TestSink_StoreErrorsAreSwallowed(t *testing.T) {
	store := new(mocks.MockBreadcrumbStore)
	store.On("Save", mock.Anything, mock.AnythingOfType("tracing.Breadcrumb")).Return(errors.New("throttled"))
	sink := NewSink(store, Config{Workers: 1, BufferSize: 4}, nil, zap.NewNop())
	sink.Start(context.Background())

	sink.Record(context.Background(), "/x", "alice")
	require.NoError(t, sink.Stop(context.Background()))

	store.AssertNumberOfCalls(t, "Save", 1)
}

func TestSink_UnknownPrincipalPolicy(t *testing.T) {
	t.Run("label", func(t *testing.T) {
		store := memory.NewBreadcrumbStore()
		sink := NewSink(store, Config{}, nil, zap.NewNop())
		sink.Start(context.Background())

		sink.Record(context.Background(), "/x", "")
		require.NoError(t, sink.Stop(context.Background()))

		crumbs, err := store.FindByUsername(context.Background(), domaintracing.UnknownUser)
		require.NoError(t, err)
		assert.Len(t, crumbs, 1)
	})

	t.Run("drop", func(t *testing.T) {
		store := memory.NewBreadcrumbStore()
		sink := NewSink(store, Config{UnknownPrincipal: domaintracing.UnknownPrincipalDrop}, nil, zap.NewNop())
		sink.Start(context.Background())

		sink.Record(context.Background(), "/x", domaintracing.UnknownUser)
		require.NoError(t, sink.Stop(context.Background()))

		assert.Equal(t, 0, store.Len())
	})
}

func TestSink_FindUserTraceForLastTwoWeeks(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	store := new(mocks.MockBreadcrumbStore)
	want := []domaintracing.Breadcrumb{{ID: "1", URI: "/x", Username: "alice", Timestamp: now}}
	store.On("FindByUsernameSince", mock.Anything, "alice", now.Add(-14*24*time.Hour)).Return(want, nil)

	sink := NewSink(store, Config{}, nil, zap.NewNop())
	sink.now = func() time.Time { return now }

	got, err := sink.FindUserTraceForLastTwoWeeks(context.Background(), "alice")

	require.NoError(t, err)
	assert.Equal(t, want, got)
	store.AssertExpectations(t)
}

func TestSink_RecordAfterStopIsIgnored(t *testing.T) {
	store := memory.NewBreadcrumbStore()
	sink := NewSink(store, Config{}, nil, zap.NewNop())
	sink.Start(context.Background())
	require.NoError(t, sink.Stop(context.Background()))

	assert.NotPanics(t, func() { sink.Record(context.Background(), "/x", "alice") })
	assert.Equal(t, 0, store.Len())
}

func TestSink_FlushWritesBufferedBreadcrumbs(t *testing.T) {
	// Arrange
	store := memory.NewBreadcrumbStore()
	sink := NewSink(store, Config{Workers: 2, BufferSize: 16}, nil, zap.NewNop())
	sink.Start(context.Background())
	defer func() { _ = sink.Stop(context.Background()) }()
	for i := 0; i < 5; i++ {
		sink.Record(context.Background(), "collab:request:9", "bob@example.com")
	}

	// Act
	err := sink.Flush(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 5, store.Len())

	sink.Record(context.Background(), "/dashboard", "bob@example.com")
	require.NoError(t, sink.Flush(context.Background()))
	assert.Equal(t, 6, store.Len())
}

func TestSink_FlushHonoursContext(t *testing.T) {
	store := &blockingStore{BreadcrumbStore: memory.NewBreadcrumbStore(), release: make(chan struct{})}
	sink := NewSink(store, Config{Workers: 1, BufferSize: 4}, nil, zap.NewNop())
	sink.Start(context.Background())
	sink.Record(context.Background(), "/x", "alice")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, sink.Flush(ctx), context.DeadlineExceeded)

	close(store.release)
	require.NoError(t, sink.Stop(context.Background()))
	assert.Equal(t, 1, store.Len())
}
