package local

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"todo-backend/domain/collaboration"
)

type handlerFunc func(ctx context.Context, n collaboration.Notification) error

func (f handlerFunc) Handle(ctx context.Context, n collaboration.Notification) error { return f(ctx, n) }

func TestQueue_DeliversOnce(t *testing.T) {
	q := NewQueue(10, 3, zap.NewNop())
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = q.Run(ctx, handlerFunc(func(context.Context, collaboration.Notification) error {
			calls.Add(1)
			return nil
		}), 2)
	}()

	require.NoError(t, q.Publish(ctx, collaboration.Notification{TodoID: 1}))

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return calls.Load() > 1 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestQueue_RedeliversThenDeadLetters(t *testing.T) {
	q := NewQueue(10, 3, zap.NewNop())
	q.retryDelay = time.Millisecond
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = q.Run(ctx, handlerFunc(func(context.Context, collaboration.Notification) error {
			calls.Add(1)
			return errors.New("mail server unavailable")
		}), 1)
	}()

	require.NoError(t, q.Publish(ctx, collaboration.Notification{TodoID: 9}))

	require.Eventually(t, func() bool { return len(q.DeadLetters()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, int64(9), q.DeadLetters()[0].TodoID)
}

func TestQueue_FullAndClosed(t *testing.T) {
	q := NewQueue(1, 3, zap.NewNop())

	require.NoError(t, q.Publish(context.Background(), collaboration.Notification{TodoID: 1}))
	assert.ErrorIs(t, q.Publish(context.Background(), collaboration.Notification{TodoID: 2}), ErrQueueFull)

	q.Close()
	assert.Error(t, q.Publish(context.Background(), collaboration.Notification{TodoID: 3}))
}
