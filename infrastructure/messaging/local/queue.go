// Package local is an in-process sharing queue for development and tests.
package local

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"todo-backend/application/ports"
	"todo-backend/domain/collaboration"
)

// ErrQueueFull is returned when the buffer cannot take another message
var ErrQueueFull = errors.New("sharing queue is full")

type envelope struct {
	n        collaboration.Notification
	receives int
}

// Queue delivers notifications to a handler with the same at-least-once,
// redeliver-then-dead-letter behaviour as the SQS queue.
type Queue struct {
	messages    chan envelope
	maxReceives int
	retryDelay  time.Duration
	logger      *zap.Logger

	mu         sync.Mutex
	deadLetter []collaboration.Notification
	closed     bool
}

// NewQueue creates a queue buffering up to size messages
func NewQueue(size, maxReceives int, logger *zap.Logger) *Queue {
	if size < 1 {
		size = 100
	}
	if maxReceives < 1 {
		maxReceives = 3
	}
	return &Queue{
		messages:    make(chan envelope, size),
		maxReceives: maxReceives,
		retryDelay:  time.Second,
		logger:      logger,
	}
}

// Publish enqueues n without blocking
func (q *Queue) Publish(ctx context.Context, n collaboration.Notification) error {
	return q.enqueue(envelope{n: n})
}

func (q *Queue) enqueue(e envelope) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errors.New("sharing queue is closed")
	}
	select {
	case q.messages <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run hands messages to handler with up to concurrency in flight until ctx is done
func (q *Queue) Run(ctx context.Context, handler ports.NotificationHandler, concurrency int) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < max(concurrency, 1); i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case e := <-q.messages:
					q.deliver(gctx, handler, e)
				}
			}
		})
	}
	return g.Wait()
}

func (q *Queue) deliver(ctx context.Context, handler ports.NotificationHandler, e envelope) {
	e.receives++
	err := handler.Handle(ctx, e.n)
	if err == nil {
		return
	}

	if e.receives >= q.maxReceives {
		q.mu.Lock()
		q.deadLetter = append(q.deadLetter, e.n)
		q.mu.Unlock()
		q.logger.Error("Notification moved to dead letters",
			zap.Error(err),
			zap.Int64("todoID", e.n.TodoID),
			zap.Int("receives", e.receives),
		)
		return
	}

	q.logger.Warn("Notification failed; redelivering",
		zap.Error(err),
		zap.Int64("todoID", e.n.TodoID),
		zap.Int("receives", e.receives),
	)
	time.AfterFunc(q.retryDelay, func() {
		if err := q.enqueue(e); err != nil {
			q.logger.Error("Dropped notification on redelivery", zap.Error(err), zap.Int64("todoID", e.n.TodoID))
		}
	})
}

// DeadLetters returns notifications that exhausted their receives
func (q *Queue) DeadLetters() []collaboration.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]collaboration.Notification(nil), q.deadLetter...)
}

// Close rejects further publishes
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}
