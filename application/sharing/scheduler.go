package sharing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"todo-backend/domain/collaboration"
)

type scheduledTask struct {
	todoID int64
	timer  *time.Timer
}

// Scheduler runs deferred auto-confirmations. Each (todo, collaborator) pair
// has at most one pending task, and pending tasks can be cancelled.
type Scheduler struct {
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	tasks   map[string]*scheduledTask
	stopped bool
	// active counts tasks that are scheduled or running; idle is closed
	// whenever it is zero.
	active int
	idle   chan struct{}
}

// NewScheduler creates an idle scheduler
func NewScheduler(logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)
	return &Scheduler{
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(map[string]*scheduledTask),
		idle:   idle,
	}
}

// Schedule runs fn after delay. Scheduling an existing pair replaces its task.
func (s *Scheduler) Schedule(todoID, collaboratorID int64, delay time.Duration, fn func(ctx context.Context)) {
	key := collaboration.Key(todoID, collaboratorID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if prev, ok := s.tasks[key]; ok {
		s.stopLocked(key, prev)
	}

	task := &scheduledTask{todoID: todoID}
	s.tasks[key] = task
	if s.active == 0 {
		s.idle = make(chan struct{})
	}
	s.active++
	task.timer = time.AfterFunc(delay, func() { s.run(key, task, fn) })
}

func (s *Scheduler) run(key string, task *scheduledTask, fn func(ctx context.Context)) {
	s.mu.Lock()
	if current, ok := s.tasks[key]; !ok || current != task {
		s.releaseLocked()
		s.mu.Unlock()
		return
	}
	delete(s.tasks, key)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.releaseLocked()
		s.mu.Unlock()
	}()

	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("Scheduled confirmation panicked",
				zap.String("key", key),
				zap.String("panic", fmt.Sprint(rec)),
			)
		}
	}()
	fn(s.ctx)
}

// stopLocked removes a task. If its timer already fired, run sees the task is
// gone and releases it itself.
func (s *Scheduler) stopLocked(key string, task *scheduledTask) {
	delete(s.tasks, key)
	if task.timer.Stop() {
		s.releaseLocked()
	}
}

func (s *Scheduler) releaseLocked() {
	s.active--
	if s.active == 0 {
		close(s.idle)
	}
}

// Cancel drops the pending task for the pair. It reports whether one existed.
func (s *Scheduler) Cancel(todoID, collaboratorID int64) bool {
	key := collaboration.Key(todoID, collaboratorID)

	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[key]
	if !ok {
		return false
	}
	s.stopLocked(key, task)
	return true
}

// CancelTodo drops every pending task of a todo and returns how many there were
func (s *Scheduler) CancelTodo(todoID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key, task := range s.tasks {
		if task.todoID == todoID {
			s.stopLocked(key, task)
			n++
		}
	}
	return n
}

// Pending returns the number of tasks waiting to fire
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Drain waits until all pending tasks have run or ctx expires. Short-lived
// processes call it before returning. Tasks scheduled while draining are
// waited for too.
func (s *Scheduler) Drain(ctx context.Context) error {
	for {
		s.mu.Lock()
		idle, active := s.idle, s.active
		s.mu.Unlock()
		if active == 0 {
			return nil
		}

		select {
		case <-idle:
		case <-ctx.Done():
			return fmt.Errorf("drain scheduled confirmations: %w", ctx.Err())
		}
	}
}

// Stop cancels pending tasks and waits for running ones to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for key, task := range s.tasks {
		s.stopLocked(key, task)
	}
	idle := s.idle
	s.mu.Unlock()

	s.cancel()
	<-idle
}
