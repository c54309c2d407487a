// Package tracing records the per-user audit trail off the request path.
package tracing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"todo-backend/application/ports"
	domaintracing "todo-backend/domain/tracing"
	"todo-backend/pkg/observability"
)

// Config tunes the sink
type Config struct {
	Workers          int
	BufferSize       int
	WriteTimeout     time.Duration
	UnknownPrincipal domaintracing.UnknownPrincipalPolicy
}

// Sink accepts trace events without blocking and persists them with a pool of
// workers. Storage failures are logged and never reach the caller.
type Sink struct {
	store   ports.BreadcrumbStore
	cfg     Config
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time

	queue chan domaintracing.Breadcrumb

	mu      sync.Mutex
	started bool
	closed  bool
	group   *errgroup.Group
	// pending counts breadcrumbs queued or being written; idle is closed
	// whenever it is zero.
	pending int
	idle    chan struct{}
}

// NewSink creates a sink. Call Start before recording.
func NewSink(store ports.BreadcrumbStore, cfg Config, metrics *observability.Metrics, logger *zap.Logger) *Sink {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.UnknownPrincipal == "" {
		cfg.UnknownPrincipal = domaintracing.UnknownPrincipalLabel
	}
	idle := make(chan struct{})
	close(idle)
	return &Sink{
		store:   store,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
		queue:   make(chan domaintracing.Breadcrumb, cfg.BufferSize),
		idle:    idle,
	}
}

// Start launches the workers. Workers keep draining until Stop closes the queue.
func (s *Sink) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	// Writes must outlive request contexts.
	base := context.WithoutCancel(ctx)
	s.group = &errgroup.Group{}
	for i := 0; i < s.cfg.Workers; i++ {
		s.group.Go(func() error {
			for b := range s.queue {
				s.persist(base, b)
				s.done()
			}
			return nil
		})
	}
	s.logger.Info("Tracing sink started",
		zap.Int("workers", s.cfg.Workers),
		zap.Int("buffer", s.cfg.BufferSize),
	)
}

// Record enqueues a breadcrumb. It never blocks: when the buffer is full the
// event is dropped.
func (s *Sink) Record(ctx context.Context, uri, username string) {
	username, ok := s.cfg.UnknownPrincipal.Resolve(username)
	if !ok {
		return
	}
	b := domaintracing.NewBreadcrumb(uri, username, s.now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- b:
		if s.pending == 0 {
			s.idle = make(chan struct{})
		}
		s.pending++
	default:
		s.metrics.RecordBreadcrumb(false)
		s.logger.Warn("Tracing buffer full, dropping breadcrumb",
			zap.String("uri", uri),
			zap.String("username", username),
		)
	}
}

func (s *Sink) done() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending--
	if s.pending == 0 {
		close(s.idle)
	}
}

// Flush waits until every breadcrumb recorded so far is written or ctx
// expires. The workers keep running.
func (s *Sink) Flush(ctx context.Context) error {
	s.mu.Lock()
	idle, pending, started := s.idle, s.pending, s.started
	s.mu.Unlock()
	if pending == 0 {
		return nil
	}
	if !started {
		return fmt.Errorf("tracing sink flush: %d breadcrumbs buffered but sink not started", pending)
	}

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("tracing sink flush: %w", ctx.Err())
	}
}

// Stop closes the queue and waits for the workers to drain it or for ctx to expire
func (s *Sink) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	group := s.group
	s.mu.Unlock()

	if group == nil {
		return nil
	}
	if err := s.Flush(ctx); err != nil {
		return fmt.Errorf("tracing sink drain: %w", ctx.Err())
	}
	return group.Wait()
}

func (s *Sink) persist(ctx context.Context, b domaintracing.Breadcrumb) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	if err := s.store.Save(ctx, b); err != nil {
		s.metrics.RecordBreadcrumb(false)
		s.logger.Warn("Failed to persist breadcrumb",
			zap.Error(err),
			zap.String("uri", b.URI),
			zap.String("username", b.Username),
		)
		return
	}
	s.metrics.RecordBreadcrumb(true)
}

// FindAllEventsForUser returns every breadcrumb of username in store order
func (s *Sink) FindAllEventsForUser(ctx context.Context, username string) ([]domaintracing.Breadcrumb, error) {
	crumbs, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("find breadcrumbs for %s: %w", username, err)
	}
	return crumbs, nil
}

// FindUserTraceForLastTwoWeeks returns breadcrumbs of username newer than two weeks
func (s *Sink) FindUserTraceForLastTwoWeeks(ctx context.Context, username string) ([]domaintracing.Breadcrumb, error) {
	since := s.now().UTC().Add(-domaintracing.TwoWeeks)
	crumbs, err := s.store.FindByUsernameSince(ctx, username, since)
	if err != nil {
		return nil, fmt.Errorf("find recent breadcrumbs for %s: %w", username, err)
	}
	return crumbs, nil
}
