package mail

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"todo-backend/application/ports"
	pkgerrors "todo-backend/pkg/errors"
)

// BreakerConfig tunes the circuit breaker around a mail transport
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the settings used for outgoing mail
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      1,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// BreakerMailer stops calling a failing transport for a while. Open-circuit
// rejections are delivery errors so the message goes back to the queue.
type BreakerMailer struct {
	next ports.Mailer
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerMailer wraps next with a circuit breaker
func NewBreakerMailer(next ports.Mailer, cfg BreakerConfig, logger *zap.Logger) *BreakerMailer {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Mail circuit breaker changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &BreakerMailer{next: next, cb: cb}
}

// Send forwards msg unless the circuit is open
func (m *BreakerMailer) Send(ctx context.Context, msg ports.MailMessage) error {
	_, err := m.cb.Execute(func() (interface{}, error) {
		return nil, m.next.Send(ctx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return pkgerrors.NewDeliveryError("email", err)
	}
	return err
}

// State reports the breaker state, e.g. for readiness checks
func (m *BreakerMailer) State() gobreaker.State {
	return m.cb.State()
}
