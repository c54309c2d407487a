package di

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"todo-backend/application/ports"
	"todo-backend/application/services"
	"todo-backend/application/sharing"
	"todo-backend/application/tracing"
	"todo-backend/infrastructure/config"
	"todo-backend/infrastructure/messaging/local"
	"todo-backend/infrastructure/persistence/dynamodb"
	"todo-backend/pkg/auth"
	"todo-backend/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	AWS          aws.Config
	Metrics      *observability.Metrics
	Tracer       *observability.Tracer
	Storage      *Storage
	Redis        *redis.Client
	Cache        ports.Cache
	RateLimiter  auth.RateLimiter
	Sink         *tracing.Sink
	Scheduler    *sharing.Scheduler
	SQS          *awssqs.Client
	LocalQueue   *local.Queue
	Publisher    ports.NotificationPublisher
	Events       ports.EventPublisher
	Mailer       ports.Mailer
	Identity     ports.IdentityProvider
	JWTConfig    auth.JWTConfig
	JWTValidator *auth.JWTValidator
	Connections  *dynamodb.ConnectionStore
	CloudWatch   *observability.CloudWatchFlusher

	Todos          *services.TodoService
	Collaborations *services.CollaborationService
	Dashboard      *services.DashboardService
	Registration   *services.RegistrationService
	Dispatcher     *sharing.Dispatcher

	cleanup func() `wire:"-"`
}

// NewContainer wires every dependency for cfg. Close releases them.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	c, cleanup, err := InitializeContainer(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.cleanup = cleanup
	return c, nil
}

// Ready reports whether the backing services answer
func (c *Container) Ready(ctx context.Context) error {
	if err := c.Storage.Ping(ctx); err != nil {
		return err
	}
	if c.Redis != nil {
		return c.Redis.Ping(ctx).Err()
	}
	return nil
}

// Close stops background work in reverse order of construction
func (c *Container) Close() {
	if c.cleanup != nil {
		c.cleanup()
		c.cleanup = nil
	}
}
