//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"todo-backend/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfig,
	ProvideMetrics,
	ProvideTracer,
	ProvideStorage,
	ProvideRedisClient,
	ProvideCache,
	ProvideRateLimiter,
	ProvideTraceSink,
	ProvideScheduler,
	ProvideSQSClient,
	ProvideLocalQueue,
	ProvideNotificationPublisher,
	ProvideEventPublisher,
	ProvideMailer,
	ProvideIdentityProvider,
	ProvideJWTConfig,
	ProvideJWTValidator,
	ProvideConnectionStore,
	ProvideCloudWatchFlusher,
	ProvideTodoService,
	ProvideCollaborationService,
	ProvideDashboardService,
	ProvideRegistrationService,
	ProvideDispatcher,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil
}
