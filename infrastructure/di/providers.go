package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awscognito "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	awssesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"todo-backend/application/ports"
	"todo-backend/application/services"
	"todo-backend/application/sharing"
	"todo-backend/application/tracing"
	domaintracing "todo-backend/domain/tracing"
	"todo-backend/infrastructure/cache"
	"todo-backend/infrastructure/config"
	"todo-backend/infrastructure/identity"
	"todo-backend/infrastructure/mail"
	"todo-backend/infrastructure/messaging/eventbridge"
	"todo-backend/infrastructure/messaging/local"
	"todo-backend/infrastructure/messaging/sqs"
	"todo-backend/infrastructure/persistence/dynamodb"
	"todo-backend/infrastructure/persistence/memory"
	"todo-backend/infrastructure/persistence/postgres"
	"todo-backend/pkg/auth"
	"todo-backend/pkg/observability"
)

// devJWTSecret signs and verifies tokens when no secret is configured outside production
const devJWTSecret = "todo-backend-development-secret"

// Storage bundles the repositories of the selected backend
type Storage struct {
	Persons        ports.PersonRepository
	Todos          ports.TodoRepository
	Collaborations ports.CollaborationRepository
	Breadcrumbs    ports.BreadcrumbStore

	ping func(ctx context.Context) error
}

// Ping checks the relational backend
func (s *Storage) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, nil, err
	}
	logger = logger.With(zap.String("app", cfg.ApplicationName), zap.String("env", cfg.Environment))
	return logger, func() { _ = logger.Sync() }, nil
}

// ProvideAWSConfig creates AWS configuration. AWS_ENDPOINT_URL points every
// client at a local emulator.
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.AWSEndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
	}
	return awsCfg, nil
}

// ProvideMetrics creates the Prometheus collectors
func ProvideMetrics() *observability.Metrics {
	return observability.NewMetrics("todo")
}

// ProvideTracer installs the OTLP exporter when tracing is enabled
func ProvideTracer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.Tracer, func(), error) {
	if !cfg.EnableTracing {
		return observability.NewTracer(cfg.ApplicationName), func() {}, nil
	}

	tracer, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName: cfg.ApplicationName,
		Environment: cfg.Environment,
		Endpoint:    cfg.OTLPEndpoint,
	})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}
	return tracer, cleanup, nil
}

// ProvideStorage opens the configured backend and migrates Postgres. The
// memory backend keeps breadcrumbs in memory too; otherwise they go to DynamoDB.
func ProvideStorage(ctx context.Context, cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) (*Storage, func(), error) {
	if cfg.StorageBackend == "memory" {
		store := memory.NewStore()
		logger.Warn("Using in-memory storage; data is lost on restart")
		return &Storage{
			Persons:        store.Persons(),
			Todos:          store.Todos(),
			Collaborations: store.Collaborations(),
			Breadcrumbs:    memory.NewBreadcrumbStore(),
			ping:           store.Ping,
		}, func() {}, nil
	}

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	store := postgres.NewStore(db)
	storage := &Storage{
		Persons:        store.Persons(),
		Todos:          store.Todos(),
		Collaborations: store.Collaborations(),
		Breadcrumbs:    dynamodb.NewBreadcrumbStore(awsdynamodb.NewFromConfig(awsCfg), cfg.BreadcrumbTable, logger),
		ping:           store.Ping,
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Warn("Closing database failed", zap.Error(err))
		}
	}
	return storage, cleanup, nil
}

// ProvideConnectionStore creates the websocket connection store
func ProvideConnectionStore(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) *dynamodb.ConnectionStore {
	return dynamodb.NewConnectionStore(awsdynamodb.NewFromConfig(awsCfg), cfg.ConnectionsTable, logger)
}

// ProvideRedisClient connects to Redis when REDIS_URL is set and returns nil otherwise
func ProvideRedisClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*redis.Client, func(), error) {
	if cfg.RedisURL == "" {
		return nil, func() {}, nil
	}
	client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Warn("Closing redis failed", zap.Error(err))
		}
	}
	return client, cleanup, nil
}

// ProvideCache prefers Redis and falls back to a process-local cache
func ProvideCache(client *redis.Client, logger *zap.Logger) (ports.Cache, func()) {
	if client != nil {
		return cache.NewRedisCache(client, logger), func() {}
	}
	c := cache.NewMemoryCache(time.Minute)
	return c, func() { _ = c.Close() }
}

// ProvideRateLimiter shares limits through Redis when available. Redis keys
// are namespaced by application so deployments sharing a server keep
// separate budgets.
func ProvideRateLimiter(cfg *config.Config, client *redis.Client) (auth.RateLimiter, func()) {
	if client != nil {
		limiter := auth.NewRedisRateLimiter(client, services.ShareRateLimit, time.Minute)
		return auth.NewPrefixedLimiter(cfg.ApplicationName, limiter), func() {}
	}
	l := auth.PerMinute(services.ShareRateLimit)
	return l, l.Stop
}

// ProvideTraceSink starts the tracing sink workers
func ProvideTraceSink(ctx context.Context, cfg *config.Config, storage *Storage, metrics *observability.Metrics, logger *zap.Logger) (*tracing.Sink, func()) {
	sink := tracing.NewSink(storage.Breadcrumbs, tracing.Config{
		Workers:          cfg.TraceWorkers,
		BufferSize:       cfg.TraceBuffer,
		UnknownPrincipal: domaintracing.UnknownPrincipalPolicy(cfg.TraceUnknownPrincipal),
	}, metrics, logger)
	sink.Start(ctx)

	cleanup := func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := sink.Stop(stopCtx); err != nil {
			logger.Warn("Tracing sink did not drain", zap.Error(err))
		}
	}
	return sink, cleanup
}

// ProvideScheduler creates the auto-confirm scheduler
func ProvideScheduler(logger *zap.Logger) (*sharing.Scheduler, func()) {
	s := sharing.NewScheduler(logger)
	return s, s.Stop
}

// ProvideSQSClient creates an SQS client
func ProvideSQSClient(awsCfg aws.Config) *awssqs.Client {
	return awssqs.NewFromConfig(awsCfg)
}

// ProvideLocalQueue creates the in-process sharing queue when no SQS queue is configured
func ProvideLocalQueue(cfg *config.Config, logger *zap.Logger) (*local.Queue, func()) {
	if cfg.SharingQueueURL != "" {
		return nil, func() {}
	}
	q := local.NewQueue(256, sqs.MaxReceiveCount, logger)
	return q, q.Close
}

// ProvideNotificationPublisher sends to SQS or to the local queue
func ProvideNotificationPublisher(cfg *config.Config, client *awssqs.Client, localQueue *local.Queue, logger *zap.Logger) ports.NotificationPublisher {
	if localQueue != nil {
		return localQueue
	}
	return sqs.NewPublisher(client, cfg.SharingQueueURL, logger)
}

// ProvideEventPublisher publishes to EventBridge when a bus is configured
func ProvideEventPublisher(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) ports.EventPublisher {
	if cfg.EventBusName == "" {
		return local.NewEventLog(logger)
	}
	return eventbridge.NewPublisher(awseventbridge.NewFromConfig(awsCfg), cfg.EventBusName, logger)
}

// ProvideMailer selects the mail transport. Remote transports sit behind a circuit breaker.
func ProvideMailer(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) ports.Mailer {
	switch cfg.MailTransport {
	case "ses":
		ses := mail.NewSESMailer(awssesv2.NewFromConfig(awsCfg), logger)
		return mail.NewBreakerMailer(ses, mail.DefaultBreakerConfig("ses"), logger)
	case "smtp":
		smtp := mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		}, logger)
		return mail.NewBreakerMailer(smtp, mail.DefaultBreakerConfig("smtp"), logger)
	default:
		return mail.NewLogMailer(logger)
	}
}

// ProvideIdentityProvider uses Cognito when configured
func ProvideIdentityProvider(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) ports.IdentityProvider {
	if cfg.UseCognito {
		return identity.NewCognitoProvider(awscognito.NewFromConfig(awsCfg), cfg.CognitoUserPoolID, logger)
	}
	return identity.NewLocalProvider(logger)
}

// ProvideJWTConfig maps the configuration onto the validator settings
func ProvideJWTConfig(cfg *config.Config, logger *zap.Logger) auth.JWTConfig {
	secret := cfg.JWTSecret
	if cfg.JWTSigningMethod == "HS256" && secret == "" {
		logger.Warn("JWT_SECRET is not set; using the development secret")
		secret = devJWTSecret
	}
	return auth.JWTConfig{
		SigningMethod: cfg.JWTSigningMethod,
		PublicKey:     cfg.JWTPublicKey,
		SecretKey:     secret,
		Issuer:        cfg.JWTIssuer,
		Audience:      []string{cfg.JWTAudience},
	}
}

// ProvideJWTValidator creates the bearer token validator
func ProvideJWTValidator(jwtCfg auth.JWTConfig) (*auth.JWTValidator, error) {
	return auth.NewJWTValidator(jwtCfg)
}

func ProvideTodoService(storage *Storage, scheduler *sharing.Scheduler, logger *zap.Logger) *services.TodoService {
	return services.NewTodoService(storage.Todos, storage.Persons, scheduler, logger)
}

func ProvideCollaborationService(
	storage *Storage,
	publisher ports.NotificationPublisher,
	eventPublisher ports.EventPublisher,
	sink *tracing.Sink,
	scheduler *sharing.Scheduler,
	limiter auth.RateLimiter,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *services.CollaborationService {
	return services.NewCollaborationService(
		storage.Todos,
		storage.Persons,
		storage.Collaborations,
		publisher,
		eventPublisher,
		sink,
		scheduler,
		limiter,
		metrics,
		logger,
	)
}

func ProvideDashboardService(storage *Storage, c ports.Cache, metrics *observability.Metrics, logger *zap.Logger) *services.DashboardService {
	return services.NewDashboardService(storage.Todos, storage.Persons, c, metrics, logger)
}

func ProvideRegistrationService(cfg *config.Config, provider ports.IdentityProvider, storage *Storage, dashboard *services.DashboardService, logger *zap.Logger) (*services.RegistrationService, error) {
	return services.NewRegistrationService(provider, storage.Persons, dashboard, cfg.InvitationCodes, logger)
}

// ProvideDispatcher creates the invitation mail handler
func ProvideDispatcher(
	cfg *config.Config,
	mailer ports.Mailer,
	sink *tracing.Sink,
	scheduler *sharing.Scheduler,
	collaborations *services.CollaborationService,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *sharing.Dispatcher {
	return sharing.NewDispatcher(mailer, sink, scheduler, collaborations, sharing.DispatcherConfig{
		ExternalURL:      cfg.ExternalURL,
		FromAddress:      cfg.MailFromAddress,
		ApplicationName:  cfg.ApplicationName,
		AutoConfirm:      cfg.AutoConfirm,
		AutoConfirmDelay: cfg.AutoConfirmDelay,
	}, metrics, logger)
}

// ProvideCloudWatchFlusher returns nil unless CloudWatch metrics are enabled
func ProvideCloudWatchFlusher(cfg *config.Config, awsCfg aws.Config, metrics *observability.Metrics, logger *zap.Logger) *observability.CloudWatchFlusher {
	if !cfg.EnableCloudWatchMetrics {
		return nil
	}
	return observability.NewCloudWatchFlusher(awscloudwatch.NewFromConfig(awsCfg), metrics, cfg.MetricsNamespace(), time.Minute, logger)
}
