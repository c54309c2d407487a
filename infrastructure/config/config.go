package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress   string `env:"SERVER_ADDRESS" envDefault:":8080"`
	Environment     string `env:"ENVIRONMENT" envDefault:"development"`
	ApplicationName string `env:"APPLICATION_NAME" envDefault:"todo-app"`
	ExternalURL     string `env:"EXTERNAL_URL"`

	// AWS configuration
	AWSRegion      string `env:"AWS_REGION" envDefault:"eu-central-1"`
	AWSEndpointURL string `env:"AWS_ENDPOINT_URL"`

	// Storage
	StorageBackend   string `env:"STORAGE_BACKEND" envDefault:"memory"`
	DatabaseURL      string `env:"DATABASE_URL"`
	BreadcrumbTable  string `env:"BREADCRUMB_TABLE"`
	ConnectionsTable string `env:"CONNECTIONS_TABLE"`
	RedisURL         string `env:"REDIS_URL"`

	// Messaging
	SharingQueueURL         string `env:"SHARING_QUEUE_URL"`
	SharingQueueConcurrency int    `env:"SHARING_QUEUE_CONCURRENCY" envDefault:"4"`
	EventBusName            string `env:"EVENT_BUS_NAME"`

	// Mail
	MailTransport   string `env:"MAIL_TRANSPORT" envDefault:"log"`
	MailFromAddress string `env:"CONFIRM_EMAIL_FROM_ADDRESS" envDefault:"noreply@todo.local"`
	SMTPHost        string `env:"SMTP_HOST" envDefault:"localhost"`
	SMTPPort        int    `env:"SMTP_PORT" envDefault:"25"`
	SMTPUsername    string `env:"SMTP_USERNAME"`
	SMTPPassword    string `env:"SMTP_PASSWORD"`

	// Collaboration
	AutoConfirm      bool          `env:"AUTO_CONFIRM_COLLABORATIONS" envDefault:"false"`
	AutoConfirmDelay time.Duration `env:"AUTO_CONFIRM_DELAY" envDefault:"2500ms"`
	InvitationCodes  []string      `env:"INVITATION_CODES" envSeparator:","`

	// Identity
	UseCognito        bool   `env:"USE_COGNITO_AS_IDENTITY_PROVIDER" envDefault:"false"`
	CognitoUserPoolID string `env:"COGNITO_USER_POOL_ID"`

	// Authentication
	JWTSigningMethod string `env:"JWT_SIGNING_METHOD" envDefault:"HS256"`
	JWTSecret        string `env:"JWT_SECRET"`
	JWTPublicKey     string `env:"JWT_PUBLIC_KEY"`
	JWTIssuer        string `env:"JWT_ISSUER" envDefault:"todo-backend"`
	JWTAudience      string `env:"JWT_AUDIENCE" envDefault:"todo-app"`

	// Tracing sink
	TraceWorkers          int    `env:"TRACE_WORKERS" envDefault:"2"`
	TraceBuffer           int    `env:"TRACE_BUFFER" envDefault:"1024"`
	TraceUnknownPrincipal string `env:"TRACE_UNKNOWN_PRINCIPAL" envDefault:"label"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Feature flags
	EnableMetrics           bool     `env:"ENABLE_METRICS" envDefault:"true"`
	EnableCloudWatchMetrics bool     `env:"ENABLE_CLOUDWATCH_METRICS" envDefault:"false"`
	EnableTracing           bool     `env:"ENABLE_TRACING" envDefault:"false"`
	OTLPEndpoint            string   `env:"OTLP_ENDPOINT" envDefault:"localhost:4317"`
	EnableCORS              bool     `env:"ENABLE_CORS" envDefault:"true"`
	CORSOrigins             []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	// WebSocket configuration
	WebSocketEndpoint string `env:"WEBSOCKET_ENDPOINT"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ExternalURL == "" {
		host := c.ServerAddress
		if strings.HasPrefix(host, ":") {
			host = "localhost" + host
		}
		c.ExternalURL = "http://" + host
	}
	c.ExternalURL = strings.TrimRight(c.ExternalURL, "/")

	if c.BreadcrumbTable == "" {
		c.BreadcrumbTable = fmt.Sprintf("%s-%s-breadcrumb", c.Environment, c.ApplicationName)
	}
	if c.ConnectionsTable == "" {
		c.ConnectionsTable = fmt.Sprintf("%s-%s-connections", c.Environment, c.ApplicationName)
	}
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres storage backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	switch c.MailTransport {
	case "ses", "smtp", "log":
	default:
		return fmt.Errorf("unknown MAIL_TRANSPORT %q", c.MailTransport)
	}

	switch c.TraceUnknownPrincipal {
	case "label", "drop":
	default:
		return fmt.Errorf("TRACE_UNKNOWN_PRINCIPAL must be label or drop, got %q", c.TraceUnknownPrincipal)
	}

	switch c.JWTSigningMethod {
	case "HS256":
		if c.JWTSecret == "" && c.IsProduction() {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
	case "RS256":
		if c.JWTPublicKey == "" {
			return fmt.Errorf("JWT_PUBLIC_KEY is required for RS256")
		}
	default:
		return fmt.Errorf("unsupported JWT_SIGNING_METHOD %q", c.JWTSigningMethod)
	}

	if c.UseCognito && c.CognitoUserPoolID == "" {
		return fmt.Errorf("COGNITO_USER_POOL_ID is required when Cognito is the identity provider")
	}
	if c.SharingQueueConcurrency < 1 {
		return fmt.Errorf("SHARING_QUEUE_CONCURRENCY must be positive")
	}
	if c.AutoConfirmDelay < 0 {
		return fmt.Errorf("AUTO_CONFIRM_DELAY must not be negative")
	}

	if c.IsProduction() {
		if c.SharingQueueURL == "" {
			return fmt.Errorf("SHARING_QUEUE_URL is required in production")
		}
		if c.StorageBackend == "memory" {
			return fmt.Errorf("the memory storage backend is not allowed in production")
		}
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// MetricsNamespace is the CloudWatch namespace for custom metrics
func (c *Config) MetricsNamespace() string {
	return c.ApplicationName + "/" + c.Environment
}
