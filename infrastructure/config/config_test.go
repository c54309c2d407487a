package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("APPLICATION_NAME", "todo-app")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, "http://localhost:8080", cfg.ExternalURL)
	assert.Equal(t, "test-todo-app-breadcrumb", cfg.BreadcrumbTable)
	assert.Equal(t, "test-todo-app-connections", cfg.ConnectionsTable)
	assert.Equal(t, 2500*time.Millisecond, cfg.AutoConfirmDelay)
	assert.Equal(t, "label", cfg.TraceUnknownPrincipal)
	assert.Equal(t, "todo-app/test", cfg.MetricsNamespace())
	assert.False(t, cfg.AutoConfirm)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("EXTERNAL_URL", "https://todo.example.com/")
	t.Setenv("BREADCRUMB_TABLE", "crumbs")
	t.Setenv("INVITATION_CODES", "alpha,beta")
	t.Setenv("AUTO_CONFIRM_COLLABORATIONS", "true")
	t.Setenv("AUTO_CONFIRM_DELAY", "1s")
	t.Setenv("TRACE_UNKNOWN_PRINCIPAL", "drop")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, "https://todo.example.com", cfg.ExternalURL)
	assert.Equal(t, "crumbs", cfg.BreadcrumbTable)
	assert.Equal(t, []string{"alpha", "beta"}, cfg.InvitationCodes)
	assert.True(t, cfg.AutoConfirm)
	assert.Equal(t, time.Second, cfg.AutoConfirmDelay)
	assert.Equal(t, "drop", cfg.TraceUnknownPrincipal)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"postgres without url", map[string]string{"STORAGE_BACKEND": "postgres"}},
		{"unknown storage", map[string]string{"STORAGE_BACKEND": "mongo"}},
		{"unknown mail transport", map[string]string{"MAIL_TRANSPORT": "pigeon"}},
		{"bad unknown principal policy", map[string]string{"TRACE_UNKNOWN_PRINCIPAL": "ignore"}},
		{"rs256 without key", map[string]string{"JWT_SIGNING_METHOD": "RS256"}},
		{"cognito without pool", map[string]string{"USE_COGNITO_AS_IDENTITY_PROVIDER": "true"}},
		{"production without secret", map[string]string{"ENVIRONMENT": "production", "STORAGE_BACKEND": "postgres", "DATABASE_URL": "postgres://x"}},
		{"production on memory", map[string]string{"ENVIRONMENT": "production", "JWT_SECRET": "s", "SHARING_QUEUE_URL": "q"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig()

			assert.Error(t, err)
		})
	}
}
