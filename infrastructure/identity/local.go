package identity

import (
	"context"

	"go.uber.org/zap"
)

// LocalProvider only logs; sign-in is handled by locally issued tokens
type LocalProvider struct {
	logger *zap.Logger
}

func NewLocalProvider(logger *zap.Logger) *LocalProvider {
	return &LocalProvider{logger: logger}
}

func (p *LocalProvider) CreateUser(ctx context.Context, username, email string) error {
	p.logger.Info("Registered local identity", zap.String("username", username), zap.String("email", email))
	return nil
}
