package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"todo-backend/application/ports"
	"todo-backend/domain/todo"
	pkgerrors "todo-backend/pkg/errors"
	"todo-backend/pkg/utils"
)

// RegistrationInput is a sign-up request
type RegistrationInput struct {
	Username       string `json:"username" validate:"required,min=3,max=64"`
	Email          string `json:"email" validate:"required,email"`
	InvitationCode string `json:"invitationCode" validate:"required,invitation_code"`
}

// RegistrationService signs up new people who hold a valid invitation code
type RegistrationService struct {
	identity  ports.IdentityProvider
	persons   ports.PersonRepository
	dashboard *DashboardService
	validator *utils.Validator
	logger    *zap.Logger
}

// NewRegistrationService creates a registration service accepting invitationCodes
func NewRegistrationService(identity ports.IdentityProvider, persons ports.PersonRepository, dashboard *DashboardService, invitationCodes []string, logger *zap.Logger) (*RegistrationService, error) {
	codes := make(map[string]struct{}, len(invitationCodes))
	for _, c := range invitationCodes {
		if c = strings.TrimSpace(c); c != "" {
			codes[c] = struct{}{}
		}
	}

	v := utils.NewValidator()
	if err := v.RegisterTag("invitation_code", func(value string) bool {
		_, ok := codes[value]
		return ok
	}); err != nil {
		return nil, fmt.Errorf("register invitation code validator: %w", err)
	}

	return &RegistrationService{
		identity:  identity,
		persons:   persons,
		dashboard: dashboard,
		validator: v,
		logger:    logger,
	}, nil
}

// Register creates the sign-in identity and the person record
func (s *RegistrationService) Register(ctx context.Context, in RegistrationInput) (*todo.Person, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if err := s.validator.Struct(in); err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	if _, err := s.persons.GetByEmail(ctx, in.Email); err == nil {
		return nil, pkgerrors.NewConflictError("a person with this email already exists")
	} else if !pkgerrors.IsNotFound(err) {
		return nil, fmt.Errorf("check existing person: %w", err)
	}

	if err := s.identity.CreateUser(ctx, in.Username, in.Email); err != nil {
		return nil, fmt.Errorf("create identity: %w", err)
	}

	p := &todo.Person{Name: in.Username, Email: in.Email}
	if err := s.persons.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create person: %w", err)
	}
	if s.dashboard != nil {
		s.dashboard.InvalidatePeople(ctx)
	}

	s.logger.Info("Person registered", zap.Int64("person_id", p.ID))
	return p, nil
}
