// Package identity creates sign-in identities for registered people.
package identity

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"go.uber.org/zap"

	pkgerrors "todo-backend/pkg/errors"
)

// CognitoAPI is the subset of the Cognito client used by CognitoProvider
type CognitoAPI interface {
	AdminCreateUser(ctx context.Context, params *cip.AdminCreateUserInput, optFns ...func(*cip.Options)) (*cip.AdminCreateUserOutput, error)
}

// CognitoProvider creates users in a Cognito user pool. Cognito mails the
// temporary password itself.
type CognitoProvider struct {
	client     CognitoAPI
	userPoolID string
	logger     *zap.Logger
}

func NewCognitoProvider(client CognitoAPI, userPoolID string, logger *zap.Logger) *CognitoProvider {
	return &CognitoProvider{client: client, userPoolID: userPoolID, logger: logger}
}

// CreateUser registers username with a verified email attribute
func (p *CognitoProvider) CreateUser(ctx context.Context, username, email string) error {
	_, err := p.client.AdminCreateUser(ctx, &cip.AdminCreateUserInput{
		UserPoolId: aws.String(p.userPoolID),
		Username:   aws.String(username),
		UserAttributes: []types.AttributeType{
			{Name: aws.String("email"), Value: aws.String(email)},
			{Name: aws.String("email_verified"), Value: aws.String("true")},
			{Name: aws.String("preferred_username"), Value: aws.String(username)},
		},
		DesiredDeliveryMediums: []types.DeliveryMediumType{types.DeliveryMediumTypeEmail},
	})
	if err != nil {
		var exists *types.UsernameExistsException
		if errors.As(err, &exists) {
			return pkgerrors.NewConflictError("username already taken")
		}
		var invalid *types.InvalidParameterException
		if errors.As(err, &invalid) {
			return pkgerrors.NewValidationError(aws.ToString(invalid.Message))
		}
		return pkgerrors.NewExternalError("cognito", err)
	}

	p.logger.Info("Created Cognito user", zap.String("username", username))
	return nil
}
