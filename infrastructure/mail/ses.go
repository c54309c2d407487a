// Package mail contains the ports.Mailer transports.
package mail

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"

	"todo-backend/application/ports"
	pkgerrors "todo-backend/pkg/errors"
)

// SESAPI is the subset of the SES v2 client used by SESMailer
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESMailer sends plain-text mail through Amazon SES
type SESMailer struct {
	client SESAPI
	logger *zap.Logger
}

// NewSESMailer creates an SES mailer
func NewSESMailer(client SESAPI, logger *zap.Logger) *SESMailer {
	return &SESMailer{client: client, logger: logger}
}

// Send delivers msg as a simple text email
func (m *SESMailer) Send(ctx context.Context, msg ports.MailMessage) error {
	out, err := m.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(msg.Body), Charset: aws.String("UTF-8")},
				},
			},
		},
	})
	if err != nil {
		return pkgerrors.NewDeliveryError("ses", err)
	}

	m.logger.Debug("Mail accepted by SES",
		zap.String("to", msg.To),
		zap.String("messageID", aws.ToString(out.MessageId)),
	)
	return nil
}
