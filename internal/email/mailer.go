// Package email sends topic notifications through Amazon SES.
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"topicpush/internal/model"
)

const charset = "UTF-8"

// ErrNotConfigured means the region, sender or recipient is missing and
// nothing was sent.
var ErrNotConfigured = errors.New("email transport not configured")

// SESAPI is the subset of the SES v2 client used by Mailer.
type SESAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Mailer sends HTML emails from a verified sender address.
type Mailer struct {
	api    SESAPI
	region string
	sender string
	msg    MessageConfig
	log    *slog.Logger
}

// New creates a Mailer for region using the default AWS credential chain.
// With an empty region no client is built and every send is a no-op failure.
func New(ctx context.Context, region, sender string, msg MessageConfig, log *slog.Logger) (*Mailer, error) {
	m := &Mailer{region: region, sender: sender, msg: msg, log: log}
	if region == "" {
		return m, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	m.api = sesv2.NewFromConfig(cfg)
	return m, nil
}

// NewWithAPI creates a Mailer with a custom SES client (useful for testing).
func NewWithAPI(api SESAPI, region, sender string, msg MessageConfig, log *slog.Logger) *Mailer {
	return &Mailer{api: api, region: region, sender: sender, msg: msg, log: log}
}

// Send delivers one HTML email.
func (m *Mailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if m.region == "" || m.sender == "" || to == "" || m.api == nil {
		return ErrNotConfigured
	}

	out, err := m.api.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.sender),
		Destination:      &types.Destination{ToAddresses: []string{to}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String(charset)},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(htmlBody), Charset: aws.String(charset)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send email: %w", err)
	}

	m.log.Debug("email sent", "to", to, "message_id", aws.ToString(out.MessageId))
	return nil
}

// Notify renders the notification for item and sends it to user.
func (m *Mailer) Notify(ctx context.Context, user model.User, item model.Item) error {
	subject, body, err := Render(m.msg, user, item)
	if err != nil {
		return err
	}
	return m.Send(ctx, user.Email, subject, body)
}
