package sns

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SMSSender sends SMS messages.
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type publisher interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type sender struct {
	client publisher
}

// NewSender returns an SMSSender publishing transactional SMS through SNS.
func NewSender(awsCfg aws.Config) SMSSender {
	return &sender{client: sns.NewFromConfig(awsCfg)}
}

func (s *sender) SendSMS(ctx context.Context, to, message string) error {
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
		},
	})
	return err
}

type logSender struct{}

// NewLogSender returns an SMSSender that only logs. It is used when SMS
// delivery is disabled.
func NewLogSender() SMSSender { return logSender{} }

func (logSender) SendSMS(_ context.Context, to, message string) error {
	slog.Info("sms (disabled)", "to", to, "message", message)
	return nil
}
