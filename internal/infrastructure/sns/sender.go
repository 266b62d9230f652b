package sns

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/go-api-verification/internal/config"
	"github.com/go-api-verification/internal/domain"
	"github.com/go-api-verification/internal/infrastructure/awsconf"
)

type publisher interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Relay hands verification emails to the backend email function by
// publishing the payload to the topic it subscribes to.
type Relay struct {
	client   publisher
	topicARN string
}

func NewClient(ctx context.Context, cfg *config.Config) (*sns.Client, error) {
	awsCfg, err := awsconf.Load(ctx, cfg, cfg.SNSRegion)
	if err != nil {
		return nil, err
	}
	return sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		o.BaseEndpoint = awsconf.Endpoint(cfg)
	}), nil
}

func NewRelay(client publisher, topicARN string) *Relay {
	return &Relay{client: client, topicARN: topicARN}
}

func (r *Relay) Name() string { return domain.ChannelRelayB }

func (r *Relay) Deliver(ctx context.Context, p domain.DeliveryPayload) error {
	if r.client == nil || r.topicARN == "" {
		return fmt.Errorf("relay topic not configured: %w", domain.ErrChannelMisconfigured)
	}
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode relay payload: %w", err)
	}
	_, err = r.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(r.topicARN),
		Message:  aws.String(string(body)),
		Subject:  aws.String("verification-email"),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"kind": {DataType: aws.String("String"), StringValue: aws.String("email_verification")},
		},
	})
	if err != nil {
		return fmt.Errorf("publish verification email: %w", err)
	}
	return nil
}
