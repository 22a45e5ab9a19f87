package sns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/go-fanout-nosql/internal/config"
	"github.com/go-fanout-nosql/internal/domain"
)

type publisher interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Sender delivers push messages through SNS mobile push. The push channel is
// a platform endpoint ARN created when the device registered.
type Sender struct {
	client publisher
}

func NewSender(cfg *config.Config) (*Sender, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.SNSRegion),
	)
	if err != nil {
		return nil, err
	}
	var opts []func(*sns.Options)
	if cfg.AWSEndpointURL != "" {
		opts = append(opts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return &Sender{client: sns.NewFromConfig(awsCfg, opts...)}, nil
}

func (s *Sender) Send(ctx context.Context, endpointARN string, msg domain.PushMessage) error {
	payload, err := buildPayload(msg)
	if err != nil {
		return err
	}
	_, err = s.client.Publish(ctx, &sns.PublishInput{
		TargetArn:        aws.String(endpointARN),
		Message:          aws.String(payload),
		MessageStructure: aws.String("json"),
	})
	var disabled *types.EndpointDisabledException
	if errors.As(err, &disabled) {
		return fmt.Errorf("sns endpoint disabled: %w: %w", domain.ErrChannelRevoked, err)
	}
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}

type gcmPayload struct {
	Notification struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	} `json:"notification"`
	Data map[string]string `json:"data"`
}

type apnsPayload struct {
	APS struct {
		Alert struct {
			Title string `json:"title"`
			Body  string `json:"body"`
		} `json:"alert"`
	} `json:"aps"`
	DeepLink string `json:"deep_link"`
}

// buildPayload renders the per-platform JSON message SNS expects when
// MessageStructure is "json": every value is itself a JSON string.
func buildPayload(msg domain.PushMessage) (string, error) {
	var gcm gcmPayload
	gcm.Notification.Title = msg.Title
	gcm.Notification.Body = msg.Body
	gcm.Data = map[string]string{"deep_link": msg.DeepLink}

	var apns apnsPayload
	apns.APS.Alert.Title = msg.Title
	apns.APS.Alert.Body = msg.Body
	apns.DeepLink = msg.DeepLink

	gcmJSON, err := json.Marshal(gcm)
	if err != nil {
		return "", err
	}
	apnsJSON, err := json.Marshal(apns)
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(map[string]string{
		"default":      msg.Body,
		"GCM":          string(gcmJSON),
		"APNS":         string(apnsJSON),
		"APNS_SANDBOX": string(apnsJSON),
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}
