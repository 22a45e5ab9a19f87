package sns

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/go-fanout-nosql/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, in)
	return &sns.PublishOutput{}, args.Error(0)
}

var followMsg = domain.PushMessage{Title: "New follower", Body: "Bea started following you.", DeepLink: "profile/b"}

func TestBuildPayload(t *testing.T) {
	raw, err := buildPayload(followMsg)
	require.NoError(t, err)

	var outer map[string]string
	require.NoError(t, json.Unmarshal([]byte(raw), &outer))
	assert.Equal(t, "Bea started following you.", outer["default"])

	var gcm gcmPayload
	require.NoError(t, json.Unmarshal([]byte(outer["GCM"]), &gcm))
	assert.Equal(t, "New follower", gcm.Notification.Title)
	assert.Equal(t, "profile/b", gcm.Data["deep_link"])

	var apns apnsPayload
	require.NoError(t, json.Unmarshal([]byte(outer["APNS"]), &apns))
	assert.Equal(t, "Bea started following you.", apns.APS.Alert.Body)
	assert.Equal(t, outer["APNS"], outer["APNS_SANDBOX"])
}

func TestSend_TargetsEndpoint(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		return *in.TargetArn == "arn:aws:sns:us-east-1:1:endpoint/GCM/app/x" &&
			*in.MessageStructure == "json" &&
			in.PhoneNumber == nil
	})).Return(nil)

	err := (&Sender{client: pub}).Send(context.Background(), "arn:aws:sns:us-east-1:1:endpoint/GCM/app/x", followMsg)

	require.NoError(t, err)
	pub.AssertExpectations(t)
}

func TestSend_Error(t *testing.T) {
	boom := errors.New("EndpointDisabled")
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(boom)

	err := (&Sender{client: pub}).Send(context.Background(), "arn", followMsg)

	assert.True(t, errors.Is(err, boom))
	assert.False(t, errors.Is(err, domain.ErrChannelRevoked))
}

func TestSend_DisabledEndpointIsRevoked(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(&types.EndpointDisabledException{Message: aws.String("Endpoint is disabled")})

	err := (&Sender{client: pub}).Send(context.Background(), "arn", followMsg)

	assert.True(t, errors.Is(err, domain.ErrChannelRevoked))
}
