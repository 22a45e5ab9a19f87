package fcm

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/go-fanout-nosql/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMessenger struct{ mock.Mock }

func (m *mockMessenger) Send(ctx context.Context, message *messaging.Message) (string, error) {
	args := m.Called(ctx, message)
	return args.String(0), args.Error(1)
}

func TestBuildMessage_WebLink(t *testing.T) {
	m := buildMessage("tok", domain.PushMessage{
		Title: "New follower", Body: "Bea started following you.", DeepLink: "https://free.deft.work/profile/b",
	})

	assert.Equal(t, "tok", m.Token)
	assert.Equal(t, "New follower", m.Notification.Title)
	assert.Equal(t, "Bea started following you.", m.Notification.Body)
	assert.Equal(t, "https://free.deft.work/profile/b", m.Data["deep_link"])
	require.NotNil(t, m.Webpush)
	assert.Equal(t, "https://free.deft.work/profile/b", m.Webpush.FCMOptions.Link)
}

func TestBuildMessage_RelativeLinkHasNoWebpush(t *testing.T) {
	m := buildMessage("tok", domain.PushMessage{Title: "t", Body: "b", DeepLink: "profile/b"})

	assert.Nil(t, m.Webpush)
	assert.Equal(t, "profile/b", m.Data["deep_link"])
}

func TestSend(t *testing.T) {
	mm := &mockMessenger{}
	mm.On("Send", mock.Anything, mock.MatchedBy(func(m *messaging.Message) bool {
		return m.Token == "tok"
	})).Return("projects/x/messages/1", nil).Once()
	boom := errors.New("quota exceeded")
	mm.On("Send", mock.Anything, mock.Anything).Return("", boom).Once()

	tr := &Transport{client: mm}
	assert.NoError(t, tr.Send(context.Background(), "tok", domain.PushMessage{Title: "t"}))

	err := tr.Send(context.Background(), "other", domain.PushMessage{Title: "t"})
	assert.True(t, errors.Is(err, boom))
	mm.AssertExpectations(t)
}

func TestSend_PlainErrorIsNotRevocation(t *testing.T) {
	mm := &mockMessenger{}
	mm.On("Send", mock.Anything, mock.Anything).Return("", errors.New("unavailable"))

	err := (&Transport{client: mm}).Send(context.Background(), "tok", domain.PushMessage{Title: "t"})

	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrChannelRevoked))
}
