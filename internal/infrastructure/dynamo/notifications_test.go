package dynamo

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-fanout-nosql/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mock ---

type mockAPI struct{ mock.Mock }

func (m *mockAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	if out, _ := args.Get(0).(*dynamodb.GetItemOutput); out != nil {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAPI) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, in)
	return &dynamodb.PutItemOutput{}, args.Error(0)
}

func (m *mockAPI) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, in)
	if out, _ := args.Get(0).(*dynamodb.UpdateItemOutput); out != nil {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- helpers ---

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newRepo(api *mockAPI, retention int) *UserRepo {
	r := NewUserRepo(api, "users", retention)
	r.now = func() time.Time { return t0 }
	return r
}

func entryAt(t *testing.T, at time.Time, read bool, eventID string) types.AttributeValue {
	t.Helper()
	av, err := attributevalue.Marshal(domain.NotificationEntry{
		Kind:          domain.KindFollow,
		ActorID:       "b",
		ActorName:     "Bea",
		CreatedAt:     at,
		Read:          read,
		SourceEventID: eventID,
	})
	require.NoError(t, err)
	return av
}

func feedItem(entries ...types.AttributeValue) *dynamodb.GetItemOutput {
	return &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		fieldUserID:        &types.AttributeValueMemberS{Value: "a"},
		fieldNotifications: &types.AttributeValueMemberL{Value: entries},
	}}
}

func updateExprIs(expr string) interface{} {
	return mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		return in.UpdateExpression != nil && *in.UpdateExpression == expr
	})
}

// --- AppendNotification ---

func TestAppendNotification_ListAppendWithoutEventID(t *testing.T) {
	api := &mockAPI{}
	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		_, hasEID := in.ExpressionAttributeValues[":eid"]
		return *in.UpdateExpression == "SET #n = list_append(if_not_exists(#n, :empty), :entry), #u = :now" &&
			*in.ConditionExpression == "attribute_exists(#pk)" &&
			!hasEID
	})).Return(&dynamodb.UpdateItemOutput{}, nil)

	err := newRepo(api, 10).AppendNotification(context.Background(), "a", domain.NotificationEntry{
		Kind: domain.KindFollow, ActorID: "b", CreatedAt: t0,
	})

	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestAppendNotification_RecordsEventID(t *testing.T) {
	api := &mockAPI{}
	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		ss, ok := in.ExpressionAttributeValues[":eids"].(*types.AttributeValueMemberSS)
		return ok && ss.Value[0] == "evt-1" &&
			*in.ConditionExpression == "attribute_exists(#pk) AND NOT contains(#e, :eid)"
	})).Return(&dynamodb.UpdateItemOutput{}, nil)

	err := newRepo(api, 10).AppendNotification(context.Background(), "a", domain.NotificationEntry{
		Kind: domain.KindFollow, ActorID: "b", CreatedAt: t0, SourceEventID: "evt-1",
	})

	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestAppendNotification_MissingUser(t *testing.T) {
	api := &mockAPI{}
	api.On("UpdateItem", mock.Anything, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{Message: strPtr("failed")})

	err := newRepo(api, 10).AppendNotification(context.Background(), "ghost", domain.NotificationEntry{CreatedAt: t0})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestAppendNotification_DuplicateEvent(t *testing.T) {
	api := &mockAPI{}
	api.On("UpdateItem", mock.Anything, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{
			Message: strPtr("failed"),
			Item:    map[string]types.AttributeValue{fieldUserID: &types.AttributeValueMemberS{Value: "a"}},
		})

	err := newRepo(api, 10).AppendNotification(context.Background(), "a", domain.NotificationEntry{
		CreatedAt: t0, SourceEventID: "evt-1",
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDuplicateEvent))
}

func TestAppendNotification_TrimsOverRetention(t *testing.T) {
	api := &mockAPI{}
	list := &types.AttributeValueMemberL{Value: []types.AttributeValue{
		entryAt(t, t0.Add(-2*time.Minute), false, "old-1"),
		entryAt(t, t0.Add(-time.Minute), false, ""),
		entryAt(t, t0, false, "new"),
	}}
	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		return in.ReturnValues == types.ReturnValueUpdatedNew
	})).Return(&dynamodb.UpdateItemOutput{
		Attributes: map[string]types.AttributeValue{fieldNotifications: list},
	}, nil).Once()
	api.On("UpdateItem", mock.Anything, updateExprIs("REMOVE #n[0] DELETE #e :eids")).Return(&dynamodb.UpdateItemOutput{}, nil).Once()

	err := newRepo(api, 2).AppendNotification(context.Background(), "a", domain.NotificationEntry{
		CreatedAt: t0, SourceEventID: "new",
	})

	require.NoError(t, err)
	api.AssertExpectations(t)
	api.AssertNumberOfCalls(t, "UpdateItem", 2)
}

// --- MarkNotificationRead ---

func TestMarkNotificationRead_FlipsMatchingEntry(t *testing.T) {
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(feedItem(
		entryAt(t, t0.Add(-time.Minute), false, ""),
		entryAt(t, t0, false, ""),
	), nil)
	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		return *in.UpdateExpression == "SET #n[1].#r = :t" && *in.ConditionExpression == "#n[1].#ca = :ca0"
	})).Return(&dynamodb.UpdateItemOutput{}, nil)

	found, err := newRepo(api, 10).MarkNotificationRead(context.Background(), "a", t0)

	require.NoError(t, err)
	assert.True(t, found)
	api.AssertExpectations(t)
}

func TestMarkNotificationRead_AlreadyReadDoesNotWrite(t *testing.T) {
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(feedItem(entryAt(t, t0, true, "")), nil)

	found, err := newRepo(api, 10).MarkNotificationRead(context.Background(), "a", t0)

	require.NoError(t, err)
	assert.True(t, found)
	api.AssertNotCalled(t, "UpdateItem", mock.Anything, mock.Anything)
}

func TestMarkNotificationRead_NoMatch(t *testing.T) {
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(feedItem(entryAt(t, t0, false, "")), nil)

	found, err := newRepo(api, 10).MarkNotificationRead(context.Background(), "a", t0.Add(time.Second))

	require.NoError(t, err)
	assert.False(t, found)
}

func TestMarkNotificationRead_RetriesWhenIndexShifted(t *testing.T) {
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(feedItem(entryAt(t, t0, false, "")), nil)
	api.On("UpdateItem", mock.Anything, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{Message: strPtr("moved")}).Once()
	api.On("UpdateItem", mock.Anything, mock.Anything).Return(&dynamodb.UpdateItemOutput{}, nil).Once()

	found, err := newRepo(api, 10).MarkNotificationRead(context.Background(), "a", t0)

	require.NoError(t, err)
	assert.True(t, found)
	api.AssertNumberOfCalls(t, "GetItem", 2)
}

func TestMarkNotificationRead_MissingUser(t *testing.T) {
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	_, err := newRepo(api, 10).MarkNotificationRead(context.Background(), "ghost", t0)

	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

// --- MarkAllNotificationsRead ---

func TestMarkAllNotificationsRead_ChunksUnreadEntries(t *testing.T) {
	var entries []types.AttributeValue
	for i := 0; i < markAllChunk+2; i++ {
		entries = append(entries, entryAt(t, t0.Add(time.Duration(i)*time.Second), i == 0, ""))
	}
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(feedItem(entries...), nil)
	// Entry 0 is already read: the first chunk starts at index 1.
	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		return strings.HasPrefix(*in.UpdateExpression, "SET #n[1].#r = :t") &&
			strings.Count(*in.UpdateExpression, ".#r = :t") == markAllChunk
	})).Return(&dynamodb.UpdateItemOutput{}, nil).Once()
	api.On("UpdateItem", mock.Anything, updateExprIs(
		"SET #n["+strconv.Itoa(markAllChunk+1)+"].#r = :t",
	)).Return(&dynamodb.UpdateItemOutput{}, nil).Once()

	n, err := newRepo(api, 0).MarkAllNotificationsRead(context.Background(), "a")

	require.NoError(t, err)
	assert.Equal(t, markAllChunk+1, n)
	api.AssertExpectations(t)
}

func TestMarkAllNotificationsRead_SkipsShiftedChunk(t *testing.T) {
	var entries []types.AttributeValue
	for i := 0; i < markAllChunk+3; i++ {
		entries = append(entries, entryAt(t, t0.Add(time.Duration(i)*time.Second), false, ""))
	}
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(feedItem(entries...), nil)
	api.On("UpdateItem", mock.Anything, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{Message: strPtr("moved")}).Once()
	api.On("UpdateItem", mock.Anything, mock.Anything).Return(&dynamodb.UpdateItemOutput{}, nil).Once()

	n, err := newRepo(api, 0).MarkAllNotificationsRead(context.Background(), "a")

	require.NoError(t, err)
	assert.Equal(t, 3, n)
	api.AssertNumberOfCalls(t, "UpdateItem", 2)
}

func TestMarkAllNotificationsRead_NothingUnread(t *testing.T) {
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(feedItem(entryAt(t, t0, true, "")), nil)

	n, err := newRepo(api, 0).MarkAllNotificationsRead(context.Background(), "a")

	require.NoError(t, err)
	assert.Zero(t, n)
	api.AssertNotCalled(t, "UpdateItem", mock.Anything, mock.Anything)
}

func TestMarkAllNotificationsRead_StoreError(t *testing.T) {
	boom := errors.New("throttled")
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(feedItem(entryAt(t, t0, false, "")), nil)
	api.On("UpdateItem", mock.Anything, mock.Anything).Return(nil, boom)

	_, err := newRepo(api, 0).MarkAllNotificationsRead(context.Background(), "a")

	assert.True(t, errors.Is(err, boom))
}

// --- RevokePushChannel ---

func TestRevokePushChannel_GuardsOnCurrentChannel(t *testing.T) {
	api := &mockAPI{}
	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		pc, ok := in.ExpressionAttributeValues[":pc"].(*types.AttributeValueMemberS)
		return ok && pc.Value == "tok" &&
			*in.UpdateExpression == "REMOVE #pc SET #u = :now" &&
			*in.ConditionExpression == "#pc = :pc"
	})).Return(&dynamodb.UpdateItemOutput{}, nil)

	require.NoError(t, newRepo(api, 0).RevokePushChannel(context.Background(), "a", "tok"))
	api.AssertExpectations(t)
}

func TestRevokePushChannel_ReplacedChannelIsNoop(t *testing.T) {
	api := &mockAPI{}
	api.On("UpdateItem", mock.Anything, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{Message: strPtr("changed")})

	assert.NoError(t, newRepo(api, 0).RevokePushChannel(context.Background(), "a", "tok"))
}

// --- List / UnreadCount ---

func TestListNotifications_NewestFirst(t *testing.T) {
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(feedItem(
		entryAt(t, t0.Add(-time.Hour), true, ""),
		entryAt(t, t0, false, ""),
		entryAt(t, t0.Add(-time.Minute), false, ""),
	), nil)
	repo := newRepo(api, 10)

	entries, err := repo.ListNotifications(context.Background(), "a")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, entries[0].CreatedAt.Equal(t0))
	assert.True(t, entries[2].CreatedAt.Equal(t0.Add(-time.Hour)))

	n, err := repo.UnreadCount(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestListNotifications_EmptyFeed(t *testing.T) {
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		fieldUserID: &types.AttributeValueMemberS{Value: "a"},
	}}, nil)

	entries, err := newRepo(api, 10).ListNotifications(context.Background(), "a")

	require.NoError(t, err)
	assert.Empty(t, entries)
}

func strPtr(s string) *string { return &s }
