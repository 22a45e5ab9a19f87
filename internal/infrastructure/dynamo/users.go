package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-fanout-nosql/internal/domain"
)

// UserRepo provides typed DynamoDB operations for the users table.
// The same table backs the per-user notification feed (see notifications.go).
type UserRepo struct {
	client    API
	tableName string
	retention int
	now       func() time.Time
}

func NewUserRepo(client API, tableName string, retention int) *UserRepo {
	return &UserRepo{
		client:    client,
		tableName: tableName,
		retention: retention,
		now:       time.Now,
	}
}

func (r *UserRepo) Put(ctx context.Context, u *domain.User) error {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// Get loads the profile part of a user: identity, names and push channel.
// The notification list is left out; use ListNotifications for it.
func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(r.tableName),
		Key:                  strKey(fieldUserID, userID),
		ProjectionExpression: aws.String("#id, #dn, #em, #pc"),
		ExpressionAttributeNames: map[string]string{
			"#id": fieldUserID,
			"#dn": fieldDisplayName,
			"#em": fieldEmail,
			"#pc": fieldPushChannel,
		},
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Update applies a partial SET to an existing user.
func (r *UserRepo) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	updates[fieldUpdatedAt] = r.now().UTC()
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	ue.Names["#pk"] = fieldUserID
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldUserID, userID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if _, ok := conditionFailed(err); ok {
		return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	return err
}

// RevokePushChannel removes the channel only while it still equals channel.
// A failed condition means the user re-registered or is gone; both are fine.
func (r *UserRepo) RevokePushChannel(ctx context.Context, userID, channel string) error {
	now, err := attributevalue.Marshal(r.now().UTC())
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey(fieldUserID, userID),
		UpdateExpression:    aws.String("REMOVE #pc SET #u = :now"),
		ConditionExpression: aws.String("#pc = :pc"),
		ExpressionAttributeNames: map[string]string{
			"#pc": fieldPushChannel,
			"#u":  fieldUpdatedAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": now,
			":pc":  &types.AttributeValueMemberS{Value: channel},
		},
	})
	if _, ok := conditionFailed(err); ok {
		return nil
	}
	return err
}

func (r *UserRepo) SetPushChannel(ctx context.Context, userID, token string) error {
	return r.Update(ctx, userID, map[string]interface{}{fieldPushChannel: token})
}

// ClearPushChannel removes the channel so later fan-outs skip push delivery.
func (r *UserRepo) ClearPushChannel(ctx context.Context, userID string) error {
	now, err := attributevalue.Marshal(r.now().UTC())
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey(fieldUserID, userID),
		UpdateExpression:    aws.String("REMOVE #pc SET #u = :now"),
		ConditionExpression: aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{
			"#pc": fieldPushChannel,
			"#u":  fieldUpdatedAt,
			"#pk": fieldUserID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{":now": now},
	})
	if _, ok := conditionFailed(err); ok {
		return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	return err
}
