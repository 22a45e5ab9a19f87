package dynamo

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-fanout-nosql/internal/domain"
)

const (
	// markReadAttempts bounds re-reads when a concurrent trim shifts list indexes.
	markReadAttempts = 3
	// markAllChunk keeps each update under the 4KB expression limit.
	markAllChunk = 50
)

// AppendNotification adds entry to the end of the recipient's feed in a single
// UpdateItem. When the entry carries a SourceEventID the same request records
// the id in the event_ids set and refuses to append it twice.
func (r *UserRepo) AppendNotification(ctx context.Context, recipientID string, entry domain.NotificationEntry) error {
	entry.CreatedAt = entry.CreatedAt.UTC()
	entryAV, err := attributevalue.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	now, err := attributevalue.Marshal(r.now().UTC())
	if err != nil {
		return err
	}

	update := "SET #n = list_append(if_not_exists(#n, :empty), :entry), #u = :now"
	cond := "attribute_exists(#pk)"
	names := map[string]string{
		"#n":  fieldNotifications,
		"#u":  fieldUpdatedAt,
		"#pk": fieldUserID,
	}
	values := map[string]types.AttributeValue{
		":entry": &types.AttributeValueMemberL{Value: []types.AttributeValue{entryAV}},
		":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
		":now":   now,
	}
	if entry.SourceEventID != "" {
		update += " ADD #e :eids"
		cond += " AND NOT contains(#e, :eid)"
		names["#e"] = fieldEventIDs
		values[":eids"] = &types.AttributeValueMemberSS{Value: []string{entry.SourceEventID}}
		values[":eid"] = &types.AttributeValueMemberS{Value: entry.SourceEventID}
	}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(r.tableName),
		Key:                                 strKey(fieldUserID, recipientID),
		UpdateExpression:                    aws.String(update),
		ConditionExpression:                 aws.String(cond),
		ExpressionAttributeNames:            names,
		ExpressionAttributeValues:           values,
		ReturnValues:                        types.ReturnValueUpdatedNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if old, ok := conditionFailed(err); ok {
		if len(old) == 0 {
			return fmt.Errorf("user %s: %w", recipientID, domain.ErrNotFound)
		}
		return fmt.Errorf("event %s for %s: %w", entry.SourceEventID, recipientID, domain.ErrDuplicateEvent)
	}
	if err != nil {
		return err
	}

	if l, ok := out.Attributes[fieldNotifications].(*types.AttributeValueMemberL); ok && r.retention > 0 {
		if excess := len(l.Value) - r.retention; excess > 0 {
			r.trim(ctx, recipientID, l, excess)
		}
	}
	return nil
}

// trim drops the oldest entries from the head of the list. Each removal is
// guarded on the head's created_at so that two concurrent trimmers never
// remove the same slot twice. Failures are logged: the append already succeeded.
func (r *UserRepo) trim(ctx context.Context, userID string, list *types.AttributeValueMemberL, excess int) {
	for i := 0; i < excess; i++ {
		head := listAt(list, i)
		if head == nil {
			return
		}
		update := "REMOVE #n[0]"
		names := map[string]string{"#n": fieldNotifications, "#ca": fieldCreatedAt}
		values := map[string]types.AttributeValue{":ca": head[fieldCreatedAt]}
		if eid, ok := head[fieldSourceEventID].(*types.AttributeValueMemberS); ok && eid.Value != "" {
			update += " DELETE #e :eids"
			names["#e"] = fieldEventIDs
			values[":eids"] = &types.AttributeValueMemberSS{Value: []string{eid.Value}}
		}
		_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 aws.String(r.tableName),
			Key:                       strKey(fieldUserID, userID),
			UpdateExpression:          aws.String(update),
			ConditionExpression:       aws.String("#n[0].#ca = :ca"),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		})
		if _, ok := conditionFailed(err); ok {
			// Another writer trimmed first.
			return
		}
		if err != nil {
			slog.Warn("notification trim failed", "user_id", userID, "err", err)
			return
		}
	}
}

// feed reads the raw notification list of a user with a strongly consistent read.
func (r *UserRepo) feed(ctx context.Context, userID string) ([]domain.NotificationEntry, *types.AttributeValueMemberL, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      strKey(fieldUserID, userID),
		ProjectionExpression:     aws.String("#pk, #n"),
		ExpressionAttributeNames: map[string]string{"#pk": fieldUserID, "#n": fieldNotifications},
		ConsistentRead:           aws.Bool(true),
	})
	if err != nil {
		return nil, nil, err
	}
	if out.Item == nil {
		return nil, nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	raw, ok := out.Item[fieldNotifications].(*types.AttributeValueMemberL)
	if !ok {
		return nil, &types.AttributeValueMemberL{}, nil
	}
	var entries []domain.NotificationEntry
	if err := attributevalue.Unmarshal(raw, &entries); err != nil {
		return nil, nil, fmt.Errorf("unmarshal notifications: %w", err)
	}
	return entries, raw, nil
}

// ListNotifications returns the feed newest first. Order is decided by
// created_at at read time, not by append order.
func (r *UserRepo) ListNotifications(ctx context.Context, userID string) ([]domain.NotificationEntry, error) {
	entries, _, err := r.feed(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

func (r *UserRepo) UnreadCount(ctx context.Context, userID string) (int, error) {
	entries, _, err := r.feed(ctx, userID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if !e.Read {
			n++
		}
	}
	return n, nil
}

// MarkNotificationRead flips read on the entry whose created_at equals
// createdAt. It reports whether such an entry exists; an already-read entry
// counts as found and is not written again.
func (r *UserRepo) MarkNotificationRead(ctx context.Context, userID string, createdAt time.Time) (bool, error) {
	for attempt := 0; attempt < markReadAttempts; attempt++ {
		entries, raw, err := r.feed(ctx, userID)
		if err != nil {
			return false, err
		}
		idx := -1
		for i := range entries {
			if entries[i].CreatedAt.Equal(createdAt) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return false, nil
		}
		if entries[idx].Read {
			return true, nil
		}

		err = r.setRead(ctx, userID, raw, []int{idx})
		if _, ok := conditionFailed(err); ok {
			continue
		}
		if err != nil {
			return false, err
		}
		return true, nil
	}
	return false, fmt.Errorf("mark read for %s: feed kept shifting: %w", userID, domain.ErrConflict)
}

// MarkAllNotificationsRead flips every unread entry and returns how many changed.
// Entries that moved under a concurrent trim are skipped for this call.
func (r *UserRepo) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	entries, raw, err := r.feed(ctx, userID)
	if err != nil {
		return 0, err
	}
	var unread []int
	for i := range entries {
		if !entries[i].Read {
			unread = append(unread, i)
		}
	}
	updated := 0
	for start := 0; start < len(unread); start += markAllChunk {
		end := start + markAllChunk
		if end > len(unread) {
			end = len(unread)
		}
		err := r.setRead(ctx, userID, raw, unread[start:end])
		if _, ok := conditionFailed(err); ok {
			continue
		}
		if err != nil {
			return updated, err
		}
		updated += end - start
	}
	return updated, nil
}

// setRead sets read=true on the given list positions, each guarded on the
// created_at value observed in raw.
func (r *UserRepo) setRead(ctx context.Context, userID string, raw *types.AttributeValueMemberL, idxs []int) error {
	sets := make([]string, 0, len(idxs))
	conds := make([]string, 0, len(idxs))
	values := map[string]types.AttributeValue{
		":t": &types.AttributeValueMemberBOOL{Value: true},
	}
	for k, i := range idxs {
		entry := listAt(raw, i)
		if entry == nil {
			return fmt.Errorf("notification %d of %s: %w", i, userID, domain.ErrNotFound)
		}
		ph := fmt.Sprintf(":ca%d", k)
		values[ph] = entry[fieldCreatedAt]
		sets = append(sets, fmt.Sprintf("#n[%d].#r = :t", i))
		conds = append(conds, fmt.Sprintf("#n[%d].#ca = %s", i, ph))
	}
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey(fieldUserID, userID),
		UpdateExpression:    aws.String("SET " + strings.Join(sets, ", ")),
		ConditionExpression: aws.String(strings.Join(conds, " AND ")),
		ExpressionAttributeNames: map[string]string{
			"#n":  fieldNotifications,
			"#r":  fieldRead,
			"#ca": fieldCreatedAt,
		},
		ExpressionAttributeValues: values,
	})
	return err
}
