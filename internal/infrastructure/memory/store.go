// Package memory is an in-process implementation of the user, feed and content
// stores. It backs STORE_BACKEND=memory and the application tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-fanout-nosql/internal/domain"
)

type userRecord struct {
	user     domain.User
	feed     []domain.NotificationEntry
	eventIDs map[string]struct{}
}

// Store keeps users and contents in maps behind one mutex.
type Store struct {
	mu        sync.RWMutex
	users     map[string]*userRecord
	contents  map[string]domain.Content
	retention int
	now       func() time.Time
}

func NewStore(retention int) *Store {
	return &Store{
		users:     make(map[string]*userRecord),
		contents:  make(map[string]domain.Content),
		retention: retention,
		now:       time.Now,
	}
}

// Put creates or replaces a user. Notifications carried on u seed the feed.
func (s *Store) Put(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &userRecord{user: *u, eventIDs: make(map[string]struct{})}
	rec.user.Notifications = nil
	rec.user.EventIDs = nil
	rec.feed = append([]domain.NotificationEntry(nil), u.Notifications...)
	for _, id := range u.EventIDs {
		rec.eventIDs[id] = struct{}{}
	}
	s.users[u.UserID] = rec
	return nil
}

// Get returns a copy of the user profile without the feed.
func (s *Store) Get(_ context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	u := rec.user
	u.Followers = append([]string(nil), rec.user.Followers...)
	if rec.user.PushChannel != nil {
		pc := *rec.user.PushChannel
		u.PushChannel = &pc
	}
	return &u, nil
}

func (s *Store) SetPushChannel(_ context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	rec.user.PushChannel = &token
	rec.user.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Store) ClearPushChannel(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	rec.user.PushChannel = nil
	rec.user.UpdatedAt = s.now().UTC()
	return nil
}

// RevokePushChannel clears the channel only while it still equals channel.
// A user who registered a new device in the meantime keeps it.
func (s *Store) RevokePushChannel(_ context.Context, userID, channel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[userID]
	if !ok || rec.user.PushChannel == nil || *rec.user.PushChannel != channel {
		return nil
	}
	rec.user.PushChannel = nil
	rec.user.UpdatedAt = s.now().UTC()
	return nil
}

// AppendNotification mirrors the DynamoDB semantics: the user must exist, a
// repeated SourceEventID is refused and the oldest entries beyond the
// retention limit are dropped.
func (s *Store) AppendNotification(_ context.Context, recipientID string, entry domain.NotificationEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[recipientID]
	if !ok {
		return fmt.Errorf("user %s: %w", recipientID, domain.ErrNotFound)
	}
	if entry.SourceEventID != "" {
		if _, seen := rec.eventIDs[entry.SourceEventID]; seen {
			return fmt.Errorf("event %s for %s: %w", entry.SourceEventID, recipientID, domain.ErrDuplicateEvent)
		}
		rec.eventIDs[entry.SourceEventID] = struct{}{}
	}
	entry.CreatedAt = entry.CreatedAt.UTC()
	rec.feed = append(rec.feed, entry)
	rec.user.UpdatedAt = s.now().UTC()

	if s.retention > 0 {
		for len(rec.feed) > s.retention {
			if eid := rec.feed[0].SourceEventID; eid != "" {
				delete(rec.eventIDs, eid)
			}
			rec.feed = rec.feed[1:]
		}
	}
	return nil
}

func (s *Store) ListNotifications(_ context.Context, userID string) ([]domain.NotificationEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	out := append([]domain.NotificationEntry(nil), rec.feed...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) UnreadCount(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.users[userID]
	if !ok {
		return 0, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	n := 0
	for _, e := range rec.feed {
		if !e.Read {
			n++
		}
	}
	return n, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, userID string, createdAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[userID]
	if !ok {
		return false, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	for i := range rec.feed {
		if rec.feed[i].CreatedAt.Equal(createdAt) {
			rec.feed[i].Read = true
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) MarkAllNotificationsRead(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[userID]
	if !ok {
		return 0, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	n := 0
	for i := range rec.feed {
		if !rec.feed[i].Read {
			rec.feed[i].Read = true
			n++
		}
	}
	return n, nil
}

func (s *Store) PutContent(_ context.Context, c *domain.Content) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contents[c.ContentRef] = *c
	return nil
}

func (s *Store) GetContent(_ context.Context, ref string) (*domain.Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contents[ref]
	if !ok {
		return nil, fmt.Errorf("content %s: %w", ref, domain.ErrNotFound)
	}
	return &c, nil
}

// Contents adapts the store to the content lookup contract (Get by ref).
func (s *Store) Contents() *ContentView {
	return &ContentView{s: s}
}

// ContentView exposes the content half of Store under Get/Put.
type ContentView struct{ s *Store }

func (v *ContentView) Get(ctx context.Context, ref string) (*domain.Content, error) {
	return v.s.GetContent(ctx, ref)
}

func (v *ContentView) Put(ctx context.Context, c *domain.Content) error {
	return v.s.PutContent(ctx, c)
}
