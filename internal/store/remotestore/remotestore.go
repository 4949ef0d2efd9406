// Package remotestore is the primary backend: session and message rows
// in MySQL, with a Redis pub/sub change feed driving push subscriptions.
package remotestore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nattw/visionchat/internal/chat"
	"github.com/nattw/visionchat/internal/common"
)

// RecentSessionLimit caps session listings to the most recently
// updated sessions, delivered newest first.
const RecentSessionLimit = 50

type Store struct {
	db  *gorm.DB
	rdb *redis.Client
}

// Open connects to MySQL, migrates the schema and pings Redis. Any
// failure here is what flips the facade into local-only mode.
func Open(ctx context.Context, dsn string, rdb *redis.Client) (*Store, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open remote store: %w", err)
	}
	if rdb != nil {
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping change feed: %w", err)
		}
	}
	return New(db, rdb)
}

// New wraps an already opened gorm DB; rdb may be nil, which disables
// the change feed (writes still succeed, subscriptions fail).
func New(db *gorm.DB, rdb *redis.Client) (*Store, error) {
	if err := db.AutoMigrate(&chat.Session{}, &chat.Message{}, &chat.Job{}); err != nil {
		return nil, fmt.Errorf("migrate remote store: %w", err)
	}
	return &Store{db: db, rdb: rdb}, nil
}

func sessionChannel(ownerID string) string { return "chat:" + ownerID }

func messageChannel(ownerID, sessionID string) string {
	return "chat:" + ownerID + ":" + sessionID
}

// CreateSession writes session metadata with a server-assigned id and
// an empty message collection.
func (s *Store) CreateSession(ctx context.Context, ownerID, title string) (*chat.Session, error) {
	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	sess := &chat.Session{
		ID:        id,
		OwnerID:   ownerID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		return nil, err
	}
	s.publish(ctx, sessionChannel(ownerID))
	return sess, nil
}

// AppendMessage inserts the message row and then writes the session's
// updated_at as a separate update. The two writes are sequential, not
// transactional: a crash between them leaves updated_at stale but the
// message itself intact.
func (s *Store) AppendMessage(ctx context.Context, ownerID, sessionID string, m *chat.Message) (string, error) {
	var sess chat.Session
	if err := s.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", sessionID, ownerID).
		First(&sess).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", chat.ErrSessionNotFound
		}
		return "", err
	}

	id, err := common.NewULID()
	if err != nil {
		return "", err
	}
	m.ID = id
	m.SessionID = sessionID
	m.OwnerID = ownerID
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return "", err
	}

	if err := s.db.WithContext(ctx).Model(&chat.Session{}).
		Where("id = ?", sessionID).
		Update("updated_at", time.Now()).Error; err != nil {
		return "", err
	}

	s.publish(ctx, messageChannel(ownerID, sessionID))
	s.publish(ctx, sessionChannel(ownerID))
	return m.ID, nil
}

// Messages returns the session's messages ordered by created_at
// ascending (id as tiebreak, ULIDs sort by creation time).
func (s *Store) Messages(ctx context.Context, ownerID, sessionID string) ([]chat.Message, error) {
	var msgs []chat.Message
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND session_id = ?", ownerID, sessionID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// Sessions returns the owner's most recently updated sessions, newest
// first, capped at RecentSessionLimit.
func (s *Store) Sessions(ctx context.Context, ownerID string) ([]chat.Session, error) {
	var sessions []chat.Session
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("updated_at DESC").
		Limit(RecentSessionLimit).
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// StreamMessages subscribes to the session's change feed. fn receives
// the full ordered message set once at subscribe time and again on
// every remote change, a snapshot rather than a diff. The returned func
// detaches the listener; never calling it leaks the subscription.
func (s *Store) StreamMessages(ctx context.Context, ownerID, sessionID string, fn func([]chat.Message)) (func(), error) {
	if s.rdb == nil {
		return nil, fmt.Errorf("change feed not configured")
	}

	sub := s.rdb.Subscribe(ctx, messageChannel(ownerID, sessionID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe messages: %w", err)
	}

	deliver := func() {
		msgs, err := s.Messages(ctx, ownerID, sessionID)
		if err != nil {
			slog.Warn("message snapshot fetch failed",
				"owner_id", ownerID, "session_id", sessionID, "error", err)
			return
		}
		fn(msgs)
	}

	deliver()
	go func() {
		for range sub.Channel() {
			deliver()
		}
	}()

	return func() { _ = sub.Close() }, nil
}

// StreamSessions subscribes to the owner's session feed; each delivery
// is the recent-session listing, newest first.
func (s *Store) StreamSessions(ctx context.Context, ownerID string, fn func([]chat.Session)) (func(), error) {
	if s.rdb == nil {
		return nil, fmt.Errorf("change feed not configured")
	}

	sub := s.rdb.Subscribe(ctx, sessionChannel(ownerID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe sessions: %w", err)
	}

	deliver := func() {
		sessions, err := s.Sessions(ctx, ownerID)
		if err != nil {
			slog.Warn("session snapshot fetch failed", "owner_id", ownerID, "error", err)
			return
		}
		fn(sessions)
	}

	deliver()
	go func() {
		for range sub.Channel() {
			deliver()
		}
	}()

	return func() { _ = sub.Close() }, nil
}

// publish notifies subscribers; the feed is best effort, a failed
// publish only costs listeners one snapshot tick.
func (s *Store) publish(ctx context.Context, channel string) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Publish(ctx, channel, "changed").Err(); err != nil {
		slog.Warn("change feed publish failed", "channel", channel, "error", err)
	}
}
