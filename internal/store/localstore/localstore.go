// Package localstore is the on-device fallback: a single-file sqlite
// key-value table holding each user's chat sessions as one serialized
// list, plus the usage counters and the local user profiles.
package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/nattw/visionchat/internal/chat"
	"github.com/nattw/visionchat/internal/common"
)

type kvRecord struct {
	Key       string `gorm:"primaryKey;size:191"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (kvRecord) TableName() string { return "kv_records" }

type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the key-value file at path.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	if err := db.AutoMigrate(&kvRecord{}); err != nil {
		return nil, fmt.Errorf("migrate local store: %w", err)
	}
	return &Store{db: db}, nil
}

// Get returns the value for key and whether it was present.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var rec kvRecord
	err := s.db.WithContext(ctx).First(&rec, "key = ?", key).Error
	if err == gorm.ErrRecordNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return rec.Value, true, nil
}

// Set upserts key to value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	rec := kvRecord{Key: key, Value: value, UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rec).Error
}

func sessionsKey(ownerID string) string { return "chat_sessions_" + ownerID }

func newID(prefix string) (string, error) {
	id, err := common.NewULID()
	if err != nil {
		return "", err
	}
	return prefix + "_" + id, nil
}

// CreateSession appends a new empty session to the owner's serialized
// list and rewrites the whole list.
func (s *Store) CreateSession(ctx context.Context, ownerID, title string) (string, error) {
	if title == "" {
		title = chat.DefaultTitle
	}
	id, err := newID("session")
	if err != nil {
		return "", err
	}

	sessions, err := s.GetSessions(ctx, ownerID)
	if err != nil {
		return "", err
	}

	now := time.Now()
	sessions = append(sessions, chat.Session{
		ID:        id,
		OwnerID:   ownerID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []chat.Message{},
	})

	if err := s.writeSessions(ctx, ownerID, sessions); err != nil {
		return "", err
	}
	return id, nil
}

// AppendMessage reads the owner's whole session list, locates the
// session by id and rewrites the list with the message appended.
// A missing session id creates a minimal session on the fly instead of
// failing; that leniency tolerates id mismatches between backends.
// O(n) in the owner's total message count, accepted at this scale.
func (s *Store) AppendMessage(ctx context.Context, ownerID, sessionID string, m *chat.Message) (string, error) {
	if m.ID == "" {
		id, err := newID("msg")
		if err != nil {
			return "", err
		}
		m.ID = id
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	m.SessionID = sessionID
	m.OwnerID = ownerID

	sessions, err := s.GetSessions(ctx, ownerID)
	if err != nil {
		return "", err
	}

	now := time.Now()
	found := false
	for i := range sessions {
		if sessions[i].ID == sessionID {
			sessions[i].Messages = append(sessions[i].Messages, *m)
			sessions[i].UpdatedAt = now
			found = true
			break
		}
	}
	if !found {
		sessions = append(sessions, chat.Session{
			ID:        sessionID,
			OwnerID:   ownerID,
			Title:     chat.DefaultTitle,
			CreatedAt: now,
			UpdatedAt: now,
			Messages:  []chat.Message{*m},
		})
	}

	if err := s.writeSessions(ctx, ownerID, sessions); err != nil {
		return "", err
	}
	return m.ID, nil
}

// GetSessions returns the owner's sessions in stored (insertion) order.
func (s *Store) GetSessions(ctx context.Context, ownerID string) ([]chat.Session, error) {
	raw, ok, err := s.Get(ctx, sessionsKey(ownerID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var sessions []chat.Session
	if err := json.Unmarshal([]byte(raw), &sessions); err != nil {
		return nil, fmt.Errorf("decode local sessions: %w", err)
	}
	// SessionID is hidden from API payloads, so the serialized form
	// drops it; restore it from the owning session.
	for i := range sessions {
		for j := range sessions[i].Messages {
			sessions[i].Messages[j].SessionID = sessions[i].ID
		}
	}
	return sessions, nil
}

// GetMessages returns a session's messages in insertion order.
func (s *Store) GetMessages(ctx context.Context, ownerID, sessionID string) ([]chat.Message, error) {
	sessions, err := s.GetSessions(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if sessions[i].ID == sessionID {
			return sessions[i].Messages, nil
		}
	}
	return nil, chat.ErrSessionNotFound
}

func (s *Store) writeSessions(ctx context.Context, ownerID string, sessions []chat.Session) error {
	b, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("encode local sessions: %w", err)
	}
	return s.Set(ctx, sessionsKey(ownerID), string(b))
}
