package chat

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation. Messages are immutable once
// created; identity is ID and ordering is CreatedAt ascending.
type Message struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	SessionID string    `gorm:"size:64;index:idx_msg_owner_session,priority:2;not null" json:"-"`
	OwnerID   string    `gorm:"size:64;index:idx_msg_owner_session,priority:1;not null" json:"owner_id"`
	Role      Role      `gorm:"type:varchar(16);not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	ImageURL  string    `gorm:"type:varchar(512)" json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (Message) TableName() string { return "chat_messages" }

// Session is a titled, ordered container of messages owned by exactly
// one user. UpdatedAt is bumped on every message append; the adapters
// own that write, so gorm's automatic touch is disabled.
type Session struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	OwnerID   string    `gorm:"size:64;index;not null" json:"owner_id"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`

	// Embedded only in the local adapter's serialized form.
	Messages []Message `gorm:"-" json:"messages,omitempty"`
}

func (Session) TableName() string { return "chat_sessions" }
