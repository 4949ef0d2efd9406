package chat

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is an asynchronous assistant-reply request. Jobs only exist in
// the remote store; the local fallback has no queue behind it.
type Job struct {
	ID string `gorm:"primaryKey;size:26" json:"id"` // ULID length

	OwnerID   string `gorm:"size:64;index;not null" json:"owner_id"`
	SessionID string `gorm:"size:64;index;not null" json:"session_id"`

	Prompt   string `gorm:"type:text;not null" json:"prompt"`
	ImageURL string `gorm:"type:varchar(512)" json:"image_url,omitempty"`

	Status JobStatus `gorm:"type:varchar(16);index;not null" json:"status"`

	// Filled when succeeded
	ResultMessageID *string `gorm:"size:64" json:"result_message_id,omitempty"`

	// Filled when failed
	Error *string `gorm:"type:text" json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Job) TableName() string { return "reply_jobs" }
