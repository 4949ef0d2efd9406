package remotestore

import (
	"context"

	"gorm.io/gorm"

	"github.com/nattw/visionchat/internal/chat"
)

func (s *Store) CreateJob(ctx context.Context, job *chat.Job) error {
	return s.db.WithContext(ctx).Create(job).Error
}

func (s *Store) GetJob(ctx context.Context, id string) (*chat.Job, error) {
	var j chat.Job
	if err := s.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, chat.ErrJobNotFound
		}
		return nil, err
	}
	return &j, nil
}

// MarkJobRunning transitions a queued job to running. A job that
// already left the queued state, for example a redelivery of a settled
// job, reports ErrJobSettled so workers can skip it.
func (s *Store) MarkJobRunning(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&chat.Job{}).
		Where("id = ? AND status = ?", id, chat.JobQueued).
		Update("status", chat.JobRunning)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return chat.ErrJobSettled
	}
	return nil
}

func (s *Store) MarkJobSucceeded(ctx context.Context, id, messageID string) error {
	return s.db.WithContext(ctx).Model(&chat.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            chat.JobSucceeded,
			"result_message_id": messageID,
			"error":             nil,
		}).Error
}

func (s *Store) MarkJobFailed(ctx context.Context, id, errMsg string) error {
	return s.db.WithContext(ctx).Model(&chat.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            chat.JobFailed,
			"error":             errMsg,
			"result_message_id": nil,
		}).Error
}
