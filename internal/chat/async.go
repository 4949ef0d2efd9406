package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nattw/visionchat/internal/ai"
	"github.com/nattw/visionchat/internal/common"
	"github.com/nattw/visionchat/internal/quota"
)

// CreateReplyJob persists the user message and records a queued job for
// the worker. The async path needs the remote backend; a degraded
// store rejects it outright.
func (s *Service) CreateReplyJob(ctx context.Context, ownerID, sessionID, text, imageURL string) (*Job, error) {
	if s.jobs == nil || s.store.SessionMode(sessionID) == ModeLocal {
		return nil, ErrLocalMode
	}

	day := quota.DayKey(s.now())
	allowed, _, err := s.counter.Allow(ctx, ownerID, day)
	if err != nil {
		return nil, fmt.Errorf("check usage: %w", err)
	}
	if !allowed {
		return nil, ErrRateLimited
	}

	content := text
	if content == "" {
		if imageURL == "" {
			return nil, ErrEmptyMessage
		}
		content = imageOnlyContent
	}
	userMsg := &Message{
		OwnerID:  ownerID,
		Role:     RoleUser,
		Content:  content,
		ImageURL: imageURL,
	}
	if _, err := s.store.Append(ctx, ownerID, sessionID, userMsg); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	job := &Job{
		ID:        id,
		OwnerID:   ownerID,
		SessionID: sessionID,
		Prompt:    text,
		ImageURL:  imageURL,
		Status:    JobQueued,
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

// GetJob returns a job only to its owner; foreign jobs read as missing.
func (s *Service) GetJob(ctx context.Context, ownerID, jobID string) (*Job, error) {
	if s.jobs == nil {
		return nil, ErrLocalMode
	}
	j, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.OwnerID != ownerID {
		return nil, ErrJobNotFound
	}
	return j, nil
}

// ProcessJob is the worker side: generate the assistant reply for a
// queued job, persist it and settle the job row. Queued jobs reserve
// no allowance, so the rate check runs again here; a burst of
// creations cannot overdraw the day.
func (s *Service) ProcessJob(ctx context.Context, jobID string) error {
	if s.jobs == nil {
		return ErrLocalMode
	}

	if err := s.jobs.MarkJobRunning(ctx, jobID); err != nil {
		if errors.Is(err, ErrJobSettled) {
			slog.Info("job already settled, skipping", "job_id", jobID)
			return nil
		}
		return fmt.Errorf("mark running: %w", err)
	}
	j, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	day := quota.DayKey(s.now())
	allowed, _, err := s.counter.Allow(ctx, j.OwnerID, day)
	if err != nil {
		_ = s.jobs.MarkJobFailed(ctx, jobID, err.Error())
		return fmt.Errorf("check usage: %w", err)
	}
	if !allowed {
		_ = s.jobs.MarkJobFailed(ctx, jobID, ErrRateLimited.Error())
		return ErrRateLimited
	}

	provider, err := s.providers.Get(ctx, s.providerName)
	if err != nil {
		_ = s.jobs.MarkJobFailed(ctx, jobID, err.Error())
		return err
	}
	reply, err := provider.Describe(ctx, ai.Query{
		Prompt:   j.Prompt,
		OwnerID:  j.OwnerID,
		ImageURL: j.ImageURL,
	})
	if err != nil {
		_ = s.jobs.MarkJobFailed(ctx, jobID, err.Error())
		return err
	}

	aiMsg := &Message{
		OwnerID: j.OwnerID,
		Role:    RoleAssistant,
		Content: reply,
	}
	msgID, err := s.store.Append(ctx, j.OwnerID, j.SessionID, aiMsg)
	if err != nil {
		_ = s.jobs.MarkJobFailed(ctx, jobID, err.Error())
		return fmt.Errorf("persist assistant message: %w", err)
	}

	if err := s.jobs.MarkJobSucceeded(ctx, jobID, msgID); err != nil {
		return fmt.Errorf("mark succeeded: %w", err)
	}

	if _, err := s.counter.Increment(ctx, j.OwnerID, day); err != nil {
		slog.Warn("usage increment failed", "owner_id", j.OwnerID, "error", err)
	}
	return nil
}
