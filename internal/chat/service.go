package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nattw/visionchat/internal/ai"
	"github.com/nattw/visionchat/internal/imagehost"
	"github.com/nattw/visionchat/internal/quota"
)

const (
	welcomeTemplate  = "Hello %s! I'm your AI assistant. Ask me anything, or send an image and I'll analyze it for you."
	imageOnlyContent = "Attached image"
)

// JobStore is the remote-only persistence behind async reply jobs.
type JobStore interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	MarkJobRunning(ctx context.Context, id string) error
	MarkJobSucceeded(ctx context.Context, id, messageID string) error
	MarkJobFailed(ctx context.Context, id, errMsg string) error
}

// Image is an attachment captured from the request before upload.
type Image struct {
	Name        string
	Data        []byte
	ContentType string
}

type SendResult struct {
	UserMessageID      string
	AssistantMessageID string
	Reply              string
	ImageURL           string
	EphemeralImage     bool
	Used               int
	Limit              int
}

// Service coordinates one send: rate check, optional image upload,
// user-message persistence, the AI call, assistant-message persistence
// and the usage bump.
type Service struct {
	store        *Store
	providers    *ai.Registry
	providerName string
	uploader     *imagehost.Uploader
	counter      *quota.Counter
	jobs         JobStore

	now func() time.Time
}

func NewService(store *Store, providers *ai.Registry, providerName string, uploader *imagehost.Uploader, counter *quota.Counter, jobs JobStore) *Service {
	return &Service{
		store:        store,
		providers:    providers,
		providerName: providerName,
		uploader:     uploader,
		counter:      counter,
		jobs:         jobs,
		now:          time.Now,
	}
}

func (s *Service) Store() *Store { return s.store }

// InitSession creates a session through the facade and seeds it with a
// welcome message. A failed welcome append is logged, not fatal.
func (s *Service) InitSession(ctx context.Context, ownerID, ownerName, title string) (string, Mode, error) {
	id, mode, err := s.store.InitSession(ctx, ownerID, title)
	if err != nil {
		return "", mode, err
	}

	welcome := &Message{
		OwnerID: ownerID,
		Role:    RoleAssistant,
		Content: fmt.Sprintf(welcomeTemplate, ownerName),
	}
	if _, err := s.store.Append(ctx, ownerID, id, welcome); err != nil {
		slog.Warn("welcome message append failed", "session_id", id, "error", err)
	}
	return id, mode, nil
}

// Send runs the full send flow. The rate check happens before anything
// else; an exhausted allowance never contacts the AI API. Failures
// after the user message persisted are surfaced without rolling back
// writes that already succeeded.
func (s *Service) Send(ctx context.Context, ownerID, sessionID, text string, img *Image) (*SendResult, error) {
	text = strings.TrimSpace(text)
	if text == "" && img == nil {
		return nil, ErrEmptyMessage
	}

	day := quota.DayKey(s.now())
	allowed, used, err := s.counter.Allow(ctx, ownerID, day)
	if err != nil {
		return nil, fmt.Errorf("check usage: %w", err)
	}
	if !allowed {
		return nil, ErrRateLimited
	}

	var imageURL string
	var ephemeral bool
	if img != nil {
		imageURL, ephemeral = s.uploader.Upload(ctx, img.Name, img.Data, img.ContentType)
	}

	content := text
	if content == "" {
		content = imageOnlyContent
	}
	userMsg := &Message{
		OwnerID:  ownerID,
		Role:     RoleUser,
		Content:  content,
		ImageURL: imageURL,
	}
	userID, err := s.store.Append(ctx, ownerID, sessionID, userMsg)
	if err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	provider, err := s.providers.Get(ctx, s.providerName)
	if err != nil {
		return nil, err
	}
	reply, err := provider.Describe(ctx, ai.Query{
		Prompt:   text,
		OwnerID:  ownerID,
		ImageURL: imageURL,
	})
	if err != nil {
		return nil, err
	}

	aiMsg := &Message{
		OwnerID: ownerID,
		Role:    RoleAssistant,
		Content: reply,
	}
	assistantID, err := s.store.Append(ctx, ownerID, sessionID, aiMsg)
	if err != nil {
		return nil, fmt.Errorf("persist assistant message: %w", err)
	}

	// The send already succeeded; a lost counter write only gives the
	// user a free request.
	newUsed, err := s.counter.Increment(ctx, ownerID, day)
	if err != nil {
		slog.Warn("usage increment failed", "owner_id", ownerID, "error", err)
		newUsed = used + 1
	}

	return &SendResult{
		UserMessageID:      userID,
		AssistantMessageID: assistantID,
		Reply:              reply,
		ImageURL:           imageURL,
		EphemeralImage:     ephemeral,
		Used:               newUsed,
		Limit:              s.counter.Limit(),
	}, nil
}

// Usage reports the owner's consumption for the current calendar day.
func (s *Service) Usage(ctx context.Context, ownerID string) (used, limit int, day string, err error) {
	day = quota.DayKey(s.now())
	used, err = s.counter.Count(ctx, ownerID, day)
	return used, s.counter.Limit(), day, err
}

func (s *Service) Sessions(ctx context.Context, ownerID string) ([]Session, error) {
	return s.store.Sessions(ctx, ownerID)
}

func (s *Service) Messages(ctx context.Context, ownerID, sessionID string) ([]Message, error) {
	return s.store.Messages(ctx, ownerID, sessionID)
}
