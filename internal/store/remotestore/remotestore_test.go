package remotestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nattw/visionchat/internal/chat"
)

// openTestStore backs the store with sqlite; the change feed stays off
// (nil redis), which the write path tolerates.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "remote.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	s, err := New(db, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestCreateSession(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "u1", "first chat")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sess.ID == "" {
		t.Fatalf("expected server-assigned id")
	}
	if !sess.UpdatedAt.Equal(sess.CreatedAt) {
		t.Fatalf("fresh session should have updated_at == created_at")
	}

	sessions, err := s.Sessions(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != sess.ID || sessions[0].Title != "first chat" {
		t.Fatalf("unexpected listing: %+v", sessions)
	}
}

func TestAppendMessage_OrderAndOwnership(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "u1", "t")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	base := time.Now().Add(-time.Minute)
	for i, c := range []string{"first", "second", "third"} {
		if _, err := s.AppendMessage(ctx, "u1", sess.ID, &chat.Message{
			Role:      chat.RoleUser,
			Content:   c,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("append %q: %v", c, err)
		}
	}

	msgs, err := s.Messages(ctx, "u1", sess.ID)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i, want := range []string{"first", "second", "third"} {
		if msgs[i].Content != want {
			t.Fatalf("position %d: got %q, want %q", i, msgs[i].Content, want)
		}
	}

	// Appending through a foreign owner reads as missing.
	if _, err := s.AppendMessage(ctx, "u2", sess.ID, &chat.Message{
		Role:    chat.RoleUser,
		Content: "intruder",
	}); err != chat.ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestAppendMessage_UnknownSession(t *testing.T) {
	s := openTestStore(t)

	_, err := s.AppendMessage(context.Background(), "u1", "nope", &chat.Message{
		Role:    chat.RoleUser,
		Content: "hello",
	})
	if err != chat.ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestAppendMessage_BumpsUpdatedAt(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "u1", "t")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	if _, err := s.AppendMessage(ctx, "u1", sess.ID, &chat.Message{
		Role:    chat.RoleUser,
		Content: "bump",
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	sessions, err := s.Sessions(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !sessions[0].UpdatedAt.After(sess.UpdatedAt) {
		t.Fatalf("updated_at not bumped: %v <= %v", sessions[0].UpdatedAt, sess.UpdatedAt)
	}
}

func TestSessions_NewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, err := s.CreateSession(ctx, "u1", "a")
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	b, err := s.CreateSession(ctx, "u1", "b")
	if err != nil {
		t.Fatalf("create b: %v", err)
	}

	sessions, err := s.Sessions(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 2 || sessions[0].ID != b.ID {
		t.Fatalf("expected newest first, got %+v", sessions)
	}

	// Appending to the older session moves it to the top.
	time.Sleep(10 * time.Millisecond)
	if _, err := s.AppendMessage(ctx, "u1", a.ID, &chat.Message{
		Role:    chat.RoleUser,
		Content: "revive",
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	sessions, err = s.Sessions(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if sessions[0].ID != a.ID {
		t.Fatalf("expected revived session first, got %+v", sessions)
	}
}

func TestJobs_Lifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.GetJob(ctx, "missing"); err != chat.ErrJobNotFound {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	if err := s.MarkJobRunning(ctx, "missing"); err != chat.ErrJobSettled {
		t.Fatalf("expected ErrJobSettled for unknown job, got %v", err)
	}

	job := &chat.Job{
		ID:        "01TESTJOB0000000000000000A",
		OwnerID:   "u1",
		SessionID: "s1",
		Prompt:    "what is this",
		Status:    chat.JobQueued,
	}
	if err := s.CreateJob(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := s.MarkJobRunning(ctx, job.ID); err != nil {
		t.Fatalf("mark running: %v", err)
	}
	got, err := s.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != chat.JobRunning {
		t.Fatalf("expected running, got %s", got.Status)
	}

	// The queued-only guard rejects a second transition.
	if err := s.MarkJobRunning(ctx, job.ID); err != chat.ErrJobSettled {
		t.Fatalf("expected ErrJobSettled on re-mark, got %v", err)
	}

	if err := s.MarkJobSucceeded(ctx, job.ID, "msg-1"); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}
	got, err = s.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != chat.JobSucceeded {
		t.Fatalf("expected succeeded, got %s", got.Status)
	}
	if got.ResultMessageID == nil || *got.ResultMessageID != "msg-1" {
		t.Fatalf("unexpected result message: %+v", got.ResultMessageID)
	}
	if got.Error != nil {
		t.Fatalf("succeeded job should carry no error")
	}

	// Settled jobs stay settled on redelivery.
	if err := s.MarkJobRunning(ctx, job.ID); err != chat.ErrJobSettled {
		t.Fatalf("expected ErrJobSettled after success, got %v", err)
	}
}

func TestJobs_Failure(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	job := &chat.Job{
		ID:        "01TESTJOB0000000000000000B",
		OwnerID:   "u1",
		SessionID: "s1",
		Prompt:    "doomed",
		Status:    chat.JobQueued,
	}
	if err := s.CreateJob(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.MarkJobFailed(ctx, job.ID, "provider exploded"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	got, err := s.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != chat.JobFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.Error == nil || *got.Error != "provider exploded" {
		t.Fatalf("unexpected error field: %+v", got.Error)
	}
}
