package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nattw/visionchat/internal/ai"
	"github.com/nattw/visionchat/internal/chat"
	"github.com/nattw/visionchat/internal/common"
	"github.com/nattw/visionchat/internal/httpapi/middleware"
	"github.com/nattw/visionchat/internal/imagehost"
)

type createSessionReq struct {
	Title string `json:"title"`
}

func (h *Handler) CreateChatSession(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req createSessionReq
	_ = c.ShouldBindJSON(&req) // allow empty {}

	name := c.GetString(middleware.UserNameKey)
	sessionID, mode, err := h.ChatSvc.InitSession(c.Request.Context(), uid, name, req.Title)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to create session")
		return
	}

	common.OK(c, gin.H{
		"session_id": sessionID,
		"mode":       mode,
	})
}

func (h *Handler) ListChatSessions(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	sessions, err := h.ChatSvc.Sessions(c.Request.Context(), uid)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list sessions")
		return
	}

	// Session metadata only; embedded local messages stay private.
	out := make([]gin.H, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, gin.H{
			"id":         s.ID,
			"title":      s.Title,
			"owner_id":   s.OwnerID,
			"created_at": s.CreatedAt,
			"updated_at": s.UpdatedAt,
		})
	}
	common.OK(c, gin.H{"sessions": out})
}

func (h *Handler) ListChatMessages(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	sessionID := c.Param("session_id")

	msgs, err := h.ChatSvc.Messages(c.Request.Context(), uid, sessionID)
	if err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "session not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to list messages")
		return
	}
	common.OK(c, gin.H{"messages": msgs})
}

type sendMessageReq struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// SendChatMessage accepts JSON {session_id, message} or a multipart
// form with an optional image file.
func (h *Handler) SendChatMessage(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var sessionID, text string
	var img *chat.Image

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		sessionID = c.PostForm("session_id")
		text = c.PostForm("message")

		file, err := c.FormFile("image")
		if err == nil && file != nil {
			if file.Size > imagehost.MaxImageSize {
				common.Fail(c, http.StatusBadRequest, 10005, "image exceeds 5MB limit")
				return
			}
			f, err := file.Open()
			if err != nil {
				common.Fail(c, http.StatusBadRequest, 10006, "unreadable image")
				return
			}
			data, err := io.ReadAll(io.LimitReader(f, imagehost.MaxImageSize+1))
			_ = f.Close()
			if err != nil || int64(len(data)) > imagehost.MaxImageSize {
				common.Fail(c, http.StatusBadRequest, 10006, "unreadable image")
				return
			}
			img = &chat.Image{
				Name:        file.Filename,
				Data:        data,
				ContentType: file.Header.Get("Content-Type"),
			}
		}
	} else {
		var req sendMessageReq
		if err := c.ShouldBindJSON(&req); err != nil {
			common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
			return
		}
		sessionID = req.SessionID
		text = req.Message
	}

	if sessionID == "" {
		common.Fail(c, http.StatusBadRequest, 10004, "session_id required")
		return
	}

	res, err := h.ChatSvc.Send(c.Request.Context(), uid, sessionID, text, img)
	if err != nil {
		h.failSend(c, err)
		return
	}

	common.OK(c, gin.H{
		"session_id":           sessionID,
		"user_message_id":      res.UserMessageID,
		"assistant_message_id": res.AssistantMessageID,
		"reply":                res.Reply,
		"image_url":            res.ImageURL,
		"image_ephemeral":      res.EphemeralImage,
		"used":                 res.Used,
		"limit":                res.Limit,
	})
}

func (h *Handler) failSend(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrRateLimited):
		common.Fail(c, http.StatusTooManyRequests, 42901,
			fmt.Sprintf("daily limit of %d requests reached, try again tomorrow", h.Cfg.DailyLimit))
	case errors.Is(err, chat.ErrEmptyMessage):
		common.Fail(c, http.StatusBadRequest, 10007, "message text or image required")
	case errors.Is(err, chat.ErrSessionNotFound):
		common.Fail(c, http.StatusNotFound, 40401, "session not found")
	case errors.Is(err, ai.ErrMalformedResponse):
		common.Fail(c, http.StatusBadGateway, 50201, "ai service returned no response")
	case errors.Is(err, chat.ErrLocalMode):
		common.Fail(c, http.StatusServiceUnavailable, 50301, "unavailable in local-only mode")
	default:
		slog.Error("send failed", "error", err)
		common.Fail(c, http.StatusBadGateway, 50202, "failed to send message")
	}
}

// StreamChatMessages serves SSE snapshots of a session's messages: one
// immediately, then one per change pushed by the store's feed. Local
// mode gets the initial snapshot only.
func (h *Handler) StreamChatMessages(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	sessionID := c.Param("session_id")

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // helpful if behind nginx
	c.Status(http.StatusOK)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		fmt.Fprintf(c.Writer, "event: error\ndata: flusher not supported\n\n")
		return
	}

	writeJSON := func(event string, payload any) {
		b, err := json.Marshal(payload)
		if err != nil {
			fmt.Fprintf(c.Writer, "event: error\ndata: {\"message\":\"json marshal failed\"}\n\n")
			flusher.Flush()
			return
		}
		if event != "" {
			fmt.Fprintf(c.Writer, "event: %s\n", event)
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", string(b))
		flusher.Flush()
	}

	ctx := c.Request.Context()

	// Initial snapshot; the push feed re-delivers on each change.
	msgs, err := h.ChatSvc.Messages(ctx, uid, sessionID)
	if err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			writeJSON("error", gin.H{"type": "error", "message": "session not found"})
		} else {
			writeJSON("error", gin.H{"type": "error", "message": err.Error()})
		}
		return
	}
	writeJSON("snapshot", gin.H{"type": "snapshot", "messages": msgs})

	updates := make(chan []chat.Message, 4)
	unsubscribe, err := h.ChatSvc.Store().Subscribe(ctx, uid, sessionID, func(snapshot []chat.Message) {
		select {
		case updates <- snapshot:
		default:
			// Drop when the client is slow; the next change
			// delivers a fresh full snapshot anyway.
		}
	})
	if err != nil {
		writeJSON("error", gin.H{"type": "error", "message": err.Error()})
		return
	}
	defer unsubscribe()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case snapshot := <-updates:
			writeJSON("snapshot", gin.H{"type": "snapshot", "messages": snapshot})

		case <-ticker.C:
			writeJSON("ping", gin.H{"type": "ping", "ts": time.Now().Unix()})

		case <-ctx.Done():
			return
		}
	}
}

type sendAsyncReq struct {
	SessionID string `json:"session_id" binding:"required"`
	Message   string `json:"message"`
	ImageURL  string `json:"image_url"`
}

func (h *Handler) SendChatMessageAsync(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	if h.Rabbit == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50302, "async queue unavailable")
		return
	}

	var req sendAsyncReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	job, err := h.ChatSvc.CreateReplyJob(c.Request.Context(), uid, req.SessionID, req.Message, req.ImageURL)
	if err != nil {
		h.failSend(c, err)
		return
	}

	if err := h.Rabbit.PublishJob(c.Request.Context(), job.ID); err != nil {
		slog.Error("job publish failed", "job_id", job.ID, "error", err)
		common.Fail(c, http.StatusInternalServerError, 50004, "enqueue failed")
		return
	}

	common.OK(c, gin.H{"job_id": job.ID})
}

func (h *Handler) GetReplyJob(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	jobID := c.Param("job_id")
	if jobID == "" {
		common.Fail(c, http.StatusBadRequest, 10008, "job_id required")
		return
	}

	j, err := h.ChatSvc.GetJob(c.Request.Context(), uid, jobID)
	if err != nil {
		if errors.Is(err, chat.ErrJobNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "job not found")
			return
		}
		if errors.Is(err, chat.ErrLocalMode) {
			common.Fail(c, http.StatusServiceUnavailable, 50301, "unavailable in local-only mode")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50005, "internal error")
		return
	}

	common.OK(c, gin.H{"job": j})
}
