package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/nattw/visionchat/internal/chat"
	"github.com/nattw/visionchat/internal/common"
	"github.com/nattw/visionchat/internal/config"
	"github.com/nattw/visionchat/internal/httpapi/middleware"
	"github.com/nattw/visionchat/internal/imagehost"
	"github.com/nattw/visionchat/internal/store/localstore"
	"github.com/nattw/visionchat/internal/store/rabbitmq"
)

type Handler struct {
	Cfg     config.Config
	ChatSvc *chat.Service
	Local   *localstore.Store
	Blobs   *imagehost.BlobStore
	// Rabbit is nil when the broker is unavailable; the async send
	// path rejects in that case.
	Rabbit *rabbitmq.Publisher
}

func NewHandler(cfg config.Config, svc *chat.Service, local *localstore.Store, blobs *imagehost.BlobStore, rabbit *rabbitmq.Publisher) *Handler {
	return &Handler{
		Cfg:     cfg,
		ChatSvc: svc,
		Local:   local,
		Blobs:   blobs,
		Rabbit:  rabbit,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func userIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
