package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nattw/visionchat/internal/common"
	"github.com/nattw/visionchat/internal/config"
	"github.com/nattw/visionchat/internal/httpapi/handlers"
	"github.com/nattw/visionchat/internal/httpapi/middleware"
)

func NewRouter(cfg config.Config, h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)

	// local-only identity
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)

	// formatter and ephemeral images need no identity
	r.POST("/render", h.Render)
	r.GET("/blobs/:id", h.Blob)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/me", h.Me)
	authGroup.GET("/usage", h.Usage)

	authGroup.POST("/chat/sessions", h.CreateChatSession)
	authGroup.GET("/chat/sessions", h.ListChatSessions)
	authGroup.GET("/chat/sessions/:session_id/messages", h.ListChatMessages)
	authGroup.GET("/chat/sessions/:session_id/stream", h.StreamChatMessages)
	authGroup.POST("/chat/messages", h.SendChatMessage)
	authGroup.POST("/chat/messages/async", h.SendChatMessageAsync)
	authGroup.GET("/chat/jobs/:job_id", h.GetReplyJob)

	return r
}
