package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nattw/visionchat/internal/auth"
	"github.com/nattw/visionchat/internal/common"
	"github.com/nattw/visionchat/internal/httpapi/middleware"
	"github.com/nattw/visionchat/internal/models"
)

const tokenTTL = 24 * time.Hour

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "name, email and password required")
		return
	}

	if _, ok, err := h.Local.GetUserByEmail(c.Request.Context(), req.Email); err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "storage error")
		return
	} else if ok {
		common.Fail(c, http.StatusConflict, 10003, "email already registered")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20002, "failed to hash password")
		return
	}

	user := &models.User{
		UID:          uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	if err := h.Local.SaveUser(c.Request.Context(), user); err != nil {
		common.Fail(c, http.StatusInternalServerError, 20003, "failed to save user")
		return
	}

	h.issueToken(c, user)
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login is local-only identity. A stored profile is verified against
// its hash; an unknown email is accepted and a profile created on the
// fly, mirroring the simulated login this replaces.
func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.Email == "" || req.Password == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "email and password required")
		return
	}

	user, ok, err := h.Local.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "storage error")
		return
	}

	if ok {
		if !auth.CheckPassword(user.PasswordHash, req.Password) {
			common.Fail(c, http.StatusUnauthorized, 40102, "invalid credentials")
			return
		}
		h.issueToken(c, user)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20002, "failed to hash password")
		return
	}
	name := req.Email
	if i := strings.IndexByte(name, '@'); i > 0 {
		name = name[:i]
	}
	user = &models.User{
		UID:          uuid.NewString(),
		Name:         name,
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	if err := h.Local.SaveUser(c.Request.Context(), user); err != nil {
		common.Fail(c, http.StatusInternalServerError, 20003, "failed to save user")
		return
	}
	h.issueToken(c, user)
}

func (h *Handler) issueToken(c *gin.Context, user *models.User) {
	token, err := auth.SignJWT(user.UID, user.Name, user.Email, h.Cfg.JWTSecret, tokenTTL)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20004, "failed to sign token")
		return
	}
	common.OK(c, gin.H{
		"uid":   user.UID,
		"name":  user.Name,
		"email": user.Email,
		"token": token,
	})
}

func (h *Handler) Me(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	common.OK(c, gin.H{
		"uid":   uid,
		"name":  c.GetString(middleware.UserNameKey),
		"email": c.GetString(middleware.UserEmailKey),
	})
}
