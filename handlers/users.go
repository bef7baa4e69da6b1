package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/uchkunrakhimow/auth-kit/internal/apperr"
	"github.com/uchkunrakhimow/auth-kit/internal/storage"
	"github.com/uchkunrakhimow/auth-kit/internal/users"
	"github.com/uchkunrakhimow/auth-kit/pkg/logger"
	"github.com/uchkunrakhimow/auth-kit/pkg/middleware"
)

type profileRequest struct {
	Name *string `json:"name"`
}

// UsersHandler serves the caller's own profile. avatars may be nil
// when no object store is configured; the upload route then 503s.
type UsersHandler struct {
	users   *users.Service
	avatars *storage.AvatarStore
}

func NewUsersHandler(u *users.Service, avatars *storage.AvatarStore) *UsersHandler {
	return &UsersHandler{users: u, avatars: avatars}
}

func (h *UsersHandler) Register(rg *gin.RouterGroup, authn gin.HandlerFunc) {
	g := rg.Group("/users", authn)
	g.GET("/me", h.Me)
	g.PATCH("/me", h.UpdateMe)
	g.PUT("/me/avatar", h.UploadAvatar)
}

func (h *UsersHandler) Me(c *gin.Context) {
	u, err := h.users.FindByID(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": "profile lookup failed"})
		return
	}
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u.Public()})
}

func (h *UsersHandler) UpdateMe(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := h.users.UpdateProfile(c.Request.Context(), c.GetString(middleware.ContextUserID), users.ProfilePatch{Name: req.Name})
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u.Public()})
}

// UploadAvatar stores the picture in the object store and persists the
// resulting URL on the profile.
func (h *UsersHandler) UploadAvatar(c *gin.Context) {
	if h.avatars == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "avatar storage not configured"})
		return
	}
	userID := c.GetString(middleware.ContextUserID)

	file, header, err := c.Request.FormFile("avatar")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "avatar file is required"})
		return
	}
	defer file.Close()

	key, err := h.avatars.Put(c.Request.Context(), userID, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	avatarURL, err := h.avatars.URL(c.Request.Context(), key, 7*24*time.Hour)
	if err != nil {
		logger.Errorf("avatar url for user %s: %v", userID, err)
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": "avatar url failed"})
		return
	}
	u, err := h.users.UpdateProfile(c.Request.Context(), userID, users.ProfilePatch{AvatarURL: &avatarURL})
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u.Public()})
}
