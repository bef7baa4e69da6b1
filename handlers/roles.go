package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uchkunrakhimow/auth-kit/internal/apperr"
	"github.com/uchkunrakhimow/auth-kit/internal/models"
	"github.com/uchkunrakhimow/auth-kit/internal/users"
	"github.com/uchkunrakhimow/auth-kit/pkg/logger"
	"github.com/uchkunrakhimow/auth-kit/pkg/middleware"
)

type roleRequest struct {
	Role string `json:"role" binding:"required"`
}

// RolesHandler is the admin surface for the user directory.
type RolesHandler struct {
	users *users.Service
}

func NewRolesHandler(u *users.Service) *RolesHandler {
	return &RolesHandler{users: u}
}

// Register mounts the admin routes. adminOnly must chain SessionAuth
// and RequireRole(ADMIN).
func (h *RolesHandler) Register(rg *gin.RouterGroup, adminOnly ...gin.HandlerFunc) {
	g := rg.Group("/roles", adminOnly...)
	g.GET("/users", h.ListUsers)
	g.PATCH("/users/:userId", h.SetRole)
}

// ListUsers returns public projections of every account; password
// digests never leave the repository.
func (h *RolesHandler) ListUsers(c *gin.Context) {
	list, err := h.users.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": "user listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": list})
}

func (h *RolesHandler) SetRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	targetID := c.Param("userId")
	u, err := h.users.UpdateRole(c.Request.Context(), targetID, models.Role(req.Role))
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	logger.Infof("role of user %s set to %s by admin %s", targetID, u.Role, c.GetString(middleware.ContextUserID))
	c.JSON(http.StatusOK, gin.H{"user": u.Public()})
}
