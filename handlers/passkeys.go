package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uchkunrakhimow/auth-kit/internal/apperr"
	"github.com/uchkunrakhimow/auth-kit/internal/passkeys"
	"github.com/uchkunrakhimow/auth-kit/pkg/middleware"
)

type enrollRequest struct {
	CredentialID string `json:"credentialId" binding:"required"`
	PublicKey    string `json:"publicKey" binding:"required"`
	DeviceName   string `json:"deviceName"`
}

// PasskeysHandler manages a user's enrolled credentials. Attestation
// and assertion verification happen in the WebAuthn layer in front of
// this service; these routes only store and list verified material.
type PasskeysHandler struct {
	passkeys *passkeys.Service
}

func NewPasskeysHandler(p *passkeys.Service) *PasskeysHandler {
	return &PasskeysHandler{passkeys: p}
}

func (h *PasskeysHandler) Register(rg *gin.RouterGroup, authn gin.HandlerFunc) {
	g := rg.Group("/passkeys", authn)
	g.POST("", h.Enroll)
	g.GET("", h.List)
	g.DELETE("/:passkeyId", h.Remove)
}

func (h *PasskeysHandler) Enroll(c *gin.Context) {
	var req enrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	pk, err := h.passkeys.Enroll(c.Request.Context(), passkeys.EnrollParams{
		UserID:       c.GetString(middleware.ContextUserID),
		CredentialID: req.CredentialID,
		PublicKey:    req.PublicKey,
		DeviceName:   req.DeviceName,
	})
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"passkey": pk})
}

func (h *PasskeysHandler) List(c *gin.Context) {
	list, err := h.passkeys.ListByUser(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": "passkey listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"passkeys": list})
}

// Remove deletes one of the caller's credentials. Removing someone
// else's credential is forbidden even when its id is known.
func (h *PasskeysHandler) Remove(c *gin.Context) {
	err := h.passkeys.Remove(c.Request.Context(), c.Param("passkeyId"), c.GetString(middleware.ContextUserID))
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "passkey removed"})
}
