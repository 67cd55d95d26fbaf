package delivery

import (
	"errors"
	"net/http"

	authdomain "fxjournal-backend/internal/auth/domain"
	authdto "fxjournal-backend/internal/auth/dto"
	"fxjournal-backend/internal/auth/usecase"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles account, mailbox link and device HTTP requests
type AuthHandler struct {
	authUsecase usecase.AuthUsecase
}

func NewAuthHandler(authUsecase usecase.AuthUsecase) *AuthHandler {
	return &AuthHandler{
		authUsecase: authUsecase,
	}
}

// Register creates an account
// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req authdto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.authUsecase.Register(&req)
	if err != nil {
		if errors.Is(err, usecase.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Login
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req authdto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.authUsecase.Login(&req)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Me returns the authenticated user
// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := c.Get("user")
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, user.(*authdomain.User))
}

// LinkGmail stores OAuth tokens for pull sync
// PUT /api/auth/mailbox/gmail
func (h *AuthHandler) LinkGmail(c *gin.Context) {
	userID := c.GetString("userID")

	var req authdto.LinkGmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.authUsecase.LinkGmail(c.Request.Context(), userID, &req)
	if err != nil {
		h.mailboxError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// LinkIMAP stores IMAP credentials for pull sync
// PUT /api/auth/mailbox/imap
func (h *AuthHandler) LinkIMAP(c *gin.Context) {
	userID := c.GetString("userID")

	var req authdto.LinkIMAPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.authUsecase.LinkIMAP(c.Request.Context(), userID, &req)
	if err != nil {
		h.mailboxError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// UnlinkMailbox
// DELETE /api/auth/mailbox
func (h *AuthHandler) UnlinkMailbox(c *gin.Context) {
	if err := h.authUsecase.UnlinkMailbox(c.GetString("userID")); err != nil {
		h.mailboxError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) mailboxError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrMailboxRejected):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, usecase.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// RegisterFCMToken registers a device for import notifications
// POST /api/fcm/register
func (h *AuthHandler) RegisterFCMToken(c *gin.Context) {
	var req authdto.FCMTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.authUsecase.SaveFCMToken(c.GetString("userID"), &req); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "token registered"})
}

// UnregisterFCMToken
// DELETE /api/fcm/:token
func (h *AuthHandler) UnregisterFCMToken(c *gin.Context) {
	if err := h.authUsecase.DeleteFCMToken(c.GetString("userID"), c.Param("token")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "token removed"})
}
