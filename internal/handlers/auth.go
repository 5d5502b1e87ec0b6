package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"miniapp-games/internal/models"
	"miniapp-games/internal/services"
)

// initDataMaxAge bounds how old a Telegram launch payload may be.
const initDataMaxAge = 24 * time.Hour

type AuthHandler struct {
	users      UserStore
	jwtService *services.JWTService
	botToken   string
	tokenTTL   time.Duration
	log        logrus.FieldLogger
}

func NewAuthHandler(users UserStore, jwtService *services.JWTService, botToken string, tokenTTL time.Duration, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{
		users:      users,
		jwtService: jwtService,
		botToken:   botToken,
		tokenTTL:   tokenTTL,
		log:        log,
	}
}

// Authenticate exchanges signed WebApp initData for a session token.
func (h *AuthHandler) Authenticate(c *gin.Context) {
	var req models.TelegramAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := services.VerifyInitData(req.InitData, h.botToken, initDataMaxAge)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "Invalid init data",
			"details": err.Error(),
		})
		return
	}

	token, sessionID, err := h.jwtService.GenerateToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	if h.users != nil {
		ctx := c.Request.Context()
		now := time.Now()
		session := &models.UserSession{
			SessionID:    sessionID,
			TelegramUser: user,
			CreatedAt:    now,
			LastAccessed: now,
		}
		if err := h.users.StoreUser(ctx, user); err != nil {
			h.log.WithError(err).WithField("user_id", user.ID).Warn("Failed to store user profile")
		}
		if err := h.users.StoreUserSession(ctx, user.ID, session, h.tokenTTL); err != nil {
			h.log.WithError(err).WithField("user_id", user.ID).Error("Failed to store login session")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to start session"})
			return
		}
	}

	h.log.WithField("user_id", user.ID).Info("User authenticated")
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"token":      token,
		"expires_in": int64(h.tokenTTL.Seconds()),
		"user":       user,
	})
}
