package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"miniapp-games/internal/models"
	"miniapp-games/internal/services"
)

type UserHandler struct {
	users      UserStore
	gameEngine *services.GameEngine
	log        logrus.FieldLogger
}

func NewUserHandler(users UserStore, gameEngine *services.GameEngine, log logrus.FieldLogger) *UserHandler {
	return &UserHandler{
		users:      users,
		gameEngine: gameEngine,
		log:        log,
	}
}

// telegramUser returns the stored identity, or nil when none is known.
func (h *UserHandler) telegramUser(c *gin.Context, userID int64) *models.TelegramUser {
	if h.users == nil {
		return nil
	}
	user, err := h.users.GetUser(c.Request.Context(), userID)
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Debug("Profile lookup failed")
		return nil
	}
	return user
}

func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	userID := c.GetInt64("user_id")

	session, ok := playerSession(c, h.gameEngine)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"profile": session.Profile(h.telegramUser(c, userID)),
	})
}

func (h *UserHandler) Logout(c *gin.Context) {
	userID := c.GetInt64("user_id")
	sessionID := c.GetString("session_id")

	if h.users != nil {
		if err := h.users.DeleteUserSession(c.Request.Context(), userID, sessionID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}

func (h *UserHandler) ClaimDailyBonus(c *gin.Context) {
	session, ok := playerSession(c, h.gameEngine)
	if !ok {
		return
	}

	balances, err := session.ClaimDailyBonus(c.Request.Context())
	if err != nil {
		respondError(c, "Daily bonus not available", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"amount":   h.gameEngine.Tables().DailyBonus.Amount,
		"balances": balances,
	})
}

func (h *UserHandler) GetHistory(c *gin.Context) {
	session, ok := playerSession(c, h.gameEngine)
	if !ok {
		return
	}
	games, crash, cases := session.History()

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"games":   games,
		"crash":   crash,
		"cases":   cases,
	})
}

func (h *UserHandler) GetTasks(c *gin.Context) {
	session, ok := playerSession(c, h.gameEngine)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"tasks":   session.Rewards.Tasks(),
	})
}

func (h *UserHandler) ClaimTask(c *gin.Context) {
	taskID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}

	session, ok := playerSession(c, h.gameEngine)
	if !ok {
		return
	}
	claimed, err := session.Rewards.Claim(c.Request.Context(), taskID)
	if err != nil {
		respondError(c, "Failed to claim task", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"claimed":  claimed,
		"balances": session.Ledger.Balances(),
	})
}
