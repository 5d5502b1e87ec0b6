package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"miniapp-games/internal/models"
	"miniapp-games/internal/services"
)

// UserStore keeps Telegram profiles and login sessions. It is satisfied by
// services.RedisService; handlers accept nil and then skip profile data.
type UserStore interface {
	StoreUser(ctx context.Context, user *models.TelegramUser) error
	GetUser(ctx context.Context, userID int64) (*models.TelegramUser, error)
	StoreUserSession(ctx context.Context, userID int64, session *models.UserSession, expiry time.Duration) error
	GetUserSession(ctx context.Context, userID int64, sessionID string) (*models.UserSession, error)
	DeleteUserSession(ctx context.Context, userID int64, sessionID string) error
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, services.ErrInvalidConfig),
		errors.Is(err, services.ErrInvalidBet),
		errors.Is(err, services.ErrUnknownCase),
		errors.Is(err, services.ErrUnknownPackage):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrTaskNotFound),
		errors.Is(err, services.ErrGiftNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidState),
		errors.Is(err, services.ErrNoPendingGift),
		errors.Is(err, services.ErrNoPendingPrize),
		errors.Is(err, services.ErrGiftSold),
		errors.Is(err, services.ErrDuplicatePurchase):
		return http.StatusConflict
	case errors.Is(err, services.ErrBonusCooldown):
		return http.StatusTooManyRequests
	case errors.Is(err, services.ErrPersistence):
		return http.StatusServiceUnavailable
	case errors.Is(err, services.ErrPaymentProvider):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError writes err with the status its kind maps to.
func respondError(c *gin.Context, message string, err error) {
	body := gin.H{
		"error":   message,
		"details": err.Error(),
	}
	var cd *services.CooldownError
	if errors.As(err, &cd) {
		body["hours_left"] = cd.HoursLeft()
	}
	c.JSON(errorStatus(err), body)
}

// playerSession loads the caller's session. When the account cannot be read
// it writes the error response and reports false.
func playerSession(c *gin.Context, engine *services.GameEngine) (*services.Session, bool) {
	session, err := engine.Session(c.Request.Context(), c.GetInt64("user_id"))
	if err != nil {
		respondError(c, "Account unavailable", err)
		return nil, false
	}
	return session, true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request",
		"details": err.Error(),
	})
}
