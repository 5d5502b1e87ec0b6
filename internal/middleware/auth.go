package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"miniapp-games/internal/models"
	"miniapp-games/internal/services"
)

// RateLimiter is satisfied by services.RedisService.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, userID int64, action string, limit int, window time.Duration) (bool, error)
}

// SessionStore is satisfied by services.RedisService.
type SessionStore interface {
	GetUserSession(ctx context.Context, userID int64, sessionID string) (*models.UserSession, error)
}

// AuthMiddleware accepts a valid token whose login session still exists.
// With a nil sessions store only the token is checked.
func AuthMiddleware(jwtService *services.JWTService, sessions SessionStore, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		var tokenString string

		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format"})
				return
			}
			tokenString = parts[1]
		} else {
			// browsers cannot set headers on websocket upgrades
			tokenString = c.Query("token")
			if tokenString == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
				return
			}
		}

		claims, err := jwtService.ValidateToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		if sessions != nil {
			_, err := sessions.GetUserSession(c.Request.Context(), claims.UserID, claims.SessionID)
			switch {
			case errors.Is(err, services.ErrSessionNotFound):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Session expired or invalid"})
				return
			case err != nil:
				log.WithError(err).WithField("user_id", claims.UserID).Warn("Session lookup failed")
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Session store unavailable"})
				return
			}
		}

		c.Set("user_id", claims.UserID)
		c.Set("session_id", claims.SessionID)

		c.Next()
	}
}

// rateAction maps a request path to its limiter bucket.
func rateAction(path string) (string, int) {
	switch {
	case strings.HasSuffix(path, "/mines/start"), strings.HasSuffix(path, "/crash/bet"), strings.HasSuffix(path, "/cases/open"):
		return "bet", services.DefaultRateLimitBets
	case strings.HasSuffix(path, "/cashout"):
		return "cashout", services.DefaultRateLimitCashout
	case strings.HasSuffix(path, "/mines/reveal"):
		return "reveal", services.DefaultRateLimitReveal
	}
	return "", 0
}

func RateLimitMiddleware(limiter RateLimiter, log logrus.FieldLogger) gin.HandlerFunc {
	const window = time.Minute

	return func(c *gin.Context) {
		userID := c.GetInt64("user_id")
		action, limit := rateAction(c.Request.URL.Path)
		if userID == 0 || action == "" {
			c.Next()
			return
		}

		allowed, err := limiter.CheckRateLimit(c.Request.Context(), userID, action, limit, window)
		if err != nil {
			// a limiter outage must not stop play
			log.WithError(err).WithField("user_id", userID).Warn("Rate limit check failed")
			c.Next()
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": window.Seconds(),
			})
			return
		}

		c.Next()
	}
}
