package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"miniapp-games/internal/models"
	"miniapp-games/internal/services"
)

// RewardsHandler serves gift drops, the inventory and prize cases.
type RewardsHandler struct {
	gameEngine *services.GameEngine
	log        logrus.FieldLogger
}

func NewRewardsHandler(gameEngine *services.GameEngine, log logrus.FieldLogger) *RewardsHandler {
	return &RewardsHandler{
		gameEngine: gameEngine,
		log:        log,
	}
}

func (h *RewardsHandler) session(c *gin.Context) (*services.Session, bool) {
	return playerSession(c, h.gameEngine)
}

func (h *RewardsHandler) GetPendingDrop(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"drop":    session.Rewards.PendingDrop(),
	})
}

func (h *RewardsHandler) KeepDrop(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	gift, err := session.Rewards.KeepDrop(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to keep gift", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"gift":    gift,
	})
}

func (h *RewardsHandler) SellDrop(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	price, err := session.Rewards.SellDrop(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to sell gift", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"price":    price,
		"balances": session.Ledger.Balances(),
	})
}

func (h *RewardsHandler) DismissDrop(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	if err := session.Rewards.DismissDrop(c.Param("id")); err != nil {
		respondError(c, "Failed to dismiss gift", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *RewardsHandler) GetInventory(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"inventory": session.Rewards.Inventory(),
	})
}

func (h *RewardsHandler) SellGift(c *gin.Context) {
	giftID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, err)
		return
	}

	session, ok := h.session(c)
	if !ok {
		return
	}
	price, err := session.Rewards.SellGift(c.Request.Context(), giftID)
	if err != nil {
		respondError(c, "Failed to sell gift", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"price":    price,
		"balances": session.Ledger.Balances(),
	})
}

func (h *RewardsHandler) ListCases(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"cases":   session.Cases.Catalog(),
		"pending": session.Cases.Pending(),
	})
}

func (h *RewardsHandler) OpenCase(c *gin.Context) {
	var req models.CaseOpenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	session, ok := h.session(c)
	if !ok {
		return
	}
	prize, err := session.Cases.Open(c.Request.Context(), req.CaseID)
	if err != nil {
		respondError(c, "Failed to open case", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"prize":    prize,
		"balances": session.Ledger.Balances(),
	})
}

func (h *RewardsHandler) ClaimCasePrize(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	balances, err := session.Cases.Claim(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to claim prize", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"balances": balances,
	})
}

func (h *RewardsHandler) DismissCasePrize(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	if err := session.Cases.Dismiss(c.Param("id")); err != nil {
		respondError(c, "Failed to dismiss prize", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
