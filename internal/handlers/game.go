package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"miniapp-games/internal/models"
	"miniapp-games/internal/services"
)

type GameHandler struct {
	gameEngine *services.GameEngine
	log        logrus.FieldLogger
}

func NewGameHandler(gameEngine *services.GameEngine, log logrus.FieldLogger) *GameHandler {
	return &GameHandler{
		gameEngine: gameEngine,
		log:        log,
	}
}

func (h *GameHandler) session(c *gin.Context) (*services.Session, bool) {
	return playerSession(c, h.gameEngine)
}

func (h *GameHandler) StartMines(c *gin.Context) {
	var req models.MinesStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(c, err)
		return
	}

	cfg := models.MinesConfig{GridSize: req.GridSize, MineCount: req.MineCount}
	session, ok := h.session(c)
	if !ok {
		return
	}
	round, err := session.Mines.Start(c.Request.Context(), cfg, req.Bet, req.Currency)
	if err != nil {
		respondError(c, "Failed to start round", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"round":   round,
	})
}

// RevealMine answers a stale reveal with the current round and
// ignored set instead of an error.
func (h *GameHandler) RevealMine(c *gin.Context) {
	var req models.MinesRevealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	session, ok := h.session(c)
	if !ok {
		return
	}
	round, err := session.Mines.Reveal(c.Request.Context(), req.Cell)
	if err != nil {
		respondError(c, "Failed to reveal cell", err)
		return
	}

	ignored := round == nil
	if ignored {
		round = session.Mines.State()
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"ignored": ignored,
		"round":   round,
	})
}

func (h *GameHandler) CashoutMines(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	result, err := session.Mines.CashOut(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to cash out", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"ignored": result == nil,
		"result":  result,
		"round":   session.Mines.State(),
	})
}

func (h *GameHandler) GetMinesState(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"round":   session.Mines.State(),
	})
}

func (h *GameHandler) GetCrashState(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"round":   session.Crash.State(),
	})
}

func (h *GameHandler) PlaceCrashBet(c *gin.Context) {
	var req models.CrashBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(c, err)
		return
	}

	session, ok := h.session(c)
	if !ok {
		return
	}
	round, err := session.Crash.StartRound(c.Request.Context(), req.Bet, req.Currency)
	if err != nil {
		respondError(c, "Failed to place bet", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"round":   round,
	})
}

func (h *GameHandler) CashoutCrash(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	result, err := session.Crash.CashOut(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to cash out", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"ignored": result == nil,
		"result":  result,
		"round":   session.Crash.State(),
	})
}

func (h *GameHandler) GetBalance(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"balances": session.Ledger.Balances(),
		"degraded": session.Ledger.Degraded(),
	})
}
