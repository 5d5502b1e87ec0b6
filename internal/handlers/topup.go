package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"miniapp-games/internal/models"
	"miniapp-games/internal/services"
)

// InvoiceIssuer creates Stars invoice links. It is satisfied by *bot.Bot.
type InvoiceIssuer interface {
	CreateInvoiceLink(userID, stars int64, promo string) (services.Invoice, error)
}

// TopUpHandler lets the WebApp buy gold without leaving the game: the
// client opens the returned link with Telegram.WebApp.openInvoice.
type TopUpHandler struct {
	invoices InvoiceIssuer
	log      logrus.FieldLogger
}

func NewTopUpHandler(invoices InvoiceIssuer, log logrus.FieldLogger) *TopUpHandler {
	return &TopUpHandler{
		invoices: invoices,
		log:      log,
	}
}

// CreateInvoice prices the requested package on the server. Coins sent by
// the client are never trusted.
func (h *TopUpHandler) CreateInvoice(c *gin.Context) {
	var req models.TopUpInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	inv, err := h.invoices.CreateInvoiceLink(c.GetInt64("user_id"), req.Stars, req.Promo)
	if err != nil {
		respondError(c, "Failed to create invoice", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"invoice_link": inv.Link,
		"coins":        inv.Coins,
		"stars":        inv.Stars,
		"promo":        inv.Promo,
		"bonus_pct":    inv.BonusPct,
	})
}
