package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"miniapp-games/internal/config"
	"miniapp-games/internal/services"
)

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	userID := msg.From.ID

	switch msg.Command() {
	case "start":
		b.remember(ctx, msg.From)
		b.sendMessage(chatID, "Welcome! Open the games from the menu button. Use /topup to buy gold with Stars.")
	case "balance":
		session, err := b.gameEngine.Session(ctx, userID)
		if err != nil {
			b.log.WithError(err).WithField("user_id", userID).Error("Failed to load balance")
			b.sendMessage(chatID, "Balance is unavailable right now, try again later.")
			return
		}
		balances := session.Ledger.Balances()
		b.sendMessage(chatID, fmt.Sprintf("Silver: %d\nGold: %d", balances.Silver, balances.Gold))
	case "topup":
		b.handleTopUp(chatID, userID, strings.Fields(msg.CommandArguments()))
	case "admin":
		b.handleAdmin(ctx, msg)
	case "cancel":
		b.cancelDraft(chatID)
	default:
		b.sendMessage(chatID, "Unknown command. Try /balance or /topup.")
	}
}

func packageList(table config.TopUpTable) string {
	var sb strings.Builder
	sb.WriteString("Packages:\n")
	for _, pkg := range table.Packages {
		fmt.Fprintf(&sb, "%d Stars - %d gold\n", pkg.Stars, pkg.Coins)
	}
	sb.WriteString("Usage: /topup <stars> [promo]")
	return sb.String()
}

// handleTopUp sends a Stars invoice for the chosen package.
func (b *Bot) handleTopUp(chatID, userID int64, args []string) {
	table := b.gameEngine.Tables().TopUp
	if len(args) == 0 {
		b.sendMessage(chatID, packageList(table))
		return
	}

	stars, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.sendMessage(chatID, packageList(table))
		return
	}
	var promo string
	if len(args) > 1 {
		promo = args[1]
	}

	inv, err := b.prepareInvoice(userID, stars, promo)
	if err != nil {
		b.sendMessage(chatID, packageList(table))
		return
	}
	if promo != "" && inv.Promo == "" {
		b.sendMessage(chatID, "Unknown promo code, invoice issued without bonus.")
	}

	invoice := tgbotapi.NewInvoice(
		chatID,
		inv.Title(),
		inv.Description(),
		inv.Payload,
		"",
		"",
		starsCurrency,
		[]tgbotapi.LabeledPrice{{Label: "Gold", Amount: int(inv.Stars)}},
	)
	invoice.SuggestedTipAmounts = []int{}

	if _, err := b.api.Send(invoice); err != nil {
		b.log.WithError(err).WithField("user_id", userID).Error("Failed to send invoice")
	}
}

// prepareInvoice prices a package and remembers its promo until payment.
func (b *Bot) prepareInvoice(userID, stars int64, promo string) (services.Invoice, error) {
	inv, err := services.PrepareInvoice(b.gameEngine.Tables().TopUp, userID, stars, promo)
	if err != nil {
		return inv, err
	}
	if inv.Promo != "" {
		b.mu.Lock()
		b.promos[inv.Payload] = inv.Promo
		b.mu.Unlock()
	}
	return inv, nil
}

// CreateInvoiceLink prices a package for userID and asks Telegram for a
// link the WebApp can open with openInvoice.
func (b *Bot) CreateInvoiceLink(userID, stars int64, promo string) (services.Invoice, error) {
	inv, err := b.prepareInvoice(userID, stars, promo)
	if err != nil {
		return inv, err
	}

	params := tgbotapi.Params{
		"title":       inv.Title(),
		"description": inv.Description(),
		"payload":     inv.Payload,
		"currency":    starsCurrency,
	}
	if err := params.AddInterface("prices", []tgbotapi.LabeledPrice{{Label: "Gold", Amount: int(inv.Stars)}}); err != nil {
		return inv, err
	}

	resp, err := b.api.MakeRequest("createInvoiceLink", params)
	if err != nil {
		b.log.WithError(err).WithField("user_id", userID).Error("Failed to create invoice link")
		return inv, fmt.Errorf("%w: %v", services.ErrPaymentProvider, err)
	}
	if err := json.Unmarshal(resp.Result, &inv.Link); err != nil {
		return inv, fmt.Errorf("%w: unexpected createInvoiceLink result: %v", services.ErrPaymentProvider, err)
	}

	b.log.WithFields(logrus.Fields{"user_id": userID, "stars": inv.Stars, "coins": inv.Coins}).Info("Invoice link created")
	return inv, nil
}

// validCoins reports whether coins is what some package and promo combination
// would credit for stars.
func validCoins(table config.TopUpTable, stars, coins int64) bool {
	pkg, err := services.FindPackage(table, stars)
	if err != nil {
		return false
	}
	if base, _ := services.CalcCoins(pkg.Coins, "", table.PromoCodes); base == coins {
		return true
	}
	for code := range table.PromoCodes {
		if c, _ := services.CalcCoins(pkg.Coins, code, table.PromoCodes); c == coins {
			return true
		}
	}
	return false
}

func (b *Bot) checkPayload(payload string, from int64, currency string, total int) (stars, coins int64, err error) {
	stars, coins, userID, err := services.ParseInvoicePayload(payload)
	if err != nil {
		return 0, 0, err
	}
	switch {
	case userID != from:
		return 0, 0, errors.New("payload belongs to another user")
	case currency != starsCurrency || int64(total) != stars:
		return 0, 0, errors.New("amount does not match payload")
	case !validCoins(b.gameEngine.Tables().TopUp, stars, coins):
		return 0, 0, errors.New("no such package")
	}
	return stars, coins, nil
}

func (b *Bot) handlePreCheckout(q *tgbotapi.PreCheckoutQuery) {
	answer := tgbotapi.PreCheckoutConfig{PreCheckoutQueryID: q.ID, OK: true}
	if _, _, err := b.checkPayload(q.InvoicePayload, q.From.ID, q.Currency, q.TotalAmount); err != nil {
		b.log.WithError(err).WithField("user_id", q.From.ID).Warn("Rejecting pre-checkout")
		answer.OK = false
		answer.ErrorMessage = "This invoice is no longer valid."
	}

	if _, err := b.api.Request(answer); err != nil {
		b.log.WithError(err).Error("Failed to answer pre-checkout query")
	}
}

func (b *Bot) handleSuccessfulPayment(ctx context.Context, msg *tgbotapi.Message) {
	payment := msg.SuccessfulPayment
	log := b.log.WithFields(logrus.Fields{
		"user_id":   msg.From.ID,
		"charge_id": payment.TelegramPaymentChargeID,
	})

	stars, coins, err := b.checkPayload(payment.InvoicePayload, msg.From.ID, payment.Currency, payment.TotalAmount)
	if err != nil {
		log.WithError(err).Error("Paid invoice failed validation")
		b.sendMessage(msg.Chat.ID, "Payment received but could not be matched. Please contact support.")
		return
	}

	b.mu.Lock()
	promo := b.promos[payment.InvoicePayload]
	delete(b.promos, payment.InvoicePayload)
	b.mu.Unlock()

	balances, err := b.gameEngine.CreditExternalPurchase(ctx, msg.From.ID, coins, services.PurchaseMeta{
		Stars:    stars,
		Promo:    promo,
		ChargeID: payment.TelegramPaymentChargeID,
	})
	if errors.Is(err, services.ErrDuplicatePurchase) {
		log.Info("Payment already credited")
		return
	}
	if err != nil {
		log.WithError(err).Error("Failed to credit payment")
		b.sendMessage(msg.Chat.ID, "Payment received but crediting failed. Please contact support.")
		return
	}

	b.sendMessage(msg.Chat.ID, fmt.Sprintf("+%d gold. Balance: %d gold.", coins, balances.Gold))
}
