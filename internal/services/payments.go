package services

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"miniapp-games/internal/config"
	"miniapp-games/internal/models"
)

// PurchaseMeta describes a confirmed external purchase.
type PurchaseMeta struct {
	Stars    int64
	Promo    string
	ChargeID string
}

// CalcCoins applies a promo bonus to a package's base coins and rounds
// down to an even amount. Unknown promo codes are ignored.
func CalcCoins(base int64, promo string, codes map[string]float64) (int64, bool) {
	bonus, ok := codes[strings.ToUpper(strings.TrimSpace(promo))]
	if !ok {
		return models.MakeEven(base), false
	}
	coins := decimal.NewFromInt(base).Mul(decimal.NewFromInt(1).Add(decimal.NewFromFloat(bonus))).Floor().IntPart()
	return models.MakeEven(coins), true
}

func FindPackage(table config.TopUpTable, stars int64) (config.StarPackage, error) {
	for _, pkg := range table.Packages {
		if pkg.Stars == stars {
			return pkg, nil
		}
	}
	return config.StarPackage{}, fmt.Errorf("%w: %d stars", ErrUnknownPackage, stars)
}

// Invoice is a Stars invoice priced on the server for one player.
type Invoice struct {
	Stars    int64  `json:"stars"`
	Coins    int64  `json:"coins"`
	Promo    string `json:"promo,omitempty"`
	BonusPct int64  `json:"bonus_pct,omitempty"`
	Payload  string `json:"-"`
	Link     string `json:"invoice_link,omitempty"`
}

func (inv Invoice) Title() string {
	return fmt.Sprintf("%d gold", inv.Coins)
}

func (inv Invoice) Description() string {
	if inv.Promo == "" {
		return fmt.Sprintf("%d gold coins for the mini games", inv.Coins)
	}
	return fmt.Sprintf("%d gold coins for the mini games (+%d%% with promo %s)", inv.Coins, inv.BonusPct, inv.Promo)
}

// PrepareInvoice prices the package worth stars for userID. An unknown
// promo code prices the package without a bonus.
func PrepareInvoice(table config.TopUpTable, userID, stars int64, promo string) (Invoice, error) {
	pkg, err := FindPackage(table, stars)
	if err != nil {
		return Invoice{}, err
	}

	inv := Invoice{Stars: pkg.Stars}
	var applied bool
	inv.Coins, applied = CalcCoins(pkg.Coins, promo, table.PromoCodes)
	if applied {
		inv.Promo = strings.ToUpper(strings.TrimSpace(promo))
		inv.BonusPct = decimal.NewFromFloat(table.PromoCodes[inv.Promo]).Shift(2).Round(0).IntPart()
	}
	inv.Payload = InvoicePayload(inv.Stars, inv.Coins, userID)
	return inv, nil
}

// InvoicePayload encodes what a Stars invoice will credit.
func InvoicePayload(stars, coins, userID int64) string {
	return fmt.Sprintf("stars_%d_%d_%d", stars, coins, userID)
}

func ParseInvoicePayload(payload string) (stars, coins, userID int64, err error) {
	parts := strings.Split(payload, "_")
	if len(parts) != 4 || parts[0] != "stars" {
		return 0, 0, 0, fmt.Errorf("malformed invoice payload %q", payload)
	}
	nums := make([]int64, 3)
	for i, p := range parts[1:] {
		n, perr := strconv.ParseInt(p, 10, 64)
		if perr != nil || n <= 0 {
			return 0, 0, 0, fmt.Errorf("malformed invoice payload %q", payload)
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2], nil
}

// CreditExternalPurchase credits gold for a confirmed purchase and logs it
// in the top-up history. A charge that was already credited is rejected.
func (s *Session) CreditExternalPurchase(ctx context.Context, coins int64, meta PurchaseMeta) (models.Balances, error) {
	coins = models.MakeEven(coins)
	if coins <= 0 {
		return s.Ledger.Balances(), fmt.Errorf("%w: purchase of %d coins", ErrInvalidBet, coins)
	}

	balances, err := s.Ledger.Update(ctx, func(acc *models.Account) error {
		if meta.ChargeID != "" && slices.ContainsFunc(acc.TopUpHistory, func(r models.TopUpRecord) bool {
			return r.ChargeID == meta.ChargeID
		}) {
			return fmt.Errorf("%w: %s", ErrDuplicatePurchase, meta.ChargeID)
		}
		if err := acc.Balances.Add(models.CurrencyGold, coins); err != nil {
			return err
		}
		acc.TopUpHistory = models.PushFront(acc.TopUpHistory, models.TopUpRecord{
			Timestamp: s.clock.Now(),
			Stars:     meta.Stars,
			Coins:     coins,
			Promo:     meta.Promo,
			ChargeID:  meta.ChargeID,
		}, s.tables.TopUp.HistoryLimit)
		return nil
	})
	if err != nil {
		return balances, err
	}

	s.log.WithFields(logrus.Fields{"coins": coins, "stars": meta.Stars}).Info("External purchase credited")
	return balances, nil
}
