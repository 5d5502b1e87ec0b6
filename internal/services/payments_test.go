package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miniapp-games/internal/config"
	"miniapp-games/internal/models"
	"miniapp-games/internal/services"
)

func TestCalcCoins(t *testing.T) {
	codes := map[string]float64{"VESNA26": 0.20}

	tests := []struct {
		base    int64
		promo   string
		want    int64
		applied bool
	}{
		{50, "", 50, false},
		{50, "vesna26", 60, true},
		{250, "VESNA26", 300, true},
		{101, "", 100, false},
		{55, "VESNA26", 66, true},
		{100, "NOPE", 100, false},
	}
	for _, tc := range tests {
		got, applied := services.CalcCoins(tc.base, tc.promo, codes)
		assert.Equal(t, tc.want, got, "base %d promo %q", tc.base, tc.promo)
		assert.Equal(t, tc.applied, applied)
	}
}

func TestInvoicePayload(t *testing.T) {
	payload := services.InvoicePayload(100, 120, testUserID)
	assert.Equal(t, "stars_100_120_777", payload)

	stars, coins, userID, err := services.ParseInvoicePayload(payload)
	require.NoError(t, err)
	assert.Equal(t, int64(100), stars)
	assert.Equal(t, int64(120), coins)
	assert.Equal(t, testUserID, userID)

	for _, bad := range []string{"", "stars_1_2", "gems_1_2_3", "stars_x_2_3", "stars_1_-2_3"} {
		_, _, _, err := services.ParseInvoicePayload(bad)
		assert.Error(t, err, bad)
	}
}

func TestPrepareInvoice(t *testing.T) {
	table := config.DefaultTables().TopUp

	inv, err := services.PrepareInvoice(table, testUserID, 250, " vesna26 ")
	require.NoError(t, err)
	assert.Equal(t, int64(300), inv.Coins)
	assert.Equal(t, "VESNA26", inv.Promo)
	assert.Equal(t, int64(20), inv.BonusPct)
	assert.Equal(t, "stars_250_300_777", inv.Payload)
	assert.Contains(t, inv.Description(), "+20% with promo VESNA26")

	inv, err = services.PrepareInvoice(table, testUserID, 50, "FREEGOLD")
	require.NoError(t, err)
	assert.Equal(t, int64(50), inv.Coins)
	assert.Empty(t, inv.Promo)
	assert.Equal(t, "50 gold coins for the mini games", inv.Description())

	_, err = services.PrepareInvoice(table, testUserID, 75, "")
	assert.ErrorIs(t, err, services.ErrUnknownPackage)
}

func TestCreditExternalPurchase(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	balances, err := h.session.CreditExternalPurchase(ctx, 61, services.PurchaseMeta{Stars: 50, Promo: "VESNA26", ChargeID: "ch_1"})
	require.NoError(t, err)
	assert.Equal(t, int64(60), balances.Gold)
	assert.Equal(t, int64(1000), balances.Silver)

	_, err = h.session.CreditExternalPurchase(ctx, 60, services.PurchaseMeta{Stars: 50, ChargeID: "ch_1"})
	assert.ErrorIs(t, err, services.ErrDuplicatePurchase)

	_, err = h.session.CreditExternalPurchase(ctx, 1, services.PurchaseMeta{Stars: 1})
	assert.ErrorIs(t, err, services.ErrInvalidBet)

	acc := h.stored(t)
	assert.Equal(t, int64(60), acc.Balances.Gold)
	require.Len(t, acc.TopUpHistory, 1)
	assert.Equal(t, "VESNA26", acc.TopUpHistory[0].Promo)
}

func TestTopUpHistoryIsCapped(t *testing.T) {
	h := newHarness(t, nil)
	for i := 0; i < 55; i++ {
		_, err := h.session.CreditExternalPurchase(context.Background(), 2, services.PurchaseMeta{Stars: int64(i + 1)})
		require.NoError(t, err)
	}

	acc := h.stored(t)
	require.Len(t, acc.TopUpHistory, 50)
	assert.Equal(t, int64(55), acc.TopUpHistory[0].Stars)
	assert.Equal(t, int64(110), acc.Balances.Get(models.CurrencyGold))
}
