package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miniapp-games/internal/models"
)

func TestBalancesAdd(t *testing.T) {
	b := models.Balances{Silver: 100}

	require.NoError(t, b.Add(models.CurrencySilver, -100))
	assert.Equal(t, int64(0), b.Silver)

	assert.Error(t, b.Add(models.CurrencySilver, -1))
	assert.Equal(t, int64(0), b.Silver)

	require.NoError(t, b.Add(models.CurrencyGold, 40))
	assert.Equal(t, int64(40), b.Get(models.CurrencyGold))

	assert.Error(t, b.Add("bronze", 1))
}

func TestPushFrontCapsAndOrders(t *testing.T) {
	var list []int
	for i := 0; i < 25; i++ {
		list = models.PushFront(list, i, 20)
	}
	require.Len(t, list, 20)
	assert.Equal(t, 24, list[0])
	assert.Equal(t, 5, list[19])
}

func TestAccountCloneIsDeep(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	acc := models.NewAccount(now)
	acc.Tasks[1] = true
	acc.GameHistory = append(acc.GameHistory, models.RoundRecord{Bet: 10})

	c := acc.Clone()
	c.Tasks[2] = true
	c.GameHistory[0].Bet = 99
	c.Balances.Silver = 1

	assert.False(t, acc.Tasks[2])
	assert.Equal(t, int64(10), acc.GameHistory[0].Bet)
	assert.Equal(t, int64(models.StartingSilver), acc.Balances.Silver)
}

func TestRecordWinAndLoss(t *testing.T) {
	acc := models.NewAccount(time.Now())
	acc.RecordWin(180, 1.8)
	acc.RecordWin(50, 1.2)

	assert.Equal(t, int64(2), acc.Stats.GamesWon)
	assert.Equal(t, int64(230), acc.Stats.TotalWon)
	assert.Equal(t, 1.8, acc.Stats.MaxCoefficient)
	assert.Equal(t, int64(2), acc.ConsecutiveWins)

	acc.RecordLoss()
	assert.Equal(t, int64(3), acc.Stats.GamesPlayed)
	assert.Equal(t, int64(0), acc.ConsecutiveWins)
	assert.Equal(t, int64(67), acc.Stats.WinRate())
}

func TestGiftMatured(t *testing.T) {
	received := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	g := models.Gift{ReceivedAt: received, Status: models.GiftActive}
	window := 21 * 24 * time.Hour

	assert.False(t, g.Matured(received.Add(window-time.Second), window))
	assert.True(t, g.Matured(received.Add(window), window))

	g.Status = models.GiftSold
	assert.False(t, g.Matured(received.Add(window), window))
}

func TestMakeEvenAndNames(t *testing.T) {
	assert.Equal(t, int64(60), models.MakeEven(61))
	assert.Equal(t, int64(60), models.MakeEven(60))

	assert.Equal(t, "@neo", (&models.TelegramUser{Username: "neo", FirstName: "Thomas"}).DisplayName())
	assert.Equal(t, "Thomas", (&models.TelegramUser{FirstName: "Thomas"}).DisplayName())
	assert.Equal(t, "Player#0042", models.FallbackDisplayName(time.UnixMilli(1_700_000_000_042)))
}

func TestRequestValidateDefaultsCurrency(t *testing.T) {
	req := &models.CrashBetRequest{Bet: 10}
	require.NoError(t, req.Validate())
	assert.Equal(t, models.CurrencySilver, req.Currency)

	bad := &models.MinesStartRequest{Currency: "bronze"}
	assert.Error(t, bad.Validate())
}
