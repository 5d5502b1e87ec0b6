package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miniapp-games/internal/models"
	"miniapp-games/internal/services"
)

func TestDailyBonusCooldown(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	balances, err := h.session.ClaimDailyBonus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1100), balances.Silver)

	h.clock.Advance(23 * time.Hour)
	_, err = h.session.ClaimDailyBonus(ctx)
	require.ErrorIs(t, err, services.ErrBonusCooldown)
	var cd *services.CooldownError
	require.True(t, errors.As(err, &cd))
	assert.Equal(t, int64(1), cd.HoursLeft())
	assert.Equal(t, int64(1100), h.balance())

	h.clock.Advance(time.Hour)
	balances, err = h.session.ClaimDailyBonus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), balances.Silver)
}

func TestProfile(t *testing.T) {
	h := newHarness(t, func(acc *models.Account) {
		acc.Stats.GamesPlayed = 3
		acc.Stats.GamesWon = 2
	})

	p := h.session.Profile(&models.TelegramUser{ID: testUserID, Username: "rocketman"})
	assert.Equal(t, "@rocketman", p.DisplayName)
	assert.Equal(t, int64(67), p.WinRate)
	assert.True(t, p.DailyBonusAvailable)

	_, err := h.session.ClaimDailyBonus(context.Background())
	require.NoError(t, err)
	h.clock.Advance(90 * time.Minute)

	p = h.session.Profile(nil)
	assert.Equal(t, models.FallbackDisplayName(testStart.Add(-48*time.Hour)), p.DisplayName)
	assert.False(t, p.DailyBonusAvailable)
	assert.Equal(t, int64(23), p.DailyBonusHoursLeft)
}
