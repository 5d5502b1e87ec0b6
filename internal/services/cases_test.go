package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miniapp-games/internal/models"
	"miniapp-games/internal/services"
)

func TestOpenAndClaimCase(t *testing.T) {
	h := newHarness(t, nil)
	h.outcomes.weighted = 5
	ctx := context.Background()
	cases := h.session.Cases

	prize, err := cases.Open(ctx, "basic")
	require.NoError(t, err)
	assert.Equal(t, "cup", prize.Type)
	assert.Equal(t, int64(100), prize.Value)
	assert.Equal(t, int64(960), h.balance())

	_, err = cases.Claim(ctx, "wrong")
	assert.ErrorIs(t, err, services.ErrNoPendingPrize)

	balances, err := cases.Claim(ctx, prize.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1060), balances.Silver)
	assert.Nil(t, cases.Pending())

	acc := h.stored(t)
	require.Len(t, acc.CaseHistory, 1)
	assert.Equal(t, "basic", acc.CaseHistory[0].Case)
	assert.Equal(t, int64(100), acc.CaseHistory[0].Value)
}

func TestDismissAndRejectCases(t *testing.T) {
	h := newHarness(t, func(acc *models.Account) { acc.Balances.Silver = 50 })
	ctx := context.Background()
	cases := h.session.Cases

	_, err := cases.Open(ctx, "golden")
	assert.ErrorIs(t, err, services.ErrUnknownCase)

	prize, err := cases.Open(ctx, "basic")
	require.NoError(t, err)
	require.NoError(t, cases.Dismiss(prize.ID))
	assert.ErrorIs(t, cases.Dismiss(prize.ID), services.ErrNoPendingPrize)
	assert.Equal(t, int64(10), h.balance())

	_, err = cases.Open(ctx, "basic")
	assert.ErrorIs(t, err, services.ErrInsufficientFunds)
	assert.Empty(t, h.stored(t).CaseHistory)
}
