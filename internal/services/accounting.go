package services

import (
	"context"

	"miniapp-games/internal/models"
)

// ClaimDailyBonus credits the daily silver bonus once per cooldown window.
func (s *Session) ClaimDailyBonus(ctx context.Context) (models.Balances, error) {
	bonus := s.tables.DailyBonus
	now := s.clock.Now()

	balances, err := s.Ledger.Update(ctx, func(acc *models.Account) error {
		if acc.LastDailyBonusAt != nil {
			if elapsed := now.Sub(*acc.LastDailyBonusAt); elapsed < bonus.Cooldown {
				return &CooldownError{Remaining: bonus.Cooldown - elapsed}
			}
		}
		claimed := now
		acc.LastDailyBonusAt = &claimed
		return acc.Balances.Add(models.CurrencySilver, bonus.Amount)
	})
	if err != nil {
		return balances, err
	}

	s.log.WithField("amount", bonus.Amount).Info("Daily bonus claimed")
	s.Rewards.Refresh()
	return balances, nil
}

// Profile assembles the profile screen. user may be nil when the host
// supplied no identity.
func (s *Session) Profile(user *models.TelegramUser) *models.Profile {
	acc := s.Ledger.Snapshot()
	now := s.clock.Now()

	name := user.DisplayName()
	if name == "" {
		name = models.FallbackDisplayName(acc.RegisteredAt)
	}

	p := &models.Profile{
		UserID:              s.UserID,
		DisplayName:         name,
		Balances:            acc.Balances,
		Stats:               acc.Stats,
		WinRate:             acc.Stats.WinRate(),
		ConsecutiveWins:     acc.ConsecutiveWins,
		RegisteredAt:        acc.RegisteredAt,
		LastVisitAt:         acc.LastVisitAt,
		DailyBonusAvailable: true,
	}
	if acc.LastDailyBonusAt != nil {
		if elapsed := now.Sub(*acc.LastDailyBonusAt); elapsed < s.tables.DailyBonus.Cooldown {
			cd := &CooldownError{Remaining: s.tables.DailyBonus.Cooldown - elapsed}
			p.DailyBonusAvailable = false
			p.DailyBonusHoursLeft = cd.HoursLeft()
		}
	}
	return p
}

// History returns the three bounded logs, newest first.
func (s *Session) History() (games, crash []models.RoundRecord, cases []models.CaseRecord) {
	acc := s.Ledger.Snapshot()
	return acc.GameHistory, acc.CrashHistory, acc.CaseHistory
}
