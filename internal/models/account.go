package models

import "time"

const StartingSilver = 1000

type Stats struct {
	GamesPlayed    int64   `json:"games_played"`
	GamesWon       int64   `json:"games_won"`
	GamesLost      int64   `json:"games_lost"`
	TotalWon       int64   `json:"total_won"`
	MaxCoefficient float64 `json:"max_coefficient"`
}

// WinRate is the share of won games as a whole percentage.
func (s Stats) WinRate() int64 {
	if s.GamesPlayed == 0 {
		return 0
	}
	return int64(float64(s.GamesWon)/float64(s.GamesPlayed)*100 + 0.5)
}

// Account is the persisted economic state of one player profile.
type Account struct {
	Balances         Balances      `json:"balances"`
	Stats            Stats         `json:"stats"`
	ConsecutiveWins  int64         `json:"consecutive_wins"`
	RegisteredAt     time.Time     `json:"registered_at"`
	LastVisitAt      time.Time     `json:"last_visit_at"`
	LastDailyBonusAt *time.Time    `json:"last_daily_bonus_at,omitempty"`
	GameHistory      []RoundRecord `json:"game_history"`
	CrashHistory     []RoundRecord `json:"crash_history"`
	CaseHistory      []CaseRecord  `json:"case_history"`
	TopUpHistory     []TopUpRecord `json:"top_up_history"`
	Tasks            map[int]bool  `json:"tasks"`
	Inventory        []Gift        `json:"inventory"`
}

func NewAccount(now time.Time) *Account {
	return &Account{
		Balances:     Balances{Silver: StartingSilver},
		RegisteredAt: now,
		LastVisitAt:  now,
		GameHistory:  []RoundRecord{},
		CrashHistory: []RoundRecord{},
		CaseHistory:  []CaseRecord{},
		TopUpHistory: []TopUpRecord{},
		Tasks:        map[int]bool{},
		Inventory:    []Gift{},
	}
}

// Clone returns a deep copy so a failed mutation never leaks into the
// committed account.
func (a *Account) Clone() *Account {
	c := *a
	if a.LastDailyBonusAt != nil {
		t := *a.LastDailyBonusAt
		c.LastDailyBonusAt = &t
	}
	c.GameHistory = append([]RoundRecord(nil), a.GameHistory...)
	c.CrashHistory = append([]RoundRecord(nil), a.CrashHistory...)
	c.CaseHistory = append([]CaseRecord(nil), a.CaseHistory...)
	c.TopUpHistory = append([]TopUpRecord(nil), a.TopUpHistory...)
	c.Inventory = append([]Gift(nil), a.Inventory...)
	c.Tasks = make(map[int]bool, len(a.Tasks))
	for id, done := range a.Tasks {
		c.Tasks[id] = done
	}
	return &c
}

// Normalize fills collections that may be missing from older blobs.
func (a *Account) Normalize() {
	if a.GameHistory == nil {
		a.GameHistory = []RoundRecord{}
	}
	if a.CrashHistory == nil {
		a.CrashHistory = []RoundRecord{}
	}
	if a.CaseHistory == nil {
		a.CaseHistory = []CaseRecord{}
	}
	if a.TopUpHistory == nil {
		a.TopUpHistory = []TopUpRecord{}
	}
	if a.Tasks == nil {
		a.Tasks = map[int]bool{}
	}
	if a.Inventory == nil {
		a.Inventory = []Gift{}
	}
}

// RecordWin applies the shared stat rollup for a won round in either game.
func (a *Account) RecordWin(payout int64, coefficient float64) {
	a.Stats.GamesPlayed++
	a.Stats.GamesWon++
	a.Stats.TotalWon += payout
	a.ConsecutiveWins++
	if coefficient > a.Stats.MaxCoefficient {
		a.Stats.MaxCoefficient = coefficient
	}
}

func (a *Account) RecordLoss() {
	a.Stats.GamesPlayed++
	a.Stats.GamesLost++
	a.ConsecutiveWins = 0
}
