package models

import "time"

type GameType string

const (
	GameTypeMines GameType = "mines"
	GameTypeCrash GameType = "crash"
)

type MinesState string

const (
	MinesIdle   MinesState = "idle"
	MinesActive MinesState = "active"
	MinesWon    MinesState = "won"
	MinesLost   MinesState = "lost"
)

type MinesConfig struct {
	GridSize  int `json:"grid_size"`
	MineCount int `json:"mine_count"`
}

func (c MinesConfig) TotalCells() int {
	return c.GridSize * c.GridSize
}

type CellView struct {
	Index    int  `json:"index"`
	Revealed bool `json:"revealed"`
	Mine     bool `json:"mine,omitempty"`
}

// MinesRoundView is the client-visible state of a mines round. Mine
// positions only appear for revealed cells.
type MinesRoundView struct {
	RoundID      string      `json:"round_id,omitempty"`
	State        MinesState  `json:"state"`
	Config       MinesConfig `json:"config"`
	Bet          int64       `json:"bet"`
	Currency     Currency    `json:"currency"`
	Coefficient  float64     `json:"coefficient"`
	RevealedSafe int         `json:"revealed_safe"`
	CanCashOut   bool        `json:"can_cash_out"`
	Payout       int64       `json:"payout"`
	Cells        []CellView  `json:"cells,omitempty"`
}

type CrashState string

const (
	CrashCountdown CrashState = "countdown"
	CrashWaiting   CrashState = "waiting"
	CrashActive    CrashState = "active"
	CrashCashedOut CrashState = "cashed_out"
	CrashCrashed   CrashState = "crashed"
)

type CrashRoundView struct {
	RoundID         string        `json:"round_id,omitempty"`
	State           CrashState    `json:"state"`
	Bet             int64         `json:"bet,omitempty"`
	Currency        Currency      `json:"currency,omitempty"`
	StartedAt       *time.Time    `json:"started_at,omitempty"`
	Multiplier      float64       `json:"multiplier"`
	CashOutAt       float64       `json:"cash_out_at,omitempty"`
	Payout          int64         `json:"payout"`
	CrashPoint      float64       `json:"crash_point,omitempty"`
	CountdownEndsAt *time.Time    `json:"countdown_ends_at,omitempty"`
	PrevRounds      []RoundRecord `json:"prev_rounds"`
}

// GameResult is returned when a round resolves in either game.
type GameResult struct {
	Game        GameType `json:"game"`
	RoundID     string   `json:"round_id"`
	Win         bool     `json:"win"`
	Bet         int64    `json:"bet"`
	Payout      int64    `json:"payout"`
	Coefficient float64  `json:"coefficient"`
	Currency    Currency `json:"currency"`
	Balances    Balances `json:"balances"`
}
