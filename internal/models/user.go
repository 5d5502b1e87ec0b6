package models

import "time"

// TelegramUser is the identity the chat host attaches to initData.
type TelegramUser struct {
	ID           int64  `json:"id" redis:"id"`
	Username     string `json:"username,omitempty" redis:"username"`
	FirstName    string `json:"first_name,omitempty" redis:"first_name"`
	LastName     string `json:"last_name,omitempty" redis:"last_name"`
	LanguageCode string `json:"language_code,omitempty" redis:"language_code"`
}

func (u *TelegramUser) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return u.FirstName
}

type Profile struct {
	UserID              int64     `json:"user_id"`
	DisplayName         string    `json:"display_name"`
	Balances            Balances  `json:"balances"`
	Stats               Stats     `json:"stats"`
	WinRate             int64     `json:"win_rate"`
	ConsecutiveWins     int64     `json:"consecutive_wins"`
	RegisteredAt        time.Time `json:"registered_at"`
	LastVisitAt         time.Time `json:"last_visit_at"`
	DailyBonusAvailable bool      `json:"daily_bonus_available"`
	DailyBonusHoursLeft int64     `json:"daily_bonus_hours_left"`
}

type TaskView struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Target   float64 `json:"target"`
	Progress float64 `json:"progress"`
	Reward   int64   `json:"reward"`
	Claimed  bool    `json:"claimed"`
	Ready    bool    `json:"ready"`
}

type CasePrize struct {
	ID     string `json:"id"`
	CaseID string `json:"case_id"`
	Type   string `json:"type"`
	Name   string `json:"name"`
	Value  int64  `json:"value"`
}

// UserSession is the login record behind a JWT.
type UserSession struct {
	SessionID    string        `json:"session_id"`
	TelegramUser *TelegramUser `json:"telegram_user"`
	CreatedAt    time.Time     `json:"created_at"`
	LastAccessed time.Time     `json:"last_accessed"`
}
