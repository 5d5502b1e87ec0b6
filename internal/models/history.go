package models

import "time"

type RoundRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	Bet         int64     `json:"bet"`
	Win         int64     `json:"win"`
	Coefficient float64   `json:"coefficient"`
	IsWin       bool      `json:"is_win"`
	Currency    Currency  `json:"currency"`
}

type CaseRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Case      string    `json:"case"`
	Reward    string    `json:"reward"`
	Value     int64     `json:"value"`
}

type TopUpRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Stars     int64     `json:"stars"`
	Coins     int64     `json:"coins"`
	Promo     string    `json:"promo,omitempty"`
	ChargeID  string    `json:"charge_id,omitempty"`
}

// PushFront inserts item at index 0 and drops the oldest entries beyond limit.
func PushFront[T any](list []T, item T, limit int) []T {
	out := make([]T, 0, len(list)+1)
	out = append(out, item)
	out = append(out, list...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
