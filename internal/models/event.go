package models

import "time"

type EventType string

const (
	EventRoundStarted   EventType = "round_started"
	EventCellRevealed   EventType = "cell_revealed"
	EventRoundResolved  EventType = "round_resolved"
	EventRoundReset     EventType = "round_reset"
	EventCrashCountdown EventType = "crash_countdown"
	EventBalanceChanged EventType = "balance_changed"
	EventTaskCompleted  EventType = "task_completed"
	EventGiftDropped    EventType = "gift_dropped"
)

type Event struct {
	Type    EventType `json:"type"`
	UserID  int64     `json:"user_id"`
	Game    GameType  `json:"game,omitempty"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}
