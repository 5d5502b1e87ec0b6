package models

import "time"

type GiftStatus string

const (
	GiftActive GiftStatus = "active"
	GiftSold   GiftStatus = "sold"
)

type Gift struct {
	ID         int64      `json:"id"`
	Type       string     `json:"type"`
	Name       string     `json:"name"`
	Value      int64      `json:"value"`
	ReceivedAt time.Time  `json:"received_at"`
	Status     GiftStatus `json:"status"`
}

// Matured reports whether an active gift has been held past window.
func (g Gift) Matured(now time.Time, window time.Duration) bool {
	return g.Status == GiftActive && !now.Before(g.ReceivedAt.Add(window))
}

// GiftDrop is a gift offered after a win, waiting for keep or sell.
type GiftDrop struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Name      string    `json:"name"`
	Value     int64     `json:"value"`
	Tier      string    `json:"tier"`
	SellPrice int64     `json:"sell_price"`
	OfferedAt time.Time `json:"offered_at"`
}

type Inventory struct {
	Active []Gift `json:"active"`
	Ready  []Gift `json:"ready"`
	Sold   []Gift `json:"sold"`
}

func GiftTier(value int64) string {
	switch {
	case value >= 1000:
		return "legendary"
	case value >= 500:
		return "rare"
	case value >= 100:
		return "uncommon"
	default:
		return "common"
	}
}
