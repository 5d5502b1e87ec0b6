package models

import "fmt"

type Currency string

const (
	CurrencySilver Currency = "silver"
	CurrencyGold   Currency = "gold"
)

func (c Currency) Valid() bool {
	return c == CurrencySilver || c == CurrencyGold
}

// Balances holds the two independent currencies. Gold only arrives via
// external top-up; silver via gameplay and bonuses.
type Balances struct {
	Silver int64 `json:"silver"`
	Gold   int64 `json:"gold"`
}

func (b Balances) Get(c Currency) int64 {
	if c == CurrencyGold {
		return b.Gold
	}
	return b.Silver
}

func (b *Balances) Add(c Currency, delta int64) error {
	if !c.Valid() {
		return fmt.Errorf("unknown currency: %q", c)
	}
	next := b.Get(c) + delta
	if next < 0 {
		return fmt.Errorf("%s balance would become negative", c)
	}
	if c == CurrencyGold {
		b.Gold = next
	} else {
		b.Silver = next
	}
	return nil
}
