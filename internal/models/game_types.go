package models

import "fmt"

type TelegramAuthRequest struct {
	InitData string `json:"init_data" binding:"required"`
}

type MinesStartRequest struct {
	GridSize  int      `json:"grid_size" binding:"required"`
	MineCount int      `json:"mine_count" binding:"required,min=1"`
	Bet       int64    `json:"bet" binding:"required"`
	Currency  Currency `json:"currency"`
}

type MinesRevealRequest struct {
	Cell int `json:"cell" binding:"min=0"`
}

type CrashBetRequest struct {
	Bet      int64    `json:"bet" binding:"required"`
	Currency Currency `json:"currency"`
}

type CaseOpenRequest struct {
	CaseID string `json:"case_id" binding:"required"`
}

type TopUpInvoiceRequest struct {
	Stars int64  `json:"stars" binding:"required,gt=0"`
	Promo string `json:"promo"`
}

func normalizeCurrency(c Currency) (Currency, error) {
	if c == "" {
		return CurrencySilver, nil
	}
	if !c.Valid() {
		return "", fmt.Errorf("invalid currency: %s", c)
	}
	return c, nil
}

func (r *MinesStartRequest) Validate() error {
	c, err := normalizeCurrency(r.Currency)
	if err != nil {
		return err
	}
	r.Currency = c
	return nil
}

func (r *CrashBetRequest) Validate() error {
	c, err := normalizeCurrency(r.Currency)
	if err != nil {
		return err
	}
	r.Currency = c
	return nil
}
