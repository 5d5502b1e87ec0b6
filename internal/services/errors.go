package services

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidConfig     = errors.New("invalid game config")
	ErrInvalidBet        = errors.New("invalid bet")
	ErrInvalidState      = errors.New("invalid state transition")
	ErrPersistence       = errors.New("persistence failure")
	ErrBonusCooldown     = errors.New("daily bonus cooldown not elapsed")
	ErrTaskNotFound      = errors.New("task not found")
	ErrNoPendingGift     = errors.New("no pending gift drop")
	ErrNoPendingPrize    = errors.New("no pending case prize")
	ErrGiftNotFound      = errors.New("gift not found")
	ErrGiftSold          = errors.New("gift already sold")
	ErrUnknownCase       = errors.New("unknown case")
	ErrUnknownPackage    = errors.New("unknown star package")
	ErrDuplicatePurchase = errors.New("purchase already credited")
	ErrSessionNotFound   = errors.New("login session not found")
	ErrPaymentProvider   = errors.New("payment provider failure")
)

// CooldownError carries the time left until the daily bonus unlocks.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: %d h left", ErrBonusCooldown, e.HoursLeft())
}

func (e *CooldownError) Unwrap() error {
	return ErrBonusCooldown
}

func (e *CooldownError) HoursLeft() int64 {
	return int64(math.Ceil(e.Remaining.Hours()))
}
