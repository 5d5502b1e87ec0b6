package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

func GenerateRoundID(game GameType) string {
	return fmt.Sprintf("%s_%s", game, uuid.NewString())
}

func GenerateDropID() string {
	return "drop_" + uuid.NewString()
}

// MakeEven rounds down to the nearest even number.
func MakeEven(n int64) int64 {
	if n%2 == 0 {
		return n
	}
	return n - 1
}

// FallbackDisplayName derives a stable player tag from the registration time.
func FallbackDisplayName(registeredAt time.Time) string {
	n := registeredAt.UnixMilli() % 10000
	if n < 0 {
		n = -n
	}
	return fmt.Sprintf("Player#%04d", n)
}
