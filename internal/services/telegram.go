package services

import (
	"errors"
	"fmt"
	"time"

	initdata "github.com/telegram-mini-apps/init-data-golang"

	"miniapp-games/internal/models"
)

var ErrInvalidInitData = errors.New("invalid telegram init data")

// VerifyInitData checks the signature Telegram attaches to WebApp initData
// and returns the user it carries. maxAge of zero disables the expiry check.
func VerifyInitData(initData, botToken string, maxAge time.Duration) (*models.TelegramUser, error) {
	if err := initdata.Validate(initData, botToken, maxAge); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInitData, err)
	}

	data, err := initdata.Parse(initData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInitData, err)
	}
	if data.User.ID == 0 {
		return nil, fmt.Errorf("%w: no user", ErrInvalidInitData)
	}

	return &models.TelegramUser{
		ID:           data.User.ID,
		Username:     data.User.Username,
		FirstName:    data.User.FirstName,
		LastName:     data.User.LastName,
		LanguageCode: data.User.LanguageCode,
	}, nil
}
