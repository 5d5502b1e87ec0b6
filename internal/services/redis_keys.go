package services

import "time"

const (
	KeyAccount     = "account:%d"
	KeyUserInfo    = "user:%d:info"
	KeyUserSession = "user:%d:session:%s"
	KeyRateLimit   = "ratelimit:%d:%s"
	KeyUsers       = "users" // set of every player id seen

	TTLUserSession = 24 * time.Hour
	TTLUserInfo    = 30 * 24 * time.Hour // 30 days

	DefaultRateLimitBets    = 30  // per minute
	DefaultRateLimitCashout = 60  // per minute
	DefaultRateLimitReveal  = 120 // per minute
)
