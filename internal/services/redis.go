package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"miniapp-games/internal/config"
	"miniapp-games/internal/models"
)

// RedisService is the account blob store, the profile and login store, the
// player directory and the rate limiter.
type RedisService struct {
	client *redis.Client
}

func NewRedisService(ctx context.Context, cfg *config.Config) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisService{client: client}, nil
}

func NewRedisServiceWithClient(client *redis.Client) *RedisService {
	return &RedisService{client: client}
}

func (s *RedisService) LoadAccount(ctx context.Context, userID int64) (*models.Account, error) {
	data, err := s.client.Get(ctx, fmt.Sprintf(KeyAccount, userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	var acc models.Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	acc.Normalize()
	return &acc, nil
}

func (s *RedisService) SaveAccount(ctx context.Context, userID int64, acc *models.Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}
	return s.client.Set(ctx, fmt.Sprintf(KeyAccount, userID), data, 0).Err()
}

func (s *RedisService) DeleteAccount(ctx context.Context, userID int64) error {
	return s.client.Del(ctx, fmt.Sprintf(KeyAccount, userID)).Err()
}

func (s *RedisService) StoreUser(ctx context.Context, user *models.TelegramUser) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, fmt.Sprintf(KeyUserInfo, user.ID), data, TTLUserInfo)
		pipe.SAdd(ctx, KeyUsers, user.ID)
		return nil
	})
	return err
}

// ListUserIDs returns every player that ever signed in or started the bot.
func (s *RedisService) ListUserIDs(ctx context.Context) ([]int64, error) {
	members, err := s.client.SMembers(ctx, KeyUsers).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *RedisService) CountUsers(ctx context.Context) (int64, error) {
	return s.client.SCard(ctx, KeyUsers).Result()
}

// GetUser returns the stored identity, or nil when the host never sent one.
func (s *RedisService) GetUser(ctx context.Context, userID int64) (*models.TelegramUser, error) {
	data, err := s.client.Get(ctx, fmt.Sprintf(KeyUserInfo, userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var user models.TelegramUser
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *RedisService) StoreUserSession(ctx context.Context, userID int64, session *models.UserSession, expiry time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, fmt.Sprintf(KeyUserSession, userID, session.SessionID), data, expiry).Err()
}

// GetUserSession loads a login and slides its expiry.
func (s *RedisService) GetUserSession(ctx context.Context, userID int64, sessionID string) (*models.UserSession, error) {
	key := fmt.Sprintf(KeyUserSession, userID, sessionID)

	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get login session: %w", err)
	}

	var session models.UserSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}

	session.LastAccessed = time.Now()
	if updated, err := json.Marshal(session); err == nil {
		s.client.Set(ctx, key, updated, TTLUserSession)
	}
	return &session, nil
}

func (s *RedisService) DeleteUserSession(ctx context.Context, userID int64, sessionID string) error {
	return s.client.Del(ctx, fmt.Sprintf(KeyUserSession, userID, sessionID)).Err()
}

// CheckRateLimit counts action calls in a fixed window.
func (s *RedisService) CheckRateLimit(ctx context.Context, userID int64, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, userID, action)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if count == 1 {
		s.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

func (s *RedisService) Close() error {
	return s.client.Close()
}
