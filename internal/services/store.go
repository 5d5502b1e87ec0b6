package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"miniapp-games/internal/models"
)

// AccountStore is the key-value blob store behind a Ledger. LoadAccount
// returns (nil, nil) when the profile has never been saved.
type AccountStore interface {
	LoadAccount(ctx context.Context, userID int64) (*models.Account, error)
	SaveAccount(ctx context.Context, userID int64, acc *models.Account) error
}

// MemoryStore keeps serialized accounts in process memory. It backs the
// server when redis is unreachable and is used by tests.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[int64][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[int64][]byte)}
}

func (s *MemoryStore) LoadAccount(_ context.Context, userID int64) (*models.Account, error) {
	s.mu.RLock()
	data, ok := s.accounts[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	var acc models.Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	acc.Normalize()
	return &acc, nil
}

func (s *MemoryStore) SaveAccount(_ context.Context, userID int64, acc *models.Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}

	s.mu.Lock()
	s.accounts[userID] = data
	s.mu.Unlock()
	return nil
}
