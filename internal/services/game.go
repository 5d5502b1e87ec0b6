package services

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"miniapp-games/internal/clock"
	"miniapp-games/internal/config"
	"miniapp-games/internal/models"
)

// Session is the explicit per-player context: one ledger and one instance
// of each game, sharing balance and stats.
type Session struct {
	UserID  int64
	Ledger  *Ledger
	Rewards *Rewards
	Mines   *MinesGame
	Crash   *CrashGame
	Cases   *Cases

	tables   *config.GameTables
	clock    clock.Clock
	log      logrus.FieldLogger
	mu       sync.Mutex
	lastSeen time.Time
}

// NewSession opens a session whose ledger falls back to memory when the
// store cannot be read.
func NewSession(ctx context.Context, userID int64, tables *config.GameTables, store AccountStore, outcomes OutcomeGenerator, events Broadcaster, clk clock.Clock, log logrus.FieldLogger) *Session {
	ledger := OpenLedger(ctx, userID, store, events, clk, log)
	return newSession(userID, ledger, tables, outcomes, events, clk, log)
}

// OpenSession is NewSession for a store that must be readable.
func OpenSession(ctx context.Context, userID int64, tables *config.GameTables, store AccountStore, outcomes OutcomeGenerator, events Broadcaster, clk clock.Clock, log logrus.FieldLogger) (*Session, error) {
	ledger, err := LoadLedger(ctx, userID, store, events, clk, log)
	if err != nil {
		return nil, err
	}
	return newSession(userID, ledger, tables, outcomes, events, clk, log), nil
}

func newSession(userID int64, ledger *Ledger, tables *config.GameTables, outcomes OutcomeGenerator, events Broadcaster, clk clock.Clock, log logrus.FieldLogger) *Session {
	rewards := NewRewards(tables, ledger, outcomes, events, clk, log)

	return &Session{
		UserID:   userID,
		Ledger:   ledger,
		Rewards:  rewards,
		Mines:    NewMinesGame(tables, ledger, rewards, outcomes, events, clk, log),
		Crash:    NewCrashGame(tables, ledger, rewards, outcomes, events, clk, log),
		Cases:    NewCases(tables, ledger, outcomes, clk, log),
		tables:   tables,
		clock:    clk,
		log:      log.WithField("user_id", userID),
		lastSeen: clk.Now(),
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = s.clock.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Busy reports whether a round with money on it is still running.
func (s *Session) Busy() bool {
	return s.Mines.Busy() || s.Crash.Busy()
}

// Close stops every pending timer.
func (s *Session) Close() {
	s.Mines.Close()
	s.Crash.Close()
	s.Rewards.Close()
}

// GameEngine keeps one Session per player in memory.
type GameEngine struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	opening  singleflight.Group
	store    AccountStore
	tables   *config.GameTables
	outcomes OutcomeGenerator
	events   Broadcaster
	clock    clock.Clock
	log      logrus.FieldLogger
}

func NewGameEngine(store AccountStore, tables *config.GameTables, outcomes OutcomeGenerator, events Broadcaster, clk clock.Clock, log logrus.FieldLogger) *GameEngine {
	return &GameEngine{
		sessions: make(map[int64]*Session),
		store:    store,
		tables:   tables,
		outcomes: outcomes,
		events:   events,
		clock:    clk,
		log:      log,
	}
}

func (ge *GameEngine) Tables() *config.GameTables {
	return ge.tables
}

// Session returns the player's session, opening it on first use. The
// account is read outside the engine lock and a failed read is returned
// rather than cached, so the next call tries the store again.
func (ge *GameEngine) Session(ctx context.Context, userID int64) (*Session, error) {
	if s := ge.cached(userID); s != nil {
		s.touch()
		return s, nil
	}

	v, err, _ := ge.opening.Do(strconv.FormatInt(userID, 10), func() (any, error) {
		if s := ge.cached(userID); s != nil {
			return s, nil
		}
		s, err := OpenSession(ctx, userID, ge.tables, ge.store, ge.outcomes, ge.events, ge.clock, ge.log)
		if err != nil {
			ge.log.WithError(err).WithField("user_id", userID).Error("Failed to open session")
			return nil, err
		}

		ge.mu.Lock()
		ge.sessions[userID] = s
		ge.mu.Unlock()
		ge.log.WithField("user_id", userID).Debug("Session opened")
		return s, nil
	})
	if err != nil {
		return nil, err
	}

	s := v.(*Session)
	s.touch()
	return s, nil
}

func (ge *GameEngine) cached(userID int64) *Session {
	ge.mu.Lock()
	defer ge.mu.Unlock()
	return ge.sessions[userID]
}

func (ge *GameEngine) ActiveSessions() int {
	ge.mu.Lock()
	defer ge.mu.Unlock()
	return len(ge.sessions)
}

// EvictIdle drops sessions untouched for maxIdle that have no live round.
// Their state is already persisted.
func (ge *GameEngine) EvictIdle(maxIdle time.Duration) int {
	ge.mu.Lock()
	defer ge.mu.Unlock()

	now := ge.clock.Now()
	evicted := 0
	for id, s := range ge.sessions {
		if now.Sub(s.idleSince()) < maxIdle || s.Busy() {
			continue
		}
		s.Close()
		delete(ge.sessions, id)
		evicted++
	}
	if evicted > 0 {
		ge.log.WithField("evicted", evicted).Info("Evicted idle sessions")
	}
	return evicted
}

// CreditExternalPurchase is the entry point for the payment collaborator.
func (ge *GameEngine) CreditExternalPurchase(ctx context.Context, userID, coins int64, meta PurchaseMeta) (models.Balances, error) {
	s, err := ge.Session(ctx, userID)
	if err != nil {
		return models.Balances{}, err
	}
	return s.CreditExternalPurchase(ctx, coins, meta)
}

func (ge *GameEngine) Shutdown() {
	ge.mu.Lock()
	defer ge.mu.Unlock()
	for id, s := range ge.sessions {
		s.Close()
		delete(ge.sessions, id)
	}
}
