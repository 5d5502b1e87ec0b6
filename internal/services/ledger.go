package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"miniapp-games/internal/clock"
	"miniapp-games/internal/models"
)

// Ledger owns one player's Account. Every mutation goes through Update,
// which applies the change to a copy, commits it and flushes it to the
// store before the lock is released.
type Ledger struct {
	mu       sync.Mutex
	userID   int64
	account  *models.Account
	store    AccountStore
	events   Broadcaster
	clock    clock.Clock
	log      logrus.FieldLogger
	degraded bool

	// set when the stored account could not be read; writing would
	// clobber it with a fresh one
	memoryOnly bool
}

// storeTimeout bounds one account load or save. Store calls run on a
// context detached from the caller so an aborted request cannot cut a
// write in half.
const storeTimeout = 5 * time.Second

// LoadLedger loads the account for userID, creating a fresh one when none
// is stored. A store that cannot be read is an error wrapping ErrPersistence.
func LoadLedger(ctx context.Context, userID int64, store AccountStore, events Broadcaster, clk clock.Clock, log logrus.FieldLogger) (*Ledger, error) {
	acc, err := loadAccount(ctx, store, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: load account %d: %v", ErrPersistence, userID, err)
	}
	return newLedger(ctx, userID, acc, store, events, clk, log, false), nil
}

// OpenLedger is LoadLedger for callers without a way to report failure:
// a store that cannot be read leaves the ledger in memory-only mode.
func OpenLedger(ctx context.Context, userID int64, store AccountStore, events Broadcaster, clk clock.Clock, log logrus.FieldLogger) *Ledger {
	acc, err := loadAccount(ctx, store, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Failed to load account, starting in memory")
		return newLedger(ctx, userID, nil, store, events, clk, log, true)
	}
	return newLedger(ctx, userID, acc, store, events, clk, log, false)
}

func loadAccount(ctx context.Context, store AccountStore, userID int64) (*models.Account, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	return store.LoadAccount(ctx, userID)
}

func newLedger(ctx context.Context, userID int64, acc *models.Account, store AccountStore, events Broadcaster, clk clock.Clock, log logrus.FieldLogger, memoryOnly bool) *Ledger {
	l := &Ledger{
		userID:     userID,
		store:      store,
		events:     events,
		clock:      clk,
		log:        log.WithField("user_id", userID),
		degraded:   memoryOnly,
		memoryOnly: memoryOnly,
	}

	now := clk.Now()
	if acc == nil {
		acc = models.NewAccount(now)
	}
	acc.Normalize()
	acc.LastVisitAt = now
	l.account = acc

	l.mu.Lock()
	l.flush(ctx)
	l.mu.Unlock()

	return l
}

func (l *Ledger) UserID() int64 {
	return l.userID
}

// Update runs fn against a copy of the account. If fn fails nothing is
// committed. Store failures are logged and never returned.
func (l *Ledger) Update(ctx context.Context, fn func(acc *models.Account) error) (models.Balances, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.account.Clone()
	if err := fn(next); err != nil {
		return l.account.Balances, err
	}

	before := l.account.Balances
	l.account = next
	l.flush(ctx)

	if next.Balances != before {
		l.events.Publish(models.Event{
			Type:    models.EventBalanceChanged,
			UserID:  l.userID,
			Payload: next.Balances,
			At:      l.clock.Now(),
		})
	}
	return next.Balances, nil
}

func (l *Ledger) Debit(ctx context.Context, c models.Currency, amount int64) (models.Balances, error) {
	return l.Update(ctx, func(acc *models.Account) error {
		return debit(acc, c, amount)
	})
}

func (l *Ledger) Credit(ctx context.Context, c models.Currency, amount int64) (models.Balances, error) {
	return l.Update(ctx, func(acc *models.Account) error {
		return acc.Balances.Add(c, amount)
	})
}

// Snapshot returns a deep copy of the committed account.
func (l *Ledger) Snapshot() *models.Account {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.account.Clone()
}

func (l *Ledger) Balances() models.Balances {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.account.Balances
}

// Degraded reports whether the last store write failed.
func (l *Ledger) Degraded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.degraded
}

func (l *Ledger) flush(ctx context.Context) {
	if l.memoryOnly {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	if err := l.store.SaveAccount(ctx, l.userID, l.account); err != nil {
		l.log.WithError(fmt.Errorf("%w: %v", ErrPersistence, err)).Warn("Failed to save account, continuing in memory")
		l.degraded = true
		return
	}
	if l.degraded {
		l.log.Info("Account store recovered")
		l.degraded = false
	}
}

func debit(acc *models.Account, c models.Currency, amount int64) error {
	if !c.Valid() {
		return fmt.Errorf("%w: unknown currency %q", ErrInvalidBet, c)
	}
	if amount < 0 {
		return fmt.Errorf("%w: negative amount", ErrInvalidBet)
	}
	if have := acc.Balances.Get(c); amount > have {
		return fmt.Errorf("%w: have %d %s, need %d", ErrInsufficientFunds, have, c, amount)
	}
	return acc.Balances.Add(c, -amount)
}
