package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"miniapp-games/internal/clock"
	"miniapp-games/internal/config"
	"miniapp-games/internal/models"
	"miniapp-games/internal/services"
)

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const testUserID = int64(777)

// stubOutcomes returns scripted draws.
type stubOutcomes struct {
	mines    []int
	crash    []float64
	weighted int
}

func (s *stubOutcomes) DrawMinePositions(totalCells, mineCount int) ([]int, error) {
	if len(s.mines) != mineCount {
		return nil, errors.New("stub: unexpected mine count")
	}
	return s.mines, nil
}

func (s *stubOutcomes) DrawCrashPoint() float64 {
	cp := s.crash[0]
	if len(s.crash) > 1 {
		s.crash = s.crash[1:]
	}
	return cp
}

func (s *stubOutcomes) DrawWeighted(weights []int) (int, error) {
	return s.weighted, nil
}

func (s *stubOutcomes) DrawEligibleGift(winAmount int64, catalog []config.GiftDef) (config.GiftDef, bool) {
	for _, g := range catalog {
		if winAmount >= g.MinValue {
			return g, true
		}
	}
	return config.GiftDef{}, false
}

// scriptSource replays fixed values; exhausted queues return zero.
type scriptSource struct {
	floats []float64
	ints   []int
}

func (s *scriptSource) Float64() float64 {
	if len(s.floats) == 0 {
		return 0
	}
	f := s.floats[0]
	s.floats = s.floats[1:]
	return f
}

func (s *scriptSource) IntN(n int) int {
	if len(s.ints) == 0 {
		return 0
	}
	i := s.ints[0]
	s.ints = s.ints[1:]
	return i % n
}

type recorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recorder) Publish(e models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) count(t models.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func (r *recorder) last(t models.EventType) (models.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == t {
			return r.events[i], true
		}
	}
	return models.Event{}, false
}

// flakyStore fails writes while broken is set and reads while loadErr is.
// Like a network store it gives up on a done context.
type flakyStore struct {
	*services.MemoryStore
	mu       sync.Mutex
	broken   bool
	loadErr  error
	saves    int
	failures int
}

func (s *flakyStore) LoadAccount(ctx context.Context, userID int64) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	loadErr := s.loadErr
	s.mu.Unlock()
	if loadErr != nil {
		return nil, loadErr
	}
	return s.MemoryStore.LoadAccount(ctx, userID)
}

func (s *flakyStore) setLoadErr(err error) {
	s.mu.Lock()
	s.loadErr = err
	s.mu.Unlock()
}

func (s *flakyStore) SaveAccount(ctx context.Context, userID int64, acc *models.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.broken {
		s.failures++
		return errors.New("disk full")
	}
	return s.MemoryStore.SaveAccount(ctx, userID, acc)
}

type harness struct {
	clock    *clock.Fake
	store    *services.MemoryStore
	events   *recorder
	outcomes *stubOutcomes
	tables   *config.GameTables
	log      *logrus.Logger
	hook     *test.Hook
	session  *services.Session
}

func newHarness(t *testing.T, seed func(acc *models.Account)) *harness {
	t.Helper()

	h := &harness{
		clock:    clock.NewFake(testStart),
		store:    services.NewMemoryStore(),
		events:   &recorder{},
		outcomes: &stubOutcomes{crash: []float64{2.0}},
		tables:   config.DefaultTables(),
	}
	h.log, h.hook = test.NewNullLogger()
	h.log.SetLevel(logrus.DebugLevel)

	if seed != nil {
		acc := models.NewAccount(testStart.Add(-48 * time.Hour))
		seed(acc)
		require.NoError(t, h.store.SaveAccount(context.Background(), testUserID, acc))
	}

	h.session = services.NewSession(context.Background(), testUserID, h.tables, h.store, h.outcomes, h.events, h.clock, h.log)
	t.Cleanup(h.session.Close)
	return h
}

func (h *harness) balance() int64 {
	return h.session.Ledger.Balances().Silver
}

func (h *harness) stored(t *testing.T) *models.Account {
	t.Helper()
	acc, err := h.store.LoadAccount(context.Background(), testUserID)
	require.NoError(t, err)
	require.NotNil(t, acc)
	return acc
}

// newFlakySession opens a session over a flakyStore for store failure tests.
func newFlakySession(t *testing.T, outcomes *stubOutcomes) (*services.Session, *flakyStore, *clock.Fake, *test.Hook) {
	t.Helper()
	log, hook := test.NewNullLogger()
	store := &flakyStore{MemoryStore: services.NewMemoryStore()}
	clk := clock.NewFake(testStart)

	session, err := services.OpenSession(context.Background(), testUserID, config.DefaultTables(), store, outcomes, &recorder{}, clk, log)
	require.NoError(t, err)
	t.Cleanup(session.Close)
	return session, store, clk, hook
}

// persistenceWarnings counts logged store failures.
func persistenceWarnings(hook *test.Hook) int {
	n := 0
	for _, e := range hook.AllEntries() {
		if err, ok := e.Data[logrus.ErrorKey].(error); ok && errors.Is(err, services.ErrPersistence) {
			n++
		}
	}
	return n
}
