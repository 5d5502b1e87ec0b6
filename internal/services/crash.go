package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"miniapp-games/internal/clock"
	"miniapp-games/internal/config"
	"miniapp-games/internal/models"
)

type crashRound struct {
	id         string
	bet        int64
	currency   models.Currency
	crashPoint float64
	startedAt  time.Time
	crashAt    time.Time
	cashOutAt  float64
	payout     int64
}

// CrashGame runs the rocket round loop for a single player: a betting
// countdown, a flight whose multiplier grows until a pre-drawn crash point,
// and a short result display before the next countdown.
type CrashGame struct {
	mu       sync.Mutex
	table    config.CrashTable
	history  int
	ledger   *Ledger
	rewards  *Rewards
	outcomes OutcomeGenerator
	events   Broadcaster
	clock    clock.Clock
	log      logrus.FieldLogger

	state         models.CrashState
	countdownEnds time.Time
	round         *crashRound
	timer         clock.Timer
	gen           uint64
	closed        bool
}

func NewCrashGame(tables *config.GameTables, ledger *Ledger, rewards *Rewards, outcomes OutcomeGenerator, events Broadcaster, clk clock.Clock, log logrus.FieldLogger) *CrashGame {
	g := &CrashGame{
		table:    tables.Crash,
		history:  tables.HistoryLimit,
		ledger:   ledger,
		rewards:  rewards,
		outcomes: outcomes,
		events:   events,
		clock:    clk,
		log:      log.WithFields(logrus.Fields{"user_id": ledger.UserID(), "game": models.GameTypeCrash}),
	}

	g.mu.Lock()
	g.beginCountdown()
	g.mu.Unlock()
	return g
}

// schedule replaces the pending timer. A callback whose generation has
// been superseded does nothing. Must be called with g.mu held.
func (g *CrashGame) schedule(d time.Duration, fn func()) {
	g.gen++
	gen := g.gen
	if g.timer != nil {
		g.timer.Stop()
	}
	g.timer = g.clock.AfterFunc(d, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.gen != gen || g.closed {
			return
		}
		g.timer = nil
		fn()
	})
}

func (g *CrashGame) beginCountdown() {
	g.state = models.CrashCountdown
	g.round = nil
	g.countdownEnds = g.clock.Now().Add(g.table.Countdown)
	g.publish(models.EventCrashCountdown, g.view())

	g.schedule(g.table.Countdown, func() {
		g.state = models.CrashWaiting
		g.publish(models.EventCrashCountdown, g.view())
	})
}

// StartRound places a bet and launches the rocket. Bets are only taken
// once the countdown has elapsed.
func (g *CrashGame) StartRound(ctx context.Context, bet int64, currency models.Currency) (*models.CrashRoundView, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case models.CrashWaiting:
	case models.CrashCountdown:
		left := g.countdownEnds.Sub(g.clock.Now())
		return nil, fmt.Errorf("%w: betting opens in %s", ErrInvalidState, left.Round(time.Millisecond))
	default:
		return nil, fmt.Errorf("%w: crash round is %s", ErrInvalidState, g.state)
	}
	if bet < g.table.MinBet {
		return nil, fmt.Errorf("%w: minimum bet is %d", ErrInvalidBet, g.table.MinBet)
	}

	if _, err := g.ledger.Debit(ctx, currency, bet); err != nil {
		return nil, err
	}

	cp := g.outcomes.DrawCrashPoint()
	now := g.clock.Now()
	delay := CrashDelay(g.table.GrowthBase, cp)
	g.round = &crashRound{
		id:         models.GenerateRoundID(models.GameTypeCrash),
		bet:        bet,
		currency:   currency,
		crashPoint: cp,
		startedAt:  now,
		crashAt:    now.Add(delay),
	}
	g.state = models.CrashActive
	g.schedule(delay, g.crash)

	g.log.WithFields(logrus.Fields{
		"round_id":    g.round.id,
		"bet":         bet,
		"crash_point": cp,
	}).Debug("Crash round started")

	view := g.view()
	g.publish(models.EventRoundStarted, view)
	return view, nil
}

// CashOut locks in the multiplier at the instant of the call. The flight
// keeps running until the crash point for display only.
func (g *CrashGame) CashOut(ctx context.Context) (*models.GameResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != models.CrashActive {
		return nil, nil
	}
	round := g.round
	now := g.clock.Now()
	if !now.Before(round.crashAt) {
		// the crash timer is due but has not run yet
		g.crash()
		return nil, nil
	}

	m := CrashMultiplier(g.table.GrowthBase, now.Sub(round.startedAt), round.crashPoint)
	payout := Payout(round.bet, m)

	balances, err := g.ledger.Update(ctx, func(acc *models.Account) error {
		if err := acc.Balances.Add(round.currency, payout); err != nil {
			return err
		}
		acc.RecordWin(payout, m)
		acc.CrashHistory = models.PushFront(acc.CrashHistory, models.RoundRecord{
			Timestamp:   now,
			Bet:         round.bet,
			Win:         payout,
			Coefficient: m,
			IsWin:       true,
			Currency:    round.currency,
		}, g.history)
		return nil
	})
	if err != nil {
		return nil, err
	}

	round.cashOutAt = m
	round.payout = payout
	g.state = models.CrashCashedOut

	remaining := round.crashAt.Sub(now)
	if remaining < g.table.MinDisplay {
		remaining = g.table.MinDisplay
	}
	g.schedule(remaining, g.endFlight)

	g.log.WithFields(logrus.Fields{
		"round_id":   round.id,
		"multiplier": m,
		"payout":     payout,
	}).Info("Crash round cashed out")

	g.publish(models.EventRoundResolved, g.view())
	g.rewards.Refresh()
	g.rewards.ScheduleGiftOffer(payout, g.table.GiftDelay)

	return &models.GameResult{
		Game:        models.GameTypeCrash,
		RoundID:     round.id,
		Win:         true,
		Bet:         round.bet,
		Payout:      payout,
		Coefficient: m,
		Currency:    round.currency,
		Balances:    balances,
	}, nil
}

// crash resolves an uncashed round as a loss. Must be called with g.mu held.
func (g *CrashGame) crash() {
	if g.state != models.CrashActive {
		return
	}
	round := g.round
	now := g.clock.Now()

	if _, err := g.ledger.Update(context.Background(), func(acc *models.Account) error {
		acc.RecordLoss()
		acc.CrashHistory = models.PushFront(acc.CrashHistory, models.RoundRecord{
			Timestamp:   now,
			Bet:         round.bet,
			Coefficient: round.crashPoint,
			Currency:    round.currency,
		}, g.history)
		return nil
	}); err != nil {
		g.log.WithError(err).WithField("round_id", round.id).Error("Failed to record lost round")
	}

	g.state = models.CrashCrashed
	g.log.WithFields(logrus.Fields{"round_id": round.id, "crash_point": round.crashPoint}).Info("Crash round lost")

	g.publish(models.EventRoundResolved, g.view())
	g.rewards.Refresh()
	g.schedule(g.table.MinDisplay, g.beginCountdown)
}

// endFlight closes the display of a round that was already cashed out.
func (g *CrashGame) endFlight() {
	if g.state != models.CrashCashedOut {
		return
	}
	g.state = models.CrashCrashed
	g.publish(models.EventRoundResolved, g.view())
	g.schedule(g.table.MinDisplay, g.beginCountdown)
}

// Multiplier is the live multiplier of the current flight, or 0 when no
// rocket is in the air.
func (g *CrashGame) Multiplier() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.multiplier()
}

func (g *CrashGame) multiplier() float64 {
	if g.round == nil {
		return 0
	}
	switch g.state {
	case models.CrashActive, models.CrashCashedOut:
		return CrashMultiplier(g.table.GrowthBase, g.clock.Now().Sub(g.round.startedAt), g.round.crashPoint)
	case models.CrashCrashed:
		return g.round.crashPoint
	}
	return 0
}

func (g *CrashGame) State() *models.CrashRoundView {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.view()
}

// Busy reports whether a bet is riding on the current flight.
func (g *CrashGame) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == models.CrashActive
}

func (g *CrashGame) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	g.gen++
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

func (g *CrashGame) view() *models.CrashRoundView {
	acc := g.ledger.Snapshot()
	prev := acc.CrashHistory
	if len(prev) > g.table.StripSize {
		prev = prev[:g.table.StripSize]
	}

	v := &models.CrashRoundView{
		State:      g.state,
		PrevRounds: prev,
	}
	if g.state == models.CrashCountdown {
		ends := g.countdownEnds
		v.CountdownEndsAt = &ends
	}
	if r := g.round; r != nil {
		started := r.startedAt
		v.RoundID = r.id
		v.Bet = r.bet
		v.Currency = r.currency
		v.StartedAt = &started
		v.Multiplier = g.multiplier()
		v.CashOutAt = r.cashOutAt
		v.Payout = r.payout
		if g.state == models.CrashCrashed {
			v.CrashPoint = r.crashPoint
		}
	}
	return v
}

func (g *CrashGame) publish(t models.EventType, payload any) {
	g.events.Publish(models.Event{
		Type:    t,
		UserID:  g.ledger.UserID(),
		Game:    models.GameTypeCrash,
		Payload: payload,
		At:      g.clock.Now(),
	})
}
