package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"miniapp-games/internal/clock"
	"miniapp-games/internal/config"
	"miniapp-games/internal/models"
)

type minesRound struct {
	id           string
	config       models.MinesConfig
	bet          int64
	currency     models.Currency
	coefficient  float64
	mines        []bool
	revealed     []bool
	revealedSafe int
	canCashOut   bool
	payout       int64
}

// MinesGame runs one grid-reveal round at a time for a single player.
type MinesGame struct {
	mu       sync.Mutex
	table    config.MinesTable
	history  int
	ledger   *Ledger
	rewards  *Rewards
	outcomes OutcomeGenerator
	events   Broadcaster
	clock    clock.Clock
	log      logrus.FieldLogger

	state models.MinesState
	round *minesRound
	reset clock.Timer
	gen   uint64
}

func NewMinesGame(tables *config.GameTables, ledger *Ledger, rewards *Rewards, outcomes OutcomeGenerator, events Broadcaster, clk clock.Clock, log logrus.FieldLogger) *MinesGame {
	return &MinesGame{
		table:    tables.Mines,
		history:  tables.HistoryLimit,
		ledger:   ledger,
		rewards:  rewards,
		outcomes: outcomes,
		events:   events,
		clock:    clk,
		log:      log.WithFields(logrus.Fields{"user_id": ledger.UserID(), "game": models.GameTypeMines}),
		state:    models.MinesIdle,
	}
}

// Start debits the bet and lays out a new board.
func (g *MinesGame) Start(ctx context.Context, cfg models.MinesConfig, bet int64, currency models.Currency) (*models.MinesRoundView, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != models.MinesIdle {
		return nil, fmt.Errorf("%w: mines round is %s", ErrInvalidState, g.state)
	}
	if !g.table.AllowsGridSize(cfg.GridSize) {
		return nil, fmt.Errorf("%w: grid size %d", ErrInvalidConfig, cfg.GridSize)
	}
	if cfg.MineCount < 1 || cfg.MineCount >= cfg.TotalCells() {
		return nil, fmt.Errorf("%w: %d mines on a %dx%d grid", ErrInvalidConfig, cfg.MineCount, cfg.GridSize, cfg.GridSize)
	}
	if bet < g.table.MinBet {
		return nil, fmt.Errorf("%w: minimum bet is %d", ErrInvalidBet, g.table.MinBet)
	}

	positions, err := g.outcomes.DrawMinePositions(cfg.TotalCells(), cfg.MineCount)
	if err != nil {
		return nil, err
	}

	if _, err := g.ledger.Debit(ctx, currency, bet); err != nil {
		return nil, err
	}

	round := &minesRound{
		id:          models.GenerateRoundID(models.GameTypeMines),
		config:      cfg,
		bet:         bet,
		currency:    currency,
		coefficient: MinesCoefficient(g.table, cfg),
		mines:       make([]bool, cfg.TotalCells()),
		revealed:    make([]bool, cfg.TotalCells()),
	}
	for _, p := range positions {
		round.mines[p] = true
	}

	g.round = round
	g.state = models.MinesActive

	g.log.WithFields(logrus.Fields{
		"round_id":    round.id,
		"bet":         bet,
		"coefficient": round.coefficient,
	}).Debug("Mines round started")

	view := g.view()
	g.publish(models.EventRoundStarted, view)
	return view, nil
}

// Reveal opens a cell. Calls outside an active round or on an open cell
// are ignored and return a nil view.
func (g *MinesGame) Reveal(ctx context.Context, cell int) (*models.MinesRoundView, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != models.MinesActive {
		return nil, nil
	}
	round := g.round
	if cell < 0 || cell >= len(round.mines) {
		return nil, fmt.Errorf("%w: cell %d out of range", ErrInvalidConfig, cell)
	}
	if round.revealed[cell] {
		return nil, nil
	}
	round.revealed[cell] = true

	if round.mines[cell] {
		g.publish(models.EventCellRevealed, models.CellView{Index: cell, Revealed: true, Mine: true})
		g.lose(ctx)
		return g.view(), nil
	}

	round.revealedSafe++
	round.canCashOut = true
	g.publish(models.EventCellRevealed, models.CellView{Index: cell, Revealed: true})

	if round.revealedSafe == round.config.TotalCells()-round.config.MineCount {
		if _, err := g.win(ctx); err != nil {
			return nil, err
		}
	}
	return g.view(), nil
}

// CashOut settles an active round at its coefficient. It is a no-op
// before the first safe reveal and after resolution.
func (g *MinesGame) CashOut(ctx context.Context) (*models.GameResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != models.MinesActive || !g.round.canCashOut {
		return nil, nil
	}
	return g.win(ctx)
}

func (g *MinesGame) win(ctx context.Context) (*models.GameResult, error) {
	round := g.round
	payout := Payout(round.bet, round.coefficient)
	now := g.clock.Now()

	balances, err := g.ledger.Update(ctx, func(acc *models.Account) error {
		if err := acc.Balances.Add(round.currency, payout); err != nil {
			return err
		}
		acc.RecordWin(payout, round.coefficient)
		acc.GameHistory = models.PushFront(acc.GameHistory, models.RoundRecord{
			Timestamp:   now,
			Bet:         round.bet,
			Win:         payout,
			Coefficient: round.coefficient,
			IsWin:       true,
			Currency:    round.currency,
		}, g.history)
		return nil
	})
	if err != nil {
		return nil, err
	}

	round.payout = payout
	round.canCashOut = false
	g.state = models.MinesWon
	g.log.WithFields(logrus.Fields{"round_id": round.id, "payout": payout}).Info("Mines round won")

	result := &models.GameResult{
		Game:        models.GameTypeMines,
		RoundID:     round.id,
		Win:         true,
		Bet:         round.bet,
		Payout:      payout,
		Coefficient: round.coefficient,
		Currency:    round.currency,
		Balances:    balances,
	}
	g.publish(models.EventRoundResolved, g.view())
	g.rewards.Refresh()
	g.rewards.ScheduleGiftOffer(payout, g.table.GiftDelay)
	g.scheduleReset()
	return result, nil
}

func (g *MinesGame) lose(ctx context.Context) {
	round := g.round
	now := g.clock.Now()

	// the bet was already debited; only stats and history change here
	if _, err := g.ledger.Update(ctx, func(acc *models.Account) error {
		acc.RecordLoss()
		acc.GameHistory = models.PushFront(acc.GameHistory, models.RoundRecord{
			Timestamp:   now,
			Bet:         round.bet,
			Coefficient: round.coefficient,
			Currency:    round.currency,
		}, g.history)
		return nil
	}); err != nil {
		g.log.WithError(err).WithField("round_id", round.id).Error("Failed to record lost round")
	}

	round.canCashOut = false
	g.state = models.MinesLost
	g.log.WithField("round_id", round.id).Info("Mines round lost")

	g.publish(models.EventRoundResolved, g.view())
	g.rewards.Refresh()
	g.scheduleReset()
}

func (g *MinesGame) scheduleReset() {
	g.gen++
	gen := g.gen
	g.reset = g.clock.AfterFunc(g.table.SettleDelay, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.gen != gen || (g.state != models.MinesWon && g.state != models.MinesLost) {
			return
		}
		g.state = models.MinesIdle
		g.round = nil
		g.reset = nil
		g.publish(models.EventRoundReset, &models.MinesRoundView{State: models.MinesIdle})
	})
}

func (g *MinesGame) State() *models.MinesRoundView {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.view()
}

// Busy reports whether a round is live or still settling.
func (g *MinesGame) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state != models.MinesIdle
}

func (g *MinesGame) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gen++
	if g.reset != nil {
		g.reset.Stop()
		g.reset = nil
	}
}

// view must be called with g.mu held. Mines stay hidden until the round
// resolves.
func (g *MinesGame) view() *models.MinesRoundView {
	if g.round == nil {
		return &models.MinesRoundView{State: g.state}
	}
	r := g.round
	resolved := g.state == models.MinesWon || g.state == models.MinesLost
	cells := make([]models.CellView, len(r.mines))
	for i := range cells {
		cells[i] = models.CellView{Index: i, Revealed: r.revealed[i]}
		if r.mines[i] && (r.revealed[i] || resolved) {
			cells[i].Mine = true
			cells[i].Revealed = true
		}
	}
	return &models.MinesRoundView{
		RoundID:      r.id,
		State:        g.state,
		Config:       r.config,
		Bet:          r.bet,
		Currency:     r.currency,
		Coefficient:  r.coefficient,
		RevealedSafe: r.revealedSafe,
		CanCashOut:   r.canCashOut,
		Payout:       r.payout,
		Cells:        cells,
	}
}

func (g *MinesGame) publish(t models.EventType, payload any) {
	g.events.Publish(models.Event{
		Type:    t,
		UserID:  g.ledger.UserID(),
		Game:    models.GameTypeMines,
		Payload: payload,
		At:      g.clock.Now(),
	})
}
