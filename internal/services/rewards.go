package services

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"miniapp-games/internal/clock"
	"miniapp-games/internal/config"
	"miniapp-games/internal/models"
)

// Rewards derives task progress from account stats and runs the gift-drop
// choice and the inventory.
type Rewards struct {
	mu       sync.Mutex
	tables   *config.GameTables
	ledger   *Ledger
	outcomes OutcomeGenerator
	events   Broadcaster
	clock    clock.Clock
	log      logrus.FieldLogger

	pending   *models.GiftDrop
	announced map[int]bool
	timers    map[clock.Timer]struct{}
	closed    bool
}

func NewRewards(tables *config.GameTables, ledger *Ledger, outcomes OutcomeGenerator, events Broadcaster, clk clock.Clock, log logrus.FieldLogger) *Rewards {
	r := &Rewards{
		tables:    tables,
		ledger:    ledger,
		outcomes:  outcomes,
		events:    events,
		clock:     clk,
		log:       log.WithField("user_id", ledger.UserID()),
		announced: make(map[int]bool),
		timers:    make(map[clock.Timer]struct{}),
	}

	// tasks that were already reachable when the session opened are not
	// announced again
	acc := ledger.Snapshot()
	for _, task := range tables.Tasks {
		if statValue(acc, task.Stat) >= task.Target {
			r.announced[task.ID] = true
		}
	}
	return r
}

func statValue(acc *models.Account, stat string) float64 {
	switch stat {
	case "games_played":
		return float64(acc.Stats.GamesPlayed)
	case "games_won":
		return float64(acc.Stats.GamesWon)
	case "games_lost":
		return float64(acc.Stats.GamesLost)
	case "total_won":
		return float64(acc.Stats.TotalWon)
	case "max_coefficient":
		return acc.Stats.MaxCoefficient
	case "consecutive_wins":
		return float64(acc.ConsecutiveWins)
	}
	return 0
}

func taskView(task config.TaskDef, acc *models.Account) models.TaskView {
	progress := math.Min(statValue(acc, task.Stat), task.Target)
	return models.TaskView{
		ID:       task.ID,
		Name:     task.Name,
		Target:   task.Target,
		Progress: progress,
		Reward:   task.Reward,
		Claimed:  acc.Tasks[task.ID],
		Ready:    !acc.Tasks[task.ID] && progress >= task.Target,
	}
}

func (r *Rewards) Tasks() []models.TaskView {
	acc := r.ledger.Snapshot()
	views := make([]models.TaskView, 0, len(r.tables.Tasks))
	for _, task := range r.tables.Tasks {
		views = append(views, taskView(task, acc))
	}
	return views
}

// Claim credits a task reward once. Claiming an unfinished or already
// claimed task is a no-op and reports false.
func (r *Rewards) Claim(ctx context.Context, taskID int) (bool, error) {
	task, ok := r.tables.Task(taskID)
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrTaskNotFound, taskID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	claimed := false
	_, err := r.ledger.Update(ctx, func(acc *models.Account) error {
		if acc.Tasks[task.ID] || statValue(acc, task.Stat) < task.Target {
			return nil
		}
		acc.Tasks[task.ID] = true
		claimed = true
		return acc.Balances.Add(models.CurrencySilver, task.Reward)
	})
	if err != nil {
		return false, err
	}
	if claimed {
		r.log.WithFields(logrus.Fields{"task_id": task.ID, "reward": task.Reward}).Info("Task reward claimed")
	}
	return claimed, nil
}

// Refresh announces tasks that became claimable since the last call.
func (r *Rewards) Refresh() {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc := r.ledger.Snapshot()
	for _, task := range r.tables.Tasks {
		if r.announced[task.ID] || acc.Tasks[task.ID] {
			continue
		}
		if statValue(acc, task.Stat) < task.Target {
			continue
		}
		r.announced[task.ID] = true
		r.events.Publish(models.Event{
			Type:    models.EventTaskCompleted,
			UserID:  r.ledger.UserID(),
			Payload: taskView(task, acc),
			At:      r.clock.Now(),
		})
	}
}

// ScheduleGiftOffer draws a gift drop for winAmount after delay.
func (r *Rewards) ScheduleGiftOffer(winAmount int64, delay time.Duration) {
	if winAmount < r.tables.Rewards.GiftDropThreshold {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	var t clock.Timer
	t = r.clock.AfterFunc(delay, func() {
		r.mu.Lock()
		delete(r.timers, t)
		r.mu.Unlock()
		r.OfferGift(winAmount)
	})
	r.timers[t] = struct{}{}
}

// OfferGift presents a gift worth winAmount. An undecided earlier drop is
// discarded.
func (r *Rewards) OfferGift(winAmount int64) (*models.GiftDrop, bool) {
	if winAmount < r.tables.Rewards.GiftDropThreshold {
		return nil, false
	}
	def, ok := r.outcomes.DrawEligibleGift(winAmount, r.tables.Gifts)
	if !ok {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, false
	}

	drop := &models.GiftDrop{
		ID:        models.GenerateDropID(),
		Type:      def.Type,
		Name:      def.Name,
		Value:     winAmount,
		Tier:      models.GiftTier(winAmount),
		SellPrice: sellPrice(winAmount, r.tables.Rewards.SellRatio),
		OfferedAt: r.clock.Now(),
	}
	if r.pending != nil {
		r.log.WithField("drop_id", r.pending.ID).Debug("Replacing undecided gift drop")
	}
	r.pending = drop

	r.events.Publish(models.Event{
		Type:    models.EventGiftDropped,
		UserID:  r.ledger.UserID(),
		Payload: drop,
		At:      drop.OfferedAt,
	})
	return drop, true
}

func (r *Rewards) PendingDrop() *models.GiftDrop {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == nil {
		return nil
	}
	d := *r.pending
	return &d
}

// takeDrop must be called with r.mu held.
func (r *Rewards) takeDrop(dropID string) (*models.GiftDrop, error) {
	if r.pending == nil || (dropID != "" && r.pending.ID != dropID) {
		return nil, ErrNoPendingGift
	}
	return r.pending, nil
}

// KeepDrop moves the pending drop into the inventory as an active gift.
func (r *Rewards) KeepDrop(ctx context.Context, dropID string) (models.Gift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	drop, err := r.takeDrop(dropID)
	if err != nil {
		return models.Gift{}, err
	}

	var gift models.Gift
	_, err = r.ledger.Update(ctx, func(acc *models.Account) error {
		gift = models.Gift{
			ID:         nextGiftID(acc.Inventory, r.clock.Now()),
			Type:       drop.Type,
			Name:       drop.Name,
			Value:      drop.Value,
			ReceivedAt: r.clock.Now(),
			Status:     models.GiftActive,
		}
		acc.Inventory = append(acc.Inventory, gift)
		return nil
	})
	if err != nil {
		return models.Gift{}, err
	}
	r.pending = nil
	return gift, nil
}

// SellDrop converts the pending drop straight into silver.
func (r *Rewards) SellDrop(ctx context.Context, dropID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	drop, err := r.takeDrop(dropID)
	if err != nil {
		return 0, err
	}
	if _, err := r.ledger.Credit(ctx, models.CurrencySilver, drop.SellPrice); err != nil {
		return 0, err
	}
	r.pending = nil
	return drop.SellPrice, nil
}

// DismissDrop discards the pending drop with no ledger effect.
func (r *Rewards) DismissDrop(dropID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.takeDrop(dropID); err != nil {
		return err
	}
	r.pending = nil
	return nil
}

func (r *Rewards) Inventory() models.Inventory {
	acc := r.ledger.Snapshot()
	now := r.clock.Now()
	inv := models.Inventory{Active: []models.Gift{}, Ready: []models.Gift{}, Sold: []models.Gift{}}
	for _, g := range acc.Inventory {
		switch {
		case g.Status == models.GiftSold:
			inv.Sold = append(inv.Sold, g)
		case g.Matured(now, r.tables.Rewards.MaturityWindow):
			inv.Ready = append(inv.Ready, g)
		default:
			inv.Active = append(inv.Active, g)
		}
	}
	return inv
}

// SellGift marks an inventory gift Sold and credits its sell price.
func (r *Rewards) SellGift(ctx context.Context, giftID int64) (int64, error) {
	var price int64
	_, err := r.ledger.Update(ctx, func(acc *models.Account) error {
		for i := range acc.Inventory {
			g := &acc.Inventory[i]
			if g.ID != giftID {
				continue
			}
			if g.Status == models.GiftSold {
				return fmt.Errorf("%w: %d", ErrGiftSold, giftID)
			}
			g.Status = models.GiftSold
			price = sellPrice(g.Value, r.tables.Rewards.SellRatio)
			return acc.Balances.Add(models.CurrencySilver, price)
		}
		return fmt.Errorf("%w: %d", ErrGiftNotFound, giftID)
	})
	if err != nil {
		return 0, err
	}
	return price, nil
}

func (r *Rewards) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for t := range r.timers {
		t.Stop()
	}
	r.timers = nil
}

func nextGiftID(inventory []models.Gift, now time.Time) int64 {
	id := now.UnixMilli()
	for _, g := range inventory {
		if g.ID >= id {
			id = g.ID + 1
		}
	}
	return id
}
