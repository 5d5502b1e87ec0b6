package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"miniapp-games/internal/clock"
	"miniapp-games/internal/config"
	"miniapp-games/internal/models"
)

// Cases sells prize cases. An opened prize waits in a single slot until
// it is claimed or dismissed.
type Cases struct {
	mu       sync.Mutex
	tables   *config.GameTables
	ledger   *Ledger
	outcomes OutcomeGenerator
	clock    clock.Clock
	log      logrus.FieldLogger
	pending  *models.CasePrize
}

func NewCases(tables *config.GameTables, ledger *Ledger, outcomes OutcomeGenerator, clk clock.Clock, log logrus.FieldLogger) *Cases {
	return &Cases{
		tables:   tables,
		ledger:   ledger,
		outcomes: outcomes,
		clock:    clk,
		log:      log.WithField("user_id", ledger.UserID()),
	}
}

func (c *Cases) Catalog() []config.CaseDef {
	return c.tables.Cases
}

// Open charges the case price and draws a prize.
func (c *Cases) Open(ctx context.Context, caseID string) (*models.CasePrize, error) {
	def, ok := c.tables.Case(caseID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCase, caseID)
	}

	weights := make([]int, len(def.Items))
	for i, item := range def.Items {
		weights[i] = item.Weight
	}
	idx, err := c.outcomes.DrawWeighted(weights)
	if err != nil {
		return nil, err
	}
	item := def.Items[idx]

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.ledger.Debit(ctx, models.Currency(def.Currency), def.Price); err != nil {
		return nil, err
	}

	prize := &models.CasePrize{
		ID:     uuid.NewString(),
		CaseID: def.ID,
		Type:   item.Type,
		Name:   item.Name,
		Value:  item.Value,
	}
	c.pending = prize
	c.log.WithFields(logrus.Fields{"case": def.ID, "prize": item.Type}).Debug("Case opened")

	p := *prize
	return &p, nil
}

func (c *Cases) Pending() *models.CasePrize {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return nil
	}
	p := *c.pending
	return &p
}

// Claim credits the pending prize in silver and records it.
func (c *Cases) Claim(ctx context.Context, prizeID string) (models.Balances, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil || c.pending.ID != prizeID {
		return c.ledger.Balances(), ErrNoPendingPrize
	}
	prize := c.pending

	balances, err := c.ledger.Update(ctx, func(acc *models.Account) error {
		if err := acc.Balances.Add(models.CurrencySilver, prize.Value); err != nil {
			return err
		}
		acc.CaseHistory = models.PushFront(acc.CaseHistory, models.CaseRecord{
			Timestamp: c.clock.Now(),
			Case:      prize.CaseID,
			Reward:    prize.Name,
			Value:     prize.Value,
		}, c.tables.HistoryLimit)
		return nil
	})
	if err != nil {
		return balances, err
	}
	c.pending = nil
	return balances, nil
}

func (c *Cases) Dismiss(prizeID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil || c.pending.ID != prizeID {
		return ErrNoPendingPrize
	}
	c.pending = nil
	return nil
}
