package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var defaultTables []byte

// GameTables holds the game economics: coefficient tables, crash bands,
// task thresholds, gift and case catalogs.
type GameTables struct {
	HistoryLimit int          `yaml:"history_limit"`
	Mines        MinesTable   `yaml:"mines"`
	Crash        CrashTable   `yaml:"crash"`
	Rewards      RewardsTable `yaml:"rewards"`
	Tasks        []TaskDef    `yaml:"tasks"`
	Gifts        []GiftDef    `yaml:"gifts"`
	Cases        []CaseDef    `yaml:"cases"`
	DailyBonus   BonusTable   `yaml:"daily_bonus"`
	TopUp        TopUpTable   `yaml:"top_up"`
}

type MinesTable struct {
	GridSizes         []int           `yaml:"grid_sizes"`
	SizeFactors       map[int]float64 `yaml:"size_factors"`
	MineFactors       map[int]float64 `yaml:"mine_factors"`
	DefaultSizeFactor float64         `yaml:"default_size_factor"`
	DefaultMineFactor float64         `yaml:"default_mine_factor"`
	MinBet            int64           `yaml:"min_bet"`
	SettleDelay       time.Duration   `yaml:"settle_delay"`
	GiftDelay         time.Duration   `yaml:"gift_delay"`
}

type CrashTable struct {
	Countdown  time.Duration `yaml:"countdown"`
	GrowthBase float64       `yaml:"growth_base"`
	MinBet     int64         `yaml:"min_bet"`
	MinDisplay time.Duration `yaml:"min_display"`
	GiftDelay  time.Duration `yaml:"gift_delay"`
	StripSize  int           `yaml:"strip_size"`
	Bands      []CrashBand   `yaml:"bands"`
}

// CrashBand is one component of the crash point mixture: with the given
// probability the crash point is uniform in [Min, Max).
type CrashBand struct {
	Probability float64 `yaml:"probability"`
	Min         float64 `yaml:"min"`
	Max         float64 `yaml:"max"`
}

type RewardsTable struct {
	GiftDropThreshold int64         `yaml:"gift_drop_threshold"`
	SellRatio         float64       `yaml:"sell_ratio"`
	MaturityWindow    time.Duration `yaml:"maturity_window"`
}

type TaskDef struct {
	ID     int     `yaml:"id"`
	Name   string  `yaml:"name"`
	Stat   string  `yaml:"stat"`
	Target float64 `yaml:"target"`
	Reward int64   `yaml:"reward"`
}

type GiftDef struct {
	Type     string `yaml:"type"`
	Name     string `yaml:"name"`
	MinValue int64  `yaml:"min_value"`
	MaxValue int64  `yaml:"max_value"`
}

type CaseDef struct {
	ID       string     `yaml:"id"`
	Name     string     `yaml:"name"`
	Price    int64      `yaml:"price"`
	Currency string     `yaml:"currency"`
	Items    []CaseItem `yaml:"items"`
}

type CaseItem struct {
	Type   string `yaml:"type"`
	Name   string `yaml:"name"`
	Value  int64  `yaml:"value"`
	Weight int    `yaml:"weight"`
}

type BonusTable struct {
	Amount   int64         `yaml:"amount"`
	Cooldown time.Duration `yaml:"cooldown"`
}

type TopUpTable struct {
	HistoryLimit int                `yaml:"history_limit"`
	PromoCodes   map[string]float64 `yaml:"promo_codes"`
	Packages     []StarPackage      `yaml:"packages"`
}

type StarPackage struct {
	Stars int64 `yaml:"stars"`
	Coins int64 `yaml:"coins"`
}

// LoadTables parses the game tables at path, or the built-in tables when
// path is empty.
func LoadTables(path string) (*GameTables, error) {
	data := defaultTables
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read game tables: %w", err)
		}
		data = raw
	}
	return ParseTables(data)
}

func ParseTables(data []byte) (*GameTables, error) {
	var tables GameTables
	if err := yaml.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("failed to parse game tables: %w", err)
	}
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	return &tables, nil
}

// DefaultTables returns the built-in tables. It panics if the embedded
// file is invalid, which is a build defect.
func DefaultTables() *GameTables {
	tables, err := ParseTables(defaultTables)
	if err != nil {
		panic(err)
	}
	return tables
}

func (t *GameTables) Validate() error {
	var errs []error

	if t.HistoryLimit <= 0 {
		errs = append(errs, errors.New("history_limit must be positive"))
	}
	if len(t.Mines.GridSizes) == 0 {
		errs = append(errs, errors.New("mines.grid_sizes must not be empty"))
	}
	if t.Mines.MinBet <= 0 || t.Crash.MinBet <= 0 {
		errs = append(errs, errors.New("min_bet must be positive"))
	}
	if t.Crash.GrowthBase <= 1 {
		errs = append(errs, errors.New("crash.growth_base must be greater than 1"))
	}

	var total float64
	for i, band := range t.Crash.Bands {
		if band.Probability < 0 {
			errs = append(errs, fmt.Errorf("crash.bands[%d]: negative probability", i))
		}
		if band.Min < 1 || band.Max <= band.Min {
			errs = append(errs, fmt.Errorf("crash.bands[%d]: invalid range [%g, %g)", i, band.Min, band.Max))
		}
		total += band.Probability
	}
	if math.Abs(total-1) > 1e-9 {
		errs = append(errs, fmt.Errorf("crash.bands: probabilities sum to %g, want 1", total))
	}

	seen := make(map[int]bool)
	for _, task := range t.Tasks {
		if seen[task.ID] {
			errs = append(errs, fmt.Errorf("tasks: duplicate id %d", task.ID))
		}
		seen[task.ID] = true
		if task.Target <= 0 {
			errs = append(errs, fmt.Errorf("tasks[%d]: target must be positive", task.ID))
		}
	}

	for _, c := range t.Cases {
		positive := false
		for _, item := range c.Items {
			if item.Weight < 0 {
				errs = append(errs, fmt.Errorf("cases[%s]: negative weight for %s", c.ID, item.Type))
			}
			if item.Weight > 0 {
				positive = true
			}
		}
		if !positive {
			errs = append(errs, fmt.Errorf("cases[%s]: no item with positive weight", c.ID))
		}
	}

	if t.Rewards.SellRatio < 0 || t.Rewards.SellRatio > 1 {
		errs = append(errs, errors.New("rewards.sell_ratio must be within [0, 1]"))
	}

	return errors.Join(errs...)
}

func (t *GameTables) Case(id string) (CaseDef, bool) {
	for _, c := range t.Cases {
		if c.ID == id {
			return c, true
		}
	}
	return CaseDef{}, false
}

func (t *GameTables) Task(id int) (TaskDef, bool) {
	for _, task := range t.Tasks {
		if task.ID == id {
			return task, true
		}
	}
	return TaskDef{}, false
}

func (m MinesTable) AllowsGridSize(size int) bool {
	for _, s := range m.GridSizes {
		if s == size {
			return true
		}
	}
	return false
}
