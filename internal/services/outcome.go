package services

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"miniapp-games/internal/config"
	"miniapp-games/internal/models"
)

// RandomSource is the randomness behind every draw. Tests substitute a
// scripted source.
type RandomSource interface {
	Float64() float64
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }
func (globalSource) IntN(n int) int   { return rand.IntN(n) }

// DefaultSource draws from the process-wide math/rand/v2 generator.
func DefaultSource() RandomSource {
	return globalSource{}
}

type OutcomeGenerator interface {
	DrawMinePositions(totalCells, mineCount int) ([]int, error)
	DrawCrashPoint() float64
	DrawWeighted(weights []int) (int, error)
	DrawEligibleGift(winAmount int64, catalog []config.GiftDef) (config.GiftDef, bool)
}

type RandomOutcomes struct {
	src   RandomSource
	bands []config.CrashBand
}

func NewOutcomeGenerator(src RandomSource, bands []config.CrashBand) *RandomOutcomes {
	return &RandomOutcomes{src: src, bands: bands}
}

// DrawMinePositions samples mineCount distinct cells with a partial
// Fisher-Yates shuffle. The result is sorted.
func (g *RandomOutcomes) DrawMinePositions(totalCells, mineCount int) ([]int, error) {
	if mineCount < 1 || mineCount >= totalCells {
		return nil, fmt.Errorf("%w: %d mines on %d cells", ErrInvalidConfig, mineCount, totalCells)
	}

	cells := make([]int, totalCells)
	for i := range cells {
		cells[i] = i
	}
	for i := 0; i < mineCount; i++ {
		j := i + g.src.IntN(totalCells-i)
		cells[i], cells[j] = cells[j], cells[i]
	}

	positions := append([]int(nil), cells[:mineCount]...)
	sort.Ints(positions)
	return positions, nil
}

// DrawCrashPoint picks a band by its probability, then a uniform point in
// the band, floored to two decimals.
func (g *RandomOutcomes) DrawCrashPoint() float64 {
	band := g.bands[len(g.bands)-1]
	r := g.src.Float64()
	var cumulative float64
	for _, b := range g.bands {
		cumulative += b.Probability
		if r < cumulative {
			band = b
			break
		}
	}

	u := g.src.Float64()
	point := decimal.NewFromFloat(band.Min + u*(band.Max-band.Min)).RoundFloor(2)
	if point.LessThan(decimal.NewFromInt(1)) {
		return 1
	}
	return point.InexactFloat64()
}

// DrawWeighted returns an index into weights. Zero weights are never drawn.
func (g *RandomOutcomes) DrawWeighted(weights []int) (int, error) {
	total := 0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total == 0 {
		return 0, fmt.Errorf("%w: no positive weight", ErrInvalidConfig)
	}

	n := g.src.IntN(total)
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		if n < w {
			return i, nil
		}
		n -= w
	}
	return len(weights) - 1, nil
}

// DrawEligibleGift picks uniformly among catalog entries whose minimum value
// the win covers.
func (g *RandomOutcomes) DrawEligibleGift(winAmount int64, catalog []config.GiftDef) (config.GiftDef, bool) {
	var eligible []config.GiftDef
	for _, gift := range catalog {
		if winAmount >= gift.MinValue {
			eligible = append(eligible, gift)
		}
	}
	if len(eligible) == 0 {
		return config.GiftDef{}, false
	}
	return eligible[g.src.IntN(len(eligible))], true
}

// MinesCoefficient is sizeFactor × mineFactor, computed exactly.
func MinesCoefficient(table config.MinesTable, cfg models.MinesConfig) float64 {
	size, ok := table.SizeFactors[cfg.GridSize]
	if !ok {
		size = table.DefaultSizeFactor
	}
	mines, ok := table.MineFactors[cfg.MineCount]
	if !ok {
		mines = table.DefaultMineFactor
	}
	return decimal.NewFromFloat(size).Mul(decimal.NewFromFloat(mines)).InexactFloat64()
}

// Payout is floor(bet × coefficient). It never rounds up.
func Payout(bet int64, coefficient float64) int64 {
	return decimal.NewFromInt(bet).Mul(decimal.NewFromFloat(coefficient)).Floor().IntPart()
}

// CrashMultiplier is base^t rounded to six decimals and clamped to the
// crash point.
func CrashMultiplier(base float64, elapsed time.Duration, crashPoint float64) float64 {
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed >= CrashDelay(base, crashPoint) {
		return crashPoint
	}
	m := decimal.NewFromFloat(math.Pow(base, elapsed.Seconds())).Round(6).InexactFloat64()
	return math.Min(m, crashPoint)
}

// CrashDelay is the elapsed time at which base^t reaches crashPoint.
func CrashDelay(base, crashPoint float64) time.Duration {
	if crashPoint <= 1 {
		return 0
	}
	return time.Duration(math.Log(crashPoint) / math.Log(base) * float64(time.Second))
}

func sellPrice(value int64, ratio float64) int64 {
	return Payout(value, ratio)
}
