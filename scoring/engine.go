package scoring

import (
	"errors"
	"fmt"

	"market-cards-scoring/models"

	"github.com/shopspring/decimal"
)

// ErrAllocationNotNormalized is returned when the engine is handed an
// allocation that does not sum to 100. Callers validate first; reaching this
// is a programming error.
var ErrAllocationNotNormalized = errors.New("scoring: allocation does not sum to 100")

// NAVPlaces is the number of fraction digits NAV is stored with.
const NAVPlaces = 2

var one = decimal.NewFromInt(1)

// weightedSum computes Σ (allocation[a]/100) * rates[a] exactly.
func weightedSum(a models.AssetAllocation, rates models.AssetRates) (decimal.Decimal, error) {
	if sum := a.Sum(); sum != TotalPercent {
		return decimal.Zero, fmt.Errorf("%w (got %d)", ErrAllocationNotNormalized, sum)
	}
	total := decimal.Zero
	for _, asset := range models.Assets {
		weight := decimal.NewFromInt(int64(a.Get(asset)))
		total = total.Add(weight.Mul(rates.Get(asset)))
	}
	return total.Shift(-2), nil
}

// WeightedReturn is the allocation-weighted return of a market event, in percent.
func WeightedReturn(a models.AssetAllocation, returns models.AssetRates) (decimal.Decimal, error) {
	return weightedSum(a, returns)
}

// ApplyEventReturn grows navBefore by the weighted return and then adds the
// pitch and emotion scores as flat points.
func ApplyEventReturn(navBefore, weightedReturnPct decimal.Decimal, pitchScore, emotionScore int) decimal.Decimal {
	grown := navBefore.Mul(one.Add(weightedReturnPct.Shift(-2)))
	return grown.Add(decimal.NewFromInt(int64(pitchScore + emotionScore)))
}

// WeightedModifier is the allocation-weighted modifier of a shock card, in percent.
func WeightedModifier(a models.AssetAllocation, modifiers models.AssetRates) (decimal.Decimal, error) {
	return weightedSum(a, modifiers)
}

// ApplyShockModifier scales nav by the weighted modifier. Shocks never add
// flat points; a zero modifier returns nav itself.
func ApplyShockModifier(nav, weightedModifierPct decimal.Decimal) decimal.Decimal {
	if weightedModifierPct.IsZero() {
		return nav
	}
	return nav.Mul(one.Add(weightedModifierPct.Shift(-2)))
}

// RoundNAV rounds to the stored scale, half away from zero. Apply it only
// when a value is about to be persisted.
func RoundNAV(nav decimal.Decimal) decimal.Decimal {
	return nav.Round(NAVPlaces)
}

// EventResult is a team's outcome for a market event.
type EventResult struct {
	WeightedReturn decimal.Decimal
	NAVAfter       decimal.Decimal // rounded for storage
}

// ScoreEvent runs WeightedReturn and ApplyEventReturn and rounds the result once.
func ScoreEvent(navBefore decimal.Decimal, a models.AssetAllocation, returns models.AssetRates, pitchScore, emotionScore int) (EventResult, error) {
	wr, err := WeightedReturn(a, returns)
	if err != nil {
		return EventResult{}, err
	}
	return EventResult{
		WeightedReturn: wr,
		NAVAfter:       RoundNAV(ApplyEventReturn(navBefore, wr, pitchScore, emotionScore)),
	}, nil
}

// ShockResult is a team's outcome for a shock card.
type ShockResult struct {
	WeightedModifier decimal.Decimal
	NAV              decimal.Decimal // rounded for storage
}

// ScoreShock runs WeightedModifier and ApplyShockModifier on an already stored NAV.
func ScoreShock(nav decimal.Decimal, a models.AssetAllocation, modifiers models.AssetRates) (ShockResult, error) {
	wm, err := WeightedModifier(a, modifiers)
	if err != nil {
		return ShockResult{}, err
	}
	return ShockResult{
		WeightedModifier: wm,
		NAV:              RoundNAV(ApplyShockModifier(nav, wm)),
	}, nil
}
