// Package scoring holds the pure rules of the game: allocation validation
// and the NAV formulas. Nothing here touches storage.
package scoring

import (
	"fmt"

	"market-cards-scoring/models"
)

// ViolationKind classifies a single rule failure.
type ViolationKind string

const (
	SumMismatch     ViolationKind = "sum_mismatch"
	BelowMinimum    ViolationKind = "below_minimum"
	AboveMaximum    ViolationKind = "above_maximum"
	ScoreOutOfRange ViolationKind = "score_out_of_range"
)

// Violation is one failed rule. Asset is set for per-asset bounds, Field for
// score checks.
type Violation struct {
	Kind  ViolationKind `json:"kind"`
	Asset models.Asset  `json:"asset,omitempty"`
	Field string        `json:"field,omitempty"`
	Value int           `json:"value"`
	Limit int           `json:"limit"`
}

func (v Violation) String() string {
	switch v.Kind {
	case SumMismatch:
		return fmt.Sprintf("allocation sums to %d, want %d", v.Value, v.Limit)
	case BelowMinimum:
		return fmt.Sprintf("%s %d is below minimum %d", v.Asset, v.Value, v.Limit)
	case AboveMaximum:
		return fmt.Sprintf("%s %d is above maximum %d", v.Asset, v.Value, v.Limit)
	case ScoreOutOfRange:
		return fmt.Sprintf("%s score %d is outside 0..%d", v.Field, v.Value, v.Limit)
	}
	return string(v.Kind)
}

// Bounds is an inclusive percentage range.
type Bounds struct {
	Min int
	Max int
}

// Profile is a named set of per-asset bounds. Every profile requires the
// allocation to sum to exactly 100.
type Profile struct {
	Name   string
	Bounds map[models.Asset]Bounds
}

var (
	// ProfileStrict applies to allocations submitted in a round.
	ProfileStrict = Profile{
		Name: "strict",
		Bounds: map[models.Asset]Bounds{
			models.AssetEquity: {Min: 1, Max: 100},
			models.AssetDebt:   {Min: 1, Max: 100},
			models.AssetGold:   {Min: 1, Max: 25},
			models.AssetCash:   {Min: 1, Max: 25},
		},
	}

	// ProfileSetup applies to a team's initial allocation.
	ProfileSetup = Profile{
		Name: "setup",
		Bounds: map[models.Asset]Bounds{
			models.AssetEquity: {Min: 0, Max: 100},
			models.AssetDebt:   {Min: 0, Max: 100},
			models.AssetGold:   {Min: 0, Max: 100},
			models.AssetCash:   {Min: 0, Max: 100},
		},
	}
)

// TotalPercent is the only acceptable allocation sum.
const TotalPercent = 100

// Result is the outcome of Validate.
type Result struct {
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations,omitempty"`
}

// Validate checks an allocation against a profile and reports every failed
// rule. It never adjusts the input.
func Validate(a models.AssetAllocation, p Profile) Result {
	var violations []Violation

	if sum := a.Sum(); sum != TotalPercent {
		violations = append(violations, Violation{Kind: SumMismatch, Value: sum, Limit: TotalPercent})
	}

	for _, asset := range models.Assets {
		b, ok := p.Bounds[asset]
		if !ok {
			continue
		}
		v := a.Get(asset)
		if v < b.Min {
			violations = append(violations, Violation{Kind: BelowMinimum, Asset: asset, Value: v, Limit: b.Min})
		}
		if v > b.Max {
			violations = append(violations, Violation{Kind: AboveMaximum, Asset: asset, Value: v, Limit: b.Max})
		}
	}

	return Result{Valid: len(violations) == 0, Violations: violations}
}

// MaxScore caps pitch and emotion scores.
const MaxScore = 5

// ValidateScore checks a qualitative score (pitch or emotion) is in 0..MaxScore.
func ValidateScore(field string, value int) (Violation, bool) {
	if value < 0 || value > MaxScore {
		return Violation{Kind: ScoreOutOfRange, Field: field, Value: value, Limit: MaxScore}, false
	}
	return Violation{}, true
}
