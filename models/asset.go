package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Asset names one of the four asset classes a team allocates across.
type Asset string

const (
	AssetEquity Asset = "equity"
	AssetDebt   Asset = "debt"
	AssetGold   Asset = "gold"
	AssetCash   Asset = "cash"
)

// Assets lists the asset classes in their canonical column order.
var Assets = []Asset{AssetEquity, AssetDebt, AssetGold, AssetCash}

// AssetAllocation is a set of integer percentages, one per asset class.
type AssetAllocation struct {
	Equity int `json:"equity"`
	Debt   int `json:"debt"`
	Gold   int `json:"gold"`
	Cash   int `json:"cash"`
}

// Get returns the percentage allocated to a.
func (a AssetAllocation) Get(asset Asset) int {
	switch asset {
	case AssetEquity:
		return a.Equity
	case AssetDebt:
		return a.Debt
	case AssetGold:
		return a.Gold
	case AssetCash:
		return a.Cash
	}
	return 0
}

// Sum is the total allocated percentage.
func (a AssetAllocation) Sum() int {
	return a.Equity + a.Debt + a.Gold + a.Cash
}

func (a AssetAllocation) String() string {
	return fmt.Sprintf("E%d/D%d/G%d/C%d", a.Equity, a.Debt, a.Gold, a.Cash)
}

// AssetRates carries a percentage per asset class with two fraction digits:
// a color card's returns or a black card's modifiers.
type AssetRates struct {
	Equity decimal.Decimal `json:"equity" gorm:"type:numeric(12,2);not null;default:0"`
	Debt   decimal.Decimal `json:"debt" gorm:"type:numeric(12,2);not null;default:0"`
	Gold   decimal.Decimal `json:"gold" gorm:"type:numeric(12,2);not null;default:0"`
	Cash   decimal.Decimal `json:"cash" gorm:"type:numeric(12,2);not null;default:0"`
}

// Get returns the rate for a.
func (r AssetRates) Get(asset Asset) decimal.Decimal {
	switch asset {
	case AssetEquity:
		return r.Equity
	case AssetDebt:
		return r.Debt
	case AssetGold:
		return r.Gold
	case AssetCash:
		return r.Cash
	}
	return decimal.Zero
}

// Input errors for phase and mode names.
var (
	ErrUnknownPhase = errors.New("unknown phase")
	ErrUnknownMode  = errors.New("unknown mode")
)

// Phase is a market regime tag; each phase has its own color-card pool.
type Phase string

const (
	PhaseGreen  Phase = "green"
	PhaseBlue   Phase = "blue"
	PhaseOrange Phase = "orange"
	PhaseRed    Phase = "red"
)

// Phases lists every phase in draw order.
var Phases = []Phase{PhaseGreen, PhaseBlue, PhaseOrange, PhaseRed}

// ParsePhase accepts a phase name in any case.
func ParsePhase(s string) (Phase, error) {
	p := Phase(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w %q", ErrUnknownPhase, s)
	}
	return p, nil
}

func (p Phase) Valid() bool {
	switch p {
	case PhaseGreen, PhaseBlue, PhaseOrange, PhaseRed:
		return true
	}
	return false
}

// PhaseForPrefix maps a card-number prefix letter to its phase.
func PhaseForPrefix(prefix byte) (Phase, bool) {
	switch prefix {
	case 'G', 'g':
		return PhaseGreen, true
	case 'B', 'b':
		return PhaseBlue, true
	case 'O', 'o':
		return PhaseOrange, true
	case 'R', 'r':
		return PhaseRed, true
	}
	return "", false
}

// Mode selects how market events are chosen.
type Mode string

const (
	// ModeVirtual draws a phase and card at random.
	ModeVirtual Mode = "virtual"
	// ModeInPerson lets the facilitator pick the card.
	ModeInPerson Mode = "in-person"
)

// ParseMode accepts "virtual" or "in-person" (also "in_person", "inperson").
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "virtual", "automated":
		return ModeVirtual, nil
	case "in-person", "in_person", "inperson", "manual":
		return ModeInPerson, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownMode, s)
}
