package services

import (
	"errors"
	"fmt"
	"strings"

	"market-cards-scoring/scoring"
)

// Lookup errors.
var (
	ErrNoActiveGame    = errors.New("no active game")
	ErrTeamNotFound    = errors.New("team not found")
	ErrRoundNotFound   = errors.New("round not found")
	ErrCardNotFound    = errors.New("card not found")
	ErrNoCardsForPhase = errors.New("no cards for phase")
)

// State errors: the operation is not legal for the round or roster as it stands.
var (
	ErrRoundInProgress     = errors.New("previous round is still awaiting allocations")
	ErrRoundNotOpen        = errors.New("round is not accepting allocations")
	ErrRoundNotScored      = errors.New("round has no allocations yet")
	ErrShockAlreadyApplied = errors.New("a black card was already applied to this round")
	ErrRoundFinalized      = errors.New("round is finalized")
	ErrNotLatestRound      = errors.New("only the latest round can be rolled back")
	ErrDuplicateTeam       = errors.New("a team with this name already exists")
	ErrCardRequired        = errors.New("in-person mode needs a card id")
	ErrEmptyRoster         = errors.New("game needs at least one team")
	ErrCatalogInUse        = errors.New("catalog is referenced by played rounds")
)

// TeamViolations lists what was wrong with one team's submission.
type TeamViolations struct {
	TeamID     string              `json:"team_id"`
	TeamName   string              `json:"team_name,omitempty"`
	Violations []scoring.Violation `json:"violations,omitempty"`
	Problem    string              `json:"problem,omitempty"` // missing or duplicate submission
}

// ValidationFailedError rejects a whole batch; nothing was written.
type ValidationFailedError struct {
	Teams []TeamViolations `json:"teams"`
}

func (e *ValidationFailedError) Error() string {
	parts := make([]string, 0, len(e.Teams))
	for _, t := range e.Teams {
		name := t.TeamName
		if name == "" {
			name = t.TeamID
		}
		var reasons []string
		if t.Problem != "" {
			reasons = append(reasons, t.Problem)
		}
		for _, v := range t.Violations {
			reasons = append(reasons, v.String())
		}
		parts = append(parts, fmt.Sprintf("%s: %s", name, strings.Join(reasons, ", ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ParseError identifies the first malformed row of an import batch.
type ParseError struct {
	Line   int    `json:"line"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("line %d, %s: %s", e.Line, e.Field, e.Reason)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}
