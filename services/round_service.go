package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"market-cards-scoring/models"
	"market-cards-scoring/scoring"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// weightedPlaces is the stored scale of weighted returns and modifiers.
const weightedPlaces = 4

// RoundService drives a round from event draw to finalization and owns the
// only undo, RollbackRound. Mutations are serialized.
type RoundService struct {
	DB      *gorm.DB
	Catalog *CatalogService
	Drawer  *Drawer
	log     zerolog.Logger

	mu sync.Mutex
}

func NewRoundService(db *gorm.DB, catalog *CatalogService, drawer *Drawer, log zerolog.Logger) *RoundService {
	return &RoundService{
		DB:      db,
		Catalog: catalog,
		Drawer:  drawer,
		log:     log.With().Str("component", "rounds").Logger(),
	}
}

// Submission is one team's allocation and qualitative scores for a round.
type Submission struct {
	TeamID       string                 `json:"team_id"`
	Allocation   models.AssetAllocation `json:"allocation"`
	PitchScore   int                    `json:"pitch_score"`
	EmotionScore int                    `json:"emotion_score"`
}

// DrawEvent proposes a market event without storing anything. Calling it
// again is a redraw.
func (s *RoundService) DrawEvent(req DrawRequest) (Draw, error) {
	mode := req.Mode
	if mode == "" {
		session, err := loadSession(s.DB)
		if err != nil {
			return Draw{}, err
		}
		mode = session.Mode
	}
	mode, err := models.ParseMode(string(mode))
	if err != nil {
		return Draw{}, err
	}

	var draw Draw
	if mode == models.ModeInPerson {
		draw, err = s.Drawer.Manual(req.CardID)
	} else {
		draw, err = s.Drawer.Random(req.Phase)
	}
	if err != nil {
		if errors.Is(err, ErrNoCardsForPhase) {
			s.log.Warn().Str("phase", string(draw.Phase)).Msg("⚠️ Drawn phase has no cards")
		}
		return draw, err
	}
	s.log.Debug().Str("phase", string(draw.Phase)).Str("card", draw.Card.CardNumber).Msg("🎲 Event drawn")
	return draw, nil
}

// StartRound commits a drawn color card as the next round. A previous round
// that was scored is finalized first; one still waiting for allocations
// blocks the start.
func (s *RoundService) StartRound(cardID string) (*models.Round, error) {
	if cardID == "" {
		return nil, ErrCardRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var round *models.Round
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		session, err := loadSession(tx)
		if err != nil {
			return err
		}

		latest, err := latestRound(tx)
		if err != nil {
			return err
		}
		if latest != nil {
			switch {
			case latest.State.CanAcceptAllocations():
				return fmt.Errorf("round %d: %w", latest.RoundNumber, ErrRoundInProgress)
			case latest.State.CanFinalize():
				if err := finalize(tx, latest); err != nil {
					return err
				}
			}
		}

		card, err := getColorCard(tx, cardID)
		if err != nil {
			return err
		}

		round = &models.Round{
			RoundNumber: session.CurrentRound + 1,
			Phase:       card.Phase,
			ColorCardID: card.ID,
			State:       models.RoundStateOpen,
		}
		if err := tx.Omit(clause.Associations).Create(round).Error; err != nil {
			return fmt.Errorf("create round: %w", err)
		}
		round.ColorCard = card

		return tx.Model(session).Updates(map[string]any{
			"current_round": round.RoundNumber,
			"is_active":     true,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Int("round", round.RoundNumber).Str("card", round.ColorCard.CardNumber).Msg("🚀 Round started")
	return round, nil
}

// teamOutcome pairs a submission with the team it belongs to.
type teamOutcome struct {
	team *models.Team
	sub  Submission
}

// SubmitAllocations accepts one allocation per roster team. The batch is
// validated as a whole first; any problem rejects it with nothing written.
func (s *RoundService) SubmitAllocations(roundID string, subs []Submission) ([]models.TeamAllocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var allocs []models.TeamAllocation
	var round *models.Round
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		if round, err = getRound(tx, roundID, "ColorCard"); err != nil {
			return err
		}
		if !round.State.CanAcceptAllocations() {
			if round.State == models.RoundStateFinalized {
				return ErrRoundFinalized
			}
			return ErrRoundNotOpen
		}

		if round.ColorCard == nil {
			return fmt.Errorf("round %d color card %s: %w", round.RoundNumber, round.ColorCardID, ErrCardNotFound)
		}

		roster, err := listTeams(tx)
		if err != nil {
			return err
		}
		outcomes, err := checkSubmissions(roster, subs)
		if err != nil {
			return err
		}

		allocs = make([]models.TeamAllocation, len(outcomes))
		var g errgroup.Group
		for i, o := range outcomes {
			i, o := i, o
			g.Go(func() error {
				res, err := scoring.ScoreEvent(o.team.CurrentNAV, o.sub.Allocation, round.ColorCard.Returns, o.sub.PitchScore, o.sub.EmotionScore)
				if err != nil {
					return fmt.Errorf("team %s: %w", o.team.Name, err)
				}
				allocs[i] = models.TeamAllocation{
					TeamID:         o.team.ID,
					RoundID:        round.ID,
					Allocation:     o.sub.Allocation,
					PitchScore:     o.sub.PitchScore,
					EmotionScore:   o.sub.EmotionScore,
					NAVBefore:      o.team.CurrentNAV,
					NAVAfter:       res.NAVAfter,
					WeightedReturn: res.WeightedReturn.Round(weightedPlaces),
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		if err := tx.Omit(clause.Associations).Create(&allocs).Error; err != nil {
			return fmt.Errorf("save allocations: %w", err)
		}
		for i := range allocs {
			if err := creditRound(tx, &allocs[i]); err != nil {
				return err
			}
		}
		return setState(tx, round, models.RoundStateOpen, models.RoundStateScored)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Int("round", round.RoundNumber).Int("teams", len(allocs)).Msg("📊 Allocations scored")
	return allocs, nil
}

// checkSubmissions matches a batch against the roster: every team exactly
// once, strict allocations, scores in range. Unknown teams are lookup errors.
func checkSubmissions(roster []models.Team, subs []Submission) ([]teamOutcome, error) {
	byID := make(map[string]*models.Team, len(roster))
	for i := range roster {
		byID[roster[i].ID] = &roster[i]
	}
	for _, sub := range subs {
		if _, ok := byID[sub.TeamID]; !ok {
			return nil, fmt.Errorf("team %s: %w", sub.TeamID, ErrTeamNotFound)
		}
	}

	submitted := make(map[string]Submission, len(subs))
	counts := make(map[string]int, len(subs))
	for _, sub := range subs {
		counts[sub.TeamID]++
		submitted[sub.TeamID] = sub
	}

	var problems []TeamViolations
	outcomes := make([]teamOutcome, 0, len(roster))
	for i := range roster {
		team := &roster[i]
		tv := TeamViolations{TeamID: team.ID, TeamName: team.Name}
		switch counts[team.ID] {
		case 0:
			tv.Problem = "no allocation submitted"
			problems = append(problems, tv)
			continue
		case 1:
		default:
			tv.Problem = fmt.Sprintf("submitted %d times", counts[team.ID])
			problems = append(problems, tv)
			continue
		}

		sub := submitted[team.ID]
		res := scoring.Validate(sub.Allocation, scoring.ProfileStrict)
		tv.Violations = append(tv.Violations, res.Violations...)
		if v, ok := scoring.ValidateScore("pitch", sub.PitchScore); !ok {
			tv.Violations = append(tv.Violations, v)
		}
		if v, ok := scoring.ValidateScore("emotion", sub.EmotionScore); !ok {
			tv.Violations = append(tv.Violations, v)
		}
		if len(tv.Violations) > 0 {
			problems = append(problems, tv)
			continue
		}
		outcomes = append(outcomes, teamOutcome{team: team, sub: sub})
	}

	if len(problems) > 0 {
		return nil, &ValidationFailedError{Teams: problems}
	}
	if len(outcomes) == 0 {
		return nil, ErrEmptyRoster
	}
	return outcomes, nil
}

// ApplyShock applies a black card on top of a scored round. Each team's NAV
// is recomputed from its stored navAfter, so a round takes at most one shock.
func (s *RoundService) ApplyShock(roundID, blackCardID string) ([]models.TeamAllocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var allocs []models.TeamAllocation
	var round *models.Round
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		if round, err = getRound(tx, roundID); err != nil {
			return err
		}
		switch round.State {
		case models.RoundStateShocked:
			return ErrShockAlreadyApplied
		case models.RoundStateFinalized:
			return ErrRoundFinalized
		case models.RoundStateOpen:
			return ErrRoundNotScored
		}

		card, err := getBlackCard(tx, blackCardID)
		if err != nil {
			return err
		}
		if allocs, err = roundAllocations(tx, round.ID); err != nil {
			return err
		}

		for i := range allocs {
			a := &allocs[i]
			res, err := scoring.ScoreShock(a.NAVAfter, a.Allocation, card.Modifiers)
			if err != nil {
				return fmt.Errorf("team %s: %w", a.TeamID, err)
			}
			wm := res.WeightedModifier.Round(weightedPlaces)
			a.NAVAfter = res.NAV
			a.WeightedModifier = &wm

			err = tx.Model(&models.TeamAllocation{}).Where("id = ?", a.ID).Updates(map[string]any{
				"nav_after":         a.NAVAfter,
				"weighted_modifier": wm,
			}).Error
			if err != nil {
				return fmt.Errorf("shock allocation %s: %w", a.ID, err)
			}
			if err := applyShockToTeam(tx, a.TeamID, a.NAVAfter); err != nil {
				return err
			}
		}

		if err := tx.Model(&models.Round{}).Where("id = ?", round.ID).Update("black_card_id", card.ID).Error; err != nil {
			return err
		}
		round.BlackCardID = &card.ID
		return setState(tx, round, models.RoundStateScored, models.RoundStateShocked)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Int("round", round.RoundNumber).Str("black_card", blackCardID).Msg("⚡ Shock applied")
	return allocs, nil
}

// FinalizeRound closes a scored or shocked round.
func (s *RoundService) FinalizeRound(roundID string) (*models.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var round *models.Round
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		if round, err = getRound(tx, roundID); err != nil {
			return err
		}
		switch round.State {
		case models.RoundStateFinalized:
			return ErrRoundFinalized
		case models.RoundStateOpen:
			return ErrRoundNotScored
		}
		return finalize(tx, round)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Int("round", round.RoundNumber).Msg("🏁 Round finalized")
	return round, nil
}

func finalize(tx *gorm.DB, round *models.Round) error {
	now := time.Now().UTC()
	res := tx.Model(&models.Round{}).
		Where("id = ? AND state IN ?", round.ID, []models.RoundState{models.RoundStateScored, models.RoundStateShocked}).
		Updates(map[string]any{"state": models.RoundStateFinalized, "finalized_at": now})
	if res.Error != nil {
		return fmt.Errorf("finalize round %d: %w", round.RoundNumber, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRoundNotScored
	}
	round.State = models.RoundStateFinalized
	round.FinalizedAt = &now
	return nil
}

// RollbackRound undoes the latest round in any state: every team gets its
// navBefore and scores back, then the allocations and the round are deleted.
// An open round has no allocations, so rolling it back just discards the event.
func (s *RoundService) RollbackRound(roundID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var round *models.Round
	var restored int
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		if round, err = getRound(tx, roundID); err != nil {
			return err
		}
		latest, err := latestRound(tx)
		if err != nil {
			return err
		}
		if latest == nil || latest.ID != round.ID {
			return fmt.Errorf("round %d: %w", round.RoundNumber, ErrNotLatestRound)
		}

		allocs, err := roundAllocations(tx, round.ID)
		if err != nil {
			return err
		}
		for i := range allocs {
			if err := restoreRound(tx, &allocs[i]); err != nil {
				return err
			}
		}
		restored = len(allocs)

		if err := tx.Where("round_id = ?", round.ID).Delete(&models.TeamAllocation{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Round{}, "id = ?", round.ID).Error; err != nil {
			return err
		}

		session, err := loadSession(tx)
		if errors.Is(err, ErrNoActiveGame) {
			return nil
		}
		if err != nil {
			return err
		}
		return tx.Model(session).Update("current_round", round.RoundNumber-1).Error
	})
	if err != nil {
		return err
	}

	s.log.Warn().Int("round", round.RoundNumber).Int("teams_restored", restored).Msg("⏪ Round rolled back")
	return nil
}

// GetRound returns a round with its cards and allocations.
func (s *RoundService) GetRound(id string) (*models.Round, error) {
	return getRound(s.DB, id, "ColorCard", "BlackCard", "Allocations.Team")
}

// ListRounds returns every round in play order.
func (s *RoundService) ListRounds() ([]models.Round, error) {
	var rounds []models.Round
	err := s.DB.Preload("ColorCard").Preload("BlackCard").Order("round_number ASC").Find(&rounds).Error
	return rounds, err
}

// RoundAllocations returns a round's allocations with their teams.
func (s *RoundService) RoundAllocations(roundID string) ([]models.TeamAllocation, error) {
	if _, err := getRound(s.DB, roundID); err != nil {
		return nil, err
	}
	var allocs []models.TeamAllocation
	err := s.DB.Preload("Team").Where("round_id = ?", roundID).Order("created_at ASC").Find(&allocs).Error
	return allocs, err
}

func getRound(db *gorm.DB, id string, preload ...string) (*models.Round, error) {
	q := db
	for _, p := range preload {
		q = q.Preload(p)
	}
	var round models.Round
	if err := q.First(&round, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("round %s: %w", id, ErrRoundNotFound)
		}
		return nil, err
	}
	return &round, nil
}

func latestRound(db *gorm.DB) (*models.Round, error) {
	var round models.Round
	err := db.Order("round_number DESC").Limit(1).Find(&round).Error
	if err != nil {
		return nil, err
	}
	if round.ID == "" {
		return nil, nil
	}
	return &round, nil
}

func roundAllocations(db *gorm.DB, roundID string) ([]models.TeamAllocation, error) {
	var allocs []models.TeamAllocation
	err := db.Where("round_id = ?", roundID).Order("created_at ASC").Find(&allocs).Error
	return allocs, err
}

// setState moves a round between states, guarding against a concurrent change.
func setState(tx *gorm.DB, round *models.Round, from, to models.RoundState) error {
	res := tx.Model(&models.Round{}).Where("id = ? AND state = ?", round.ID, from).Update("state", to)
	if res.Error != nil {
		return fmt.Errorf("round %d %s -> %s: %w", round.RoundNumber, from, to, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("round %d changed state while %s: %w", round.RoundNumber, to, ErrRoundNotOpen)
	}
	round.State = to
	return nil
}
