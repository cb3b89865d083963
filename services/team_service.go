package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"market-cards-scoring/models"
	"market-cards-scoring/scoring"

	"github.com/gosimple/slug"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"gonum.org/v1/gonum/stat"
	"gorm.io/gorm"
)

// TeamService is the team ledger. NAV and score totals are written only by
// the round lifecycle (creditRound, applyShockToTeam, restoreRound) and by
// ResetTeamNav.
type TeamService struct {
	DB  *gorm.DB
	log zerolog.Logger
}

func NewTeamService(db *gorm.DB, log zerolog.Logger) *TeamService {
	return &TeamService{DB: db, log: log.With().Str("component", "teams").Logger()}
}

// TeamSetup is one roster entry at game start.
type TeamSetup struct {
	Name              string                 `json:"name"`
	InitialAllocation models.AssetAllocation `json:"initial_allocation"`
}

// foldName is the comparison key for team names. Casers hold state, so each
// call gets its own.
func foldName(name string) string {
	return cases.Fold().String(strings.Join(strings.Fields(name), " "))
}

// AddTeam validates the setup allocation and creates a team at the starting NAV.
func (s *TeamService) AddTeam(setup TeamSetup) (*models.Team, error) {
	var team *models.Team
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		team, err = addTeam(tx, setup)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("team", team.Name).Str("nav", team.CurrentNAV.StringFixed(2)).Msg("✅ Team added")
	return team, nil
}

// checkTeamSetup runs the setup profile over one roster entry.
func checkTeamSetup(setup TeamSetup) *TeamViolations {
	name := strings.TrimSpace(setup.Name)
	if name == "" {
		return &TeamViolations{Problem: "name is required"}
	}
	res := scoring.Validate(setup.InitialAllocation, scoring.ProfileSetup)
	if !res.Valid {
		return &TeamViolations{TeamName: name, Violations: res.Violations}
	}
	return nil
}

func addTeam(tx *gorm.DB, setup TeamSetup) (*models.Team, error) {
	if v := checkTeamSetup(setup); v != nil {
		return nil, &ValidationFailedError{Teams: []TeamViolations{*v}}
	}

	name := strings.Join(strings.Fields(setup.Name), " ")
	teamSlug := slug.Make(name)

	var existing []models.Team
	if err := tx.Select("id", "name", "slug").Find(&existing).Error; err != nil {
		return nil, err
	}
	folded := foldName(name)
	for _, t := range existing {
		if foldName(t.Name) == folded || (teamSlug != "" && t.Slug == teamSlug) {
			return nil, fmt.Errorf("%q: %w", name, ErrDuplicateTeam)
		}
	}

	team := &models.Team{
		Name:              name,
		Slug:              teamSlug,
		CurrentNAV:        models.StartingNAV,
		InitialAllocation: setup.InitialAllocation,
	}
	if err := tx.Create(team).Error; err != nil {
		return nil, fmt.Errorf("create team %q: %w", name, err)
	}
	// Names made only of symbols have no slug; fall back to the id.
	if team.Slug == "" {
		team.Slug = team.ID
		if err := tx.Model(team).Update("slug", team.Slug).Error; err != nil {
			return nil, err
		}
	}
	return team, nil
}

// ListTeams returns the roster in creation order.
func (s *TeamService) ListTeams() ([]models.Team, error) {
	return listTeams(s.DB)
}

func listTeams(db *gorm.DB) ([]models.Team, error) {
	var teams []models.Team
	err := db.Order("created_at ASC").Order("id ASC").Find(&teams).Error
	return teams, err
}

// GetTeam looks a team up by id.
func (s *TeamService) GetTeam(id string) (*models.Team, error) {
	return getTeam(s.DB, id)
}

func getTeam(db *gorm.DB, id string) (*models.Team, error) {
	var team models.Team
	if err := db.First(&team, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("team %s: %w", id, ErrTeamNotFound)
		}
		return nil, err
	}
	return &team, nil
}

// RemoveTeam deletes a team together with its allocation history.
func (s *TeamService) RemoveTeam(id string) error {
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		team, err := getTeam(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Where("team_id = ?", team.ID).Delete(&models.TeamAllocation{}).Error; err != nil {
			return err
		}
		return tx.Delete(team).Error
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("team_id", id).Msg("🗑️ Team removed")
	return nil
}

// ResetTeamNav puts a team back at the starting NAV. Allocation history and
// score totals are left alone.
func (s *TeamService) ResetTeamNav(id string) (*models.Team, error) {
	var team *models.Team
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		if team, err = getTeam(tx, id); err != nil {
			return err
		}
		if err := tx.Model(team).Update("current_nav", models.StartingNAV).Error; err != nil {
			return err
		}
		team.CurrentNAV = models.StartingNAV
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("team", team.Name).Msg("🔄 Team NAV reset")
	return team, nil
}

// Standing is one row of the leaderboard.
type Standing struct {
	Rank         int             `json:"rank"`
	TeamID       string          `json:"team_id"`
	Name         string          `json:"name"`
	CurrentNAV   decimal.Decimal `json:"current_nav"`
	PitchTotal   int             `json:"pitch_total"`
	EmotionTotal int             `json:"emotion_total"`
}

// Standings is the ranked roster plus the spread of NAVs across teams.
type Standings struct {
	Teams     []Standing `json:"teams"`
	MeanNAV   float64    `json:"mean_nav"`
	StdDevNAV float64    `json:"stddev_nav"`
}

// Standings ranks teams by NAV, highest first. Equal NAVs share a rank and
// are listed by name.
func (s *TeamService) Standings() (*Standings, error) {
	teams, err := listTeams(s.DB)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(teams, func(i, j int) bool {
		if c := teams[i].CurrentNAV.Cmp(teams[j].CurrentNAV); c != 0 {
			return c > 0
		}
		return teams[i].Name < teams[j].Name
	})

	out := &Standings{Teams: make([]Standing, 0, len(teams))}
	navs := make([]float64, 0, len(teams))
	for i, t := range teams {
		rank := i + 1
		if i > 0 && t.CurrentNAV.Equal(teams[i-1].CurrentNAV) {
			rank = out.Teams[i-1].Rank
		}
		out.Teams = append(out.Teams, Standing{
			Rank:         rank,
			TeamID:       t.ID,
			Name:         t.Name,
			CurrentNAV:   t.CurrentNAV,
			PitchTotal:   t.PitchTotal,
			EmotionTotal: t.EmotionTotal,
		})
		navs = append(navs, t.CurrentNAV.InexactFloat64())
	}

	switch len(navs) {
	case 0:
	case 1:
		out.MeanNAV = navs[0]
	default:
		out.MeanNAV, out.StdDevNAV = stat.MeanStdDev(navs, nil)
	}
	return out, nil
}

// creditRound books an accepted allocation onto its team.
func creditRound(tx *gorm.DB, a *models.TeamAllocation) error {
	res := tx.Model(&models.Team{}).Where("id = ?", a.TeamID).Updates(map[string]any{
		"current_nav":   a.NAVAfter,
		"pitch_total":   gorm.Expr("pitch_total + ?", a.PitchScore),
		"emotion_total": gorm.Expr("emotion_total + ?", a.EmotionScore),
	})
	if res.Error != nil {
		return fmt.Errorf("credit team %s: %w", a.TeamID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("credit team %s: %w", a.TeamID, ErrTeamNotFound)
	}
	return nil
}

// applyShockToTeam propagates a shocked navAfter to the team.
func applyShockToTeam(tx *gorm.DB, teamID string, nav decimal.Decimal) error {
	if err := tx.Model(&models.Team{}).Where("id = ?", teamID).Update("current_nav", nav).Error; err != nil {
		return fmt.Errorf("shock team %s: %w", teamID, err)
	}
	return nil
}

// restoreRound undoes creditRound: NAV goes back to navBefore and the round's
// scores come off the totals. Teams removed since the round are skipped.
func restoreRound(tx *gorm.DB, a *models.TeamAllocation) error {
	err := tx.Model(&models.Team{}).Where("id = ?", a.TeamID).Updates(map[string]any{
		"current_nav":   a.NAVBefore,
		"pitch_total":   gorm.Expr("pitch_total - ?", a.PitchScore),
		"emotion_total": gorm.Expr("emotion_total - ?", a.EmotionScore),
	}).Error
	if err != nil {
		return fmt.Errorf("restore team %s: %w", a.TeamID, err)
	}
	return nil
}
