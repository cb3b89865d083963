package services

import (
	"errors"
	"fmt"

	"market-cards-scoring/models"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// GameService owns the single game session. Session changes take the same
// lock as the round lifecycle so a reset never interleaves with a round.
type GameService struct {
	DB     *gorm.DB
	Rounds *RoundService
	log    zerolog.Logger
}

func NewGameService(db *gorm.DB, rounds *RoundService, log zerolog.Logger) *GameService {
	return &GameService{DB: db, Rounds: rounds, log: log.With().Str("component", "game").Logger()}
}

// StartGame replaces any existing game: rounds, allocations and teams are
// cleared and the new roster is created at the starting NAV. The roster is
// all-or-nothing.
func (s *GameService) StartGame(mode models.Mode, roster []TeamSetup) (*models.GameSession, error) {
	if mode == "" {
		mode = models.ModeVirtual
	}
	mode, err := models.ParseMode(string(mode))
	if err != nil {
		return nil, err
	}
	if len(roster) == 0 {
		return nil, ErrEmptyRoster
	}

	var problems []TeamViolations
	seen := map[string]bool{}
	for _, setup := range roster {
		if v := checkTeamSetup(setup); v != nil {
			problems = append(problems, *v)
			continue
		}
		key := foldName(setup.Name)
		if seen[key] {
			return nil, fmt.Errorf("%q: %w", setup.Name, ErrDuplicateTeam)
		}
		seen[key] = true
	}
	if len(problems) > 0 {
		return nil, &ValidationFailedError{Teams: problems}
	}

	s.Rounds.mu.Lock()
	defer s.Rounds.mu.Unlock()

	session := &models.GameSession{Mode: mode, IsActive: true}
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := clearRounds(tx); err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&models.Team{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&models.GameSession{}).Error; err != nil {
			return err
		}
		for _, setup := range roster {
			if _, err := addTeam(tx, setup); err != nil {
				return err
			}
		}
		return tx.Create(session).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("mode", string(mode)).Int("teams", len(roster)).Msg("🎮 Game started")
	return session, nil
}

// GetSession returns the current session or ErrNoActiveGame.
func (s *GameService) GetSession() (*models.GameSession, error) {
	return loadSession(s.DB)
}

func loadSession(db *gorm.DB) (*models.GameSession, error) {
	var session models.GameSession
	if err := db.Order("created_at DESC").First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveGame
		}
		return nil, err
	}
	return &session, nil
}

// SetMode switches between automated and facilitator-picked events.
func (s *GameService) SetMode(mode models.Mode) (*models.GameSession, error) {
	mode, err := models.ParseMode(string(mode))
	if err != nil {
		return nil, err
	}

	s.Rounds.mu.Lock()
	defer s.Rounds.mu.Unlock()

	session, err := loadSession(s.DB)
	if err != nil {
		return nil, err
	}
	if err := s.DB.Model(session).Update("mode", mode).Error; err != nil {
		return nil, err
	}
	session.Mode = mode
	s.log.Info().Str("mode", string(mode)).Msg("🔁 Mode changed")
	return session, nil
}

// ResetGame removes every round and allocation. With keepTeams the roster
// stays at the starting NAV with zero totals and the session restarts at
// round 0 in its current mode, ready to play again. Without it the session,
// the teams and both card catalogs go too.
func (s *GameService) ResetGame(keepTeams bool) error {
	s.Rounds.mu.Lock()
	defer s.Rounds.mu.Unlock()

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := clearRounds(tx); err != nil {
			return err
		}
		if keepTeams {
			err := tx.Model(&models.Team{}).Where("1 = 1").Updates(map[string]any{
				"current_nav":   models.StartingNAV,
				"pitch_total":   0,
				"emotion_total": 0,
			}).Error
			if err != nil {
				return err
			}
			return restartSession(tx)
		}
		if err := tx.Where("1 = 1").Delete(&models.GameSession{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&models.Team{}).Error; err != nil {
			return err
		}
		return clearCatalog(tx)
	})
	if err != nil {
		return err
	}

	s.log.Warn().Bool("keep_teams", keepTeams).Msg("🧹 Game reset")
	return nil
}

// restartSession puts the session back at round 0, creating a virtual-mode
// session if none exists.
func restartSession(tx *gorm.DB) error {
	session, err := loadSession(tx)
	if errors.Is(err, ErrNoActiveGame) {
		return tx.Create(&models.GameSession{Mode: models.ModeVirtual, IsActive: true}).Error
	}
	if err != nil {
		return err
	}
	return tx.Model(session).Updates(map[string]any{
		"current_round": 0,
		"is_active":     true,
	}).Error
}

func clearRounds(tx *gorm.DB) error {
	if err := tx.Where("1 = 1").Delete(&models.TeamAllocation{}).Error; err != nil {
		return err
	}
	return tx.Where("1 = 1").Delete(&models.Round{}).Error
}
