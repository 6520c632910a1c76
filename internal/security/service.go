package security

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"

	"tangled.org/vigil.community/vigil/internal/moderr"
)

// Service answers tier and permission questions from the roster config.
type Service struct {
	mu         sync.RWMutex
	config     *Config
	configPath string

	// Quick lookup maps built from config
	userTiers map[int64]Tier
	userInfos map[int64]*Moderator
}

// NewService creates a new security service.
// If configPath is empty, the service is in "disabled" mode where every tier
// lookup returns TierNone.
func NewService(configPath string) (*Service, error) {
	s := &Service{
		configPath: configPath,
		userTiers:  make(map[int64]Tier),
		userInfos:  make(map[int64]*Moderator),
	}

	if configPath == "" {
		log.Info().Msg("security: no config path provided, service disabled")
		return s, nil
	}

	if err := s.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load security config: %w", err)
	}

	return s, nil
}

// loadConfig reads and parses the config file
func (s *Service) loadConfig() error {
	data, err := os.ReadFile(s.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", s.configPath).Msg("security: config file not found, service disabled")
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.config = &config
	s.rebuildLookupMaps()

	log.Info().
		Int("roles", len(config.Roles)).
		Int("users", len(config.Users)).
		Str("path", s.configPath).
		Msg("security: config loaded")

	return nil
}

// rebuildLookupMaps rebuilds the quick lookup maps from config
// Caller must hold the write lock
func (s *Service) rebuildLookupMaps() {
	s.userTiers = make(map[int64]Tier)
	s.userInfos = make(map[int64]*Moderator)

	if s.config == nil {
		return
	}

	for i := range s.config.Users {
		user := &s.config.Users[i]
		role, ok := s.config.Roles[user.Role]
		if ok {
			s.userTiers[user.ID] = role.Level
			s.userInfos[user.ID] = user
		}
	}
}

// Reload reloads the configuration from disk
func (s *Service) Reload() error {
	if s.configPath == "" {
		return nil
	}
	return s.loadConfig()
}

// IsEnabled returns true if the service is configured with a roster
func (s *Service) IsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config != nil && len(s.config.Users) > 0
}

// Level returns the user's tier, TierNone for non-moderators.
func (s *Service) Level(id int64) Tier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userTiers[id]
}

// IsModerator reports whether the user is on the roster.
func (s *Service) IsModerator(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.userTiers[id]
	return ok
}

// Require fails with ErrForbidden unless the user holds at least the tier.
func (s *Service) Require(id int64, tier Tier) error {
	if s.Level(id) < tier {
		return moderr.Forbiddenf("moderator %d is below the required tier", id)
	}
	return nil
}

// Compare fails with ErrForbidden unless the actor outranks the subject.
// Non-moderator subjects are always outranked.
func (s *Service) Compare(actor, subject int64) error {
	if s.Level(actor) <= s.Level(subject) {
		return moderr.Forbiddenf("moderator %d does not outrank user %d", actor, subject)
	}
	return nil
}

// CanReview reports whether the user sits on the review line. Head
// moderators and overseers review; everyone below submits for review.
func (s *Service) CanReview(id int64) bool {
	return s.Level(id) >= TierHeadModerator
}

// AutoReview reports whether the user's own acts self-approve at creation.
// Reviewers do not wait on a second line for their own actions.
func (s *Service) AutoReview(id int64) bool {
	return s.CanReview(id)
}

// GetModerator returns the roster entry for the given id, if any
func (s *Service) GetModerator(id int64) (*Moderator, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.userInfos[id]
	if !ok {
		return nil, false
	}
	// Return a copy to prevent external modification
	userCopy := *user
	return &userCopy, true
}

// ListModerators returns all configured roster entries
func (s *Service) ListModerators() []Moderator {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.config == nil {
		return nil
	}

	result := make([]Moderator, len(s.config.Users))
	copy(result, s.config.Users)
	return result
}
