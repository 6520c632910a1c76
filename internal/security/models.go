// Package security resolves moderator tiers from a JSON roster and answers
// permission questions: who may sanction whom, who reviews, whose acts
// self-approve.
package security

// Tier is a rung on the moderation ladder. Higher outranks lower; zero means
// not a moderator.
type Tier int

const (
	TierNone            Tier = 0
	TierModerator       Tier = 1
	TierSeniorModerator Tier = 2
	TierAssistant       Tier = 3
	TierHeadModerator   Tier = 4
	TierOverseer        Tier = 5
	TierCurator         Tier = 7
)

// RoleName represents the name of a roster role
type RoleName string

// Role defines one rung of the ladder as configured.
type Role struct {
	Name        RoleName `json:"-"` // Set from map key during loading
	Description string   `json:"description"`
	Level       Tier     `json:"level"`
}

// Moderator represents one roster entry.
type Moderator struct {
	ID     int64    `json:"id"`
	Handle string   `json:"handle,omitempty"`
	Role   RoleName `json:"role"`
	Note   string   `json:"note,omitempty"`
}

// Config represents the roster configuration loaded from JSON
type Config struct {
	Roles map[RoleName]*Role `json:"roles"`
	Users []Moderator        `json:"users"`
}

// Validate checks that the config is valid
func (c *Config) Validate() error {
	if c.Roles == nil {
		c.Roles = make(map[RoleName]*Role)
	}

	for _, user := range c.Users {
		if _, ok := c.Roles[user.Role]; !ok {
			return &ConfigError{
				Field:   "users",
				Message: "moderator references unknown role: " + string(user.Role),
			}
		}
	}

	// Set role names from map keys
	for name, role := range c.Roles {
		role.Name = name
	}

	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "security config error in " + e.Field + ": " + e.Message
}
