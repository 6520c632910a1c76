// Package sanctions manages the currently-active enforcement records (mutes,
// bans, hides) derived from grant acts in the ledger.
package sanctions

import (
	"fmt"
	"time"

	"tangled.org/vigil.community/vigil/internal/actions"
)

// Ban scopes. A global ban is unique per user across all guilds; every other
// sanction is unique per (family, subtype, user, guild).
const (
	ScopeLocal  = "local"
	ScopeGlobal = "global"
)

// Mute subtypes.
const (
	MuteText  = "text"
	MuteVoice = "voice"
	MuteFull  = "full"
)

// Sanction is one active enforcement record. It references exactly one grant
// act and is destroyed on explicit removal or natural expiration.
type Sanction struct {
	User    int64          `json:"user"`
	Family  actions.Family `json:"family"`
	Subtype string         `json:"subtype,omitempty"`
	Guild   int64          `json:"guild"`

	// Action is the id of the grant act this sanction enforces.
	Action int64 `json:"action"`

	Start time.Time `json:"start"`

	// Duration in seconds; zero means indefinite (hides).
	Duration int64 `json:"duration,omitempty"`
}

// Key returns the uniqueness key for a sanction. Global bans collapse the
// guild component so at most one exists per user anywhere.
func Key(family actions.Family, subtype string, user, guild int64) string {
	if family == actions.FamilyBan && subtype == ScopeGlobal {
		return fmt.Sprintf("ban:global:%d", user)
	}
	return fmt.Sprintf("%s:%s:%d:%d", family, subtype, guild, user)
}

// Key returns the sanction's own uniqueness key.
func (s *Sanction) Key() string {
	return Key(s.Family, s.Subtype, s.User, s.Guild)
}

// Indefinite reports whether the sanction never expires on its own.
func (s *Sanction) Indefinite() bool { return s.Duration == 0 }

// End returns the natural expiration instant. Only meaningful for
// duration-bound sanctions.
func (s *Sanction) End() time.Time {
	return s.Start.Add(time.Duration(s.Duration) * time.Second)
}

// GrantKind returns the act kind that grants this sanction.
func (s *Sanction) GrantKind() actions.Kind {
	return actions.Kind{Family: s.Family, Direction: actions.DirectionGive, Subtype: s.Subtype}
}
