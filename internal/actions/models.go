// Package actions holds the append-only ledger of moderation actions.
// Every sanction grant, removal and role decision is recorded here exactly
// once; the ledger is the single source of truth for history and review state.
package actions

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Family is the broad category of a moderation action.
type Family string

const (
	FamilyMute Family = "mute"
	FamilyBan  Family = "ban"
	FamilyWarn Family = "warn"
	FamilyHide Family = "hide"
	FamilyRole Family = "role"
)

// Direction says whether an action grants or lifts a sanction.
type Direction string

const (
	DirectionGive   Direction = "give"
	DirectionRemove Direction = "remove"
)

// Kind identifies an action as an explicit tagged variant. The legacy
// underscore-joined string form ("mute_text_give", "ban_local_remove",
// "role_approve") exists only at the persistence boundary.
type Kind struct {
	Family    Family
	Direction Direction

	// Subtype narrows the family: mute text|voice|full, ban local|global,
	// role approve|reject. Empty for warn, hide and role_remove.
	Subtype string
}

// Mute, Ban, Warn, Hide and Role kind constructors.

func MuteKind(subtype string, dir Direction) Kind {
	return Kind{Family: FamilyMute, Direction: dir, Subtype: subtype}
}

func BanKind(scope string, dir Direction) Kind {
	return Kind{Family: FamilyBan, Direction: dir, Subtype: scope}
}

func WarnKind(dir Direction) Kind {
	return Kind{Family: FamilyWarn, Direction: dir}
}

func HideKind(dir Direction) Kind {
	return Kind{Family: FamilyHide, Direction: dir}
}

// RoleApprove and RoleReject record resolved role requests; RoleRemove records
// a bulk role strip. None of them create sanctions.
var (
	RoleApprove = Kind{Family: FamilyRole, Direction: DirectionGive, Subtype: "approve"}
	RoleReject  = Kind{Family: FamilyRole, Direction: DirectionGive, Subtype: "reject"}
	RoleRemove  = Kind{Family: FamilyRole, Direction: DirectionRemove}
)

// String encodes the kind in the persisted form.
func (k Kind) String() string {
	if k.Family == FamilyRole {
		if k.Direction == DirectionRemove {
			return "role_remove"
		}
		return "role_" + k.Subtype
	}
	if k.Subtype == "" {
		return string(k.Family) + "_" + string(k.Direction)
	}
	return string(k.Family) + "_" + k.Subtype + "_" + string(k.Direction)
}

// ParseKind decodes the persisted string form.
func ParseKind(s string) (Kind, error) {
	parts := strings.Split(s, "_")
	switch {
	case len(parts) == 2 && parts[0] == "role":
		switch parts[1] {
		case "approve":
			return RoleApprove, nil
		case "reject":
			return RoleReject, nil
		case "remove":
			return RoleRemove, nil
		}
	case len(parts) == 2 && (parts[0] == "warn" || parts[0] == "hide"):
		if d := Direction(parts[1]); d == DirectionGive || d == DirectionRemove {
			return Kind{Family: Family(parts[0]), Direction: d}, nil
		}
	case len(parts) == 3 && (parts[0] == "mute" || parts[0] == "ban"):
		if d := Direction(parts[2]); d == DirectionGive || d == DirectionRemove {
			return Kind{Family: Family(parts[0]), Direction: d, Subtype: parts[1]}, nil
		}
	}
	return Kind{}, fmt.Errorf("unknown action kind: %q", s)
}

// Counterpart returns the grant kind matching a removal kind, and vice versa.
func (k Kind) Counterpart() Kind {
	c := k
	if k.Direction == DirectionGive {
		c.Direction = DirectionRemove
	} else {
		c.Direction = DirectionGive
	}
	return c
}

// IsGlobal reports whether the kind's enforcement spans every guild, so its
// grant and removal need not share one.
func (k Kind) IsGlobal() bool {
	return k.Family == FamilyBan && k.Subtype == "global"
}

// IsSanction reports whether the kind belongs to a family that carries an
// active enforcement record (mute, ban or hide).
func (k Kind) IsSanction() bool {
	switch k.Family {
	case FamilyMute, FamilyBan, FamilyHide:
		return true
	}
	return false
}

// MarshalJSON encodes the kind as its persisted string form.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes the persisted string form.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Act is the record of one moderation event. Once written, only Active,
// Reviewer, Counting and ProveLink may change (closure, review resolution and
// evidence attachment); acts are never deleted.
type Act struct {
	ID        int64     `json:"id"`
	At        time.Time `json:"at"`
	User      int64     `json:"user"`
	Guild     int64     `json:"guild"`
	Moderator int64     `json:"moderator"`
	Kind      Kind      `json:"kind"`

	// Active is true from creation until the act is closed: a grant is closed
	// by its removal or by a negative review.
	Active bool `json:"active"`

	// Counting marks whether the act counts toward escalation thresholds and
	// appears in default history listings.
	Counting bool `json:"counting"`

	// Reviewer is zero until a second-line moderator resolves the act.
	Reviewer int64 `json:"reviewer,omitempty"`

	// Duration in seconds for time-bound grants; zero when not applicable.
	Duration int64 `json:"duration,omitempty"`

	Reason    string `json:"reason,omitempty"`
	ProveLink string `json:"prove_link,omitempty"`
}

// Reviewed reports whether the act has been resolved by a reviewer.
func (a *Act) Reviewed() bool { return a.Reviewer != 0 }

// End returns the instant a time-bound grant naturally expires.
// Only meaningful when Duration is set.
func (a *Act) End() time.Time {
	return a.At.Add(time.Duration(a.Duration) * time.Second)
}
