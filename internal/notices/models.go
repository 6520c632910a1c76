// Package notices schedules sanction-end notifications. A notice waits out
// the sanction's duration and is then marked expired so the subject can be
// told their sanction lifted; delivery is acknowledged separately.
package notices

import (
	"time"

	"tangled.org/vigil.community/vigil/internal/actions"
)

// Notification is one pending sanction-end notice. Expired flips when the
// wait elapses; Notified flips once delivery is acknowledged. Rows are
// updated, never deleted, so delivery can lag expiration.
type Notification struct {
	ID        int64        `json:"id"`
	User      int64        `json:"user"`
	Guild     int64        `json:"guild"`
	Moderator int64        `json:"moderator"`
	Kind      actions.Kind `json:"kind"`
	At        time.Time    `json:"at"`

	// Duration in seconds until the notice comes due.
	Duration int64 `json:"duration"`

	// Message references the status message shown to the subject.
	Message int64 `json:"message,omitempty"`

	Expired  bool `json:"expired"`
	Notified bool `json:"notified"`
}

// End returns the instant the notice comes due.
func (n *Notification) End() time.Time {
	return n.At.Add(time.Duration(n.Duration) * time.Second)
}
