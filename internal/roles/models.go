// Package roles manages role requests and their claim/resolve/revisit
// lifecycle, plus bulk role removals.
package roles

import "time"

// Status is derived from a request's fields, never stored.
type Status string

const (
	StatusNew         Status = "new"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
)

// Request is one role application. A user may have at most one open request
// per guild; a request is open until CheckedAt is set.
type Request struct {
	ID       int64  `json:"id"`
	User     int64  `json:"user"`
	Guild    int64  `json:"guild"`
	Nickname string `json:"nickname"`
	Role     string `json:"role"`
	Rank     int    `json:"rank"`

	// Message references the status message shown to the applicant.
	Message int64 `json:"message,omitempty"`

	Approved bool `json:"approved"`

	// Counting marks whether the decision counts toward the moderator's work
	// statistics. Cleared by a partial revisit.
	Counting bool `json:"counting"`

	SentAt time.Time `json:"sent_at"`

	// Moderator and TakenAt are set when a moderator claims the request.
	Moderator int64     `json:"moderator,omitempty"`
	TakenAt   time.Time `json:"taken_at,omitzero"`

	// CheckedAt and Reason are set when the claiming moderator decides.
	CheckedAt time.Time `json:"checked_at,omitzero"`
	Reason    string    `json:"reason,omitempty"`

	// Reviewer and ReviewReason are set when a second line revisits the
	// decision.
	Reviewer     int64  `json:"reviewer,omitempty"`
	ReviewReason string `json:"review_reason,omitempty"`
}

// Status derives the request's lifecycle state.
func (r *Request) Status() Status {
	if r.Approved {
		return StatusApproved
	}
	if !r.CheckedAt.IsZero() {
		return StatusRejected
	}
	if r.Moderator != 0 {
		return StatusUnderReview
	}
	return StatusNew
}

// Open reports whether the request still awaits a decision.
func (r *Request) Open() bool { return r.CheckedAt.IsZero() }

// Removal records a bulk role strip from a user.
type Removal struct {
	ID        int64     `json:"id"`
	User      int64     `json:"user"`
	Guild     int64     `json:"guild"`
	Roles     []string  `json:"roles"`
	At        time.Time `json:"at"`
	Moderator int64     `json:"moderator"`
}
