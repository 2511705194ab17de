package report

import (
	"errors"
	"time"
)

// Status is the informational workflow state of a report. It is independent
// of the vote-driven deletion path: a report can be removed by resolution
// votes while still StatusPending.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved:
		return true
	}
	return false
}

// VoteKind selects which tally a vote lands in.
type VoteKind string

const (
	VoteSighting VoteKind = "sighting"
	VoteResolved VoteKind = "resolved"
)

func (k VoteKind) Valid() bool {
	return k == VoteSighting || k == VoteResolved
}

var (
	// ErrNotFound means the referenced report does not exist.
	ErrNotFound = errors.New("report not found")
	// ErrAlreadyVoted means the identity already cast this vote kind on this
	// report. It is a rejected duplicate, not a failure; callers map it to 409.
	ErrAlreadyVoted = errors.New("identity has already voted")
	// ErrValidation means required input is missing or malformed.
	ErrValidation = errors.New("invalid input")
	// ErrUpstreamUnavailable means a collaborator (geocoder, store) timed out
	// or is down. Safe for the caller to retry.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// VoteTally tracks one kind of confirmation on a report: the accepted count
// and the set of identity tokens that produced it. Count == len(Voters)
// always; records predating the ledger read back as a zero tally.
type VoteTally struct {
	Count  int                 `json:"count"`
	Voters map[string]struct{} `json:"-"`
}

// NewVoteTally returns the empty tally used both for fresh reports and as
// the lazy-migration default for legacy records.
func NewVoteTally() VoteTally {
	return VoteTally{Voters: map[string]struct{}{}}
}

func (t VoteTally) Has(identity string) bool {
	_, ok := t.Voters[identity]
	return ok
}

// Report is a single submitted civic-issue record tied to a geographic point.
type Report struct {
	ID           string    `json:"id"`
	IssueType    string    `json:"issue_type"`
	CustomIssue  string    `json:"custom_issue,omitempty"`
	Description  string    `json:"description,omitempty"`
	LocationName string    `json:"location_name"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	ImageKey     string    `json:"image_key,omitempty"`
	Status       Status    `json:"status"`
	Sightings    VoteTally `json:"sightings"`
	Resolved     VoteTally `json:"resolved"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Tally returns the tally for the given kind.
func (r *Report) Tally(kind VoteKind) VoteTally {
	if kind == VoteResolved {
		return r.Resolved
	}
	return r.Sightings
}
