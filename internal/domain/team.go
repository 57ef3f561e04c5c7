package domain

import "time"

// TeamStatus is the lifecycle state of a Team (spec.md §3).
type TeamStatus string

const (
	TeamActive    TeamStatus = "active"
	TeamSuspended TeamStatus = "suspended"
	TeamArchived  TeamStatus = "archived"
)

func (s TeamStatus) Valid() bool {
	switch s {
	case TeamActive, TeamSuspended, TeamArchived:
		return true
	}
	return false
}

// Team is the multi-tenant boundary. Name is immutable once created and
// unique within an org; every downstream resource is owned by exactly
// one team (spec.md §3, Ownership).
type Team struct {
	ID          string
	Org         string
	Name        string
	DisplayName string
	Status      TeamStatus
	Owner       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Version     int64
}

// Validate checks the syntactic invariants of a Team. It does not check
// uniqueness — that is a repository-layer concern (spec.md §4.1).
func (t *Team) Validate() error {
	if !ValidName(t.Name) {
		return Validation("name", "team name %q must match the wire naming rule", t.Name)
	}
	if t.Org == "" {
		return Validation("org", "org is required")
	}
	if !t.Status.Valid() {
		return Validation("status", "unknown team status %q", t.Status)
	}
	return nil
}

// AcceptsNewResources reports whether a team can accept newly created
// downstream resources (spec.md §3: "archived teams cannot accept new
// resources").
func (t *Team) AcceptsNewResources() bool {
	return t.Status != TeamArchived
}
