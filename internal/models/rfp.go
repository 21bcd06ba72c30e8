package models

import (
	"time"
)

// Visibility is an RFP's confidentiality tier.
type Visibility string

const (
	VisibilityPublic       Visibility = "public"
	VisibilityConfidential Visibility = "confidential"
)

// RFPStatus is an RFP's lifecycle state. Transitions are monotonic:
// draft -> active -> closed, and nothing leaves closed.
type RFPStatus string

const (
	StatusDraft  RFPStatus = "draft"
	StatusActive RFPStatus = "active"
	StatusClosed RFPStatus = "closed"
)

// RFP represents a published request for proposal.
type RFP struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	ClientID    string      `json:"client_id"` // owning client user
	Visibility  Visibility  `json:"visibility"`
	Status      RFPStatus   `json:"status"`
	ClosingDate time.Time   `json:"closing_date"`
	Milestones  []Milestone `json:"milestones,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// NewRFP creates a draft RFP with initialized timestamps.
func NewRFP(title, clientID string, visibility Visibility, closingDate time.Time) *RFP {
	now := time.Now()
	return &RFP{
		Title:       title,
		ClientID:    clientID,
		Visibility:  visibility,
		Status:      StatusDraft,
		ClosingDate: closingDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsPublic returns true for publicly visible RFPs.
func (r *RFP) IsPublic() bool {
	return r.Visibility == VisibilityPublic
}

// Expired reports whether the closing date has passed relative to now.
func (r *RFP) Expired(now time.Time) bool {
	return now.After(r.ClosingDate)
}

// Milestone is a dated entry on an RFP's timeline.
type Milestone struct {
	ID       string    `json:"id"`
	RFPID    string    `json:"rfp_id"`
	Title    string    `json:"title"`
	Date     time.Time `json:"date"`
	Timezone string    `json:"timezone,omitempty"`
	HasTime  bool      `json:"has_time"`
	Position int       `json:"position"`
}

// Component is an ordered content section of an RFP. Components follow a
// narrower visibility rule than documents: they are visible whenever the
// RFP is public, with no draft exclusion.
type Component struct {
	ID        string    `json:"id"`
	RFPID     string    `json:"rfp_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidVisibility reports whether s is an allowed visibility tier.
func ValidVisibility(s string) bool {
	switch Visibility(s) {
	case VisibilityPublic, VisibilityConfidential:
		return true
	}
	return false
}
