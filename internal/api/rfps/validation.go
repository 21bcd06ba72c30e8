package rfps

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/keen-violet-ibis/rfphub/internal/models"
)

// CreateRequest is the body for creating a draft RFP.
type CreateRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ClientID    string    `json:"client_id"`
	Visibility  string    `json:"visibility"`
	ClosingDate time.Time `json:"closing_date"`
}

// Validate returns a validation message, or "" when the request is valid.
func (r *CreateRequest) Validate() string {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return "title is required"
	}
	if len(r.Title) > 200 {
		return "title must be 200 characters or less"
	}
	if !models.ValidVisibility(r.Visibility) {
		return "visibility must be public or confidential"
	}
	if r.ClosingDate.IsZero() {
		return "closing_date is required"
	}
	return ""
}

// UpdateRequest is the body for updating an RFP's content fields. Status
// is deliberately absent: all lifecycle changes go through the publish
// and close endpoints.
type UpdateRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Visibility  *string    `json:"visibility"`
	ClosingDate *time.Time `json:"closing_date"`
}

// Validate returns a validation message, or "" when the request is valid.
func (r *UpdateRequest) Validate() string {
	if r.Title != nil {
		t := strings.TrimSpace(*r.Title)
		if t == "" {
			return "title cannot be empty"
		}
		if len(t) > 200 {
			return "title must be 200 characters or less"
		}
		*r.Title = t
	}
	if r.Visibility != nil && !models.ValidVisibility(*r.Visibility) {
		return "visibility must be public or confidential"
	}
	if r.ClosingDate != nil && r.ClosingDate.IsZero() {
		return "closing_date cannot be zero"
	}
	return ""
}

// Apply copies the set fields onto the RFP.
func (r *UpdateRequest) Apply(rfp *models.RFP) {
	if r.Title != nil {
		rfp.Title = *r.Title
	}
	if r.Description != nil {
		rfp.Description = *r.Description
	}
	if r.Visibility != nil {
		rfp.Visibility = models.Visibility(*r.Visibility)
	}
	if r.ClosingDate != nil {
		rfp.ClosingDate = *r.ClosingDate
	}
	rfp.UpdatedAt = time.Now()
}

// MilestoneEntry is one timeline entry in a milestones replacement.
type MilestoneEntry struct {
	Title    string    `json:"title"`
	Date     time.Time `json:"date"`
	Timezone string    `json:"timezone"`
	HasTime  bool      `json:"has_time"`
}

// MilestonesRequest replaces the whole milestone timeline.
type MilestonesRequest struct {
	Entries []MilestoneEntry `json:"milestones"`
}

// Validate returns a validation message, or "" when the request is valid.
func (r *MilestonesRequest) Validate() string {
	for i := range r.Entries {
		r.Entries[i].Title = strings.TrimSpace(r.Entries[i].Title)
		if r.Entries[i].Title == "" {
			return "milestone title is required"
		}
		if r.Entries[i].Date.IsZero() {
			return "milestone date is required"
		}
	}
	return ""
}

// Milestones materializes the request into models, positions assigned
// in request order.
func (r *MilestonesRequest) Milestones(rfpID string) []models.Milestone {
	ms := make([]models.Milestone, 0, len(r.Entries))
	for i, e := range r.Entries {
		ms = append(ms, models.Milestone{
			ID:       uuid.New().String(),
			RFPID:    rfpID,
			Title:    e.Title,
			Date:     e.Date,
			Timezone: e.Timezone,
			HasTime:  e.HasTime,
			Position: i,
		})
	}
	return ms
}

// ComponentRequest is the body for creating a content section.
type ComponentRequest struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Position int    `json:"position"`
}

// Validate returns a validation message, or "" when the request is valid.
func (r *ComponentRequest) Validate() string {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return "title is required"
	}
	if r.Position < 0 {
		return "position must be non-negative"
	}
	return ""
}

// Component materializes the request into a model.
func (r *ComponentRequest) Component(rfpID string) *models.Component {
	now := time.Now()
	return &models.Component{
		RFPID:     rfpID,
		Title:     r.Title,
		Body:      r.Body,
		Position:  r.Position,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
