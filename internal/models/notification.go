package models

import (
	"time"
)

// NotificationType is the closed enum of notification event kinds.
type NotificationType string

const (
	NotifyRFPPublished     NotificationType = "rfp_published"
	NotifyRFPClosed        NotificationType = "rfp_closed"
	NotifyQuestionAnswered NotificationType = "question_answered"
	NotifyNDAApproved      NotificationType = "nda_approved"
	NotifyNDARejected      NotificationType = "nda_rejected"
	NotifyAccessGranted    NotificationType = "access_granted"
	NotifyAccessDenied     NotificationType = "access_denied"
)

// Notification is one per-user row written by the dispatcher on a state
// transition. ReadAt moves from nil to a timestamp exactly once and is
// never cleared or backdated.
type Notification struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	Type        NotificationType `json:"type"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	ReferenceID string           `json:"reference_id,omitempty"`
	ReadAt      *time.Time       `json:"read_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// NewNotification creates an unread notification.
func NewNotification(userID string, typ NotificationType, title, message, referenceID string) *Notification {
	return &Notification{
		UserID:      userID,
		Type:        typ,
		Title:       title,
		Message:     message,
		ReferenceID: referenceID,
		CreatedAt:   time.Now(),
	}
}
