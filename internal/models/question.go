package models

import (
	"time"
)

// QuestionStatus is the state of a bidder question.
type QuestionStatus string

const (
	QuestionPending   QuestionStatus = "pending"
	QuestionPublished QuestionStatus = "published"
)

// Question is a bidder question on an RFP. Publishing the answer fires a
// question_answered notification to the asker.
type Question struct {
	ID          string         `json:"id"`
	RFPID       string         `json:"rfp_id"`
	AskerID     string         `json:"asker_id"`
	Body        string         `json:"body"`
	Answer      string         `json:"answer,omitempty"`
	Status      QuestionStatus `json:"status"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NewQuestion creates a pending question.
func NewQuestion(rfpID, askerID, body string) *Question {
	now := time.Now()
	return &Question{
		RFPID:     rfpID,
		AskerID:   askerID,
		Body:      body,
		Status:    QuestionPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
