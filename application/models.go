package application

import (
	"encoding/json"
	"time"
)

// Status is an opaque label supplied by the caller ("pending", "accepted", ...).
// No closed set of values is enforced.
type Status string

// Record links one candidate to one posting.
type Record struct {
	ID            string          `json:"id"`
	PostingID     string          `json:"postingId"`
	CandidateID   string          `json:"candidateId"`
	Status        Status          `json:"status"`
	CandidateInfo json.RawMessage `json:"candidateInfo"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// UpdateFields are the only columns the update path may touch.
type UpdateFields struct {
	Status        Status
	CandidateInfo json.RawMessage
}

// CreateParams carries caller input for a new record.
type CreateParams struct {
	PostingID     string
	CandidateID   string
	Status        Status
	CandidateInfo json.RawMessage
}

// UpdateParams carries caller input for a status update.
type UpdateParams struct {
	Status        Status
	CandidateInfo json.RawMessage
}

// UpdateResult echoes the submitted fields merged with the target id.
type UpdateResult struct {
	ID            string          `json:"id"`
	Status        Status          `json:"status"`
	CandidateInfo json.RawMessage `json:"candidateInfo"`
}

// ListResult is a posting's records plus the stored count.
type ListResult struct {
	Items []Record `json:"items"`
	Total int      `json:"total"`
}
