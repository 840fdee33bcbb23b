package profile

import (
	"encoding/json"
	"time"
)

// Profile is the public view of a user who may apply to postings.
type Profile struct {
	ID        string          `json:"id"`
	Email     string          `json:"email"`
	FullName  string          `json:"fullName"`
	Fields    json.RawMessage `json:"profile,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}
