package posting

import (
	"encoding/json"
	"time"
)

// Posting is a job listing owned by an author. It is read-only from the
// application-status service's point of view.
type Posting struct {
	ID          string          `json:"id"`
	AuthorID    string          `json:"authorId"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Details     json.RawMessage `json:"details,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}
