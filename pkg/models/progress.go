package models

import "time"

// Reading statuses for a ProgressRecord.
const (
	StatusWant    = "want"
	StatusReading = "reading"
	StatusRead    = "read"
	StatusDNF     = "dnf"
)

// ProgressRecord is the single mutable row per (user, book): shelf status plus
// the current position on both the page and the audio axis.
type ProgressRecord struct {
	ID                   string     `json:"id"`
	UserID               string     `json:"user_id"`
	BookID               string     `json:"book_id"`
	Status               string     `json:"status"`
	CurrentPage          int        `json:"current_page"`
	CurrentSeconds       int        `json:"current_seconds"`
	OverridePageCount    *int       `json:"override_page_count,omitempty"`
	OverrideAudioSeconds *int       `json:"override_audio_seconds,omitempty"`
	Rating               *int       `json:"rating,omitempty"`
	Notes                string     `json:"notes,omitempty"`
	StartedAt            *time.Time `json:"started_at,omitempty"`
	FinishedAt           *time.Time `json:"finished_at,omitempty"`
	DNFAt                *time.Time `json:"dnf_at,omitempty"`
	DNFReason            string     `json:"dnf_reason,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`

	// Version guards the conditional upsert; it never leaves the API.
	Version int `json:"-"`
}

// Started reports whether the record counts toward "books started".
func (r ProgressRecord) Started() bool {
	return r.Status == StatusReading || r.Status == StatusRead || r.Status == StatusDNF
}
