package models

import "time"

// Reading methods for a SessionEvent.
const (
	MethodPhysical  = "physical"
	MethodEbook     = "ebook"
	MethodAudiobook = "audiobook"
)

// SessionEvent is one immutable logged unit of reading activity.
// Date is the calendar day of the session, normalized to midnight UTC.
type SessionEvent struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	BookID      string    `json:"book_id"`
	Method      string    `json:"method"`
	PagesRead   *int      `json:"pages_read,omitempty"`
	MinutesRead *int      `json:"minutes_read,omitempty"`
	StartPage   *int      `json:"start_page,omitempty"`
	EndPage     *int      `json:"end_page,omitempty"`
	Date        time.Time `json:"date"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
