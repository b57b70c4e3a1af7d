package models

import "time"

// Activity kinds, in merge tie-break order.
const (
	ActivitySession      = "session"
	ActivityListCreated  = "list_created"
	ActivityBookFinished = "book_finished"
)

// ActivityItem is one entry of the friend feed. It is synthesized per request
// and never persisted. Exactly one payload field is set, matching Kind.
type ActivityItem struct {
	ID         string        `json:"id"`
	Kind       string        `json:"kind"`
	ActorID    string        `json:"actor_id"`
	Actor      *UserSummary  `json:"actor,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
	Session    *SessionEvent `json:"session,omitempty"`
	List       *ListSummary  `json:"list,omitempty"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`

	// Book enriches session and book_finished items.
	BookID string       `json:"book_id,omitempty"`
	Book   *BookSummary `json:"book,omitempty"`
}
