package models

import "time"

// BookList is a user-curated list of books. Public lists show up in the
// friend feed when created.
type BookList struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsPublic    bool      `json:"is_public"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListSummary is the feed-facing view of a list.
type ListSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsPublic    bool      `json:"is_public"`
	BookCount   int       `json:"book_count"`
	CreatedAt   time.Time `json:"created_at"`
}
