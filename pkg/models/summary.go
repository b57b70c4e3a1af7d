package models

// BookSummary is the minimal catalog view of a book. Zero counts mean the
// catalog does not know that length.
type BookSummary struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	CoverURL           string   `json:"cover_url,omitempty"`
	AuthorNames        []string `json:"author_names,omitempty"`
	GenreNames         []string `json:"genre_names,omitempty"`
	PageCount          int      `json:"page_count,omitempty"`
	EbookPageCount     int      `json:"ebook_page_count,omitempty"`
	AudioLengthSeconds int      `json:"audio_length_seconds,omitempty"`
}

// UserSummary is the minimal directory view of a user.
type UserSummary struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}
