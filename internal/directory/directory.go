// Package directory resolves user ids to minimal public summaries for feed
// enrichment.
package directory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"readhub/pkg/models"
)

// Gateway resolves a set of user ids to summaries. Unknown ids are simply
// absent from the result; callers substitute placeholders.
type Gateway interface {
	GetSummaries(ctx context.Context, ids []string) (map[string]models.UserSummary, error)
}

// Placeholder is the summary used when a user cannot be resolved.
func Placeholder(id string) models.UserSummary {
	return models.UserSummary{
		ID:       id,
		Username: "unknown user",
	}
}

// Repo serves user summaries straight from the users table.
type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) GetSummaries(ctx context.Context, ids []string) (map[string]models.UserSummary, error) {
	out := make(map[string]models.UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, username, avatar_url
		FROM users
		WHERE id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query user summaries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s models.UserSummary
		var avatar sql.NullString
		if err := rows.Scan(&s.ID, &s.Username, &avatar); err != nil {
			return nil, fmt.Errorf("scan user summary: %w", err)
		}
		s.AvatarURL = avatar.String
		out[s.ID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows user summaries: %w", err)
	}

	return out, nil
}
