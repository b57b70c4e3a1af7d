package lists

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"readhub/pkg/apperrors"
	"readhub/pkg/database"
	"readhub/pkg/models"
)

type Repo struct {
	DB database.Querier
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) Create(ctx context.Context, list *models.BookList) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO book_lists (id, user_id, name, description, is_public, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, list.ID, list.UserID, list.Name, strArg(list.Description), boolArg(list.IsPublic), list.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert list: %w", err)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (*models.BookList, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, user_id, name, description, is_public, created_at
		FROM book_lists WHERE id = ?
	`, id)
	list, err := scanList(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan list: %w", err)
	}
	return list, nil
}

func (r *Repo) ListByUser(ctx context.Context, userID string) ([]models.BookList, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, user_id, name, description, is_public, created_at
		FROM book_lists
		WHERE user_id = ?
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list lists: %w", err)
	}
	defer rows.Close()
	return scanLists(rows)
}

// AddBook puts a book on a list; adding the same book twice is a Conflict.
func (r *Repo) AddBook(ctx context.Context, listID, bookID string, now time.Time) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO list_books (list_id, book_id, added_at) VALUES (?, ?, ?)
	`, listID, bookID, now)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return apperrors.Conflict("book already on list")
		}
		return fmt.Errorf("insert list book: %w", err)
	}
	return nil
}

func (r *Repo) RemoveBook(ctx context.Context, listID, bookID string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM list_books WHERE list_id = ? AND book_id = ?
	`, listID, bookID)
	if err != nil {
		return false, fmt.Errorf("delete list book: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *Repo) BookIDs(ctx context.Context, listID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT book_id FROM list_books WHERE list_id = ? ORDER BY added_at DESC
	`, listID)
	if err != nil {
		return nil, fmt.Errorf("list list books: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan list book: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows list books: %w", err)
	}
	return ids, nil
}

func (r *Repo) CountBooks(ctx context.Context, listID string) (int, error) {
	var total int
	err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM list_books WHERE list_id = ?
	`, listID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count list books: %w", err)
	}
	return total, nil
}

// BookCounts returns book totals for a set of lists in one query. Lists
// without books are absent from the map.
func (r *Repo) BookCounts(ctx context.Context, listIDs []string) (map[string]int, error) {
	if len(listIDs) == 0 {
		return map[string]int{}, nil
	}

	placeholders := strings.Repeat("?,", len(listIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(listIDs))
	for _, id := range listIDs {
		args = append(args, id)
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT list_id, COUNT(*)
		FROM list_books
		WHERE list_id IN (`+placeholders+`)
		GROUP BY list_id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("count books per list: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int, len(listIDs))
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan list book count: %w", err)
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows list book counts: %w", err)
	}
	return counts, nil
}

func (r *Repo) Delete(ctx context.Context, userID, listID string) error {
	list, err := r.Get(ctx, listID)
	if err != nil {
		return err
	}
	if list == nil {
		return apperrors.NotFound("list", listID)
	}
	if list.UserID != userID {
		return apperrors.Forbidden("you do not own this list")
	}

	if _, err := r.DB.ExecContext(ctx, `DELETE FROM book_lists WHERE id = ?`, listID); err != nil {
		return fmt.Errorf("delete list: %w", err)
	}
	return nil
}

// ListRecentPublicByUserIDs returns the newest public lists across a set of
// users. Feeds use this as the list_created activity source.
func (r *Repo) ListRecentPublicByUserIDs(ctx context.Context, userIDs []string, limit int) ([]models.BookList, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	placeholders := strings.Repeat("?,", len(userIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(userIDs)+1)
	for _, id := range userIDs {
		args = append(args, id)
	}
	args = append(args, limit)

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, user_id, name, description, is_public, created_at
		FROM book_lists
		WHERE user_id IN (`+placeholders+`) AND is_public = 1
		ORDER BY created_at DESC
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list recent public lists: %w", err)
	}
	defer rows.Close()
	return scanLists(rows)
}

func scanLists(rows *sql.Rows) ([]models.BookList, error) {
	out := make([]models.BookList, 0, 8)
	for rows.Next() {
		list, err := scanList(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan list: %w", err)
		}
		out = append(out, *list)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows lists: %w", err)
	}
	return out, nil
}

func scanList(scan func(dest ...any) error) (*models.BookList, error) {
	var (
		list        models.BookList
		description sql.NullString
		isPublic    int
	)
	if err := scan(&list.ID, &list.UserID, &list.Name, &description, &isPublic, &list.CreatedAt); err != nil {
		return nil, err
	}
	list.Description = description.String
	list.IsPublic = isPublic != 0
	return &list, nil
}

func strArg(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func boolArg(v bool) int {
	if v {
		return 1
	}
	return 0
}
