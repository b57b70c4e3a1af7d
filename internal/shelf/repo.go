package shelf

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

const recordColumns = `id, user_id, book_id, status, current_page, current_seconds,
	override_page_count, override_audio_seconds, rating, notes,
	started_at, finished_at, dnf_at, dnf_reason, created_at, updated_at, version`

// Repo is the progress store: one row per (user, book). Writes are guarded by
// the unique pair constraint plus a version column so concurrent submissions
// surface as apperrors.Conflict instead of lost updates.
type Repo struct {
	DB database.Querier
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) Get(ctx context.Context, userID, bookID string) (*models.ProgressRecord, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM user_books
		WHERE user_id = ? AND book_id = ?
	`, userID, bookID)
	return scanRecord(row)
}

func (r *Repo) GetByID(ctx context.Context, id string) (*models.ProgressRecord, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM user_books
		WHERE id = ?
	`, id)
	return scanRecord(row)
}

// Insert adds a brand-new record at version 1. A concurrent insert for the
// same (user, book) pair loses on the unique constraint and gets Conflict.
func (r *Repo) Insert(ctx context.Context, rec *models.ProgressRecord) error {
	rec.Version = 1
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO user_books (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, recordArgs(rec)...)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return apperrors.Conflict("progress record already exists")
		}
		return fmt.Errorf("insert progress record: %w", err)
	}
	return nil
}

// Update writes the record conditionally on the version it was read at.
// Zero rows affected means another writer got there first.
func (r *Repo) Update(ctx context.Context, rec *models.ProgressRecord) error {
	readVersion := rec.Version
	rec.Version++

	res, err := r.DB.ExecContext(ctx, `
		UPDATE user_books SET
			status = ?, current_page = ?, current_seconds = ?,
			override_page_count = ?, override_audio_seconds = ?, rating = ?, notes = ?,
			started_at = ?, finished_at = ?, dnf_at = ?, dnf_reason = ?,
			updated_at = ?, version = ?
		WHERE id = ? AND version = ?
	`, rec.Status, rec.CurrentPage, rec.CurrentSeconds,
		intArg(rec.OverridePageCount), intArg(rec.OverrideAudioSeconds), intArg(rec.Rating), strArg(rec.Notes),
		timeArg(rec.StartedAt), timeArg(rec.FinishedAt), timeArg(rec.DNFAt), strArg(rec.DNFReason),
		rec.UpdatedAt, rec.Version,
		rec.ID, readVersion)
	if err != nil {
		rec.Version = readVersion
		return fmt.Errorf("update progress record: %w", err)
	}

	n, _ := res.RowsAffected()
	if n == 0 {
		rec.Version = readVersion
		return apperrors.Conflict("progress record changed concurrently")
	}
	return nil
}

func (r *Repo) ListByUser(ctx context.Context, userID, status string) ([]models.ProgressRecord, error) {
	var rows *sql.Rows
	var err error

	if status == "" {
		rows, err = r.DB.QueryContext(ctx, `
			SELECT `+recordColumns+`
			FROM user_books
			WHERE user_id = ?
			ORDER BY updated_at DESC
		`, userID)
	} else {
		rows, err = r.DB.QueryContext(ctx, `
			SELECT `+recordColumns+`
			FROM user_books
			WHERE user_id = ? AND status = ?
			ORDER BY updated_at DESC
		`, userID, status)
	}
	if err != nil {
		return nil, fmt.Errorf("list progress records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (r *Repo) CountByStatus(ctx context.Context, userID, status string) (int, error) {
	var total int
	err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM user_books WHERE user_id = ? AND status = ?
	`, userID, status).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count progress records: %w", err)
	}
	return total, nil
}

// ListRecentFinished returns the most recently finished books across a set of
// users, newest first. Feeds use this as the book_finished source.
func (r *Repo) ListRecentFinished(ctx context.Context, userIDs []string, limit int) ([]models.ProgressRecord, error) {
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
		SELECT `+recordColumns+`
		FROM user_books
		WHERE user_id IN (`+placeholders+`) AND status = 'read' AND finished_at IS NOT NULL
		ORDER BY finished_at DESC
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list recent finished: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (r *Repo) Delete(ctx context.Context, userID, bookID string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM user_books WHERE user_id = ? AND book_id = ?
	`, userID, bookID)
	if err != nil {
		return false, fmt.Errorf("delete progress record: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func recordArgs(rec *models.ProgressRecord) []any {
	return []any{
		rec.ID, rec.UserID, rec.BookID, rec.Status, rec.CurrentPage, rec.CurrentSeconds,
		intArg(rec.OverridePageCount), intArg(rec.OverrideAudioSeconds), intArg(rec.Rating), strArg(rec.Notes),
		timeArg(rec.StartedAt), timeArg(rec.FinishedAt), timeArg(rec.DNFAt), strArg(rec.DNFReason),
		rec.CreatedAt, rec.UpdatedAt, rec.Version,
	}
}

func scanRecord(row *sql.Row) (*models.ProgressRecord, error) {
	rec, err := scanRecordFrom(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan progress record: %w", err)
	}
	return rec, nil
}

func scanRecords(rows *sql.Rows) ([]models.ProgressRecord, error) {
	out := make([]models.ProgressRecord, 0, 16)
	for rows.Next() {
		rec, err := scanRecordFrom(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan progress record: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows progress records: %w", err)
	}
	return out, nil
}

func scanRecordFrom(scan func(dest ...any) error) (*models.ProgressRecord, error) {
	var (
		rec                           models.ProgressRecord
		overridePages, overrideAudio  sql.NullInt64
		rating                        sql.NullInt64
		notes, dnfReason              sql.NullString
		startedAt, finishedAt, dnfAt  sql.NullTime
	)

	if err := scan(
		&rec.ID, &rec.UserID, &rec.BookID, &rec.Status, &rec.CurrentPage, &rec.CurrentSeconds,
		&overridePages, &overrideAudio, &rating, &notes,
		&startedAt, &finishedAt, &dnfAt, &dnfReason, &rec.CreatedAt, &rec.UpdatedAt, &rec.Version,
	); err != nil {
		return nil, err
	}

	rec.OverridePageCount = nullableInt(overridePages)
	rec.OverrideAudioSeconds = nullableInt(overrideAudio)
	rec.Rating = nullableInt(rating)
	rec.Notes = notes.String
	rec.DNFReason = dnfReason.String
	rec.StartedAt = nullableTime(startedAt)
	rec.FinishedAt = nullableTime(finishedAt)
	rec.DNFAt = nullableTime(dnfAt)
	return &rec, nil
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func nullableTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func intArg(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func strArg(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func timeArg(v *time.Time) any {
	if v == nil {
		return nil
	}
	return *v
}
