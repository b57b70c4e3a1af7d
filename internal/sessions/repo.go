package sessions

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"readhub/pkg/apperrors"
	"readhub/pkg/database"
	"readhub/pkg/models"
)

const sessionColumns = `id, user_id, book_id, method, pages_read, minutes_read,
	start_page, end_page, session_date, notes, created_at`

// Repo is the append-only session ledger. Sessions are never updated in
// place; a mistaken entry is deleted and re-logged.
type Repo struct {
	DB database.Querier
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) Append(ctx context.Context, ev *models.SessionEvent) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO reading_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.UserID, ev.BookID, ev.Method,
		intArg(ev.PagesRead), intArg(ev.MinutesRead), intArg(ev.StartPage), intArg(ev.EndPage),
		ev.Date.Format(dateLayout), strArg(ev.Notes), ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("append session: %w", err)
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (*models.SessionEvent, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM reading_sessions WHERE id = ?
	`, id)
	ev, err := scanSessionFrom(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return ev, nil
}

func (r *Repo) ListRecentByUser(ctx context.Context, userID string, limit int) ([]models.SessionEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM reading_sessions
		WHERE user_id = ?
		ORDER BY session_date DESC, created_at DESC, rowid DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

func (r *Repo) ListByUserAndBook(ctx context.Context, userID, bookID string) ([]models.SessionEvent, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM reading_sessions
		WHERE user_id = ? AND book_id = ?
		ORDER BY session_date DESC, created_at DESC, rowid DESC
	`, userID, bookID)
	if err != nil {
		return nil, fmt.Errorf("list sessions for book: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

// ListRecentByUsers returns the newest sessions across a set of users. Feeds
// use this as the session activity source.
func (r *Repo) ListRecentByUsers(ctx context.Context, userIDs []string, limit int) ([]models.SessionEvent, error) {
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
		SELECT `+sessionColumns+`
		FROM reading_sessions
		WHERE user_id IN (`+placeholders+`)
		ORDER BY session_date DESC, created_at DESC, rowid DESC
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list recent sessions: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

// DistinctDates returns the set of calendar days the user logged any session,
// newest first. Streak computation walks this list.
func (r *Repo) DistinctDates(ctx context.Context, userID string) ([]time.Time, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT DISTINCT session_date
		FROM reading_sessions
		WHERE user_id = ?
		ORDER BY session_date DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list session dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan session date: %w", err)
		}
		d, err := time.ParseInLocation(dateLayout, raw, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse session date %q: %w", raw, err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows session dates: %w", err)
	}
	return dates, nil
}

// Totals sums pages and minutes across all of a user's sessions.
func (r *Repo) Totals(ctx context.Context, userID string) (pages, minutes int, err error) {
	err = r.DB.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(COALESCE(pages_read, CASE
				WHEN end_page IS NOT NULL AND start_page IS NOT NULL THEN end_page - start_page
				ELSE 0 END)), 0),
			COALESCE(SUM(COALESCE(minutes_read, 0)), 0)
		FROM reading_sessions
		WHERE user_id = ?
	`, userID).Scan(&pages, &minutes)
	if err != nil {
		return 0, 0, fmt.Errorf("sum session totals: %w", err)
	}
	return pages, minutes, nil
}

// MethodTotals aggregates one reading method's slice of the ledger.
type MethodTotals struct {
	Method   string
	Books    int
	Pages    int
	Minutes  int
	Sessions int
}

// MethodBreakdown groups a user's sessions by reading method, one row per
// method with at least one session, ordered by method name.
func (r *Repo) MethodBreakdown(ctx context.Context, userID string) ([]MethodTotals, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT method,
			COUNT(DISTINCT book_id),
			COALESCE(SUM(COALESCE(pages_read, CASE
				WHEN end_page IS NOT NULL AND start_page IS NOT NULL THEN end_page - start_page
				ELSE 0 END)), 0),
			COALESCE(SUM(COALESCE(minutes_read, 0)), 0),
			COUNT(*)
		FROM reading_sessions
		WHERE user_id = ?
		GROUP BY method
		ORDER BY method
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("group sessions by method: %w", err)
	}
	defer rows.Close()

	var out []MethodTotals
	for rows.Next() {
		var m MethodTotals
		if err := rows.Scan(&m.Method, &m.Books, &m.Pages, &m.Minutes, &m.Sessions); err != nil {
			return nil, fmt.Errorf("scan method totals: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows method totals: %w", err)
	}
	return out, nil
}

// MonthlyTotals is one calendar month of ledger activity.
type MonthlyTotals struct {
	Month    string // "2006-01"
	Pages    int
	Minutes  int
	Sessions int
}

// MonthlySeries rolls the ledger up by month for one calendar year, oldest
// month first. Months without sessions are absent.
func (r *Repo) MonthlySeries(ctx context.Context, userID string, year int) ([]MonthlyTotals, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT substr(session_date, 1, 7),
			COALESCE(SUM(COALESCE(pages_read, CASE
				WHEN end_page IS NOT NULL AND start_page IS NOT NULL THEN end_page - start_page
				ELSE 0 END)), 0),
			COALESCE(SUM(COALESCE(minutes_read, 0)), 0),
			COUNT(*)
		FROM reading_sessions
		WHERE user_id = ? AND substr(session_date, 1, 4) = ?
		GROUP BY substr(session_date, 1, 7)
		ORDER BY substr(session_date, 1, 7)
	`, userID, fmt.Sprintf("%04d", year))
	if err != nil {
		return nil, fmt.Errorf("group sessions by month: %w", err)
	}
	defer rows.Close()

	var out []MonthlyTotals
	for rows.Next() {
		var m MonthlyTotals
		if err := rows.Scan(&m.Month, &m.Pages, &m.Minutes, &m.Sessions); err != nil {
			return nil, fmt.Errorf("scan monthly totals: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows monthly totals: %w", err)
	}
	return out, nil
}

// Delete removes a session the user owns. Deleting another user's session is
// Forbidden; a missing id is NotFound.
func (r *Repo) Delete(ctx context.Context, userID, sessionID string) error {
	ev, err := r.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if ev == nil {
		return apperrors.NotFound("session", sessionID)
	}
	if ev.UserID != userID {
		return apperrors.Forbidden("you do not own this session")
	}

	if _, err := r.DB.ExecContext(ctx, `DELETE FROM reading_sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func scanSessions(rows *sql.Rows) ([]models.SessionEvent, error) {
	out := make([]models.SessionEvent, 0, 16)
	for rows.Next() {
		ev, err := scanSessionFrom(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows sessions: %w", err)
	}
	return out, nil
}

func scanSessionFrom(scan func(dest ...any) error) (*models.SessionEvent, error) {
	var (
		ev                     models.SessionEvent
		pages, minutes         sql.NullInt64
		startPage, endPage     sql.NullInt64
		rawDate                string
		notes                  sql.NullString
	)

	if err := scan(
		&ev.ID, &ev.UserID, &ev.BookID, &ev.Method,
		&pages, &minutes, &startPage, &endPage,
		&rawDate, &notes, &ev.CreatedAt,
	); err != nil {
		return nil, err
	}

	d, err := time.ParseInLocation(dateLayout, rawDate, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parse session date %q: %w", rawDate, err)
	}
	ev.Date = d
	ev.PagesRead = nullableInt(pages)
	ev.MinutesRead = nullableInt(minutes)
	ev.StartPage = nullableInt(startPage)
	ev.EndPage = nullableInt(endPage)
	ev.Notes = notes.String
	return &ev, nil
}

const dateLayout = "2006-01-02"

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
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
