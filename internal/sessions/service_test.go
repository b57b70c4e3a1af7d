package sessions

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"readhub/internal/shelf"
	"readhub/pkg/apperrors"
	"readhub/pkg/database"
	"readhub/pkg/models"
)

func intPtr(n int) *int { return &n }

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedUser(t *testing.T, db *sql.DB, id string) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO users (id, username, email, password_hash)
		VALUES (?, ?, ?, 'x')
	`, id, "user-"+id, id+"@example.com")
	require.NoError(t, err)
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func TestSubmitFirstSessionCreatesProgress(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "u1")
	svc := NewService(db, zap.NewNop())
	ctx := context.Background()

	ev, rec, err := svc.Submit(ctx, "u1", models.SessionEvent{
		BookID:    "b1",
		Method:    models.MethodPhysical,
		PagesRead: intPtr(40),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "u1", ev.UserID)
	assert.Equal(t, models.StatusReading, rec.Status)
	assert.Equal(t, 40, rec.CurrentPage)
	require.NotNil(t, rec.StartedAt)

	assert.Equal(t, 1, countRows(t, db, "reading_sessions"))
	assert.Equal(t, 1, countRows(t, db, "user_books"))
}

func TestSubmitAccumulatesAcrossSessions(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "u1")
	svc := NewService(db, zap.NewNop())
	ctx := context.Background()

	for _, pages := range []int{10, 15, 20} {
		_, _, err := svc.Submit(ctx, "u1", models.SessionEvent{
			BookID:    "b1",
			Method:    models.MethodEbook,
			PagesRead: intPtr(pages),
		})
		require.NoError(t, err)
	}

	_, rec, err := svc.Submit(ctx, "u1", models.SessionEvent{
		BookID:      "b1",
		Method:      models.MethodAudiobook,
		MinutesRead: intPtr(30),
	})
	require.NoError(t, err)

	assert.Equal(t, 45, rec.CurrentPage)
	assert.Equal(t, 1800, rec.CurrentSeconds)
	assert.Equal(t, 4, countRows(t, db, "reading_sessions"))
	assert.Equal(t, 1, countRows(t, db, "user_books"))
}

func TestSubmitEndPageIsAbsolute(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "u1")
	svc := NewService(db, zap.NewNop())
	ctx := context.Background()

	_, _, err := svc.Submit(ctx, "u1", models.SessionEvent{
		BookID: "b1", Method: models.MethodPhysical, PagesRead: intPtr(100),
	})
	require.NoError(t, err)

	_, rec, err := svc.Submit(ctx, "u1", models.SessionEvent{
		BookID: "b1", Method: models.MethodPhysical,
		PagesRead: intPtr(10), StartPage: intPtr(60), EndPage: intPtr(70),
	})
	require.NoError(t, err)
	assert.Equal(t, 70, rec.CurrentPage)
}

func TestSubmitValidationWritesNothing(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "u1")
	svc := NewService(db, zap.NewNop())
	ctx := context.Background()

	testCases := []struct {
		name  string
		event models.SessionEvent
	}{
		{
			name:  "audiobook without minutes",
			event: models.SessionEvent{BookID: "b1", Method: models.MethodAudiobook},
		},
		{
			name:  "audiobook with zero minutes",
			event: models.SessionEvent{BookID: "b1", Method: models.MethodAudiobook, MinutesRead: intPtr(0)},
		},
		{
			name:  "physical without pages",
			event: models.SessionEvent{BookID: "b1", Method: models.MethodPhysical},
		},
		{
			name: "inverted page range",
			event: models.SessionEvent{
				BookID: "b1", Method: models.MethodPhysical,
				PagesRead: intPtr(5), StartPage: intPtr(90), EndPage: intPtr(80),
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.Submit(ctx, "u1", tc.event)
			require.Error(t, err)
			assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
		})
	}

	assert.Equal(t, 0, countRows(t, db, "reading_sessions"))
	assert.Equal(t, 0, countRows(t, db, "user_books"))
}

func TestSubmitResumesDNFBook(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "u1")
	svc := NewService(db, zap.NewNop())
	ctx := context.Background()

	_, _, err := svc.Submit(ctx, "u1", models.SessionEvent{
		BookID: "b1", Method: models.MethodPhysical, PagesRead: intPtr(50),
	})
	require.NoError(t, err)

	_, err = db.Exec(`
		UPDATE user_books SET status = 'dnf', dnf_at = ?, dnf_reason = 'stalled', version = version + 1
		WHERE user_id = 'u1' AND book_id = 'b1'
	`, time.Now().UTC())
	require.NoError(t, err)

	_, rec, err := svc.Submit(ctx, "u1", models.SessionEvent{
		BookID: "b1", Method: models.MethodPhysical, PagesRead: intPtr(10),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusReading, rec.Status)
	assert.Equal(t, 60, rec.CurrentPage)
}

// versionBumper wraps a Querier and bumps the stored record version right
// before each of the first n conditional progress updates, so each of those
// updates matches zero rows as if a concurrent writer had gotten in first.
type versionBumper struct {
	database.Querier
	remaining int
	userID    string
	bookID    string
}

func (q *versionBumper) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if q.remaining > 0 && strings.Contains(query, "UPDATE user_books SET") {
		q.remaining--
		_, err := q.Querier.ExecContext(ctx, `
			UPDATE user_books SET version = version + 1 WHERE user_id = ? AND book_id = ?
		`, q.userID, q.bookID)
		if err != nil {
			return nil, err
		}
	}
	return q.Querier.ExecContext(ctx, query, args...)
}

func TestSubmitConflictRetriesOnce(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "u1")
	svc := NewService(db, zap.NewNop())
	ctx := context.Background()

	_, _, err := svc.Submit(ctx, "u1", models.SessionEvent{
		BookID: "b1", Method: models.MethodPhysical, PagesRead: intPtr(40),
	})
	require.NoError(t, err)

	progress := &shelf.Repo{DB: &versionBumper{Querier: db, remaining: 1, userID: "u1", bookID: "b1"}}
	ev := models.SessionEvent{
		ID: uuid.NewString(), UserID: "u1", BookID: "b1",
		Method: models.MethodPhysical, PagesRead: intPtr(10),
	}

	rec, err := svc.applyProjection(ctx, progress, ev, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 50, rec.CurrentPage)

	// the retry re-read the winner's version and its own write stuck
	var version int
	require.NoError(t, db.QueryRow(`
		SELECT version FROM user_books WHERE user_id = 'u1' AND book_id = 'b1'
	`).Scan(&version))
	assert.Equal(t, 3, version)
}

func TestSubmitSecondConflictFails(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "u1")
	svc := NewService(db, zap.NewNop())
	ctx := context.Background()

	_, _, err := svc.Submit(ctx, "u1", models.SessionEvent{
		BookID: "b1", Method: models.MethodPhysical, PagesRead: intPtr(40),
	})
	require.NoError(t, err)

	progress := &shelf.Repo{DB: &versionBumper{Querier: db, remaining: 2, userID: "u1", bookID: "b1"}}
	ev := models.SessionEvent{
		ID: uuid.NewString(), UserID: "u1", BookID: "b1",
		Method: models.MethodPhysical, PagesRead: intPtr(10),
	}

	rec, err := svc.applyProjection(ctx, progress, ev, time.Now().UTC())
	require.Error(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	// the losing projection never landed
	var page int
	require.NoError(t, db.QueryRow(`
		SELECT current_page FROM user_books WHERE user_id = 'u1' AND book_id = 'b1'
	`).Scan(&page))
	assert.Equal(t, 40, page)
}

func TestSubmitNormalizesDate(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "u1")
	svc := NewService(db, zap.NewNop())
	ctx := context.Background()

	loc := time.FixedZone("UTC+5", 5*3600)
	ev, _, err := svc.Submit(ctx, "u1", models.SessionEvent{
		BookID: "b1", Method: models.MethodPhysical, PagesRead: intPtr(5),
		Date: time.Date(2026, 6, 15, 14, 30, 0, 0, loc),
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC), ev.Date)
}
