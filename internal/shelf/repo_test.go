package shelf

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readhub/pkg/apperrors"
	"readhub/pkg/database"
	"readhub/pkg/models"
)

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

func newRecord(userID, bookID string) *models.ProgressRecord {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.ProgressRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		BookID:    bookID,
		Status:    models.StatusWant,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRepoInsertAndGet(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "u1")
	repo := NewRepo(db)
	ctx := context.Background()

	rec := newRecord("u1", "b1")
	rec.Notes = "library copy"
	require.NoError(t, repo.Insert(ctx, rec))
	assert.Equal(t, 1, rec.Version)

	got, err := repo.Get(ctx, "u1", "b1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, models.StatusWant, got.Status)
	assert.Equal(t, "library copy", got.Notes)
	assert.Equal(t, 1, got.Version)
	assert.Nil(t, got.StartedAt)

	missing, err := repo.Get(ctx, "u1", "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepoInsertDuplicateIsConflict(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "u1")
	repo := NewRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, newRecord("u1", "b1")))

	err := repo.Insert(ctx, newRecord("u1", "b1"))
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
}

func TestRepoUpdateVersionConflict(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "u1")
	repo := NewRepo(db)
	ctx := context.Background()

	rec := newRecord("u1", "b1")
	require.NoError(t, repo.Insert(ctx, rec))

	// two readers load the same version
	first, err := repo.Get(ctx, "u1", "b1")
	require.NoError(t, err)
	second, err := repo.Get(ctx, "u1", "b1")
	require.NoError(t, err)

	first.CurrentPage = 50
	first.UpdatedAt = time.Now().UTC()
	require.NoError(t, repo.Update(ctx, first))
	assert.Equal(t, 2, first.Version)

	second.CurrentPage = 30
	second.UpdatedAt = time.Now().UTC()
	err = repo.Update(ctx, second)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
	// version is restored so a re-read retry starts clean
	assert.Equal(t, 1, second.Version)

	got, err := repo.Get(ctx, "u1", "b1")
	require.NoError(t, err)
	assert.Equal(t, 50, got.CurrentPage)
	assert.Equal(t, 2, got.Version)
}

func TestRepoListByUserFiltersStatus(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "u1")
	repo := NewRepo(db)
	ctx := context.Background()

	reading := newRecord("u1", "b1")
	reading.Status = models.StatusReading
	require.NoError(t, repo.Insert(ctx, reading))

	want := newRecord("u1", "b2")
	require.NoError(t, repo.Insert(ctx, want))

	all, err := repo.ListByUser(ctx, "u1", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyReading, err := repo.ListByUser(ctx, "u1", models.StatusReading)
	require.NoError(t, err)
	require.Len(t, onlyReading, 1)
	assert.Equal(t, "b1", onlyReading[0].BookID)

	count, err := repo.CountByStatus(ctx, "u1", models.StatusWant)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRepoListRecentFinished(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "u1")
	seedUser(t, db, "u2")
	seedUser(t, db, "u3")
	repo := NewRepo(db)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	finish := func(userID, bookID string, at time.Time) {
		rec := newRecord(userID, bookID)
		rec.Status = models.StatusRead
		rec.StartedAt = &base
		rec.FinishedAt = &at
		require.NoError(t, repo.Insert(ctx, rec))
	}

	finish("u1", "b1", base.Add(24*time.Hour))
	finish("u2", "b2", base.Add(72*time.Hour))
	finish("u1", "b3", base.Add(48*time.Hour))
	finish("u3", "b4", base.Add(96*time.Hour)) // not a friend, excluded

	// a still-reading book never shows up
	open := newRecord("u1", "b5")
	open.Status = models.StatusReading
	require.NoError(t, repo.Insert(ctx, open))

	recent, err := repo.ListRecentFinished(ctx, []string{"u1", "u2"}, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "b2", recent[0].BookID)
	assert.Equal(t, "b3", recent[1].BookID)
	assert.Equal(t, "b1", recent[2].BookID)

	capped, err := repo.ListRecentFinished(ctx, []string{"u1", "u2"}, 2)
	require.NoError(t, err)
	assert.Len(t, capped, 2)

	none, err := repo.ListRecentFinished(ctx, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRepoDelete(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "u1")
	repo := NewRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, newRecord("u1", "b1")))

	removed, err := repo.Delete(ctx, "u1", "b1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Delete(ctx, "u1", "b1")
	require.NoError(t, err)
	assert.False(t, removed)
}
