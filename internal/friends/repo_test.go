package friends

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readhub/pkg/apperrors"
	"readhub/pkg/database"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	for _, id := range []string{"u1", "u2", "u3"} {
		_, err := db.Exec(`
			INSERT INTO users (id, username, email, password_hash)
			VALUES (?, ?, ?, 'x')
		`, id, "user-"+id, id+"@example.com")
		require.NoError(t, err)
	}
	return db
}

func TestSendRequestValidation(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	_, err := repo.SendRequest(ctx, "u1", "u1")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	req, err := repo.SendRequest(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, RequestPending, req.Status)

	// a second request in either direction is rejected while one is pending
	_, err = repo.SendRequest(ctx, "u1", "u2")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	_, err = repo.SendRequest(ctx, "u2", "u1")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
}

func TestRespondAccept(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	req, err := repo.SendRequest(ctx, "u1", "u2")
	require.NoError(t, err)

	// only the addressee can respond
	err = repo.Respond(ctx, req.ID, "u1", true)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	require.NoError(t, repo.Respond(ctx, req.ID, "u2", true))

	friends, err := repo.AreFriends(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.True(t, friends)

	// answered requests stay answered
	err = repo.Respond(ctx, req.ID, "u2", true)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	// once friends, new requests are conflicts
	_, err = repo.SendRequest(ctx, "u2", "u1")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
}

func TestRespondDecline(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	req, err := repo.SendRequest(ctx, "u1", "u2")
	require.NoError(t, err)
	require.NoError(t, repo.Respond(ctx, req.ID, "u2", false))

	friends, err := repo.AreFriends(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.False(t, friends)

	// declining frees the pair for a fresh request
	_, err = repo.SendRequest(ctx, "u1", "u2")
	require.NoError(t, err)
}

func TestFriendIDsAndRemove(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	for _, other := range []string{"u2", "u3"} {
		req, err := repo.SendRequest(ctx, "u1", other)
		require.NoError(t, err)
		require.NoError(t, repo.Respond(ctx, req.ID, other, true))
	}

	ids, err := repo.FriendIDs(ctx, "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u2", "u3"}, ids)

	ids, err = repo.FriendIDs(ctx, "u2")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1"}, ids)

	removed, err := repo.RemoveFriend(ctx, "u3", "u1")
	require.NoError(t, err)
	assert.True(t, removed)

	ids, err = repo.FriendIDs(ctx, "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u2"}, ids)

	removed, err = repo.RemoveFriend(ctx, "u3", "u1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestListPending(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	_, err := repo.SendRequest(ctx, "u2", "u1")
	require.NoError(t, err)
	_, err = repo.SendRequest(ctx, "u3", "u1")
	require.NoError(t, err)

	pending, err := repo.ListPending(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	pending, err = repo.ListPending(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, pending)
}
