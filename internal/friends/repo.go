package friends

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"readhub/pkg/apperrors"
)

// Request statuses.
const (
	RequestPending  = "pending"
	RequestAccepted = "accepted"
	RequestDeclined = "declined"
)

type Request struct {
	ID         string    `json:"id"`
	FromUserID string    `json:"from_user_id"`
	ToUserID   string    `json:"to_user_id"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// Repo stores friend requests and the accepted friendship graph. Friendships
// are one row per pair, keyed by the ordered (user_a < user_b) ids.
type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

func orderPair(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

func (r *Repo) AreFriends(ctx context.Context, userID, otherID string) (bool, error) {
	a, b := orderPair(userID, otherID)
	var one int
	err := r.DB.QueryRowContext(ctx, `
		SELECT 1 FROM friendships WHERE user_a = ? AND user_b = ?
	`, a, b).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check friendship: %w", err)
	}
	return true, nil
}

func (r *Repo) SendRequest(ctx context.Context, fromID, toID string) (*Request, error) {
	if fromID == toID {
		return nil, apperrors.Validationf("cannot send a friend request to yourself")
	}

	already, err := r.AreFriends(ctx, fromID, toID)
	if err != nil {
		return nil, err
	}
	if already {
		return nil, apperrors.Conflict("already friends")
	}

	var pending int
	err = r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM friend_requests
		WHERE status = 'pending'
		  AND ((from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?))
	`, fromID, toID, toID, fromID).Scan(&pending)
	if err != nil {
		return nil, fmt.Errorf("check pending requests: %w", err)
	}
	if pending > 0 {
		return nil, apperrors.Conflict("a pending request already exists")
	}

	// clear answered history for the pair so the unique index only ever
	// guards against duplicate pending requests
	_, err = r.DB.ExecContext(ctx, `
		DELETE FROM friend_requests
		WHERE status != 'pending'
		  AND ((from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?))
	`, fromID, toID, toID, fromID)
	if err != nil {
		return nil, fmt.Errorf("clear answered requests: %w", err)
	}

	req := Request{
		ID:         uuid.NewString(),
		FromUserID: fromID,
		ToUserID:   toID,
		Status:     RequestPending,
		CreatedAt:  time.Now().UTC(),
	}

	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO friend_requests (id, from_user_id, to_user_id, status, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, req.ID, req.FromUserID, req.ToUserID, req.Status, req.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert friend request: %w", err)
	}

	return &req, nil
}

// Respond accepts or declines a pending request. Only the addressee may
// respond; accepting inserts the friendship row in the same transaction.
func (r *Repo) Respond(ctx context.Context, requestID, userID string, accept bool) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin respond tx: %w", err)
	}
	defer tx.Rollback()

	var req Request
	err = tx.QueryRowContext(ctx, `
		SELECT id, from_user_id, to_user_id, status, created_at
		FROM friend_requests
		WHERE id = ?
	`, requestID).Scan(&req.ID, &req.FromUserID, &req.ToUserID, &req.Status, &req.CreatedAt)
	if err == sql.ErrNoRows {
		return apperrors.NotFound("friend request", requestID)
	}
	if err != nil {
		return fmt.Errorf("load friend request: %w", err)
	}

	if req.ToUserID != userID {
		return apperrors.Forbidden("only the addressee can respond to a request")
	}
	if req.Status != RequestPending {
		return apperrors.Conflict("request already answered")
	}

	status := RequestDeclined
	if accept {
		status = RequestAccepted
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE friend_requests SET status = ? WHERE id = ?
	`, status, requestID); err != nil {
		return fmt.Errorf("update friend request: %w", err)
	}

	if accept {
		a, b := orderPair(req.FromUserID, req.ToUserID)
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO friendships (user_a, user_b, created_at)
			VALUES (?, ?, ?)
		`, a, b, time.Now().UTC()); err != nil {
			return fmt.Errorf("insert friendship: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit respond tx: %w", err)
	}
	return nil
}

func (r *Repo) ListPending(ctx context.Context, userID string) ([]Request, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, from_user_id, to_user_id, status, created_at
		FROM friend_requests
		WHERE to_user_id = ? AND status = 'pending'
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	defer rows.Close()

	out := make([]Request, 0, 8)
	for rows.Next() {
		var req Request
		if err := rows.Scan(&req.ID, &req.FromUserID, &req.ToUserID, &req.Status, &req.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan friend request: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows friend requests: %w", err)
	}
	return out, nil
}

// FriendIDs returns the accepted friend set for a user.
func (r *Repo) FriendIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT CASE WHEN user_a = ? THEN user_b ELSE user_a END
		FROM friendships
		WHERE user_a = ? OR user_b = ?
	`, userID, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list friend ids: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0, 16)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan friend id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows friend ids: %w", err)
	}
	return out, nil
}

func (r *Repo) RemoveFriend(ctx context.Context, userID, otherID string) (bool, error) {
	a, b := orderPair(userID, otherID)
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM friendships WHERE user_a = ? AND user_b = ?
	`, a, b)
	if err != nil {
		return false, fmt.Errorf("delete friendship: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
