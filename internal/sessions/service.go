package sessions

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"readhub/internal/shelf"
	"readhub/pkg/apperrors"
	"readhub/pkg/models"
)

// Service runs the submit pipeline: validate the event, project it onto the
// progress record, persist both record and ledger entry in one transaction.
type Service struct {
	DB  *sql.DB
	Log *zap.Logger
}

func NewService(db *sql.DB, log *zap.Logger) *Service {
	return &Service{DB: db, Log: log}
}

// Submit logs a session for userID and returns the stored event together
// with the progress record it produced. A version conflict with a concurrent
// submission is retried exactly once against the winner's record; a second
// conflict fails the whole submission and nothing is written.
func (s *Service) Submit(ctx context.Context, userID string, ev models.SessionEvent) (*models.SessionEvent, *models.ProgressRecord, error) {
	ev.UserID = userID
	if err := shelf.ValidateEvent(ev); err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	ev.ID = uuid.NewString()
	ev.CreatedAt = now
	if ev.Date.IsZero() {
		ev.Date = now
	}
	ev.Date = ev.Date.UTC().Truncate(24 * time.Hour)

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin submit tx: %w", err)
	}
	defer tx.Rollback()

	progress := &shelf.Repo{DB: tx}
	ledger := &Repo{DB: tx}

	rec, err := s.applyProjection(ctx, progress, ev, now)
	if err != nil {
		return nil, nil, err
	}

	if err := ledger.Append(ctx, &ev); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit submit tx: %w", err)
	}
	return &ev, rec, nil
}

func (s *Service) applyProjection(ctx context.Context, progress *shelf.Repo, ev models.SessionEvent, now time.Time) (*models.ProgressRecord, error) {
	existing, err := progress.Get(ctx, ev.UserID, ev.BookID)
	if err != nil {
		return nil, err
	}

	rec := shelf.Project(existing, ev, now)
	if existing == nil {
		rec.ID = uuid.NewString()
		err = progress.Insert(ctx, &rec)
	} else {
		err = progress.Update(ctx, &rec)
	}
	if err == nil {
		return &rec, nil
	}
	if apperrors.KindOf(err) != apperrors.KindConflict {
		return nil, err
	}

	// Lost the race. Re-read whatever won and project against that.
	s.Log.Debug("session submit conflict, retrying",
		zap.String("user_id", ev.UserID), zap.String("book_id", ev.BookID))

	current, err := progress.Get(ctx, ev.UserID, ev.BookID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apperrors.Conflict("progress record changed concurrently")
	}

	rec = shelf.Project(current, ev, now)
	if err := progress.Update(ctx, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
