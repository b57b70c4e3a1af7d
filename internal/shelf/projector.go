package shelf

import (
	"time"

	"readhub/pkg/apperrors"
	"readhub/pkg/models"
)

// ValidateEvent checks the method-dependent constraints of a session event.
// It runs before any record is touched.
func ValidateEvent(ev models.SessionEvent) error {
	switch ev.Method {
	case models.MethodAudiobook:
		if ev.MinutesRead == nil || *ev.MinutesRead <= 0 {
			return apperrors.Validationf("audiobook sessions require minutes_read > 0")
		}
	case models.MethodPhysical, models.MethodEbook:
		if ev.PagesRead == nil || *ev.PagesRead <= 0 {
			return apperrors.Validationf("physical/ebook sessions require pages_read > 0")
		}
	default:
		return apperrors.Validationf("method must be one of: physical, ebook, audiobook")
	}

	if ev.StartPage != nil && ev.EndPage != nil && *ev.EndPage <= *ev.StartPage {
		return apperrors.Validationf("end_page must be greater than start_page")
	}

	return nil
}

// Project derives the next progress record from the current one and a
// validated session event. It never mutates its inputs.
//
// Logging any session resumes active reading: whatever the record's status
// was, it becomes reading, and startedAt is set the first time.
func Project(existing *models.ProgressRecord, ev models.SessionEvent, now time.Time) models.ProgressRecord {
	var rec models.ProgressRecord
	if existing != nil {
		rec = *existing
	} else {
		rec = models.ProgressRecord{
			UserID:    ev.UserID,
			BookID:    ev.BookID,
			CreatedAt: now,
		}
	}

	if rec.Status != models.StatusReading {
		rec.Status = models.StatusReading
		if rec.StartedAt == nil {
			started := now
			rec.StartedAt = &started
		}
	}

	switch ev.Method {
	case models.MethodAudiobook:
		rec.CurrentSeconds += *ev.MinutesRead * 60
	default:
		if ev.EndPage != nil {
			// end_page is an absolute position, not a delta
			rec.CurrentPage = *ev.EndPage
		} else {
			rec.CurrentPage += *ev.PagesRead
		}
	}

	rec.UpdatedAt = now
	return rec
}

// Percentage derives reading progress in [0, 100] from a record and its
// catalog summary. Audio position wins over page position whenever both are
// positive; per-user overrides win over catalog lengths; the ebook page count
// stands in when the physical one is absent.
func Percentage(rec models.ProgressRecord, book models.BookSummary) float64 {
	audioLength := book.AudioLengthSeconds
	if rec.OverrideAudioSeconds != nil {
		audioLength = *rec.OverrideAudioSeconds
	}

	pageCount := book.PageCount
	if pageCount == 0 {
		pageCount = book.EbookPageCount
	}
	if rec.OverridePageCount != nil {
		pageCount = *rec.OverridePageCount
	}

	var pct float64
	switch {
	case audioLength > 0 && rec.CurrentSeconds > 0:
		pct = float64(rec.CurrentSeconds) / float64(audioLength) * 100
	case pageCount > 0 && rec.CurrentPage > 0:
		pct = float64(rec.CurrentPage) / float64(pageCount) * 100
	default:
		return 0
	}

	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
