package shelf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readhub/pkg/models"
)

func intPtr(n int) *int { return &n }

func TestValidateEvent(t *testing.T) {
	testCases := []struct {
		name    string
		event   models.SessionEvent
		wantErr string
	}{
		{
			name:  "physical with pages",
			event: models.SessionEvent{Method: models.MethodPhysical, PagesRead: intPtr(20)},
		},
		{
			name:  "ebook with pages",
			event: models.SessionEvent{Method: models.MethodEbook, PagesRead: intPtr(5)},
		},
		{
			name:  "audiobook with minutes",
			event: models.SessionEvent{Method: models.MethodAudiobook, MinutesRead: intPtr(45)},
		},
		{
			name:    "audiobook without minutes",
			event:   models.SessionEvent{Method: models.MethodAudiobook},
			wantErr: "minutes_read",
		},
		{
			name:    "audiobook with zero minutes",
			event:   models.SessionEvent{Method: models.MethodAudiobook, MinutesRead: intPtr(0)},
			wantErr: "minutes_read",
		},
		{
			name:    "physical without pages",
			event:   models.SessionEvent{Method: models.MethodPhysical},
			wantErr: "pages_read",
		},
		{
			name:    "physical with negative pages",
			event:   models.SessionEvent{Method: models.MethodPhysical, PagesRead: intPtr(-3)},
			wantErr: "pages_read",
		},
		{
			name:    "unknown method",
			event:   models.SessionEvent{Method: "braille", PagesRead: intPtr(10)},
			wantErr: "method",
		},
		{
			name: "end page before start page",
			event: models.SessionEvent{
				Method: models.MethodPhysical, PagesRead: intPtr(10),
				StartPage: intPtr(50), EndPage: intPtr(40),
			},
			wantErr: "end_page",
		},
		{
			name: "end page equal to start page",
			event: models.SessionEvent{
				Method: models.MethodPhysical, PagesRead: intPtr(10),
				StartPage: intPtr(50), EndPage: intPtr(50),
			},
			wantErr: "end_page",
		},
		{
			name: "valid page range",
			event: models.SessionEvent{
				Method: models.MethodPhysical, PagesRead: intPtr(10),
				StartPage: intPtr(40), EndPage: intPtr(50),
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateEvent(tc.event)
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}

func TestProjectFirstSession(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	ev := models.SessionEvent{
		UserID: "u1", BookID: "b1",
		Method: models.MethodPhysical, PagesRead: intPtr(25),
	}

	rec := Project(nil, ev, now)

	assert.Equal(t, models.StatusReading, rec.Status)
	assert.Equal(t, 25, rec.CurrentPage)
	require.NotNil(t, rec.StartedAt)
	assert.Equal(t, now, *rec.StartedAt)
	assert.Equal(t, "u1", rec.UserID)
	assert.Equal(t, "b1", rec.BookID)
}

func TestProjectResumesReading(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	started := now.Add(-72 * time.Hour)
	existing := &models.ProgressRecord{
		UserID: "u1", BookID: "b1",
		Status:      models.StatusDNF,
		CurrentPage: 80,
		StartedAt:   &started,
	}
	ev := models.SessionEvent{Method: models.MethodPhysical, PagesRead: intPtr(10)}

	rec := Project(existing, ev, now)

	assert.Equal(t, models.StatusReading, rec.Status)
	assert.Equal(t, 90, rec.CurrentPage)
	// startedAt is preserved from the first reading attempt
	require.NotNil(t, rec.StartedAt)
	assert.Equal(t, started, *rec.StartedAt)
	// the input record is untouched
	assert.Equal(t, models.StatusDNF, existing.Status)
	assert.Equal(t, 80, existing.CurrentPage)
}

func TestProjectPositionRules(t *testing.T) {
	now := time.Now().UTC()
	testCases := []struct {
		name        string
		existing    *models.ProgressRecord
		event       models.SessionEvent
		wantPage    int
		wantSeconds int
	}{
		{
			name:     "pages accumulate",
			existing: &models.ProgressRecord{Status: models.StatusReading, CurrentPage: 30},
			event:    models.SessionEvent{Method: models.MethodPhysical, PagesRead: intPtr(15)},
			wantPage: 45,
		},
		{
			name:     "end page is absolute",
			existing: &models.ProgressRecord{Status: models.StatusReading, CurrentPage: 30},
			event: models.SessionEvent{
				Method: models.MethodEbook, PagesRead: intPtr(15),
				StartPage: intPtr(55), EndPage: intPtr(70),
			},
			wantPage: 70,
		},
		{
			name:     "end page can move position backwards",
			existing: &models.ProgressRecord{Status: models.StatusReading, CurrentPage: 200},
			event: models.SessionEvent{
				Method: models.MethodPhysical, PagesRead: intPtr(10),
				StartPage: intPtr(40), EndPage: intPtr(50),
			},
			wantPage: 50,
		},
		{
			name:        "audiobook minutes convert to seconds",
			existing:    &models.ProgressRecord{Status: models.StatusReading, CurrentSeconds: 600},
			event:       models.SessionEvent{Method: models.MethodAudiobook, MinutesRead: intPtr(30)},
			wantSeconds: 2400,
		},
		{
			name: "audiobook leaves page position alone",
			existing: &models.ProgressRecord{
				Status: models.StatusReading, CurrentPage: 120, CurrentSeconds: 0,
			},
			event:       models.SessionEvent{Method: models.MethodAudiobook, MinutesRead: intPtr(10)},
			wantPage:    120,
			wantSeconds: 600,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := Project(tc.existing, tc.event, now)
			assert.Equal(t, tc.wantPage, rec.CurrentPage)
			assert.Equal(t, tc.wantSeconds, rec.CurrentSeconds)
		})
	}
}

func TestProjectThreeEbookSessions(t *testing.T) {
	now := time.Now().UTC()
	var rec *models.ProgressRecord
	for _, pages := range []int{10, 15, 20} {
		next := Project(rec, models.SessionEvent{
			UserID: "u1", BookID: "b1",
			Method: models.MethodEbook, PagesRead: intPtr(pages),
		}, now)
		rec = &next
	}

	assert.Equal(t, 45, rec.CurrentPage)
	pct := Percentage(*rec, models.BookSummary{PageCount: 300})
	assert.InDelta(t, 15.0, pct, 0.001)
}

func TestPercentage(t *testing.T) {
	testCases := []struct {
		name string
		rec  models.ProgressRecord
		book models.BookSummary
		want float64
	}{
		{
			name: "pages against page count",
			rec:  models.ProgressRecord{CurrentPage: 50},
			book: models.BookSummary{PageCount: 200},
			want: 25,
		},
		{
			name: "ebook page count fallback",
			rec:  models.ProgressRecord{CurrentPage: 30},
			book: models.BookSummary{EbookPageCount: 120},
			want: 25,
		},
		{
			name: "override page count wins over catalog",
			rec:  models.ProgressRecord{CurrentPage: 50, OverridePageCount: intPtr(100)},
			book: models.BookSummary{PageCount: 200},
			want: 50,
		},
		{
			name: "audio position wins when both present",
			rec:  models.ProgressRecord{CurrentPage: 199, CurrentSeconds: 1800},
			book: models.BookSummary{PageCount: 200, AudioLengthSeconds: 7200},
			want: 25,
		},
		{
			name: "audio override wins over catalog length",
			rec:  models.ProgressRecord{CurrentSeconds: 1800, OverrideAudioSeconds: intPtr(3600)},
			book: models.BookSummary{AudioLengthSeconds: 7200},
			want: 50,
		},
		{
			name: "zero audio position falls through to pages",
			rec:  models.ProgressRecord{CurrentPage: 50, CurrentSeconds: 0},
			book: models.BookSummary{PageCount: 200, AudioLengthSeconds: 7200},
			want: 25,
		},
		{
			name: "capped at 100",
			rec:  models.ProgressRecord{CurrentPage: 450},
			book: models.BookSummary{PageCount: 300},
			want: 100,
		},
		{
			name: "no positional data",
			rec:  models.ProgressRecord{},
			book: models.BookSummary{PageCount: 300},
			want: 0,
		},
		{
			name: "unknown book lengths",
			rec:  models.ProgressRecord{CurrentPage: 50},
			book: models.BookSummary{},
			want: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Percentage(tc.rec, tc.book), 0.001)
		})
	}
}

func TestApplyStatus(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	t.Run("want to reading sets startedAt", func(t *testing.T) {
		rec := models.ProgressRecord{Status: models.StatusWant}
		require.NoError(t, applyStatus(&rec, models.StatusReading, "", now))
		assert.Equal(t, models.StatusReading, rec.Status)
		require.NotNil(t, rec.StartedAt)
	})

	t.Run("reading to read sets finishedAt", func(t *testing.T) {
		started := now.Add(-48 * time.Hour)
		rec := models.ProgressRecord{Status: models.StatusReading, StartedAt: &started}
		require.NoError(t, applyStatus(&rec, models.StatusRead, "", now))
		assert.Equal(t, models.StatusRead, rec.Status)
		require.NotNil(t, rec.FinishedAt)
		assert.Equal(t, started, *rec.StartedAt)
	})

	t.Run("dnf records reason and keeps position", func(t *testing.T) {
		started := now.Add(-48 * time.Hour)
		rec := models.ProgressRecord{
			Status: models.StatusReading, StartedAt: &started, CurrentPage: 140,
		}
		require.NoError(t, applyStatus(&rec, models.StatusDNF, "lost interest", now))
		assert.Equal(t, models.StatusDNF, rec.Status)
		assert.Equal(t, "lost interest", rec.DNFReason)
		assert.Equal(t, 140, rec.CurrentPage)
		require.NotNil(t, rec.DNFAt)
	})

	t.Run("started book cannot go back to want", func(t *testing.T) {
		started := now.Add(-time.Hour)
		rec := models.ProgressRecord{Status: models.StatusReading, StartedAt: &started}
		err := applyStatus(&rec, models.StatusWant, "", now)
		require.Error(t, err)
	})

	t.Run("reading again clears dnf fields", func(t *testing.T) {
		started := now.Add(-48 * time.Hour)
		dnfAt := now.Add(-24 * time.Hour)
		rec := models.ProgressRecord{
			Status: models.StatusDNF, StartedAt: &started,
			DNFAt: &dnfAt, DNFReason: "slow start", CurrentPage: 60,
		}
		require.NoError(t, applyStatus(&rec, models.StatusReading, "", now))
		assert.Nil(t, rec.DNFAt)
		assert.Empty(t, rec.DNFReason)
		assert.Equal(t, 60, rec.CurrentPage)
	})
}
