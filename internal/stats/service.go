package stats

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"readhub/internal/catalog"
	"readhub/internal/sessions"
	"readhub/internal/shelf"
	"readhub/pkg/models"
)

// Service computes reading statistics on demand. Nothing is materialized;
// every call reads the ledger and progress store directly.
type Service struct {
	Progress *shelf.Repo
	Sessions *sessions.Repo
	Catalog  catalog.Gateway
	Log      *zap.Logger
}

func NewService(progress *shelf.Repo, ledger *sessions.Repo, cat catalog.Gateway, log *zap.Logger) *Service {
	return &Service{Progress: progress, Sessions: ledger, Catalog: cat, Log: log}
}

type Streaks struct {
	CurrentDays int `json:"current_days"`
	LongestDays int `json:"longest_days"`
}

type Completion struct {
	Want         int `json:"want"`
	Reading      int `json:"reading"`
	Read         int `json:"read"`
	DNF          int `json:"dnf"`
	TotalStarted int `json:"total_started"`

	// Read / TotalStarted, 0 when nothing was ever started.
	CompletionRate float64 `json:"completion_rate"`
}

type Velocity struct {
	AvgFinishDays  float64 `json:"avg_finish_days"`
	PagesPerDay    float64 `json:"pages_per_day"`
	MinutesPerDay  float64 `json:"minutes_per_day"`
	ActiveDays     int     `json:"active_days"`
	TotalPages     int     `json:"total_pages"`
	TotalMinutes   int     `json:"total_minutes"`
	FinishedBooks  int     `json:"finished_books"`
}

type MethodStats struct {
	Books      int     `json:"books"`
	Pages      int     `json:"pages"`
	Minutes    int     `json:"minutes"`
	Sessions   int     `json:"sessions"`
	Percentage float64 `json:"percentage"`
}

type Methods struct {
	ByMethod map[string]MethodStats `json:"by_method"`

	// Method with the most sessions, empty with no sessions at all.
	Preferred string `json:"preferred"`
}

type TopEntry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type Overview struct {
	Streaks    Streaks    `json:"streaks"`
	Completion Completion `json:"completion"`
	Velocity   Velocity   `json:"velocity"`
	Methods    Methods    `json:"methods"`
	TopGenres  []TopEntry `json:"top_genres"`
	TopAuthors []TopEntry `json:"top_authors"`
}

func (s *Service) Overview(ctx context.Context, userID string) (*Overview, error) {
	dates, err := s.Sessions.DistinctDates(ctx, userID)
	if err != nil {
		return nil, err
	}

	completion, readRecords, err := s.completion(ctx, userID)
	if err != nil {
		return nil, err
	}

	velocity, err := s.velocity(ctx, userID, len(dates), readRecords)
	if err != nil {
		return nil, err
	}

	methods, err := s.methods(ctx, userID)
	if err != nil {
		return nil, err
	}

	genres, authors := s.topCatalog(ctx, readRecords)

	current, longest := streaks(dates, time.Now().UTC())
	return &Overview{
		Streaks:    Streaks{CurrentDays: current, LongestDays: longest},
		Completion: completion,
		Velocity:   velocity,
		Methods:    methods,
		TopGenres:  genres,
		TopAuthors: authors,
	}, nil
}

type SeriesPoint struct {
	Month    string `json:"month"`
	Pages    int    `json:"pages"`
	Minutes  int    `json:"minutes"`
	Sessions int    `json:"sessions"`
}

type TimeSeries struct {
	Year   int           `json:"year"`
	Months []SeriesPoint `json:"months"`
}

// TimeSeries rolls session activity up by calendar month for one year.
// Months without sessions do not appear.
func (s *Service) TimeSeries(ctx context.Context, userID string, year int) (*TimeSeries, error) {
	rows, err := s.Sessions.MonthlySeries(ctx, userID, year)
	if err != nil {
		return nil, err
	}

	points := make([]SeriesPoint, 0, len(rows))
	for _, r := range rows {
		points = append(points, SeriesPoint{
			Month: r.Month, Pages: r.Pages, Minutes: r.Minutes, Sessions: r.Sessions,
		})
	}
	return &TimeSeries{Year: year, Months: points}, nil
}

// methods breaks the ledger down per reading method. Percentage is the
// method's share of all sessions; the preferred method is the one with the
// most sessions, ties going to the alphabetically first.
func (s *Service) methods(ctx context.Context, userID string) (Methods, error) {
	totals, err := s.Sessions.MethodBreakdown(ctx, userID)
	if err != nil {
		return Methods{}, err
	}

	var allSessions int
	for _, t := range totals {
		allSessions += t.Sessions
	}

	m := Methods{ByMethod: make(map[string]MethodStats, len(totals))}
	var maxSessions int
	for _, t := range totals {
		ms := MethodStats{Books: t.Books, Pages: t.Pages, Minutes: t.Minutes, Sessions: t.Sessions}
		if allSessions > 0 {
			ms.Percentage = float64(t.Sessions) / float64(allSessions) * 100
		}
		m.ByMethod[t.Method] = ms
		if t.Sessions > maxSessions {
			maxSessions = t.Sessions
			m.Preferred = t.Method
		}
	}
	return m, nil
}

func (s *Service) completion(ctx context.Context, userID string) (Completion, []models.ProgressRecord, error) {
	var c Completion
	var err error

	if c.Want, err = s.Progress.CountByStatus(ctx, userID, models.StatusWant); err != nil {
		return c, nil, err
	}
	if c.Reading, err = s.Progress.CountByStatus(ctx, userID, models.StatusReading); err != nil {
		return c, nil, err
	}
	if c.DNF, err = s.Progress.CountByStatus(ctx, userID, models.StatusDNF); err != nil {
		return c, nil, err
	}

	readRecords, err := s.Progress.ListByUser(ctx, userID, models.StatusRead)
	if err != nil {
		return c, nil, err
	}
	c.Read = len(readRecords)
	c.TotalStarted = c.Reading + c.Read + c.DNF
	if c.TotalStarted > 0 {
		c.CompletionRate = float64(c.Read) / float64(c.TotalStarted)
	}
	return c, readRecords, nil
}

func (s *Service) velocity(ctx context.Context, userID string, activeDays int, readRecords []models.ProgressRecord) (Velocity, error) {
	pages, minutes, err := s.Sessions.Totals(ctx, userID)
	if err != nil {
		return Velocity{}, err
	}

	v := Velocity{
		ActiveDays:    activeDays,
		TotalPages:    pages,
		TotalMinutes:  minutes,
		FinishedBooks: len(readRecords),
	}
	if activeDays > 0 {
		v.PagesPerDay = float64(pages) / float64(activeDays)
		v.MinutesPerDay = float64(minutes) / float64(activeDays)
	}

	// Mean wall-clock days from start to finish, over books with both
	// timestamps recorded.
	var totalDays float64
	var counted int
	for _, rec := range readRecords {
		if rec.StartedAt == nil || rec.FinishedAt == nil {
			continue
		}
		d := rec.FinishedAt.Sub(*rec.StartedAt)
		if d < 0 {
			continue
		}
		totalDays += d.Hours() / 24
		counted++
	}
	if counted > 0 {
		v.AvgFinishDays = totalDays / float64(counted)
	}
	return v, nil
}

// topCatalog tallies genres and authors across finished books using one batch
// catalog lookup. A failed or partial lookup degrades to "(unknown)" buckets
// instead of failing the whole statistics call.
func (s *Service) topCatalog(ctx context.Context, readRecords []models.ProgressRecord) ([]TopEntry, []TopEntry) {
	if len(readRecords) == 0 {
		return []TopEntry{}, []TopEntry{}
	}

	ids := make([]string, 0, len(readRecords))
	for _, rec := range readRecords {
		ids = append(ids, rec.BookID)
	}

	books, err := s.Catalog.GetSummaries(ctx, ids)
	if err != nil {
		s.Log.Warn("catalog lookup failed for statistics", zap.Error(err))
		books = nil
	}

	genres := make(map[string]int)
	authors := make(map[string]int)
	for _, id := range ids {
		book, ok := books[id]
		if !ok || (len(book.GenreNames) == 0 && len(book.AuthorNames) == 0) {
			genres["(unknown)"]++
			authors["(unknown)"]++
			continue
		}
		for _, g := range book.GenreNames {
			genres[g]++
		}
		for _, a := range book.AuthorNames {
			authors[a]++
		}
	}
	return topN(genres, 5), topN(authors, 5)
}

func topN(counts map[string]int, n int) []TopEntry {
	entries := make([]TopEntry, 0, len(counts))
	for name, count := range counts {
		entries = append(entries, TopEntry{Name: name, Count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Name < entries[j].Name
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// streaks walks the distinct session days, newest first, and returns the
// current and the longest run of consecutive days. The current streak only
// counts if its newest day is today or yesterday.
func streaks(dates []time.Time, now time.Time) (current, longest int) {
	if len(dates) == 0 {
		return 0, 0
	}

	today := now.Truncate(24 * time.Hour)
	run := 1
	longest = 1
	for i := 1; i < len(dates); i++ {
		if dates[i-1].Sub(dates[i]) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	gap := today.Sub(dates[0])
	if gap > 24*time.Hour || gap < 0 {
		return 0, longest
	}
	current = 1
	for i := 1; i < len(dates); i++ {
		if dates[i-1].Sub(dates[i]) != 24*time.Hour {
			break
		}
		current++
	}
	return current, longest
}
