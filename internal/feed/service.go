package feed

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"readhub/internal/catalog"
	"readhub/internal/directory"
	"readhub/pkg/models"
	"readhub/pkg/utils"
)

// Source interfaces keep the aggregator decoupled from the concrete repos.

type FriendSource interface {
	FriendIDs(ctx context.Context, userID string) ([]string, error)
}

type SessionSource interface {
	ListRecentByUsers(ctx context.Context, userIDs []string, limit int) ([]models.SessionEvent, error)
}

type ListSource interface {
	ListRecentPublicByUserIDs(ctx context.Context, userIDs []string, limit int) ([]models.BookList, error)
	BookCounts(ctx context.Context, listIDs []string) (map[string]int, error)
}

type FinishedSource interface {
	ListRecentFinished(ctx context.Context, userIDs []string, limit int) ([]models.ProgressRecord, error)
}

// Service assembles the friend activity feed per request. Nothing is stored;
// each call fans out to the three sources, merges, enriches and paginates.
// A failed source contributes nothing rather than failing the feed.
type Service struct {
	Friends   FriendSource
	Sessions  SessionSource
	Lists     ListSource
	Finished  FinishedSource
	Catalog   catalog.Gateway
	Directory directory.Gateway
	Cfg       utils.FeedConfig
	Log       *zap.Logger
}

func NewService(friends FriendSource, sessionSrc SessionSource, listSrc ListSource, finished FinishedSource,
	cat catalog.Gateway, dir directory.Gateway, cfg utils.FeedConfig, log *zap.Logger) *Service {
	return &Service{
		Friends: friends, Sessions: sessionSrc, Lists: listSrc, Finished: finished,
		Catalog: cat, Directory: dir, Cfg: cfg, Log: log,
	}
}

type Page struct {
	Items      []models.ActivityItem `json:"items"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalCount int                   `json:"total_count"`
	HasMore    bool                  `json:"has_more"`
}

func (s *Service) GetFeed(ctx context.Context, userID string, page, pageSize int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 50 {
		pageSize = 20
	}

	friendIDs, err := s.Friends.FriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(friendIDs) == 0 {
		return &Page{Items: []models.ActivityItem{}, Page: page, PageSize: pageSize}, nil
	}

	merged := s.collect(ctx, friendIDs)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.After(merged[j].Timestamp)
	})

	total := len(merged)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	items := merged[start:end]

	s.enrich(ctx, items)

	return &Page{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		HasMore:    end < total,
	}, nil
}

// collect queries the three activity sources concurrently, each under its own
// timeout. Items land in a fixed source order so equal timestamps resolve to
// session, then list_created, then book_finished after the stable sort.
func (s *Service) collect(ctx context.Context, friendIDs []string) []models.ActivityItem {
	var (
		wg       sync.WaitGroup
		sessions []models.SessionEvent
		lists    []models.BookList
		finished []models.ProgressRecord
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		srcCtx, cancel := context.WithTimeout(ctx, s.Cfg.SourceTimeout)
		defer cancel()
		var err error
		sessions, err = s.Sessions.ListRecentByUsers(srcCtx, friendIDs, s.Cfg.SourceCap)
		if err != nil {
			s.Log.Warn("feed session source failed", zap.Error(err))
			sessions = nil
		}
	}()
	go func() {
		defer wg.Done()
		srcCtx, cancel := context.WithTimeout(ctx, s.Cfg.SourceTimeout)
		defer cancel()
		var err error
		lists, err = s.Lists.ListRecentPublicByUserIDs(srcCtx, friendIDs, s.Cfg.SourceCap)
		if err != nil {
			s.Log.Warn("feed list source failed", zap.Error(err))
			lists = nil
		}
	}()
	go func() {
		defer wg.Done()
		srcCtx, cancel := context.WithTimeout(ctx, s.Cfg.SourceTimeout)
		defer cancel()
		var err error
		finished, err = s.Finished.ListRecentFinished(srcCtx, friendIDs, s.Cfg.SourceCap)
		if err != nil {
			s.Log.Warn("feed finished source failed", zap.Error(err))
			finished = nil
		}
	}()
	wg.Wait()

	merged := make([]models.ActivityItem, 0, len(sessions)+len(lists)+len(finished))
	for i := range sessions {
		ev := sessions[i]
		merged = append(merged, models.ActivityItem{
			ID:        "session:" + ev.ID,
			Kind:      models.ActivitySession,
			ActorID:   ev.UserID,
			Timestamp: ev.CreatedAt,
			Session:   &ev,
			BookID:    ev.BookID,
		})
	}
	// one count query for the whole window, not one per list
	var listCounts map[string]int
	if len(lists) > 0 {
		ids := make([]string, 0, len(lists))
		for i := range lists {
			ids = append(ids, lists[i].ID)
		}
		var err error
		listCounts, err = s.Lists.BookCounts(ctx, ids)
		if err != nil {
			s.Log.Warn("feed list counts failed", zap.Error(err))
			listCounts = nil
		}
	}
	for i := range lists {
		list := lists[i]
		summary := models.ListSummary{
			ID:          list.ID,
			Name:        list.Name,
			Description: list.Description,
			IsPublic:    list.IsPublic,
			CreatedAt:   list.CreatedAt,
			BookCount:   listCounts[list.ID],
		}
		merged = append(merged, models.ActivityItem{
			ID:        "list:" + list.ID,
			Kind:      models.ActivityListCreated,
			ActorID:   list.UserID,
			Timestamp: list.CreatedAt,
			List:      &summary,
		})
	}
	for i := range finished {
		rec := finished[i]
		if rec.FinishedAt == nil {
			continue
		}
		merged = append(merged, models.ActivityItem{
			ID:         "finished:" + rec.ID,
			Kind:       models.ActivityBookFinished,
			ActorID:    rec.UserID,
			Timestamp:  *rec.FinishedAt,
			FinishedAt: rec.FinishedAt,
			BookID:     rec.BookID,
		})
	}
	return merged
}

// enrich fills actor and book summaries for one page of items. Books and
// users resolve concurrently; either lookup failing degrades to placeholders.
func (s *Service) enrich(ctx context.Context, items []models.ActivityItem) {
	bookIDs := make([]string, 0, len(items))
	userIDs := make([]string, 0, len(items))
	seenBooks := make(map[string]bool)
	seenUsers := make(map[string]bool)
	for _, item := range items {
		if item.BookID != "" && !seenBooks[item.BookID] {
			seenBooks[item.BookID] = true
			bookIDs = append(bookIDs, item.BookID)
		}
		if !seenUsers[item.ActorID] {
			seenUsers[item.ActorID] = true
			userIDs = append(userIDs, item.ActorID)
		}
	}

	var (
		wg    sync.WaitGroup
		books map[string]models.BookSummary
		users map[string]models.UserSummary
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		if len(bookIDs) == 0 {
			return
		}
		var err error
		books, err = s.Catalog.GetSummaries(ctx, bookIDs)
		if err != nil {
			s.Log.Warn("feed book enrichment failed", zap.Error(err))
			books = nil
		}
	}()
	go func() {
		defer wg.Done()
		if len(userIDs) == 0 {
			return
		}
		var err error
		users, err = s.Directory.GetSummaries(ctx, userIDs)
		if err != nil {
			s.Log.Warn("feed user enrichment failed", zap.Error(err))
			users = nil
		}
	}()
	wg.Wait()

	for i := range items {
		if items[i].BookID != "" {
			book, ok := books[items[i].BookID]
			if !ok {
				book = catalog.Placeholder(items[i].BookID)
			}
			items[i].Book = &book
		}
		actor, ok := users[items[i].ActorID]
		if !ok {
			actor = directory.Placeholder(items[i].ActorID)
		}
		items[i].Actor = &actor
	}
}
