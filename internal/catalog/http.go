package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"readhub/pkg/models"
)

// HTTPGateway talks to the content service over its batch books endpoint.
type HTTPGateway struct {
	BaseURL string
	Client  *http.Client
	Log     *zap.Logger
}

func NewHTTPGateway(baseURL string, timeout time.Duration, log *zap.Logger) *HTTPGateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPGateway{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
		Log:     log,
	}
}

type bookPayload struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	CoverURL           string   `json:"cover_url"`
	AuthorNames        []string `json:"author_names"`
	GenreNames         []string `json:"genre_names"`
	PageCount          int      `json:"page_count"`
	EbookPageCount     int      `json:"ebook_page_count"`
	AudioLengthSeconds int      `json:"audio_length_seconds"`
}

// GetSummaries fetches every id in one request. Books the catalog does not
// know come back as placeholders; a transport failure is returned to the
// caller, who decides how to degrade.
func (g *HTTPGateway) GetSummaries(ctx context.Context, ids []string) (map[string]models.BookSummary, error) {
	out := make(map[string]models.BookSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	u, err := url.Parse(g.BaseURL + "/api/books")
	if err != nil {
		return nil, fmt.Errorf("parse catalog url: %w", err)
	}
	q := u.Query()
	q.Set("ids", strings.Join(ids, ","))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}

	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch books: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("catalog status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var items []bookPayload
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}

	for _, item := range items {
		out[item.ID] = models.BookSummary{
			ID:                 item.ID,
			Title:              item.Title,
			CoverURL:           item.CoverURL,
			AuthorNames:        item.AuthorNames,
			GenreNames:         item.GenreNames,
			PageCount:          item.PageCount,
			EbookPageCount:     item.EbookPageCount,
			AudioLengthSeconds: item.AudioLengthSeconds,
		}
	}

	// every requested id gets an entry
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			g.Log.Debug("catalog miss", zap.String("book_id", id))
			out[id] = Placeholder(id)
		}
	}

	return out, nil
}
