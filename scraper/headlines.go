package scraper

import (
	"context"
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/pevans/newsdesk/news"
	"github.com/pevans/newsdesk/portals"
)

// headlinesResponse is the top-headlines JSON envelope: a status word
// plus the article list.
type headlinesResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title      string `json:"title"`
		URL        string `json:"url"`
		URLToImage string `json:"urlToImage"`
	} `json:"articles"`
}

// scrapeHeadlines fetches a headlines-API portal and converts its
// entries into articles. The portal URL is the full endpoint including
// query parameters; the API key, when configured, is sent as an
// X-Api-Key header. The same title, dedup, and cap rules apply as for
// scraped portals.
func (s *Scraper) scrapeHeadlines(ctx context.Context, p portals.Portal, prior Validators) (Result, error) {
	var extra http.Header
	if s.cfg.HeadlinesKey != "" {
		extra = http.Header{"X-Api-Key": {s.cfg.HeadlinesKey}}
	}

	pg, err := s.fetch(ctx, p.URL, prior, extra)
	if err != nil {
		return Result{}, fmt.Errorf("failed to fetch headlines: %w", err)
	}
	if pg.unchanged {
		return Result{Validators: pg.validators, Unchanged: true}, nil
	}

	var resp headlinesResponse
	if err := json.Unmarshal(pg.body, &resp); err != nil {
		return Result{}, fmt.Errorf("failed to parse headlines: %w", err)
	}
	if resp.Status != "ok" {
		return Result{}, fmt.Errorf("headlines API error: %s", resp.Message)
	}

	now := time.Now()
	seen := make(map[string]bool)
	var articles []news.Article

	for _, item := range resp.Articles {
		if item.URL == "" || seen[item.URL] {
			continue
		}
		seen[item.URL] = true

		if len([]rune(item.Title)) < s.cfg.MinTitleLen {
			continue
		}

		source := p.Section
		if source == "" {
			source = item.Source.Name
		}

		image := item.URLToImage
		if image == "" {
			image = news.PlaceholderImage
		}

		articles = append(articles, news.Article{
			ID:        articleID(item.URL),
			Source:    source,
			Title:     item.Title,
			URL:       item.URL,
			Image:     image,
			ScrapedAt: now,
		})

		if len(articles) >= s.cfg.MaxPerPortal {
			break
		}
	}

	return Result{Articles: articles, Validators: pg.validators}, nil
}
