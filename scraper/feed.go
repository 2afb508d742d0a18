package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/pevans/newsdesk/news"
	"github.com/pevans/newsdesk/portals"
)

// scrapeFeed fetches and parses an RSS or Atom portal and converts its
// entries into articles. The same per-portal cap and dedup rules apply
// as for website portals, and feed servers honoring If-None-Match or
// If-Modified-Since get the same unchanged short-circuit.
func (s *Scraper) scrapeFeed(ctx context.Context, p portals.Portal, prior Validators) (Result, error) {
	pg, err := s.fetch(ctx, p.URL, prior, nil)
	if err != nil {
		return Result{}, fmt.Errorf("failed to fetch feed: %w", err)
	}
	if pg.unchanged {
		return Result{Validators: pg.validators, Unchanged: true}, nil
	}

	feed, err := gofeed.NewParser().ParseString(string(pg.body))
	if err != nil {
		return Result{}, fmt.Errorf("failed to parse feed: %w", err)
	}

	now := time.Now()
	seen := make(map[string]bool)
	var articles []news.Article

	for _, item := range feed.Items {
		if item.Link == "" {
			continue
		}

		link := resolveURL(p.URL, item.Link)
		if link == "" || seen[link] {
			continue
		}
		seen[link] = true

		if len([]rune(item.Title)) < s.cfg.MinTitleLen {
			continue
		}

		image := news.PlaceholderImage
		if item.Image != nil && item.Image.URL != "" {
			image = item.Image.URL
		}

		articles = append(articles, news.Article{
			ID:        articleID(link),
			Source:    p.Section,
			Title:     item.Title,
			URL:       link,
			Image:     image,
			ScrapedAt: now,
		})

		if len(articles) >= s.cfg.MaxPerPortal {
			break
		}
	}

	return Result{Articles: articles, Validators: pg.validators}, nil
}
