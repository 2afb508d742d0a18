// Package scraper extracts article listings from configured portals.
// Website portals are scraped from their index page with CSS selectors
// (with a heuristic fallback when the selectors find nothing); feed
// portals are parsed as RSS or Atom; headlines portals are fetched from
// a JSON headlines API.
package scraper

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v5"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/time/rate"

	"github.com/pevans/newsdesk/news"
	"github.com/pevans/newsdesk/portals"
)

// Config tunes scraping behavior. The zero value is not usable; use
// DefaultConfig.
type Config struct {
	FetchTimeout   time.Duration
	MaxPerPortal   int     // articles kept per portal
	MinTitleLen    int     // shorter link texts are navigation, not headlines
	MaxAttempts    int     // fetch attempts per page, with exponential backoff
	MaxConcurrent  int     // portals scraped in parallel
	RequestsPerSec float64 // politeness limit across all fetches
	UserAgent      string
	HeadlinesKey   string // API key for headlines portals, optional
}

// DefaultConfig returns the scraping defaults.
func DefaultConfig() Config {
	return Config{
		FetchTimeout:   10 * time.Second,
		MaxPerPortal:   10,
		MinTitleLen:    10,
		MaxAttempts:    3,
		MaxConcurrent:  4,
		RequestsPerSec: 2,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}

// Scraper fetches and extracts articles from portals.
type Scraper struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
}

// New creates a scraper with the given configuration. Zero-valued fields
// fall back to the defaults.
func New(cfg Config) *Scraper {
	def := DefaultConfig()
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	if cfg.MaxPerPortal <= 0 {
		cfg.MaxPerPortal = def.MaxPerPortal
	}
	if cfg.MinTitleLen <= 0 {
		cfg.MinTitleLen = def.MinTitleLen
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = def.RequestsPerSec
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}

	return &Scraper{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.FetchTimeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
	}
}

// Validators carries the conditional-request values a portal's server
// returned on the last successful fetch. Empty fields are simply not
// sent.
type Validators struct {
	ETag         string
	LastModified string
}

// Result is a single portal scrape's payload. When the server answered
// 304 Not Modified, Unchanged is true, Articles is empty, and the prior
// validators are carried forward.
type Result struct {
	Articles   []news.Article
	Validators Validators
	Unchanged  bool
}

// Outcome pairs a portal with its result from a ScrapeAll run. Err is
// set when the portal's scrape failed.
type Outcome struct {
	Portal portals.Portal
	Result
	Err error
}

// ScrapeAll scrapes every enabled portal concurrently, sending each
// portal's prior validators (keyed by portal id) as conditional-request
// headers. A failed portal does not abort the run; its Outcome carries
// the error instead.
func (s *Scraper) ScrapeAll(ctx context.Context, list []portals.Portal, prior map[string]Validators) []Outcome {
	workers := pool.NewWithResults[Outcome]().WithMaxGoroutines(s.cfg.MaxConcurrent)

	for _, p := range list {
		if !p.Enabled {
			continue
		}
		workers.Go(func() Outcome {
			result, err := s.ScrapePortal(ctx, p, prior[p.ID])
			return Outcome{Portal: p, Result: result, Err: err}
		})
	}

	return workers.Wait()
}

// ScrapePortal extracts articles from a single portal according to its
// kind.
func (s *Scraper) ScrapePortal(ctx context.Context, p portals.Portal, prior Validators) (Result, error) {
	switch {
	case p.IsFeed():
		return s.scrapeFeed(ctx, p, prior)
	case p.IsHeadlines():
		return s.scrapeHeadlines(ctx, p, prior)
	default:
		return s.scrapeWebsite(ctx, p, prior)
	}
}

// scrapeWebsite fetches the portal's index page and extracts article
// links via its selectors.
func (s *Scraper) scrapeWebsite(ctx context.Context, p portals.Portal, prior Validators) (Result, error) {
	pg, err := s.fetch(ctx, p.URL, prior, nil)
	if err != nil {
		return Result{}, fmt.Errorf("failed to fetch portal: %w", err)
	}
	if pg.unchanged {
		return Result{Validators: pg.validators, Unchanged: true}, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(pg.body))
	if err != nil {
		return Result{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	itemSelector := p.Selectors.Item
	var candidates *goquery.Selection
	if itemSelector == "" {
		// No item selector configured: consider every link on the page
		// and let the title-length filter weed out navigation.
		candidates = doc.Find("a")
	} else {
		candidates = doc.Find(itemSelector)
	}

	now := time.Now()
	seen := make(map[string]bool)
	var articles []news.Article

	candidates.EachWithBreak(func(_ int, item *goquery.Selection) bool {
		link := item
		if !item.Is("a") {
			link = item.Find("a").First()
		}

		href, ok := link.Attr("href")
		if !ok || href == "" {
			return true
		}

		href = resolveURL(p.URL, href)
		if href == "" || seen[href] {
			return true
		}
		seen[href] = true

		title := extractTitle(item, link, p.Selectors.Title)
		if len([]rune(title)) < s.cfg.MinTitleLen {
			return true
		}

		articles = append(articles, news.Article{
			ID:        articleID(href),
			Source:    p.Section,
			Title:     title,
			URL:       href,
			Image:     extractImage(item, p.Selectors.Image),
			ScrapedAt: now,
		})

		return len(articles) < s.cfg.MaxPerPortal
	})

	return Result{Articles: articles, Validators: pg.validators}, nil
}

// page is one fetched document plus the validators its server returned.
type page struct {
	body       []byte
	validators Validators
	unchanged  bool
}

// fetch retrieves a page with politeness rate limiting and exponential
// backoff on retryable failures.
func (s *Scraper) fetch(ctx context.Context, pageURL string, prior Validators, extra http.Header) (*page, error) {
	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.InitialInterval = 500 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			sleep := backoffCfg.NextBackOff()
			if sleep == backoff.Stop {
				break
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(sleep):
			}
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		pg, retryable, err := s.fetchOnce(ctx, pageURL, prior, extra)
		if err == nil {
			return pg, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}

	return nil, lastErr
}

// fetchOnce performs a single page fetch, sending the prior validators
// as conditional-request headers. A 304 answer comes back as an
// unchanged page carrying the prior validators forward. The second
// return value reports whether a failure is worth retrying.
func (s *Scraper) fetchOnce(ctx context.Context, pageURL string, prior Validators, extra http.Header) (*page, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	if prior.ETag != "" {
		req.Header.Set("If-None-Match", prior.ETag)
	}
	if prior.LastModified != "" {
		req.Header.Set("If-Modified-Since", prior.LastModified)
	}
	for key, values := range extra {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return &page{validators: prior, unchanged: true}, false, nil
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, retryable, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response: %w", err)
	}

	return &page{
		body: body,
		validators: Validators{
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		},
	}, false, nil
}

// extractTitle prefers the configured title selector within the item,
// falling back to the link text.
func extractTitle(item, link *goquery.Selection, titleSelector string) string {
	text := ""
	if titleSelector != "" {
		text = item.Find(titleSelector).First().Text()
	}
	if text == "" {
		text = link.Text()
	}
	// Normalize whitespace: collapse runs of spaces and newlines
	return strings.Join(strings.Fields(text), " ")
}

// extractImage pulls an image URL out of the item, defaulting to the
// placeholder when nothing is found.
func extractImage(item *goquery.Selection, imageSelector string) string {
	selector := imageSelector
	if selector == "" {
		selector = "img"
	}

	if src, ok := item.Find(selector).First().Attr("src"); ok && src != "" {
		return src
	}

	return news.PlaceholderImage
}

// resolveURL makes href absolute against the portal's base URL. Returns
// empty when either side fails to parse.
func resolveURL(base, href string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := baseURL.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}

	return resolved.String()
}

// articleID derives a stable id from the article URL, so re-scraping the
// same page yields the same ids.
func articleID(articleURL string) news.ID {
	h := fnv.New64a()
	h.Write([]byte(articleURL))
	return news.ID(strconv.FormatUint(h.Sum64(), 10))
}
