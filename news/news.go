// Package news defines the scraped-article record and the pure collection
// mutations the store applies to it.
package news

import (
	"sort"
	"time"

	json "github.com/goccy/go-json"
)

// PlaceholderImage is used when a scraper could not find an article image.
const PlaceholderImage = "https://placehold.co/600x400?text=News"

// DefaultMaxAge is how long an unscored article survives before cleanup.
const DefaultMaxAge = 72 * time.Hour

// ID identifies an article. Older scrapes wrote numeric ids (a hash of
// the URL) and newer ones write strings, so both forms decode and compare
// by string equality.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Article represents a single scraped news article.
type Article struct {
	ID             ID         `json:"id"`
	Source         string     `json:"source"`
	Title          string     `json:"title"`
	URL            string     `json:"url"`
	Image          string     `json:"image"`
	ScrapedAt      time.Time  `json:"scraped_at"`
	UserScore      *float64   `json:"user_score"`
	PredictedScore *float64   `json:"predicted_score,omitempty"`
	DiscardedAt    *time.Time `json:"discarded_at,omitempty"`
}

// RecordID returns the article's identifier for the collection store.
func (a Article) RecordID() string {
	return string(a.ID)
}

// IsDiscarded returns true if the article has been discarded.
func (a Article) IsDiscarded() bool {
	return a.DiscardedAt != nil
}

// Rate returns a mutation that sets the user score on the article with
// the given id. Articles without that id are left untouched.
func Rate(id ID, score float64) func([]Article) []Article {
	return func(articles []Article) []Article {
		for i := range articles {
			if articles[i].ID == id {
				s := score
				articles[i].UserScore = &s
			}
		}
		return articles
	}
}

// Discard returns a mutation that flips the article's discarded status.
// The article stays in the collection so its score remains available.
func Discard(id ID, now time.Time) func([]Article) []Article {
	return func(articles []Article) []Article {
		for i := range articles {
			if articles[i].ID == id {
				t := now
				articles[i].DiscardedAt = &t
			}
		}
		return articles
	}
}

// Remove returns a mutation that deletes the article with the given id.
func Remove(id ID) func([]Article) []Article {
	return func(articles []Article) []Article {
		kept := make([]Article, 0, len(articles))
		for _, a := range articles {
			if a.ID != id {
				kept = append(kept, a)
			}
		}
		return kept
	}
}

// Merge folds freshly scraped articles into an existing collection,
// deduplicating by URL. Existing articles keep their place and their user
// scores; genuinely new articles are prepended. Returns the merged
// collection and how many articles were added.
func Merge(existing, scraped []Article) ([]Article, int) {
	seen := make(map[string]bool, len(existing))
	for _, a := range existing {
		seen[a.URL] = true
	}

	merged := make([]Article, 0, len(existing)+len(scraped))
	added := 0
	for _, a := range scraped {
		if seen[a.URL] {
			continue
		}
		seen[a.URL] = true
		merged = append(merged, a)
		added++
	}
	merged = append(merged, existing...)

	return merged, added
}

// Cleanup drops unscored articles older than maxAge and sorts the
// remainder newest-first. Scored articles are kept regardless of age;
// they are the signal a future ranking pass trains on.
func Cleanup(articles []Article, maxAge time.Duration, now time.Time) []Article {
	cutoff := now.Add(-maxAge)

	kept := make([]Article, 0, len(articles))
	for _, a := range articles {
		if a.UserScore == nil && a.ScrapedAt.Before(cutoff) {
			continue
		}
		kept = append(kept, a)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].ScrapedAt.After(kept[j].ScrapedAt)
	})

	return kept
}
