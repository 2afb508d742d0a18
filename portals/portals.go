// Package portals defines the portal scraper-configuration record and its
// collection mutations.
package portals

import (
	"github.com/google/uuid"
)

// Portal kinds. Website portals are scraped with CSS selectors; feed
// portals are parsed as RSS or Atom; headlines portals point at a JSON
// headlines API endpoint.
const (
	KindWebsite   = "website"
	KindFeed      = "feed"
	KindHeadlines = "headlines"
)

// Selectors defines how articles are extracted from a website portal's
// index page.
type Selectors struct {
	Item  string `json:"item"`
	Title string `json:"title,omitempty"`
	Link  string `json:"link,omitempty"`
	Image string `json:"image,omitempty"`
}

// Portal represents one scraper configuration.
type Portal struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Section   string    `json:"section"`
	Kind      string    `json:"kind,omitempty"` // defaults to website
	Enabled   bool      `json:"enabled"`
	Selectors Selectors `json:"selectors"`
}

// RecordID returns the portal's identifier for the collection store.
func (p Portal) RecordID() string {
	return p.ID
}

// IsFeed returns true if the portal should be parsed as a feed rather
// than scraped.
func (p Portal) IsFeed() bool {
	return p.Kind == KindFeed
}

// IsHeadlines returns true if the portal is a headlines-API endpoint.
func (p Portal) IsHeadlines() bool {
	return p.Kind == KindHeadlines
}

// DefaultSelectors returns the selector set a new portal starts with.
// Headlines on most news index pages live in h2 elements; the rest is
// left to the heuristic fallback.
func DefaultSelectors() Selectors {
	return Selectors{Item: "h2"}
}

// New creates an enabled website portal with a generated id and default
// selectors.
func New(url, section string) Portal {
	return Portal{
		ID:        uuid.NewString(),
		URL:       url,
		Section:   section,
		Kind:      KindWebsite,
		Enabled:   true,
		Selectors: DefaultSelectors(),
	}
}

// Add returns a mutation that appends the portal to the collection.
func Add(p Portal) func([]Portal) []Portal {
	return func(existing []Portal) []Portal {
		return append(existing, p)
	}
}

// Delete returns a mutation that removes the portal with the given id.
func Delete(id string) func([]Portal) []Portal {
	return func(existing []Portal) []Portal {
		kept := make([]Portal, 0, len(existing))
		for _, p := range existing {
			if p.ID != id {
				kept = append(kept, p)
			}
		}
		return kept
	}
}

// SetEnabled returns a mutation that enables or disables the portal with
// the given id.
func SetEnabled(id string, enabled bool) func([]Portal) []Portal {
	return func(existing []Portal) []Portal {
		for i := range existing {
			if existing[i].ID == id {
				existing[i].Enabled = enabled
			}
		}
		return existing
	}
}
