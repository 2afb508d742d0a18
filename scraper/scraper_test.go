package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pevans/newsdesk/news"
	"github.com/pevans/newsdesk/portals"
)

// htmlServer serves a fixed HTML page.
func htmlServer(t *testing.T, html string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, html)
	}))
	t.Cleanup(server.Close)
	return server
}

func testPortal(url string) portals.Portal {
	p := portals.New(url, "tech")
	return p
}

func TestScrapeWebsite_ExtractsItemsBySelector(t *testing.T) {
	server := htmlServer(t, `
		<html><body>
			<h2><a href="/story-one">The first headline of the day</a></h2>
			<h2><a href="/story-two">The second headline of the day</a></h2>
			<p><a href="/not-an-item">A link outside the item selector</a></p>
		</body></html>
	`)

	result, err := New(DefaultConfig()).ScrapePortal(context.Background(), testPortal(server.URL), Validators{})

	require.NoError(t, err)
	require.Len(t, result.Articles, 2)
	assert.Equal(t, "The first headline of the day", result.Articles[0].Title)
	assert.Equal(t, server.URL+"/story-one", result.Articles[0].URL)
	assert.Equal(t, "tech", result.Articles[0].Source)
	assert.NotZero(t, result.Articles[0].ScrapedAt)
}

func TestScrapeWebsite_HeuristicFallbackWithoutSelector(t *testing.T) {
	server := htmlServer(t, `
		<html><body>
			<a href="/story">A headline long enough to pass the filter</a>
			<a href="/nav">Home</a>
		</body></html>
	`)

	p := testPortal(server.URL)
	p.Selectors.Item = ""

	result, err := New(DefaultConfig()).ScrapePortal(context.Background(), p, Validators{})

	require.NoError(t, err)
	require.Len(t, result.Articles, 1, "short link texts are navigation, not headlines")
	assert.Equal(t, "A headline long enough to pass the filter", result.Articles[0].Title)
}

func TestScrapeWebsite_ResolvesRelativeLinks(t *testing.T) {
	server := htmlServer(t, `
		<html><body>
			<h2><a href="/absolute-path-story-headline">Headline for the root-relative link</a></h2>
			<h2><a href="relative-story-headline">Headline for the bare relative link</a></h2>
			<h2><a href="https://other.example/full">Headline for the already absolute one</a></h2>
		</body></html>
	`)

	result, err := New(DefaultConfig()).ScrapePortal(context.Background(), testPortal(server.URL+"/section/tech"), Validators{})

	require.NoError(t, err)
	require.Len(t, result.Articles, 3)
	assert.Equal(t, server.URL+"/absolute-path-story-headline", result.Articles[0].URL)
	assert.Equal(t, server.URL+"/section/relative-story-headline", result.Articles[1].URL)
	assert.Equal(t, "https://other.example/full", result.Articles[2].URL)
}

func TestScrapeWebsite_DeduplicatesByHref(t *testing.T) {
	server := htmlServer(t, `
		<html><body>
			<h2><a href="/same-story">A headline repeated on the page</a></h2>
			<h2><a href="/same-story">A headline repeated on the page</a></h2>
		</body></html>
	`)

	result, err := New(DefaultConfig()).ScrapePortal(context.Background(), testPortal(server.URL), Validators{})

	require.NoError(t, err)
	assert.Len(t, result.Articles, 1)
}

func TestScrapeWebsite_CapsItemsPerPortal(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 25; i++ {
		fmt.Fprintf(&b, `<h2><a href="/story-%d">A sufficiently long headline number %d</a></h2>`, i, i)
	}
	b.WriteString("</body></html>")
	server := htmlServer(t, b.String())

	result, err := New(DefaultConfig()).ScrapePortal(context.Background(), testPortal(server.URL), Validators{})

	require.NoError(t, err)
	assert.Len(t, result.Articles, DefaultConfig().MaxPerPortal)
}

func TestScrapeWebsite_ImageSelectorAndPlaceholder(t *testing.T) {
	server := htmlServer(t, `
		<html><body>
			<h2><a href="/with-image">Headline with an accompanying image</a><img src="https://img.example/a.jpg"></h2>
			<h2><a href="/without-image">Headline with no image anywhere near</a></h2>
		</body></html>
	`)

	result, err := New(DefaultConfig()).ScrapePortal(context.Background(), testPortal(server.URL), Validators{})

	require.NoError(t, err)
	require.Len(t, result.Articles, 2)
	assert.Equal(t, "https://img.example/a.jpg", result.Articles[0].Image)
	assert.Equal(t, news.PlaceholderImage, result.Articles[1].Image)
}

func TestScrapeWebsite_NormalizesTitleWhitespace(t *testing.T) {
	server := htmlServer(t, `
		<html><body>
			<h2><a href="/story">  A headline
			split   across
			lines  </a></h2>
		</body></html>
	`)

	result, err := New(DefaultConfig()).ScrapePortal(context.Background(), testPortal(server.URL), Validators{})

	require.NoError(t, err)
	require.Len(t, result.Articles, 1)
	assert.Equal(t, "A headline split across lines", result.Articles[0].Title)
}

func TestScrapeWebsite_HTTPErrorFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.MaxAttempts = 1
	_, err := New(cfg).ScrapePortal(context.Background(), testPortal(server.URL), Validators{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestScrapeWebsite_CapturesResponseValidators(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Last-Modified", "Tue, 25 Aug 2026 10:00:00 GMT")
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><h2><a href="/story">A headline with cache validators</a></h2></body></html>`)
	}))
	defer server.Close()

	result, err := New(DefaultConfig()).ScrapePortal(context.Background(), testPortal(server.URL), Validators{})

	require.NoError(t, err)
	assert.Equal(t, `"v1"`, result.Validators.ETag)
	assert.Equal(t, "Tue, 25 Aug 2026 10:00:00 GMT", result.Validators.LastModified)
	assert.False(t, result.Unchanged)
}

func TestScrapeWebsite_SendsValidatorsAndHandlesNotModified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` &&
			r.Header.Get("If-Modified-Since") == "Tue, 25 Aug 2026 10:00:00 GMT" {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><h2><a href="/story">A headline that should not be refetched</a></h2></body></html>`)
	}))
	defer server.Close()

	prior := Validators{ETag: `"v1"`, LastModified: "Tue, 25 Aug 2026 10:00:00 GMT"}
	result, err := New(DefaultConfig()).ScrapePortal(context.Background(), testPortal(server.URL), prior)

	require.NoError(t, err)
	assert.True(t, result.Unchanged)
	assert.Empty(t, result.Articles)
	assert.Equal(t, prior, result.Validators, "prior validators carry forward through a 304")
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><h2><a href="/story">A headline after two failed tries</a></h2></body></html>`)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.RequestsPerSec = 1000 // keep the test fast
	result, err := New(cfg).ScrapePortal(context.Background(), testPortal(server.URL), Validators{})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Len(t, result.Articles, 1)
}

func TestScrapeAll_SkipsDisabledAndCollectsFailures(t *testing.T) {
	good := htmlServer(t, `<html><body><h2><a href="/story">A headline from the working portal</a></h2></body></html>`)

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	disabled := testPortal("http://never-contacted.invalid")
	disabled.Enabled = false

	failing := testPortal(bad.URL)

	cfg := DefaultConfig()
	cfg.MaxAttempts = 1
	cfg.RequestsPerSec = 1000

	outcomes := New(cfg).ScrapeAll(context.Background(), []portals.Portal{
		testPortal(good.URL),
		failing,
		disabled,
	}, nil)

	require.Len(t, outcomes, 2, "disabled portals are never contacted")

	byID := make(map[string]Outcome)
	for _, o := range outcomes {
		byID[o.Portal.ID] = o
	}
	assert.Error(t, byID[failing.ID].Err)
	for _, o := range outcomes {
		if o.Err == nil {
			assert.Len(t, o.Articles, 1)
		}
	}
}

func TestScrapeAll_UsesPriorValidators(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"cached"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><h2><a href="/story">A headline behind a stale validator</a></h2></body></html>`)
	}))
	defer server.Close()

	p := testPortal(server.URL)
	prior := map[string]Validators{p.ID: {ETag: `"cached"`}}

	outcomes := New(DefaultConfig()).ScrapeAll(context.Background(), []portals.Portal{p}, prior)

	require.Len(t, outcomes, 1)
	require.NoError(t, outcomes[0].Err)
	assert.True(t, outcomes[0].Unchanged)
	assert.Empty(t, outcomes[0].Articles)
}

func TestArticleID_StableAcrossScrapes(t *testing.T) {
	a := articleID("https://example.com/story")
	b := articleID("https://example.com/story")
	c := articleID("https://example.com/other")

	assert.Equal(t, a, b, "same URL yields the same id")
	assert.NotEqual(t, a, c)
}
