package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pevans/newsdesk/news"
	"github.com/pevans/newsdesk/portals"
	"github.com/pevans/newsdesk/remote"
)

// reportFailure is the single channel every command reports failures
// through. The message depends on the error's kind because the
// corrective action differs: a credential problem needs a new token, a
// conflict needs a re-fetch, a transient failure just needs a retry.
func reportFailure(err error) {
	switch remote.KindOf(err) {
	case remote.KindCredentialMissing:
		fmt.Fprintf(os.Stderr, "Error: no credential supplied. Set NEWSDESK_TOKEN and try again.\n")
	case remote.KindUnauthorized:
		fmt.Fprintf(os.Stderr, "Error: the credential was rejected. Check NEWSDESK_TOKEN and try again.\n")
	case remote.KindForbidden:
		fmt.Fprintf(os.Stderr, "Error: the credential lacks write access to the repository.\n")
	case remote.KindConflict:
		fmt.Fprintf(os.Stderr, "Error: the remote copy changed since it was loaded. Run the command again to pick up the latest version.\n")
	case remote.KindMalformed:
		fmt.Fprintf(os.Stderr, "Error: the remote object could not be decoded: %v\n", err)
	default:
		fmt.Fprintf(os.Stderr, "Error: temporary failure talking to the content API, retry later: %v\n", err)
	}
}

// printArticlesTable prints articles in human-readable format.
func printArticlesTable(articles []news.Article) {
	if len(articles) == 0 {
		fmt.Println("No articles to display.")
		return
	}

	for _, a := range articles {
		marker := " "
		if a.IsDiscarded() {
			marker = "x"
		}

		title := a.Title
		if len(title) > 70 {
			title = title[:67] + "..."
		}

		score := "-"
		if a.UserScore != nil {
			score = fmt.Sprintf("%.0f", *a.UserScore)
		}

		fmt.Printf("%s [%s] %s\n", marker, score, title)
		fmt.Printf("   %s | Scraped: %s\n", a.Source, a.ScrapedAt.Format("2006-01-02 15:04"))
		fmt.Printf("   URL: %s\n", a.URL)
		fmt.Printf("   ID: %s\n", a.ID)
		fmt.Println()
	}
}

// printArticlesJSON prints articles in JSON format.
func printArticlesJSON(articles []news.Article) {
	data, err := json.MarshalIndent(articles, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to marshal JSON: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

// printPortalsTable prints portals in table format.
func printPortalsTable(list []portals.Portal) {
	if len(list) == 0 {
		fmt.Println("No portals configured.")
		return
	}

	fmt.Printf("%-36s %-8s %-8s %-15s %s\n", "ID", "KIND", "ENABLED", "SECTION", "URL")
	fmt.Println("----------------------------------------------------------------------------------------------------")

	for _, p := range list {
		kind := p.Kind
		if kind == "" {
			kind = portals.KindWebsite
		}

		url := p.URL
		if len(url) > 50 {
			url = url[:47] + "..."
		}

		fmt.Printf("%-36s %-8s %-8t %-15s %s\n", p.ID, kind, p.Enabled, p.Section, url)
	}
}
