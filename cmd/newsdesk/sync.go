package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pevans/newsdesk/config"
	"github.com/pevans/newsdesk/fetchstate"
	"github.com/pevans/newsdesk/news"
	"github.com/pevans/newsdesk/scraper"
	"github.com/pevans/newsdesk/store"
)

func handleSync(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	verbose := fs.Bool("verbose", false, "Show verbose output")
	dryRun := fs.Bool("dry-run", false, "Scrape but do not publish")
	fs.Parse(args)

	ctx := context.Background()

	portalStore := newPortalStore(cfg)
	portalList, err := portalStore.Load(ctx)
	if err != nil {
		reportFailure(err)
		os.Exit(1)
	}

	articleStore := newArticleStore(cfg)
	existing, err := articleStore.Load(ctx)
	if err != nil {
		reportFailure(err)
		os.Exit(1)
	}

	stateStore, err := fetchstate.NewStore(cfg.State.DSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open fetch-state store: %v\n", err)
		os.Exit(1)
	}
	defer stateStore.Close()

	prior, err := priorValidators(stateStore)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to read fetch state: %v\n", err)
	}

	fmt.Printf("Scraping %d portal(s)...\n", len(portalList))

	scraperCfg := scraper.DefaultConfig()
	scraperCfg.HeadlinesKey = cfg.HeadlinesKey()
	outcomes := scraper.New(scraperCfg).ScrapeAll(ctx, portalList, prior)

	now := time.Now()
	var scraped []news.Article
	var failures []scraper.Outcome
	unchanged := 0

	for _, o := range outcomes {
		if o.Err != nil {
			failures = append(failures, o)
			if err := stateStore.RecordFailure(o.Portal.ID, o.Err); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to record fetch failure: %v\n", err)
			}
			continue
		}

		err := stateStore.RecordSuccess(o.Portal.ID, now,
			validatorPtr(o.Validators.ETag), validatorPtr(o.Validators.LastModified))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to record fetch success: %v\n", err)
		}

		if o.Unchanged {
			unchanged++
			continue
		}
		scraped = append(scraped, o.Articles...)
	}

	merged, added := news.Merge(existing, scraped)
	cleaned := news.Cleanup(merged, cfg.MaxAge(), now)

	fmt.Println()
	fmt.Println("Sync completed:")
	fmt.Printf("  Articles scraped: %d\n", len(scraped))
	fmt.Printf("  Articles added: %d\n", added)
	fmt.Printf("  Articles after cleanup: %d\n", len(cleaned))
	fmt.Printf("  Portals unchanged: %d\n", unchanged)
	fmt.Printf("  Portals failed: %d\n", len(failures))

	if len(failures) > 0 && *verbose {
		fmt.Println()
		fmt.Println("Errors:")
		for _, f := range failures {
			fmt.Printf("  - %s: %v\n", f.Portal.URL, f.Err)
		}
	}

	if *dryRun {
		fmt.Println()
		fmt.Println("Dry run: nothing published.")
		return
	}

	_, err = articleStore.Apply(ctx, store.RevertOnFailure,
		func([]news.Article) []news.Article { return cleaned },
		fmt.Sprintf("Sync articles (%d new)", added))
	if err != nil {
		reportFailure(err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Printf("✓ Published %d article(s)\n", len(cleaned))

	if len(failures) > 0 {
		os.Exit(1)
	}
}

// priorValidators maps each known portal to the conditional-request
// validators stored from its last successful fetch.
func priorValidators(stateStore *fetchstate.Store) (map[string]scraper.Validators, error) {
	states, err := stateStore.List()
	if err != nil {
		return nil, err
	}

	prior := make(map[string]scraper.Validators, len(states))
	for _, st := range states {
		v := scraper.Validators{}
		if st.ETag != nil {
			v.ETag = *st.ETag
		}
		if st.LastModified != nil {
			v.LastModified = *st.LastModified
		}
		prior[st.PortalID] = v
	}
	return prior, nil
}

// validatorPtr converts a header value to its stored form, where absent
// is NULL rather than an empty string.
func validatorPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
