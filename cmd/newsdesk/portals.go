package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/pevans/newsdesk/config"
	"github.com/pevans/newsdesk/fetchstate"
	"github.com/pevans/newsdesk/portals"
	"github.com/pevans/newsdesk/remote"
	"github.com/pevans/newsdesk/store"
)

func newPortalStore(cfg *config.Config) *store.Store[portals.Portal] {
	client := remote.NewClient(cfg.Session())
	return store.New[portals.Portal](client, cfg.Paths.Portals)
}

func handlePortalsCommand(cfg *config.Config, action string, args []string) {
	switch action {
	case "list":
		handlePortalsList(cfg, args)
	case "add":
		handlePortalsAdd(cfg, args)
	case "delete":
		handlePortalsDelete(cfg, args)
	case "enable":
		handlePortalsSetEnabled(cfg, args, true)
	case "disable":
		handlePortalsSetEnabled(cfg, args, false)
	case "help", "--help", "-h":
		printPortalsUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown portals command: %s\n\n", action)
		printPortalsUsage()
		os.Exit(1)
	}
}

func printPortalsUsage() {
	fmt.Println("newsdesk portals - Manage portal scraper configurations")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  newsdesk portals <action> [arguments]")
	fmt.Println()
	fmt.Println("Actions:")
	fmt.Println("  list           List all portals")
	fmt.Println("  add            Add a new portal")
	fmt.Println("  delete <id>    Delete a portal")
	fmt.Println("  enable <id>    Enable a portal")
	fmt.Println("  disable <id>   Disable a portal")
	fmt.Println("  help           Show this help message")
}

func handlePortalsList(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("portals list", flag.ExitOnError)
	fs.Parse(args)

	list, err := newPortalStore(cfg).Load(context.Background())
	if err != nil {
		reportFailure(err)
		os.Exit(1)
	}

	printPortalsTable(list)
}

func handlePortalsAdd(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("portals add", flag.ExitOnError)
	url := fs.String("url", "", "Portal URL")
	section := fs.String("section", "", "Section label applied to scraped articles")
	kind := fs.String("kind", portals.KindWebsite, "Portal kind (website, feed, or headlines)")
	item := fs.String("item", "", "CSS selector for article items (website portals)")
	fs.Parse(args)

	if *url == "" {
		fmt.Fprintf(os.Stderr, "Error: --url is required\n")
		fs.Usage()
		os.Exit(1)
	}
	if *section == "" {
		fmt.Fprintf(os.Stderr, "Error: --section is required\n")
		fs.Usage()
		os.Exit(1)
	}
	switch *kind {
	case portals.KindWebsite, portals.KindFeed, portals.KindHeadlines:
	default:
		fmt.Fprintf(os.Stderr, "Error: --kind must be 'website', 'feed', or 'headlines'\n")
		os.Exit(1)
	}

	portal := portals.New(*url, *section)
	portal.Kind = *kind
	if *item != "" {
		portal.Selectors.Item = *item
	}

	ctx := context.Background()
	portalStore := newPortalStore(cfg)
	if _, err := portalStore.Load(ctx); err != nil {
		reportFailure(err)
		os.Exit(1)
	}

	// Additions revert when the save fails so a phantom portal never
	// lingers locally.
	_, err := portalStore.Apply(ctx, store.RevertOnFailure,
		portals.Add(portal),
		fmt.Sprintf("Add portal %s", portal.URL))
	if err != nil {
		reportFailure(err)
		os.Exit(1)
	}

	fmt.Printf("✓ Added portal: %s\n", portal.ID)
	fmt.Printf("  Kind: %s\n", portal.Kind)
	fmt.Printf("  Section: %s\n", portal.Section)
	fmt.Printf("  URL: %s\n", portal.URL)
}

func handlePortalsDelete(cfg *config.Config, args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Error: portal ID is required\n")
		fmt.Fprintf(os.Stderr, "Usage: newsdesk portals delete <portal-id>\n")
		os.Exit(1)
	}
	portalID := args[0]

	ctx := context.Background()
	portalStore := newPortalStore(cfg)
	if _, err := portalStore.Load(ctx); err != nil {
		reportFailure(err)
		os.Exit(1)
	}

	_, err := portalStore.Apply(ctx, store.RevertOnFailure,
		portals.Delete(portalID),
		fmt.Sprintf("Delete portal %s", portalID))
	if err != nil {
		reportFailure(err)
		os.Exit(1)
	}

	// Drop the portal's local fetch bookkeeping too. Failing to do so is
	// harmless, so it only warns.
	if stateStore, err := fetchstate.NewStore(cfg.State.DSN); err == nil {
		defer stateStore.Close()
		if err := stateStore.Delete(portalID); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to clear fetch state: %v\n", err)
		}
	}

	fmt.Printf("✓ Deleted portal: %s\n", portalID)
}

func handlePortalsSetEnabled(cfg *config.Config, args []string, enabled bool) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Error: portal ID is required\n")
		os.Exit(1)
	}
	portalID := args[0]

	ctx := context.Background()
	portalStore := newPortalStore(cfg)
	if _, err := portalStore.Load(ctx); err != nil {
		reportFailure(err)
		os.Exit(1)
	}

	verb := "Disable"
	if enabled {
		verb = "Enable"
	}

	// Enable/disable is a status flip like a discard: keep the change on
	// failure and let a later save carry it.
	_, err := portalStore.Apply(ctx, store.KeepOnFailure,
		portals.SetEnabled(portalID, enabled),
		fmt.Sprintf("%s portal %s", verb, portalID))
	if err != nil {
		reportFailure(err)
		os.Exit(1)
	}

	fmt.Printf("✓ %sd portal: %s\n", verb, portalID)
}
