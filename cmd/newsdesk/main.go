package main

import (
	"fmt"
	"os"

	"github.com/pevans/newsdesk/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	subcommand := os.Args[1]
	if subcommand == "help" || subcommand == "--help" || subcommand == "-h" {
		printUsage()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Every command below talks to the content API.
	if err := cfg.RequireRepo(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	switch subcommand {
	case "articles":
		if len(os.Args) < 3 {
			printArticlesUsage()
			os.Exit(1)
		}
		handleArticlesCommand(cfg, os.Args[2], os.Args[3:])
	case "portals":
		if len(os.Args) < 3 {
			printPortalsUsage()
			os.Exit(1)
		}
		handlePortalsCommand(cfg, os.Args[2], os.Args[3:])
	case "sync":
		handleSync(cfg, os.Args[2:])
	case "trigger":
		handleTrigger(cfg, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("newsdesk - Scraped-news dashboard client")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  newsdesk <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  articles   List, rate, discard, or delete articles")
	fmt.Println("  portals    Manage portal scraper configurations")
	fmt.Println("  sync       Scrape enabled portals and publish the merged articles")
	fmt.Println("  trigger    Fire the remote scrape job")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  NEWSDESK_TOKEN          Bearer credential for the content API (required for writes)")
	fmt.Println("  NEWSDESK_API            Content API base URL")
	fmt.Println("  NEWSDESK_REPO           Repository in owner/name form")
	fmt.Println("  NEWSDESK_STATE_DSN      Path to the local fetch-state database")
	fmt.Println("  NEWSDESK_HEADLINES_KEY  API key for headlines portals")
}
