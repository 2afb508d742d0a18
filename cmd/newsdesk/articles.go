package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pevans/newsdesk/config"
	"github.com/pevans/newsdesk/news"
	"github.com/pevans/newsdesk/remote"
	"github.com/pevans/newsdesk/store"
)

func newArticleStore(cfg *config.Config) *store.Store[news.Article] {
	client := remote.NewClient(cfg.Session())
	return store.New[news.Article](client, cfg.Paths.Articles)
}

func handleArticlesCommand(cfg *config.Config, action string, args []string) {
	switch action {
	case "list":
		handleArticlesList(cfg, args)
	case "rate":
		handleArticlesRate(cfg, args)
	case "discard":
		handleArticlesDiscard(cfg, args)
	case "delete":
		handleArticlesDelete(cfg, args)
	case "help", "--help", "-h":
		printArticlesUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown articles command: %s\n\n", action)
		printArticlesUsage()
		os.Exit(1)
	}
}

func printArticlesUsage() {
	fmt.Println("newsdesk articles - List, rate, discard, or delete articles")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  newsdesk articles <action> [arguments]")
	fmt.Println()
	fmt.Println("Actions:")
	fmt.Println("  list                  List articles")
	fmt.Println("  rate <id> <score>     Rate an article (1-10)")
	fmt.Println("  discard <id>          Mark an article as discarded")
	fmt.Println("  delete <id>           Remove an article")
	fmt.Println("  help                  Show this help message")
}

func handleArticlesList(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("articles list", flag.ExitOnError)
	all := fs.Bool("all", false, "Include discarded articles")
	asJSON := fs.Bool("json", false, "Output as JSON")
	fs.Parse(args)

	articles, err := newArticleStore(cfg).Load(context.Background())
	if err != nil {
		reportFailure(err)
		os.Exit(1)
	}

	if !*all {
		kept := make([]news.Article, 0, len(articles))
		for _, a := range articles {
			if !a.IsDiscarded() {
				kept = append(kept, a)
			}
		}
		articles = kept
	}

	if *asJSON {
		printArticlesJSON(articles)
		return
	}
	printArticlesTable(articles)
}

func handleArticlesRate(cfg *config.Config, args []string) {
	if len(args) < 2 {
		fmt.Fprintf(os.Stderr, "Error: article ID and score are required\n")
		fmt.Fprintf(os.Stderr, "Usage: newsdesk articles rate <id> <score>\n")
		os.Exit(1)
	}

	score, err := strconv.ParseFloat(args[1], 64)
	if err != nil || score < 1 || score > 10 {
		fmt.Fprintf(os.Stderr, "Error: score must be a number between 1 and 10\n")
		os.Exit(1)
	}

	ctx := context.Background()
	articleStore := newArticleStore(cfg)
	if _, err := articleStore.Load(ctx); err != nil {
		reportFailure(err)
		os.Exit(1)
	}

	// Ratings keep their optimistic change even when the save fails; the
	// score is worth preserving locally and a later save picks it up.
	_, err = articleStore.Apply(ctx, store.KeepOnFailure,
		news.Rate(news.ID(args[0]), score),
		fmt.Sprintf("Rate article %s", args[0]))
	if err != nil {
		reportFailure(err)
		os.Exit(1)
	}

	fmt.Printf("✓ Rated article %s: %.0f\n", args[0], score)
}

func handleArticlesDiscard(cfg *config.Config, args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Error: article ID is required\n")
		fmt.Fprintf(os.Stderr, "Usage: newsdesk articles discard <id>\n")
		os.Exit(1)
	}

	ctx := context.Background()
	articleStore := newArticleStore(cfg)
	if _, err := articleStore.Load(ctx); err != nil {
		reportFailure(err)
		os.Exit(1)
	}

	// A discard is a status flip, not a removal, so a failed save leaves
	// the flip applied and only reports.
	_, err := articleStore.Apply(ctx, store.KeepOnFailure,
		news.Discard(news.ID(args[0]), time.Now()),
		fmt.Sprintf("Discard article %s", args[0]))
	if err != nil {
		reportFailure(err)
		os.Exit(1)
	}

	fmt.Printf("✓ Discarded article %s\n", args[0])
}

func handleArticlesDelete(cfg *config.Config, args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Error: article ID is required\n")
		fmt.Fprintf(os.Stderr, "Usage: newsdesk articles delete <id>\n")
		os.Exit(1)
	}

	ctx := context.Background()
	articleStore := newArticleStore(cfg)
	if _, err := articleStore.Load(ctx); err != nil {
		reportFailure(err)
		os.Exit(1)
	}

	// Deletions revert when the save fails: a locally-missing article
	// that still exists remotely would reappear confusingly on the next
	// load.
	_, err := articleStore.Apply(ctx, store.RevertOnFailure,
		news.Remove(news.ID(args[0])),
		fmt.Sprintf("Delete article %s", args[0]))
	if err != nil {
		reportFailure(err)
		os.Exit(1)
	}

	fmt.Printf("✓ Deleted article %s\n", args[0])
}
