package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/pevans/newsdesk/config"
	"github.com/pevans/newsdesk/remote"
)

func handleTrigger(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("trigger", flag.ExitOnError)
	event := fs.String("event", "scrape", "Dispatch event type")
	fs.Parse(args)

	client := remote.NewClient(cfg.Session())
	if !client.HasCredential() {
		reportFailure(remote.MissingCredential(""))
		os.Exit(1)
	}

	if err := client.Dispatch(context.Background(), *event); err != nil {
		reportFailure(err)
		os.Exit(1)
	}

	fmt.Printf("✓ Triggered remote scrape job (event: %s)\n", *event)
}
