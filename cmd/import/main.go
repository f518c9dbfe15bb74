// Command import fetches a feed and adds its entries to the item catalog.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"topicpush/internal/app"
	"topicpush/internal/catalog"
	"topicpush/internal/config"
)

func main() {
	feedURL := flag.String("feed", "", "RSS or Atom feed URL to import")
	flag.Parse()
	if *feedURL == "" {
		fmt.Fprintln(os.Stderr, "Usage: import -feed <url>")
		os.Exit(1)
	}

	cfg, err := config.Load(nil)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	log := app.NewLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, _, err := app.OpenStore(cfg, log)
	if err != nil {
		log.Error("open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	feed, err := catalog.New(http.DefaultClient).Fetch(ctx, *feedURL)
	if err != nil {
		log.Error("fetch feed", "url", *feedURL, "error", err)
		os.Exit(1)
	}

	added := 0
	for _, item := range catalog.Items(cfg.Topics, feed.Items, time.Now()) {
		created, err := store.AddItem(ctx, &item)
		if err != nil {
			log.Error("add item", "item_id", item.ID, "error", err)
			continue
		}
		if created {
			added++
			log.Debug("item added", "item_id", item.ID, "url", item.URL)
		}
	}

	log.Info("import finished", "feed", feed.Title, "entries", len(feed.Items), "added", added)
}
