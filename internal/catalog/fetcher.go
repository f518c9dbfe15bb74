// Package catalog imports content items from RSS/Atom feeds and tags them
// with topic flags.
package catalog

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"topicpush/internal/model"
	"topicpush/internal/topics"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads and parses feeds.
type Fetcher struct {
	client  HTTPClient
	timeout time.Duration
}

// New creates a Fetcher with the given HTTP client.
func New(client HTTPClient) *Fetcher {
	return &Fetcher{
		client:  client,
		timeout: 30 * time.Second,
	}
}

// maxFeedSize caps how much of a feed body is parsed.
const maxFeedSize = 5 << 20

// Fetch downloads a feed and parses it. Only 200 responses are accepted.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*gofeed.Feed, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "TopicPush/1.0")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: unexpected status %d", url, resp.StatusCode)
	}

	feed, err := gofeed.NewParser().Parse(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", url, err)
	}
	return feed, nil
}

// ItemID returns the catalog ID for a feed entry. The ID is the key push
// history is recorded under, so it must not change between imports: the
// GUID when the feed provides one, else a hash of title and link.
func ItemID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	h := sha256.Sum256([]byte(item.Title + "|" + item.Link))
	return fmt.Sprintf("sha256:%x", h[:16])
}

// Items converts feed items into catalog items tagged against cat.
// Items without a link are skipped. now is used when an item has no
// publication date.
func Items(cat topics.Catalog, feedItems []*gofeed.Item, now time.Time) []model.Item {
	var items []model.Item
	for _, fi := range feedItems {
		if fi.Link == "" {
			continue
		}
		added := now
		switch {
		case fi.PublishedParsed != nil:
			added = *fi.PublishedParsed
		case fi.UpdatedParsed != nil:
			added = *fi.UpdatedParsed
		}
		items = append(items, model.Item{
			ID:         ItemID(fi),
			URL:        fi.Link,
			Topics:     Tag(cat, Entry{Title: fi.Title, Description: fi.Description, Categories: fi.Categories}),
			AddedEpoch: added.Unix(),
		})
	}
	return items
}
