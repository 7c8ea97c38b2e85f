package rss

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"Briefcast/internal/domain"
	"Briefcast/internal/ports"
)

// Client implements ports.FeedSource over syndicated RSS/Atom feeds,
// including the search-query form used for topic research.
type Client struct {
	client    *http.Client
	searchURL string
}

var _ ports.FeedSource = (*Client)(nil)

// NewClient wires an HTTP client; searchURL is a template with one %s
// placeholder for the escaped query.
func NewClient(client *http.Client, searchURL string) *Client {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{client: client, searchURL: searchURL}
}

// Fetch pulls and parses one feed URL.
func (c *Client) Fetch(ctx context.Context, feedURL string) ([]domain.FeedEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Briefcast/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	// gofeed parsers keep per-parse state, so build one per call; Fetch
	// runs concurrently from the research worker pool.
	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	entries := make([]domain.FeedEntry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, domain.FeedEntry{
			Title:       strings.TrimSpace(item.Title),
			Summary:     stripMarkup(item.Description),
			Source:      strings.TrimSpace(feed.Title),
			PublishedAt: item.PublishedParsed,
		})
	}
	return entries, nil
}

// Search queries the feed's search form scoped to one topic.
func (c *Client) Search(ctx context.Context, query string) ([]domain.FeedEntry, error) {
	if c.searchURL == "" {
		return nil, fmt.Errorf("search url is not configured")
	}
	return c.Fetch(ctx, fmt.Sprintf(c.searchURL, url.QueryEscape(query)))
}

// stripMarkup flattens HTML-bearing feed summaries to text; snippets feed
// prompts and speech synthesis, which must never see tags.
func stripMarkup(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !strings.Contains(s, "<") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
