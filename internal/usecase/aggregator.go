package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"Briefcast/internal/config"
	"Briefcast/internal/domain"
	"Briefcast/internal/ports"
)

// RecencyWindow decides whether an entry is fresh enough for this run.
type RecencyWindow struct {
	Window      time.Duration
	Tolerance   time.Duration
	DropUndated bool
}

// IsRecent reports whether published falls inside window+tolerance of now.
// The boundary is inclusive: an entry aged exactly window+tolerance passes.
// Undated entries pass unless DropUndated is set (fail-open by default).
func (w RecencyWindow) IsRecent(now time.Time, published *time.Time) bool {
	if published == nil {
		return !w.DropUndated
	}
	return now.Sub(*published) <= w.Window+w.Tolerance
}

// Aggregator pulls configured feeds and shapes their entries into a
// deduplicated, recency-filtered headline list.
type Aggregator struct {
	source         ports.FeedSource
	feeds          []config.FeedConfig
	recency        RecencyWindow
	maxPerCategory int
	maxTotal       int
	logger         *slog.Logger
}

// NewAggregator wires the feed source with scan policy.
func NewAggregator(source ports.FeedSource, feeds []config.FeedConfig, recency RecencyWindow, maxPerCategory, maxTotal int, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		source:         source,
		feeds:          feeds,
		recency:        recency,
		maxPerCategory: maxPerCategory,
		maxTotal:       maxTotal,
		logger:         logger,
	}
}

// Scan fetches every configured feed and returns fresh, distinct headlines
// in first-seen order. A single feed failure is logged and skipped; it never
// fails the scan. Caps bound the result per category and overall.
func (a *Aggregator) Scan(ctx context.Context, now time.Time) []domain.Headline {
	seen := map[string]struct{}{}
	perCategory := map[string]int{}
	var headlines []domain.Headline

	for _, feed := range a.feeds {
		entries, err := a.source.Fetch(ctx, feed.URL)
		if err != nil {
			a.warn("feed fetch failed", "category", feed.Category, "url", feed.URL, "error", err)
			continue
		}

		accepted := 0
		for _, entry := range entries {
			title := strings.TrimSpace(entry.Title)
			if title == "" {
				continue
			}
			if !a.recency.IsRecent(now, entry.PublishedAt) {
				continue
			}
			key := NormalizeTitle(title)
			if _, dup := seen[key]; dup {
				continue
			}
			if a.maxPerCategory > 0 && perCategory[feed.Category] >= a.maxPerCategory {
				break
			}

			seen[key] = struct{}{}
			perCategory[feed.Category]++
			accepted++
			headlines = append(headlines, domain.Headline{
				Category:    feed.Category,
				Title:       title,
				Source:      entry.Source,
				PublishedAt: entry.PublishedAt,
			})

			if a.maxTotal > 0 && len(headlines) >= a.maxTotal {
				a.debug("overall headline cap reached", "cap", a.maxTotal)
				return headlines
			}
		}
		a.debug("feed scanned", "category", feed.Category, "entries", len(entries), "accepted", accepted)
	}

	return headlines
}

// NormalizeTitle builds the dedup key: lower-cased, whitespace collapsed,
// with a trailing " - Source" publisher suffix stripped. Search feeds
// append that suffix, so the same story from two feeds folds into one key.
func NormalizeTitle(title string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(title), " "))
	if idx := strings.LastIndex(normalized, " - "); idx > 0 {
		normalized = strings.TrimSpace(normalized[:idx])
	}
	return normalized
}

func (a *Aggregator) debug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}

func (a *Aggregator) warn(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Warn(msg, args...)
	}
}
