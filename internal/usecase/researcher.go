package usecase

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"Briefcast/internal/domain"
	"Briefcast/internal/ports"
)

// Researcher deepens each selected topic into an evidence bundle by
// querying the feed search form. Work is dispatched to a bounded pool so
// third-party rate limits are respected; each worker writes only its own
// result slot and all workers are joined before merging.
type Researcher struct {
	source      ports.FeedSource
	workers     int
	maxExcerpts int
	snippetMax  int
	recency     RecencyWindow
	logger      *slog.Logger
}

// NewResearcher wires the feed source with research policy.
func NewResearcher(source ports.FeedSource, workers, maxExcerpts, snippetMax int, recency RecencyWindow, logger *slog.Logger) *Researcher {
	if workers < 1 {
		workers = 1
	}
	return &Researcher{
		source:      source,
		workers:     workers,
		maxExcerpts: maxExcerpts,
		snippetMax:  snippetMax,
		recency:     recency,
		logger:      logger,
	}
}

// Research gathers up to maxExcerpts fresh excerpts per topic. A failed or
// empty search is local to its topic: that topic is dropped from the bundle,
// never retried. If every topic comes back empty the circuit breaker trips
// and domain.ErrNoEvidence aborts the run before any narration is generated.
func (r *Researcher) Research(ctx context.Context, now time.Time, topics []string) (domain.EvidenceBundle, error) {
	results := make([][]domain.Excerpt, len(topics))
	sem := make(chan struct{}, r.workers)
	var wg sync.WaitGroup

	for i, topic := range topics {
		wg.Add(1)
		go func(slot int, topic string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			entries, err := r.source.Search(ctx, topic)
			if err != nil {
				r.warn("topic search failed", "topic", topic, "error", err)
				return
			}
			results[slot] = r.collect(now, entries)
		}(i, topic)
	}
	wg.Wait()

	bundle := domain.EvidenceBundle{}
	for i, topic := range topics {
		if len(results[i]) == 0 {
			r.debug("topic dropped: no excerpts", "topic", topic)
			continue
		}
		bundle[topic] = results[i]
	}

	if len(bundle) == 0 {
		return nil, domain.ErrNoEvidence
	}

	r.debug("research done", "topics", len(topics), "kept", len(bundle))
	return bundle, nil
}

func (r *Researcher) collect(now time.Time, entries []domain.FeedEntry) []domain.Excerpt {
	var excerpts []domain.Excerpt
	for _, entry := range entries {
		if !r.recency.IsRecent(now, entry.PublishedAt) {
			continue
		}
		snippet := strings.TrimSpace(entry.Summary)
		if snippet == "" {
			snippet = strings.TrimSpace(entry.Title)
		}
		if snippet == "" {
			continue
		}

		excerpts = append(excerpts, domain.Excerpt{
			Source:      entry.Source,
			Snippet:     truncate(snippet, r.snippetMax),
			PublishedAt: entry.PublishedAt,
		})
		if r.maxExcerpts > 0 && len(excerpts) >= r.maxExcerpts {
			break
		}
	}
	return excerpts
}

func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func (r *Researcher) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

func (r *Researcher) warn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
