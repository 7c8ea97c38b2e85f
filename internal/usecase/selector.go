package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"Briefcast/internal/domain"
	"Briefcast/internal/ports"
	"Briefcast/internal/structured"
)

// Selector asks the generation service to pick a fixed number of search
// topics from the scanned headlines. Selection failure is a normal outcome,
// expressed as an empty topic list, so the run can abort before spending
// quota on research and narration.
type Selector struct {
	gen               ports.Generator
	topicCount        int
	mandatoryCategory string
	logger            *slog.Logger
}

// NewSelector wires the generation client with the selection policy.
func NewSelector(gen ports.Generator, topicCount int, mandatoryCategory string, logger *slog.Logger) *Selector {
	return &Selector{
		gen:               gen,
		topicCount:        topicCount,
		mandatoryCategory: mandatoryCategory,
		logger:            logger,
	}
}

// Select issues one structured-output call and validates the reply.
// Unparsable output, fewer topics than requested, or a missing mandatory
// category all yield an empty list. Surplus topics are truncated.
func (s *Selector) Select(ctx context.Context, headlines []domain.Headline) ([]string, error) {
	if len(headlines) == 0 {
		return nil, nil
	}

	raw, err := s.gen.Generate(ctx, ports.GenerateRequest{
		Prompt:     s.buildPrompt(headlines),
		Structured: true,
	})
	if err != nil {
		return nil, fmt.Errorf("selection call: %w", err)
	}

	topics := structured.Strings(raw)
	if len(topics) < s.topicCount {
		s.warn("selection rejected: too few topics", "got", len(topics), "want", s.topicCount)
		return nil, nil
	}
	topics = topics[:s.topicCount]

	if !s.hasMandatory(topics) {
		s.warn("selection rejected: mandatory category missing", "category", s.mandatoryCategory)
		return nil, nil
	}

	s.debug("topics selected", "count", len(topics))
	return topics, nil
}

func (s *Selector) buildPrompt(headlines []domain.Headline) string {
	var b strings.Builder
	b.WriteString("You are a news editor choosing stories for a short spoken briefing.\n")
	fmt.Fprintf(&b, "From the headlines below, choose exactly %d topics and answer with a JSON array of %d search-query strings, nothing else.\n", s.topicCount, s.topicCount)
	b.WriteString("Rules:\n")
	b.WriteString("- Prefer concrete, specific stories; reject broad or generic subjects.\n")
	b.WriteString("- Reject stale stories; everything listed is from the last day.\n")
	b.WriteString("- Each query should name the story precisely enough to search for follow-up coverage.\n")
	if s.mandatoryCategory != "" {
		fmt.Fprintf(&b, "- At least one query must cover %s news and must contain the word %q.\n", s.mandatoryCategory, s.mandatoryCategory)
	}
	b.WriteString("\nHeadlines:\n")
	for _, h := range headlines {
		fmt.Fprintf(&b, "[%s] %s (%s)\n", h.Category, h.Title, h.Source)
	}
	return b.String()
}

func (s *Selector) hasMandatory(topics []string) bool {
	if s.mandatoryCategory == "" {
		return true
	}
	want := strings.ToLower(s.mandatoryCategory)
	for _, topic := range topics {
		if strings.Contains(strings.ToLower(topic), want) {
			return true
		}
	}
	return false
}

func (s *Selector) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Selector) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
