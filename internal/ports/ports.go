package ports

import (
	"context"
	"time"

	"Briefcast/internal/domain"
)

// FeedSource pulls syndicated entries, either from a fixed feed URL or
// via the feed's search-query form scoped to a topic.
type FeedSource interface {
	Fetch(ctx context.Context, feedURL string) ([]domain.FeedEntry, error)
	Search(ctx context.Context, query string) ([]domain.FeedEntry, error)
}

// GenerateRequest carries one prompt to the generation service.
// Structured asks the service to answer with a JSON array instead of prose.
type GenerateRequest struct {
	Prompt     string
	Structured bool
}

// Generator invokes the external text-generation service.
// A quota rejection is surfaced as domain.ErrRateLimited so callers can
// decide whether to retry.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// Synthesizer converts text into raw audio bytes for one voice and language.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice, language string) ([]byte, error)
}

// Mixer executes one declarative concat/mix job against an external
// transcoding capability, writing spec.OutputPath.
type Mixer interface {
	Mix(ctx context.Context, spec domain.MixSpec) error
}

// Messenger delivers text and audio to the messaging endpoint.
// A rejection of formatted text is surfaced as domain.ErrBadFormat.
type Messenger interface {
	SendText(ctx context.Context, text string, formatted bool) error
	SendAudio(ctx context.Context, path, caption, title, performer string) error
}

// Scheduler controls when pipeline runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
