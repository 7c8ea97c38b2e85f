package domain

import (
	"sort"
	"time"
)

// FeedEntry is the raw item shape returned by feed adapters before any filtering.
type FeedEntry struct {
	Title       string
	Summary     string
	Source      string
	PublishedAt *time.Time
}

// Headline is a normalized, deduplicated entry eligible for topic selection.
type Headline struct {
	Category    string
	Title       string
	Source      string
	PublishedAt *time.Time
}

// Excerpt is one piece of supporting evidence collected for a topic.
type Excerpt struct {
	Source      string
	Snippet     string
	PublishedAt *time.Time
}

// EvidenceBundle maps a topic query to its supporting excerpts.
// Topics that yielded no excerpts are never present.
type EvidenceBundle map[string][]Excerpt

// Topics returns the bundle keys in lexical order so that prompt
// construction is reproducible for a given bundle.
func (b EvidenceBundle) Topics() []string {
	topics := make([]string, 0, len(b))
	for topic := range b {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// ScriptVariant is one narrated script ready for speech synthesis.
type ScriptVariant struct {
	Voice    string
	Language string
	Text     string
}

// MixSpec describes the declarative audio job executed by a Mixer:
// ordered concatenation of voice tracks separated by silence gaps,
// optionally overlaid with a looped, attenuated background bed, with
// fade-in/fade-out at the edges.
type MixSpec struct {
	Tracks      []string
	GapSeconds  float64
	BedPath     string
	BedGainDB   float64
	FadeSeconds float64
	OutputPath  string
}

// RunState enumerates pipeline run milestones.
type RunState string

const (
	StateScanning    RunState = "scanning"
	StateSelecting   RunState = "selecting"
	StateResearching RunState = "researching"
	StateWriting     RunState = "writing"
	StateProducing   RunState = "producing"
	StatePublishing  RunState = "publishing"
	StateDone        RunState = "done"
	StateFailed      RunState = "failed"
)
