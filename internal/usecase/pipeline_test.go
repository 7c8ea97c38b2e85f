package usecase

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"Briefcast/internal/backoff"
	"Briefcast/internal/config"
	"Briefcast/internal/domain"
)

type pipelineFixture struct {
	feed      *fakeFeed
	gen       *fakeGen
	synth     *fakeSynth
	mixer     *fakeMixer
	messenger *fakeMessenger
	pipeline  *Pipeline
}

func newPipelineFixture(t *testing.T, feed *fakeFeed, gen *fakeGen) *pipelineFixture {
	t.Helper()

	recency := RecencyWindow{Window: 24 * time.Hour, Tolerance: 2 * time.Hour}
	policy := backoff.Policy{
		MaxAttempts: 3,
		Base:        time.Second,
		Sleep:       func(context.Context, time.Duration) error { return nil },
	}

	synth := &fakeSynth{}
	mixer := &fakeMixer{writeOutput: func(spec domain.MixSpec) error {
		return os.WriteFile(spec.OutputPath, []byte("mixed"), 0o644)
	}}
	messenger := &fakeMessenger{}

	feeds := []config.FeedConfig{
		{Category: "World", URL: "http://world"},
		{Category: "Tech", URL: "http://tech"},
		{Category: "Middle East", URL: "http://me"},
	}
	scripts := []config.ScriptConfig{
		{Voice: "sara", Language: "en", TargetMinutes: 3},
		{Voice: "omar", Language: "ar", TargetMinutes: 2},
	}

	pipeline := NewPipeline(PipelineDeps{
		Aggregator: NewAggregator(feed, feeds, recency, 0, 0, nil),
		Selector:   NewSelector(gen, 5, "Middle East", nil),
		Researcher: NewResearcher(feed, 3, 3, 0, recency, nil),
		Writer:     NewWriter(gen, scripts, policy, 0, nil),
		Assembler:  NewAssembler(synth, mixer, AssemblerOptions{WorkDir: t.TempDir(), GapSeconds: 0.6}, nil),
		Publisher:  NewPublisher(messenger, "Daily Briefing", "Briefcast", nil),
	})

	return &pipelineFixture{
		feed:      feed,
		gen:       gen,
		synth:     synth,
		mixer:     mixer,
		messenger: messenger,
		pipeline:  pipeline,
	}
}

func TestRunHappyPathEndsDone(t *testing.T) {
	t.Parallel()

	now := time.Now()
	fresh := ts(now.Add(-time.Hour))

	// 5 headlines, 2 sharing a normalized title -> aggregator yields 4.
	feed := &fakeFeed{
		byURL: map[string][]domain.FeedEntry{
			"http://world": {
				{Title: "Summit ends with accord", Source: "Alpha", PublishedAt: fresh},
				{Title: "summit ends with accord - Beta", Source: "Beta", PublishedAt: fresh},
				{Title: "Markets rally on policy news", Source: "Alpha", PublishedAt: fresh},
			},
			"http://tech": {
				{Title: "Chip export rules tighten", Source: "Gamma", PublishedAt: fresh},
			},
			"http://me": {
				{Title: "UAE digital economy initiative", Source: "Delta", PublishedAt: fresh},
			},
		},
		byQuery: map[string][]domain.FeedEntry{
			"summit accord":               {{Title: "s", Summary: "accord details", Source: "Alpha", PublishedAt: fresh}},
			"markets rally":               {{Title: "m", Summary: "rally details", Source: "Alpha", PublishedAt: fresh}},
			"chip export rules":           {{Title: "c", Summary: "rules details", Source: "Gamma", PublishedAt: fresh}},
			"Middle East digital economy": {{Title: "u", Summary: "initiative details", Source: "Delta", PublishedAt: fresh}},
			"dry well topic":              {},
		},
	}
	gen := &fakeGen{replies: []string{
		`["summit accord", "markets rally", "chip export rules", "Middle East digital economy", "dry well topic"]`,
		"English briefing script.",
		"Arabic briefing script.",
	}}

	fx := newPipelineFixture(t, feed, gen)
	state, err := fx.pipeline.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if state != domain.StateDone {
		t.Fatalf("state = %s, want %s", state, domain.StateDone)
	}

	// 1 selection + 2 script calls.
	if fx.gen.callCount() != 3 {
		t.Fatalf("expected 3 generation calls, got %d", fx.gen.callCount())
	}
	// One topic dropped for zero excerpts -> 4 topics in the mix of evidence.
	if fx.synth.calls != 2 {
		t.Fatalf("expected 2 synthesized variants, got %d", fx.synth.calls)
	}
	if fx.mixer.calls != 1 || len(fx.mixer.spec.Tracks) != 2 {
		t.Fatalf("expected one mix of 2 tracks, got %d/%d", fx.mixer.calls, len(fx.mixer.spec.Tracks))
	}
	if len(fx.messenger.texts) != 1 || fx.messenger.audioPath == "" {
		t.Fatal("expected text then audio delivery")
	}
	if strings.Contains(fx.messenger.texts[0], "dry well topic") {
		t.Fatal("dropped topic must not appear in the brief")
	}
}

func TestRunFailsFastWhenAllFeedsAreDown(t *testing.T) {
	t.Parallel()

	down := errors.New("network down")
	feed := &fakeFeed{fetchErr: map[string]error{
		"http://world": down, "http://tech": down, "http://me": down,
	}}
	gen := &fakeGen{}

	fx := newPipelineFixture(t, feed, gen)
	state, err := fx.pipeline.Run(context.Background(), time.Now())
	if state != domain.StateFailed {
		t.Fatalf("state = %s, want %s", state, domain.StateFailed)
	}
	if !errors.Is(err, domain.ErrNoHeadlines) {
		t.Fatalf("expected ErrNoHeadlines, got %v", err)
	}

	// Quota preserved: zero generation and synthesis calls.
	if fx.gen.callCount() != 0 {
		t.Fatalf("generation must not be called, got %d calls", fx.gen.callCount())
	}
	if fx.synth.calls != 0 || fx.mixer.calls != 0 {
		t.Fatal("audio services must not be called")
	}
}

func TestRunFailsAfterSelectionWithoutResearch(t *testing.T) {
	t.Parallel()

	now := time.Now()
	fresh := ts(now.Add(-time.Hour))
	feed := &fakeFeed{byURL: map[string][]domain.FeedEntry{
		"http://world": {{Title: "Something happened", PublishedAt: fresh}},
	}}
	gen := &fakeGen{replies: []string{"not json at all"}}

	fx := newPipelineFixture(t, feed, gen)
	state, err := fx.pipeline.Run(context.Background(), now)
	if state != domain.StateFailed || !errors.Is(err, domain.ErrEmptySelection) {
		t.Fatalf("expected selection failure, got state=%s err=%v", state, err)
	}
	if fx.feed.searchCount() != 0 {
		t.Fatalf("research must not run after a failed selection, got %d searches", fx.feed.searchCount())
	}
	if fx.gen.callCount() != 1 {
		t.Fatalf("only the selection call may spend quota, got %d", fx.gen.callCount())
	}
}

func TestRunFailsAfterResearchWithoutWriting(t *testing.T) {
	t.Parallel()

	now := time.Now()
	fresh := ts(now.Add(-time.Hour))
	feed := &fakeFeed{
		byURL: map[string][]domain.FeedEntry{
			"http://world": {{Title: "Something happened", PublishedAt: fresh}},
		},
		byQuery: map[string][]domain.FeedEntry{},
	}
	gen := &fakeGen{replies: []string{`["a", "b", "c", "d", "Middle East e"]`}}

	fx := newPipelineFixture(t, feed, gen)
	state, err := fx.pipeline.Run(context.Background(), now)
	if state != domain.StateFailed || !errors.Is(err, domain.ErrNoEvidence) {
		t.Fatalf("expected circuit breaker, got state=%s err=%v", state, err)
	}
	if fx.gen.callCount() != 1 {
		t.Fatalf("no narration call may happen after the breaker, got %d calls", fx.gen.callCount())
	}
	if fx.synth.calls != 0 {
		t.Fatal("synthesis must not run")
	}
}

func TestRunSkipsOverlappingTrigger(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	feed := &fakeFeed{onFetch: func() {
		once.Do(func() { close(started) })
		<-release
	}}

	fx := newPipelineFixture(t, feed, &fakeGen{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = fx.pipeline.Run(context.Background(), time.Now())
	}()

	<-started
	if _, err := fx.pipeline.Run(context.Background(), time.Now()); !errors.Is(err, domain.ErrRunActive) {
		t.Fatalf("overlapping trigger must be skipped, got %v", err)
	}
	close(release)
	<-done
}

func TestBuildBriefListsTopicsWithLeadSources(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 10, 7, 0, 0, 0, time.UTC)
	bundle := domain.EvidenceBundle{
		"beta story":  {{Source: "Beta"}},
		"alpha story": {{Source: "Alpha"}},
	}

	brief := buildBrief(now, bundle)
	if !strings.Contains(brief, "alpha story") || !strings.Contains(brief, "(Alpha)") {
		t.Fatalf("brief missing topic or source:\n%s", brief)
	}
	if strings.Index(brief, "alpha story") > strings.Index(brief, "beta story") {
		t.Fatalf("topics must be in lexical order:\n%s", brief)
	}
	if !strings.Contains(brief, "10 Mar 2026") {
		t.Fatalf("brief missing date:\n%s", brief)
	}
}
