package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"Briefcast/internal/domain"
)

// PipelineDeps wires all stage components into the run orchestration.
type PipelineDeps struct {
	Aggregator *Aggregator
	Selector   *Selector
	Researcher *Researcher
	Writer     *Writer
	Assembler  *Assembler
	Publisher  *Publisher
	Logger     *slog.Logger

	// AllowEmptyScan lets a run continue with zero headlines instead of
	// failing from the scanning state.
	AllowEmptyScan bool
}

// Pipeline executes the fixed briefing workflow once per trigger: scan,
// select, research, write, produce, publish. Each stage consumes the
// prior stage's output; an empty or invalid result aborts the run before
// any later stage executes.
type Pipeline struct {
	deps  PipelineDeps
	lease RunLease
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{deps: deps}
}

// Run executes one briefing run triggered at now. It returns the terminal
// state (StateDone or StateFailed) together with the failing stage error.
// If a previous run still holds the lease the trigger is skipped with
// domain.ErrRunActive and no state is reported.
func (p *Pipeline) Run(ctx context.Context, now time.Time) (domain.RunState, error) {
	if !p.lease.TryAcquire() {
		return "", domain.ErrRunActive
	}
	defer p.lease.Release()

	runID := uuid.NewString()[:8]
	logger := p.deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("run", runID)

	state := domain.StateScanning
	fail := func(err error) (domain.RunState, error) {
		logger.Error("run failed", "state", state, "error", err)
		return domain.StateFailed, fmt.Errorf("%s: %w", state, err)
	}

	logger.Info("run started", "trigger", now.Format(time.RFC3339))

	headlines := p.deps.Aggregator.Scan(ctx, now)
	if len(headlines) == 0 && !p.deps.AllowEmptyScan {
		return fail(domain.ErrNoHeadlines)
	}
	logger.Info("headlines scanned", "count", len(headlines))

	state = domain.StateSelecting
	topics, err := p.deps.Selector.Select(ctx, headlines)
	if err != nil {
		return fail(err)
	}
	if len(topics) == 0 {
		return fail(domain.ErrEmptySelection)
	}
	logger.Info("topics selected", "count", len(topics))

	state = domain.StateResearching
	bundle, err := p.deps.Researcher.Research(ctx, now, topics)
	if err != nil {
		return fail(err)
	}
	logger.Info("evidence gathered", "topics", len(bundle))

	state = domain.StateWriting
	variants, err := p.deps.Writer.Write(ctx, bundle)
	if err != nil {
		return fail(err)
	}
	logger.Info("scripts written", "variants", len(variants))

	state = domain.StateProducing
	audioPath, err := p.deps.Assembler.Assemble(ctx, runID, variants)
	if err != nil {
		return fail(err)
	}
	logger.Info("audio produced", "path", audioPath)

	state = domain.StatePublishing
	brief := buildBrief(now, bundle)
	if err := p.deps.Publisher.Publish(ctx, brief, audioPath, buildCaption(now)); err != nil {
		return fail(err)
	}

	state = domain.StateDone
	logger.Info("run done")
	return state, nil
}

// buildBrief formats the text half of the delivery package: the stories
// covered by the audio, one bullet per topic with its lead source.
func buildBrief(now time.Time, bundle domain.EvidenceBundle) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Daily Briefing — %s*\n\n", now.Format("Mon, 2 Jan 2006"))
	for _, topic := range bundle.Topics() {
		excerpts := bundle[topic]
		fmt.Fprintf(&b, "• %s", topic)
		if len(excerpts) > 0 && excerpts[0].Source != "" {
			fmt.Fprintf(&b, " _(%s)_", excerpts[0].Source)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func buildCaption(now time.Time) string {
	return "Your briefing for " + now.Format("2 Jan 2006")
}
