package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"Briefcast/internal/backoff"
	"Briefcast/internal/config"
	"Briefcast/internal/domain"
	"Briefcast/internal/ports"
)

// Writer turns one evidence bundle into narrated scripts, one generation
// call per configured variant. Calls run strictly sequentially with a
// fixed cooldown between variants and bounded retries on rate limits;
// the generation quota is account-wide.
type Writer struct {
	gen      ports.Generator
	scripts  []config.ScriptConfig
	policy   backoff.Policy
	cooldown time.Duration
	logger   *slog.Logger
}

// NewWriter wires the generation client with the configured variants,
// retry policy, and cooldown.
func NewWriter(gen ports.Generator, scripts []config.ScriptConfig, policy backoff.Policy, cooldown time.Duration, logger *slog.Logger) *Writer {
	return &Writer{gen: gen, scripts: scripts, policy: policy, cooldown: cooldown, logger: logger}
}

// Write produces one ScriptVariant per configured script. Exhausted
// retries or any non-rate-limit generation error is fatal: an incomplete
// narration must not reach audio synthesis.
func (w *Writer) Write(ctx context.Context, bundle domain.EvidenceBundle) ([]domain.ScriptVariant, error) {
	variants := make([]domain.ScriptVariant, 0, len(w.scripts))

	for i, spec := range w.scripts {
		if i > 0 && w.cooldown > 0 {
			w.debug("cooldown before next variant", "wait", w.cooldown)
			if err := w.policy.Wait(ctx, w.cooldown); err != nil {
				return nil, err
			}
		}

		text, err := w.generate(ctx, bundle, spec)
		if err != nil {
			return nil, fmt.Errorf("script %s/%s: %w", spec.Voice, spec.Language, err)
		}

		variants = append(variants, domain.ScriptVariant{
			Voice:    spec.Voice,
			Language: spec.Language,
			Text:     text,
		})
		w.debug("script written", "voice", spec.Voice, "language", spec.Language, "chars", len(text))
	}

	return variants, nil
}

func (w *Writer) generate(ctx context.Context, bundle domain.EvidenceBundle, spec config.ScriptConfig) (string, error) {
	prompt := buildScriptPrompt(bundle, spec)

	var text string
	err := w.policy.Do(ctx, w.retryable, func() error {
		raw, err := w.gen.Generate(ctx, ports.GenerateRequest{Prompt: prompt})
		if err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return fmt.Errorf("generation returned empty script")
		}
		text = raw
		return nil
	})
	return text, err
}

func (w *Writer) retryable(err error) bool {
	if errors.Is(err, domain.ErrRateLimited) {
		w.warn("generation rate limited, will retry", "error", err)
		return true
	}
	return false
}

// buildScriptPrompt serializes the bundle with topics in lexical order so
// the same bundle always yields the same prompt.
func buildScriptPrompt(bundle domain.EvidenceBundle, spec config.ScriptConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a professional news anchor.\n", spec.Voice)
	fmt.Fprintf(&b, "Write a natural %d-minute spoken news briefing in language %q covering the stories below.\n", spec.TargetMinutes, spec.Language)
	b.WriteString("Plain prose only: no markdown, no headings, no bullet points, no stage directions.\n")
	b.WriteString("Base every statement strictly on the provided excerpts.\n\n")

	for _, topic := range bundle.Topics() {
		fmt.Fprintf(&b, "Story: %s\n", topic)
		for _, excerpt := range bundle[topic] {
			fmt.Fprintf(&b, "- %s (%s)\n", excerpt.Snippet, excerpt.Source)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (w *Writer) debug(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Debug(msg, args...)
	}
}

func (w *Writer) warn(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Warn(msg, args...)
	}
}
