package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"Briefcast/internal/domain"
	"Briefcast/internal/ports"
)

// AssemblerOptions carry the declarative parts of the mix job.
type AssemblerOptions struct {
	WorkDir     string
	BedPath     string
	BedGainDB   float64
	GapSeconds  float64
	FadeSeconds float64
}

// Assembler synthesizes each script to its own track, then combines the
// tracks into one output file with a single external mix job. Track files
// are exclusively owned by the assembler for the duration of one run and
// removed unconditionally once the mix job completes, succeed or fail.
type Assembler struct {
	synth  ports.Synthesizer
	mixer  ports.Mixer
	opts   AssemblerOptions
	logger *slog.Logger
}

// NewAssembler wires the synthesis and mixing capabilities.
func NewAssembler(synth ports.Synthesizer, mixer ports.Mixer, opts AssemblerOptions, logger *slog.Logger) *Assembler {
	return &Assembler{synth: synth, mixer: mixer, opts: opts, logger: logger}
}

// Assemble returns the path of the mixed briefing audio. Any synthesis or
// mix error is fatal for the run; intermediate tracks never outlive the call.
func (a *Assembler) Assemble(ctx context.Context, runID string, variants []domain.ScriptVariant) (string, error) {
	if len(variants) == 0 {
		return "", fmt.Errorf("no script variants to synthesize")
	}
	if err := os.MkdirAll(a.opts.WorkDir, 0o755); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}

	var tracks []string
	defer func() {
		for _, track := range tracks {
			if err := os.Remove(track); err != nil && !os.IsNotExist(err) {
				a.warn("remove track failed", "path", track, "error", err)
			}
		}
	}()

	for i, variant := range variants {
		data, err := a.synth.Synthesize(ctx, variant.Text, variant.Voice, variant.Language)
		if err != nil {
			return "", fmt.Errorf("synthesize variant %d (%s/%s): %w", i, variant.Voice, variant.Language, err)
		}

		path := filepath.Join(a.opts.WorkDir, fmt.Sprintf("voice-%s-%d.mp3", runID, i))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return "", fmt.Errorf("write track %s: %w", path, err)
		}
		tracks = append(tracks, path)
		a.debug("track synthesized", "path", path, "bytes", len(data))
	}

	output := filepath.Join(a.opts.WorkDir, fmt.Sprintf("briefing-%s.mp3", runID))
	spec := domain.MixSpec{
		Tracks:      tracks,
		GapSeconds:  a.opts.GapSeconds,
		BedPath:     a.opts.BedPath,
		BedGainDB:   a.opts.BedGainDB,
		FadeSeconds: a.opts.FadeSeconds,
		OutputPath:  output,
	}

	if err := a.mixer.Mix(ctx, spec); err != nil {
		if rmErr := os.Remove(output); rmErr != nil && !os.IsNotExist(rmErr) {
			a.warn("remove failed mix output", "path", output, "error", rmErr)
		}
		return "", fmt.Errorf("mix job: %w", err)
	}

	a.debug("briefing assembled", "path", output, "tracks", len(tracks))
	return output, nil
}

func (a *Assembler) debug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}

func (a *Assembler) warn(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Warn(msg, args...)
	}
}
