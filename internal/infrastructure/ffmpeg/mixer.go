package ffmpeg

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"Briefcast/internal/domain"
	"Briefcast/internal/ports"
)

// Mixer executes declarative MixSpec jobs by invoking ffmpeg once per job.
// The whole graph (concat, gaps, bed loop, gain, fades) runs inside the
// external process, so memory use stays flat regardless of total duration.
type Mixer struct {
	ffmpegPath  string
	ffprobePath string
	logger      *slog.Logger

	// run is swapped in tests to avoid spawning processes.
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

var _ ports.Mixer = (*Mixer)(nil)

// NewMixer wires the transcoder binaries; empty paths default to PATH lookup.
func NewMixer(ffmpegPath, ffprobePath string, logger *slog.Logger) *Mixer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Mixer{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		logger:      logger,
		run:         runCommand,
	}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Mix renders spec.OutputPath. A non-zero exit is returned as an error
// carrying the tail of the transcoder output.
func (m *Mixer) Mix(ctx context.Context, spec domain.MixSpec) error {
	if len(spec.Tracks) == 0 {
		return fmt.Errorf("mix spec has no tracks")
	}
	if spec.OutputPath == "" {
		return fmt.Errorf("mix spec has no output path")
	}

	var total float64
	if spec.FadeSeconds > 0 {
		var err error
		if total, err = m.voiceDuration(ctx, spec); err != nil {
			return err
		}
	}

	args := buildMixArgs(spec, total)
	m.debug("running mix job", "args", strings.Join(args, " "))

	out, err := m.run(ctx, m.ffmpegPath, args...)
	if err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, tail(out))
	}
	return nil
}

// voiceDuration sums track durations plus inter-track gaps; the fade-out
// position depends on it.
func (m *Mixer) voiceDuration(ctx context.Context, spec domain.MixSpec) (float64, error) {
	var total float64
	for _, track := range spec.Tracks {
		d, err := m.probe(ctx, track)
		if err != nil {
			return 0, fmt.Errorf("probe %s: %w", track, err)
		}
		total += d
	}
	total += spec.GapSeconds * float64(len(spec.Tracks)-1)
	return total, nil
}

func (m *Mixer) probe(ctx context.Context, path string) (float64, error) {
	out, err := m.run(ctx, m.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w: %s", err, tail(out))
	}
	return parseDuration(string(out))
}

func parseDuration(out string) (float64, error) {
	d, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", strings.TrimSpace(out), err)
	}
	return d, nil
}

// buildMixArgs translates the declarative spec into one ffmpeg filter
// graph: pad every track but the last with the silence gap, concat them
// into the voice chain, apply edge fades, then overlay the looped and
// attenuated bed with duration pinned to the voice chain.
func buildMixArgs(spec domain.MixSpec, voiceSeconds float64) []string {
	n := len(spec.Tracks)
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	for _, track := range spec.Tracks {
		args = append(args, "-i", track)
	}
	if spec.BedPath != "" {
		args = append(args, "-stream_loop", "-1", "-i", spec.BedPath)
	}

	var parts []string
	label := "voice"
	if n == 1 {
		parts = append(parts, "[0:a]anull[voice]")
	} else {
		var concatIn strings.Builder
		for i := 0; i < n; i++ {
			if i < n-1 && spec.GapSeconds > 0 {
				parts = append(parts, fmt.Sprintf("[%d:a]apad=pad_dur=%s[p%d]", i, trimFloat(spec.GapSeconds), i))
				fmt.Fprintf(&concatIn, "[p%d]", i)
			} else {
				fmt.Fprintf(&concatIn, "[%d:a]", i)
			}
		}
		parts = append(parts, fmt.Sprintf("%sconcat=n=%d:v=0:a=1[voice]", concatIn.String(), n))
	}

	if spec.FadeSeconds > 0 {
		fadeOutStart := voiceSeconds - spec.FadeSeconds
		if fadeOutStart < 0 {
			fadeOutStart = 0
		}
		parts = append(parts, fmt.Sprintf("[voice]afade=t=in:st=0:d=%s,afade=t=out:st=%s:d=%s[faded]",
			trimFloat(spec.FadeSeconds), trimFloat(fadeOutStart), trimFloat(spec.FadeSeconds)))
		label = "faded"
	}

	if spec.BedPath != "" {
		parts = append(parts, fmt.Sprintf("[%d:a]volume=%sdB[bed]", n, trimFloat(spec.BedGainDB)))
		parts = append(parts, fmt.Sprintf("[%s][bed]amix=inputs=2:duration=first:dropout_transition=0[mix]", label))
		label = "mix"
	}

	args = append(args, "-filter_complex", strings.Join(parts, ";"))
	args = append(args, "-map", "["+label+"]", spec.OutputPath)
	return args
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func tail(out []byte) string {
	s := strings.TrimSpace(string(out))
	const max = 512
	if len(s) > max {
		s = s[len(s)-max:]
	}
	return s
}

func (m *Mixer) debug(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Debug(msg, args...)
	}
}
