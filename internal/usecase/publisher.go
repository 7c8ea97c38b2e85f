package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"Briefcast/internal/domain"
	"Briefcast/internal/ports"
)

// Publisher delivers the briefing to the messaging endpoint: formatted
// text first with a plain-text fallback, then the audio file. The local
// audio file is removed after a successful upload.
type Publisher struct {
	messenger ports.Messenger
	title     string
	performer string
	logger    *slog.Logger
}

// NewPublisher wires the messenger with attachment metadata.
func NewPublisher(messenger ports.Messenger, title, performer string, logger *slog.Logger) *Publisher {
	return &Publisher{messenger: messenger, title: title, performer: performer, logger: logger}
}

// Publish sends brief (if non-empty) then the audio at audioPath. A
// formatting rejection is recovered by resending plain; any transport
// failure is fatal for the run and not retried. The next scheduled
// trigger starts fresh.
func (p *Publisher) Publish(ctx context.Context, brief, audioPath, caption string) error {
	if brief != "" {
		if err := p.messenger.SendText(ctx, brief, true); err != nil {
			if !errors.Is(err, domain.ErrBadFormat) {
				return fmt.Errorf("send brief: %w", err)
			}
			p.warn("formatted brief rejected, resending plain", "error", err)
			if err := p.messenger.SendText(ctx, brief, false); err != nil {
				return fmt.Errorf("send plain brief: %w", err)
			}
		}
	}

	if err := p.messenger.SendAudio(ctx, audioPath, caption, p.title, p.performer); err != nil {
		return fmt.Errorf("send audio: %w", err)
	}

	if err := os.Remove(audioPath); err != nil && !os.IsNotExist(err) {
		p.warn("remove delivered audio failed", "path", audioPath, "error", err)
	}

	p.debug("briefing published", "audio", audioPath)
	return nil
}

func (p *Publisher) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

func (p *Publisher) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
