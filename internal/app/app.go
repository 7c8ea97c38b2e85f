package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"Briefcast/internal/backoff"
	"Briefcast/internal/config"
	"Briefcast/internal/domain"
	"Briefcast/internal/infrastructure/ffmpeg"
	"Briefcast/internal/infrastructure/gemini"
	"Briefcast/internal/infrastructure/rss"
	"Briefcast/internal/infrastructure/scheduler"
	"Briefcast/internal/infrastructure/telegram"
	"Briefcast/internal/infrastructure/tts"
	"Briefcast/internal/logging"
	"Briefcast/internal/ports"
	"Briefcast/internal/usecase"
)

// Application wires configuration to adapters, the pipeline, and the
// trigger loop.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	pipeline  *usecase.Pipeline
	scheduler ports.Scheduler
	server    *http.Server
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	feedSource := rss.NewClient(nil, cfg.Research.SearchURL)
	generator := gemini.NewClient(cfg.Generation, baseLogger.With("component", "gemini"))
	synthesizer := tts.NewClient(nil, cfg.Audio.TTSEndpoint)
	mixer := ffmpeg.NewMixer(cfg.Audio.FFmpegPath, cfg.Audio.FFprobePath, baseLogger.With("component", "mixer"))
	messenger := telegram.NewMessenger(
		cfg.Telegram.BotToken,
		cfg.Telegram.ChatID,
		time.Duration(cfg.Telegram.UploadTimeoutSeconds)*time.Second,
	)

	recency := usecase.RecencyWindow{
		Window:      cfg.Recency.Window(),
		Tolerance:   cfg.Recency.Tolerance(),
		DropUndated: cfg.Recency.DropUndated,
	}
	policy := backoff.Policy{
		MaxAttempts: cfg.Generation.Backoff.MaxAttempts,
		Base:        time.Duration(cfg.Generation.Backoff.BaseSeconds) * time.Second,
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Aggregator: usecase.NewAggregator(feedSource, cfg.Feeds, recency,
			cfg.Selection.MaxPerCategory, cfg.Selection.MaxHeadlines,
			baseLogger.With("component", "aggregator")),
		Selector: usecase.NewSelector(generator, cfg.Selection.TopicCount,
			cfg.Selection.MandatoryCategory, baseLogger.With("component", "selector")),
		Researcher: usecase.NewResearcher(feedSource, cfg.Research.Workers,
			cfg.Research.MaxExcerpts, cfg.Research.SnippetMaxChars, recency,
			baseLogger.With("component", "researcher")),
		Writer: usecase.NewWriter(generator, cfg.Scripts, policy,
			time.Duration(cfg.Generation.CooldownSeconds)*time.Second,
			baseLogger.With("component", "writer")),
		Assembler: usecase.NewAssembler(synthesizer, mixer, usecase.AssemblerOptions{
			WorkDir:     cfg.Pipeline.WorkDir,
			BedPath:     cfg.Audio.BedPath,
			BedGainDB:   cfg.Audio.BedGainDB,
			GapSeconds:  cfg.Audio.GapSeconds,
			FadeSeconds: cfg.Audio.FadeSeconds,
		}, baseLogger.With("component", "assembler")),
		Publisher: usecase.NewPublisher(messenger, cfg.Telegram.Title,
			cfg.Telegram.Performer, baseLogger.With("component", "publisher")),
		Logger:         baseLogger.With("component", "pipeline"),
		AllowEmptyScan: cfg.Pipeline.AllowEmptyScan,
	})

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		pipeline:  pipeline,
		scheduler: scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location()),
		server:    keepAliveServer(cfg.Server.Addr),
	}
}

// Run starts the keep-alive endpoint and the cron trigger, optionally
// fires one run immediately, and blocks until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	if a.server != nil {
		go func() {
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("keep-alive server stopped", "error", err)
			}
		}()
	}

	job := func(trigger time.Time) {
		state, err := a.pipeline.Run(ctx, trigger)
		switch {
		case errors.Is(err, domain.ErrRunActive):
			a.logger.Warn("trigger skipped, previous run still active")
		case err != nil:
			a.logger.Error("run ended", "state", state, "error", err)
		default:
			a.logger.Info("run ended", "state", state)
		}
	}

	if err := a.scheduler.Start(ctx, job); err != nil {
		return err
	}
	if a.cfg.Scheduler.RunOnStart {
		go job(time.Now().In(a.cfg.Scheduler.Location()))
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.scheduler.Stop(stopCtx); err != nil {
		a.logger.Warn("scheduler stop", "error", err)
	}
	if a.server != nil {
		if err := a.server.Shutdown(stopCtx); err != nil {
			a.logger.Warn("server shutdown", "error", err)
		}
	}
	return nil
}

// keepAliveServer answers uptime probes from the hosting platform.
func keepAliveServer(addr string) *http.Server {
	if addr == "" {
		return nil
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Briefcast is running")
	})

	return &http.Server{Addr: addr, Handler: router}
}
