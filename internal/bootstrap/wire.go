package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"callcopilot/internal/advice"
	"callcopilot/internal/audio"
	"callcopilot/internal/config"
	"callcopilot/internal/domain"
	"callcopilot/internal/logging"
	"callcopilot/internal/missions"
	"callcopilot/internal/ports"
	"callcopilot/internal/providers/deepgram"
	"callcopilot/internal/providers/gemini"
	"callcopilot/internal/providers/openai"
	"callcopilot/internal/store"
	"callcopilot/internal/transcript"
	"callcopilot/internal/usecase"
)

// Options adjusts the runtime graph for the surface that hosts it.
type Options struct {
	// Stdin feeds the line transcript source. Defaults to os.Stdin.
	Stdin io.Reader
	// Console receives console log output. Defaults to stderr.
	Console io.Writer
}

// Services is the assembled runtime graph.
type Services struct {
	Copilot  *usecase.Copilot
	Missions *missions.Catalog
	Config   config.Config
	Logger   *zap.Logger

	closers []func() error
}

// Close releases the transcript source, the database and the log file.
func (s Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// Build wires all backend dependencies for the current runtime.
func Build(ctx context.Context, panels ports.Panels, opts Options) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	return BuildWith(ctx, cfg, panels, opts)
}

// BuildWith wires the graph from an already loaded configuration.
func BuildWith(ctx context.Context, cfg config.Config, panels ports.Panels, opts Options) (Services, error) {
	log, err := logging.New(logging.Config{
		FilePath:   cfg.Logging.File,
		Level:      cfg.Logging.Level,
		Production: cfg.Logging.Production,
		Console:    opts.Console,
	})
	if err != nil {
		return Services{}, err
	}
	services := Services{Config: cfg, Logger: log}
	services.closers = append(services.closers, func() error {
		_ = log.Sync()
		return nil
	})

	catalog, err := missions.NewCatalog(cfg.Missions.Dir, cfg.Missions.Manifest, log)
	if err != nil {
		_ = services.Close()
		return Services{}, fmt.Errorf("load missions: %w", err)
	}
	services.Missions = catalog

	engine, err := buildEngine(ctx, cfg.Advisory, log)
	if err != nil {
		_ = services.Close()
		return Services{}, err
	}

	source, closeSource := buildSource(cfg, opts, log)
	services.closers = append(services.closers, closeSource)

	deps := usecase.Deps{
		Source:   source,
		Engine:   engine,
		Missions: catalog,
		Panels:   panels,
	}
	if leadStore, closeStore := buildStore(cfg.Storage, log); leadStore != nil {
		deps.Store = leadStore
		services.closers = append(services.closers, closeStore)
	}

	services.Copilot = usecase.NewCopilot(deps, usecase.Config{
		HistorySize:    cfg.Session.HistorySize,
		DrainInterval:  cfg.Session.DrainInterval,
		CaptureBackoff: cfg.Session.CaptureBackoff,
		SaveTimeout:    cfg.Session.SaveTimeout,
		DropStale:      cfg.Session.DropStale,
		Temperatures: advice.Temperatures{
			domain.CueModeScript:   cfg.Advisory.ScriptTemperature,
			domain.CueModeStrategy: cfg.Advisory.StrategyTemperature,
		},
	}, log)

	log.Info("copilot assembled",
		zap.String("advisor", cfg.Advisory.Provider),
		zap.Bool("advisor_ready", engine != nil),
		zap.String("transcript_source", cfg.Transcript.Source),
		zap.Bool("store_ready", deps.Store != nil),
	)
	return services, nil
}

// buildEngine returns nil without an API key; the copilot then shows the
// missing-key error instead of calling out.
func buildEngine(ctx context.Context, cfg config.AdvisoryConfig, log *zap.Logger) (ports.AdvisoryEngine, error) {
	if cfg.APIKey() == "" {
		log.Warn("advisory engine disabled: no API key", zap.String("advisor", cfg.Provider))
		return nil, nil
	}

	switch cfg.Provider {
	case config.AdvisorGemini:
		client, err := gemini.NewClient(ctx, gemini.Config{APIKey: cfg.GeminiKey, Model: cfg.GeminiModel, Timeout: cfg.Timeout}, log)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		client, err := openai.NewClient(openai.Config{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.Timeout,
		}, log)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

func buildSource(cfg config.Config, opts Options, log *zap.Logger) (ports.TranscriptSource, func() error) {
	if cfg.Transcript.Source == config.SourceStdin {
		stdin := opts.Stdin
		if stdin == nil {
			stdin = os.Stdin
		}
		return transcript.NewLineSource(stdin), func() error { return nil }
	}

	source := transcript.NewStreamSource(
		audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand, log),
		deepgram.NewProvider(deepgram.Config{
			APIKey:       cfg.Deepgram.APIKey,
			APIBaseURL:   cfg.Deepgram.APIBaseURL,
			Model:        cfg.Deepgram.Model,
			Language:     cfg.Deepgram.Language,
			SmartFormat:  cfg.Deepgram.SmartFormat,
			Endpointing:  cfg.Deepgram.Endpointing,
			UtteranceEnd: cfg.Deepgram.UtteranceEnd,
		}, log.Named("deepgram")),
		transcript.StreamConfig{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			Streaming: ports.StreamingConfig{
				SampleRate:     cfg.Audio.SampleRate,
				Channels:       cfg.Audio.Channels,
				Encoding:       "linear16",
				InterimResults: true,
			},
			ChunkSize: cfg.Transcript.ChunkSize,
			StopGrace: cfg.Transcript.StreamingGrace,
		},
		log,
	)
	return source, source.Close
}

// buildStore opens and migrates the lead database. A database that cannot be
// reached leaves saving disabled; the operator sees the error on save.
func buildStore(cfg config.StorageConfig, log *zap.Logger) (*store.Repository, func() error) {
	if cfg.DatabaseURL == "" {
		log.Info("lead store disabled: DATABASE_URL is not set")
		return nil, nil
	}
	db, err := store.Open(cfg.DatabaseURL, log)
	if err != nil {
		log.Error("lead store unavailable", zap.Error(err))
		return nil, nil
	}
	if err := store.Migrate(db); err != nil {
		log.Error("lead store migration failed", zap.Error(err))
		_ = store.Close(db)
		return nil, nil
	}
	return store.NewRepository(db, log), func() error { return store.Close(db) }
}
