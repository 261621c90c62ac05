package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"callcopilot/internal/bootstrap"
	"callcopilot/internal/config"
	"callcopilot/internal/hud"
)

type flags struct {
	missionsDir    string
	manifest       string
	transcriptFile string
	advisor        string
	logLevel       string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "copilot-hud",
		Short: "Terminal heads-up display for live sales calls",
		Long: `copilot-hud listens to the call, shows the transcript, and asks the
advisory model for notes and speaking cues.

With COPILOT_TRANSCRIPT_SOURCE=stdin the transcript is read line by line from
--transcript-file (a file or named pipe), since the terminal is busy with keys.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := f.apply(&cfg); err != nil {
				return err
			}
			return run(cmd.Context(), cfg, f)
		},
	}

	cmd.Flags().StringVar(&f.missionsDir, "missions-dir", "", "directory holding mission files (overrides COPILOT_MISSIONS_DIR)")
	cmd.Flags().StringVar(&f.manifest, "manifest", "", "mission manifest path (overrides COPILOT_MISSIONS_MANIFEST)")
	cmd.Flags().StringVar(&f.transcriptFile, "transcript-file", "", "read utterances from this file instead of the microphone")
	cmd.Flags().StringVar(&f.advisor, "advisor", "", "advisory provider: openai or gemini (overrides COPILOT_ADVISOR)")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "log level for the log file (overrides COPILOT_LOG_LEVEL)")
	return cmd
}

func (f flags) apply(cfg *config.Config) error {
	if f.missionsDir != "" {
		cfg.Missions.Dir = f.missionsDir
	}
	if f.manifest != "" {
		cfg.Missions.Manifest = f.manifest
	}
	if f.transcriptFile != "" {
		cfg.Transcript.Source = config.SourceStdin
	}
	if f.advisor != "" {
		switch f.advisor {
		case config.AdvisorOpenAI, config.AdvisorGemini:
			cfg.Advisory.Provider = f.advisor
		default:
			return fmt.Errorf("unsupported advisor %q", f.advisor)
		}
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	if cfg.Transcript.Source == config.SourceStdin && f.transcriptFile == "" {
		return errors.New("the stdin transcript source needs --transcript-file in the HUD")
	}
	return nil
}

func run(parent context.Context, cfg config.Config, f flags) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var transcript io.Reader
	if f.transcriptFile != "" {
		file, err := os.Open(f.transcriptFile)
		if err != nil {
			return fmt.Errorf("open transcript file: %w", err)
		}
		defer file.Close()
		transcript = file
	}

	sink := hud.NewSink()
	services, err := bootstrap.BuildWith(ctx, cfg, sink, bootstrap.Options{
		Stdin:   transcript,
		Console: io.Discard,
	})
	if err != nil {
		return err
	}
	defer services.Close()
	log := services.Logger

	program := tea.NewProgram(hud.NewModel(ctx, services.Copilot), tea.WithAltScreen(), tea.WithContext(ctx))
	sink.Attach(program.Send)

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return services.Copilot.Run(gctx) })
	g.Go(func() error {
		err := services.Missions.Watch(gctx, func() {
			sink.MissionsChanged(services.Missions.List())
		})
		if err != nil {
			log.Warn("mission menu will not hot-reload", zap.Error(err))
		}
		return nil
	})

	_, runErr := program.Run()
	cancel()
	if err := g.Wait(); err != nil {
		log.Error("copilot stopped with error", zap.Error(err))
	}
	services.Copilot.WaitTasks()

	if errors.Is(runErr, tea.ErrProgramKilled) {
		return nil
	}
	return runErr
}
