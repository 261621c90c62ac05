package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"callcopilot/internal/bootstrap"
	"callcopilot/internal/config"
	"callcopilot/internal/domain"
	"callcopilot/internal/missions"
	"callcopilot/internal/usecase"
)

const (
	eventTranscript = "copilot:transcript"
	eventNote       = "copilot:note"
	eventCue        = "copilot:cue"
	eventReset      = "copilot:reset"
	eventStatus     = "copilot:status"
	eventMode       = "copilot:mode"
	eventDossier    = "copilot:dossier"
	eventMissions   = "copilot:missions"
	eventError      = "copilot:error"
)

// App is the Wails application root. It hosts the copilot loops and relays
// panel updates to the overlay as runtime events.
type App struct {
	ctx context.Context

	copilot  *usecase.Copilot
	missions *missions.Catalog
	services bootstrap.Services
	cfg      config.Config
	bootErr  error

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(ctx, a, bootstrap.Options{})
	if err != nil {
		a.bootErr = err
		a.Error(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.cfg = services.Config
	a.copilot = services.Copilot
	a.missions = services.Missions

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	log := services.Logger

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		if err := a.copilot.Run(runCtx); err != nil {
			log.Error("copilot stopped", zap.Error(err))
		}
	}()
	go func() {
		defer a.wg.Done()
		err := a.missions.Watch(runCtx, func() {
			runtime.EventsEmit(ctx, eventMissions, a.missions.List())
		})
		if err != nil {
			log.Warn("mission menu will not hot-reload", zap.Error(err))
		}
	}()
}

func (a *App) shutdown(_ context.Context) {
	if a.cancel == nil {
		return
	}
	a.cancel()
	a.wg.Wait()
	a.copilot.WaitTasks()
	_ = a.services.Close()
}

// GetMissions returns the mission menu.
func (a *App) GetMissions() []domain.MissionEntry {
	if a.copilot == nil {
		return nil
	}
	return a.copilot.Missions()
}

// LoadMission activates a mission and shows its opener.
func (a *App) LoadMission(key string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.copilot.LoadMission(a.ctx, key)
}

// ToggleMode flips between script and strategy cues.
func (a *App) ToggleMode() (domain.CueMode, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	return a.copilot.ToggleMode(a.ctx)
}

// Reset clears the call and returns every panel to its placeholder.
func (a *App) Reset() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.copilot.Reset(a.ctx)
}

// RequestAdvice asks for a cue without waiting for the counterpart.
func (a *App) RequestAdvice() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.copilot.RequestAdvice(a.ctx)
	return nil
}

// SetDossier stores prior context about the counterpart.
func (a *App) SetDossier(text string) (bool, error) {
	if err := a.requireReady(); err != nil {
		return false, err
	}
	return a.copilot.SetDossier(a.ctx, text)
}

// GetDossier returns the stored dossier text.
func (a *App) GetDossier() string {
	if a.copilot == nil {
		return ""
	}
	return a.copilot.Dossier()
}

// GetSaveDraft pre-fills the save dialog.
func (a *App) GetSaveDraft() (domain.SaveDraft, error) {
	if err := a.requireReady(); err != nil {
		return domain.SaveDraft{}, err
	}
	return a.copilot.SaveDraft(a.ctx)
}

// SaveCall records the call against a lead.
func (a *App) SaveCall(req domain.SaveRequest) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.copilot.SaveCall(a.ctx, req)
}

// GetDispositions lists the save dialog choices.
func (a *App) GetDispositions() []string {
	dispositions := domain.Dispositions()
	labels := make([]string, 0, len(dispositions))
	for _, d := range dispositions {
		labels = append(labels, d.Label())
	}
	return labels
}

// GetView returns the current panels, used when the overlay reloads.
func (a *App) GetView() (domain.BoardView, error) {
	if err := a.requireReady(); err != nil {
		return domain.BoardView{}, err
	}
	return a.copilot.View(a.ctx)
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	model := a.cfg.Advisory.OpenAIModel
	if a.cfg.Advisory.Provider == config.AdvisorGemini {
		model = a.cfg.Advisory.GeminiModel
	}
	return map[string]string{
		"advisor":          a.cfg.Advisory.Provider,
		"advisorModel":     model,
		"transcriptSource": a.cfg.Transcript.Source,
		"sttModel":         a.cfg.Deepgram.Model,
		"audioInput":       a.cfg.Audio.InputDevice,
		"missionsDir":      a.cfg.Missions.Dir,
		"storeEnabled":     fmt.Sprint(a.cfg.Storage.DatabaseURL != ""),
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.copilot == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// TranscriptAppended emits a finalized utterance.
func (a *App) TranscriptAppended(text string) {
	a.emit(eventTranscript, map[string]string{"text": text})
}

// NoteAdded emits a newly extracted note.
func (a *App) NoteAdded(note domain.NoteLine) {
	a.emit(eventNote, note)
}

// CueAppended emits a cue with its display stamp.
func (a *App) CueAppended(cue domain.CueLine) {
	a.emit(eventCue, map[string]string{
		"text":  cue.Text,
		"stamp": cue.Stamp(),
	})
}

// PanelsReset returns the overlay panels to their placeholders.
func (a *App) PanelsReset() {
	cue, notes := usecase.Placeholders()
	a.emit(eventReset, map[string]string{"cue": cue, "notes": notes})
}

func (a *App) StatusChanged(status string) {
	a.emit(eventStatus, map[string]string{"status": status})
}

func (a *App) ModeChanged(mode domain.CueMode) {
	a.emit(eventMode, map[string]string{"mode": string(mode), "label": modeLabel(mode)})
}

func (a *App) DossierChanged(present bool) {
	a.emit(eventDossier, map[string]bool{"present": present})
}

// Error emits backend errors to the UI.
func (a *App) Error(code domain.ErrorCode, detail string) {
	a.emit(eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func (a *App) emit(name string, payload any) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, name, payload)
}

func modeLabel(mode domain.CueMode) string {
	if mode == domain.CueModeStrategy {
		return "MODE: STRATEGY"
	}
	return "MODE: SCRIPT"
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeMission:
		return "Mission could not be loaded"
	case domain.ErrorCodePersistence:
		return "Save failed"
	case domain.ErrorCodeInternal:
		return "Internal error"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
