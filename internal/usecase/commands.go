package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"callcopilot/internal/domain"
	"callcopilot/internal/session"
)

const (
	dossierOpener = "[AI ANALYZING DOSSIER FOR CUSTOM OPENER... PRESS SPACE]"
	defaultOpener = "Select Mission... (Or add Context)"
)

// Missions lists the mission menu.
func (c *Copilot) Missions() []domain.MissionEntry {
	if c.missions == nil {
		return nil
	}
	return c.missions.List()
}

// LoadMission resets the session (keeping the dossier), activates the
// mission and shows its opener without calling the advisory engine.
func (c *Copilot) LoadMission(ctx context.Context, key string) error {
	return c.do(ctx, func() error { return c.loadMission(key) })
}

func (c *Copilot) loadMission(key string) error {
	if c.missions == nil {
		return fmt.Errorf("%w: %s", ErrUnknownMission, key)
	}
	mission, err := c.missions.Load(key)
	if err != nil {
		c.log.Warn("mission load failed", zap.String("mission", key), zap.Error(err))
		c.panels.Error(domain.ErrorCodeMission, err.Error())
		return err
	}

	opener := mission.Opener
	if c.state.Dossier() != "" {
		opener = dossierOpener
	} else if opener == "" {
		opener = defaultOpener
	}

	c.fenceAdvice()
	c.state.Load(mission, opener)
	c.clearPanels()
	c.panels.ModeChanged(c.state.Mode())
	c.appendCue(domain.CueLine{Text: opener, At: c.now()})
	c.setStatus(activeStatus(mission.Name))
	c.log.Info("mission loaded", zap.String("mission", mission.Name))
	return nil
}

// ToggleMode flips between script and strategy cues.
func (c *Copilot) ToggleMode(ctx context.Context) (domain.CueMode, error) {
	var mode domain.CueMode
	err := c.do(ctx, func() error {
		mode = c.state.ToggleMode()
		c.panels.ModeChanged(mode)
		return nil
	})
	return mode, err
}

// Reset returns the session and every panel to the initial state.
func (c *Copilot) Reset(ctx context.Context) error {
	return c.do(ctx, func() error {
		c.reset()
		return nil
	})
}

func (c *Copilot) reset() {
	c.fenceAdvice()
	c.state.Reset()
	c.clearPanels()
	c.board.dossier = false
	c.panels.DossierChanged(false)
	c.panels.ModeChanged(c.state.Mode())
	c.setStatus(statusIdle)
}

// fenceAdvice starts a new call: queued events from the previous one are
// discarded, and advisories spawned so far are ignored when they arrive.
// Sequence-less advisories (startup errors) are kept.
func (c *Copilot) fenceAdvice() {
	discarded := 0
	for _, ev := range c.mailbox.Drain() {
		if adv, ok := ev.(domain.Advisory); ok && adv.Seq == 0 {
			c.mailbox.Publish(adv)
			continue
		}
		discarded++
	}
	c.fence = c.seq.Load()
	if discarded > 0 {
		c.log.Debug("discarded events from previous call", zap.Int("events", discarded), zap.Uint64("fence", c.fence))
	}
}

func (c *Copilot) clearPanels() {
	status := c.board.status
	c.board.reset()
	c.board.status = status
	c.panels.PanelsReset()
}

// SetDossier stores the operator's lead context and reports whether any
// text remains after trimming.
func (c *Copilot) SetDossier(ctx context.Context, text string) (bool, error) {
	var present bool
	err := c.do(ctx, func() error {
		present = c.state.SetDossier(text)
		c.board.dossier = present
		c.panels.DossierChanged(present)
		return nil
	})
	return present, err
}

// Dossier returns the current dossier text.
func (c *Copilot) Dossier() string {
	return c.state.Dossier()
}

// SaveDraft pre-fills the save dialog from the extracted notes.
func (c *Copilot) SaveDraft(ctx context.Context) (domain.SaveDraft, error) {
	var draft domain.SaveDraft
	err := c.do(ctx, func() error {
		if c.board.transcriptText() == "" {
			return ErrNothingToSave
		}
		draft = draftFromNotes(c.state.NoteLines())
		return nil
	})
	return draft, err
}

func draftFromNotes(notes []string) domain.SaveDraft {
	var draft domain.SaveDraft
	for _, note := range notes {
		lower := strings.ToLower(note)
		_, value, ok := strings.Cut(note, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if strings.Contains(lower, "email:") {
			draft.Email = value
		}
		if strings.Contains(lower, "name:") && !strings.Contains(lower, "mission") {
			draft.Name = value
		}
	}
	return draft
}

// SaveCall persists the current call. It runs on the UI goroutine and
// blocks it for the duration of the write, bounded by SaveTimeout.
func (c *Copilot) SaveCall(ctx context.Context, req domain.SaveRequest) error {
	return c.do(ctx, func() error { return c.saveCall(ctx, req) })
}

func (c *Copilot) saveCall(ctx context.Context, req domain.SaveRequest) error {
	transcript := c.board.transcriptText()
	if transcript == "" {
		return ErrNothingToSave
	}
	if c.store == nil {
		c.panels.Error(domain.ErrorCodePersistence, ErrStoreDisabled.Error())
		return ErrStoreDisabled
	}
	disposition := domain.DispositionInterested
	if strings.TrimSpace(string(req.Disposition)) != "" {
		parsed, err := domain.ParseDisposition(string(req.Disposition))
		if err != nil {
			return err
		}
		disposition = parsed
	}

	record := domain.CallRecord{
		MissionName: c.state.MissionName(),
		Transcript:  transcript,
		Notes:       c.state.NoteLines(),
		Email:       strings.TrimSpace(req.Email),
		Name:        strings.TrimSpace(req.Name),
		Disposition: disposition,
	}

	saveCtx, cancel := context.WithTimeout(ctx, c.cfg.SaveTimeout)
	defer cancel()
	if err := c.store.SaveCall(saveCtx, record); err != nil {
		c.log.Error("save call failed", zap.Error(err))
		c.panels.Error(domain.ErrorCodePersistence, err.Error())
		return fmt.Errorf("save call: %w", err)
	}

	c.log.Info("call saved", zap.String("lead", record.Name), zap.String("disposition", record.Disposition.Label()))
	saved := "SAVED: " + record.Name
	c.setStatus(saved)
	active := activeStatus(record.MissionName)
	revert := func() {
		if c.board.status == saved {
			c.setStatus(active)
		}
	}
	c.afterFunc(c.cfg.StatusRevert, func() { c.post(revert) })
	return nil
}

func activeStatus(missionName string) string {
	if missionName == "" {
		missionName = session.NoMissionName
	}
	return "ACTIVE: " + missionName
}
