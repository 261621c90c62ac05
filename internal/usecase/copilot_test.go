package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"callcopilot/internal/advice"
	"callcopilot/internal/domain"
	"callcopilot/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var sellDrones = domain.Mission{
	Key:    "mission_sell_drones.txt",
	Name:   "SELL DRONES",
	Brief:  "STAGE 1: Open. STAGE 2: Qualify acreage. IF price objection THEN compare to custom application.",
	Opener: "Hi, this is Josh from Kolasa Ag Systems.",
}

func testMissions() fakeMissions {
	return fakeMissions{missions: map[string]domain.Mission{
		sellDrones.Key: sellDrones,
		"mission_blank.txt": {
			Key:  "mission_blank.txt",
			Name: "BLANK",
		},
	}}
}

func startCopilot(t *testing.T, deps Deps, cfg Config, opts ...func(*Copilot)) *Copilot {
	t.Helper()
	if cfg.DrainInterval == 0 {
		cfg.DrainInterval = 5 * time.Millisecond
	}
	if cfg.CaptureBackoff == 0 {
		cfg.CaptureBackoff = time.Millisecond
	}
	c := NewCopilot(deps, cfg, zaptest.NewLogger(t))
	for _, opt := range opts {
		opt(c)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("run returned error: %v", err)
		}
		c.WaitTasks()
	})
	return c
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func TestCopilotSellDronesCall(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	engine := &fakeEngine{respond: func(domain.Prompt) (string, error) {
		return "[NOTE]: Acreage: 400\n[NOTE]: Crop: corn\n[CUE]: \"Ask how they spray today.\" | extra", nil
	}}
	panels := &fakePanels{}
	c := startCopilot(t, Deps{Source: source, Engine: engine, Missions: testMissions(), Panels: panels}, Config{})
	ctx := context.Background()

	if err := c.LoadMission(ctx, sellDrones.Key); err != nil {
		t.Fatalf("load mission failed: %v", err)
	}
	source.feed <- "We farm about 400 acres of corn."

	waitFor(t, "advisory cue", func() bool { return len(panels.snapshotCues()) == 2 })

	cues := panels.snapshotCues()
	if cues[0] != sellDrones.Opener {
		t.Fatalf("expected opener cue, got %q", cues[0])
	}
	if cues[1] != "Ask how they spray today." {
		t.Fatalf("unexpected cue: %q", cues[1])
	}

	view, err := c.View(ctx)
	if err != nil {
		t.Fatalf("view failed: %v", err)
	}
	if len(view.Transcript) != 1 || view.Transcript[0] != "We farm about 400 acres of corn." {
		t.Fatalf("unexpected transcript: %#v", view.Transcript)
	}
	if len(view.Notes) != 2 || view.Notes[0].Key != "Acreage" || view.Notes[0].Value != "400" {
		t.Fatalf("unexpected notes: %#v", view.Notes)
	}
	if view.Status != "ACTIVE: SELL DRONES" {
		t.Fatalf("unexpected status: %q", view.Status)
	}

	prompts := engine.snapshotPrompts()
	if len(prompts) != 1 {
		t.Fatalf("expected one engine call, got %d", len(prompts))
	}
	instruction := prompts[0].Instruction
	if !strings.Contains(instruction, "[ME]: "+sellDrones.Opener+"\n[THEM]: We farm about 400 acres of corn.") {
		t.Fatalf("history missing from prompt: %s", instruction)
	}
	if !strings.HasSuffix(instruction, "--- CURRENT INPUT ---\nWe farm about 400 acres of corn.") {
		t.Fatalf("prompt should end with current input: %s", instruction)
	}
	if !strings.Contains(instruction, advice.NoContext) {
		t.Fatalf("empty dossier should use placeholder context")
	}
	if prompts[0].Temperature != advice.DefaultTemperature {
		t.Fatalf("unexpected temperature: %v", prompts[0].Temperature)
	}
}

func TestCopilotObjectionScenario(t *testing.T) {
	t.Parallel()

	mission := domain.Mission{Key: "mission_objection.txt", Name: "OBJECTION", Brief: "Sell drones", Opener: "Hi, quick question about spraying."}
	source := newFakeSource()
	engine := &fakeEngine{respond: func(domain.Prompt) (string, error) {
		return `[CUE]: "Ask what's blocking the decision"`, nil
	}}
	panels := &fakePanels{}
	missions := fakeMissions{missions: map[string]domain.Mission{mission.Key: mission}}
	c := startCopilot(t, Deps{Source: source, Engine: engine, Missions: missions, Panels: panels}, Config{})

	if err := c.LoadMission(context.Background(), mission.Key); err != nil {
		t.Fatalf("load mission failed: %v", err)
	}
	source.feed <- "Not interested right now"

	waitFor(t, "objection cue", func() bool {
		return containsString(panels.snapshotCues(), "Ask what's blocking the decision")
	})
	if transcript := panels.snapshotTranscript(); len(transcript) != 1 || transcript[0] != "Not interested right now" {
		t.Fatalf("unexpected transcript: %#v", transcript)
	}

	history := c.State().History()
	want := []string{"[ME]: " + mission.Opener, "[THEM]: Not interested right now"}
	if len(history) != len(want) || history[0] != want[0] || history[1] != want[1] {
		t.Fatalf("unexpected history: %#v", history)
	}
	if prompts := engine.snapshotPrompts(); len(prompts) != 1 || !strings.Contains(prompts[0].Instruction, "Sell drones") {
		t.Fatalf("expected the mission brief in the prompt: %#v", prompts)
	}
}

func TestCopilotWithoutMissionSkipsEngine(t *testing.T) {
	t.Parallel()

	source := newFakeSource(sourceStep{text: "hello?"})
	engine := &fakeEngine{respond: func(domain.Prompt) (string, error) { return "[CUE]: nope", nil }}
	panels := &fakePanels{}
	c := startCopilot(t, Deps{Source: source, Engine: engine, Missions: testMissions(), Panels: panels}, Config{})

	waitFor(t, "no mission cue", func() bool {
		return containsString(panels.snapshotCues(), "PLEASE SELECT A MISSION FROM THE MENU.")
	})

	if got := panels.snapshotTranscript(); len(got) != 1 || got[0] != "hello?" {
		t.Fatalf("utterance should still reach the transcript, got %#v", got)
	}
	c.WaitTasks()
	if len(engine.snapshotPrompts()) != 0 {
		t.Fatalf("engine must not be called without a mission")
	}
	if history := c.State().History(); len(history) != 0 {
		t.Fatalf("history must stay empty, got %#v", history)
	}
}

func TestCopilotEngineErrorBecomesCue(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{respond: func(domain.Prompt) (string, error) {
		return "", errors.New("rate limited")
	}}
	panels := &fakePanels{}
	c := startCopilot(t, Deps{Engine: engine, Missions: testMissions(), Panels: panels}, Config{})

	if err := c.LoadMission(context.Background(), sellDrones.Key); err != nil {
		t.Fatalf("load mission failed: %v", err)
	}
	c.RequestAdvice(context.Background())

	waitFor(t, "error cue", func() bool {
		return containsString(panels.snapshotCues(), "ERROR: rate limited")
	})
}

func TestCopilotRecoversAdvisoryPanic(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{respond: func(domain.Prompt) (string, error) { panic("boom") }}
	panels := &fakePanels{}
	c := startCopilot(t, Deps{Engine: engine, Missions: testMissions(), Panels: panels}, Config{})

	if err := c.LoadMission(context.Background(), sellDrones.Key); err != nil {
		t.Fatalf("load mission failed: %v", err)
	}
	c.RequestAdvice(context.Background())

	waitFor(t, "panic cue", func() bool {
		for _, cue := range panels.snapshotCues() {
			if strings.HasPrefix(cue, "ERROR: advisory task panic: boom") {
				return true
			}
		}
		return false
	})

	// The UI loop keeps serving commands after the panic.
	if _, err := c.View(context.Background()); err != nil {
		t.Fatalf("view after panic failed: %v", err)
	}
}

func TestCopilotManualAdviceUsesTrigger(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{respond: func(domain.Prompt) (string, error) { return "[CUE]: Keep going.", nil }}
	panels := &fakePanels{}
	c := startCopilot(t, Deps{Engine: engine, Missions: testMissions(), Panels: panels}, Config{})

	if err := c.LoadMission(context.Background(), sellDrones.Key); err != nil {
		t.Fatalf("load mission failed: %v", err)
	}
	c.RequestAdvice(context.Background())
	waitFor(t, "manual cue", func() bool { return containsString(panels.snapshotCues(), "Keep going.") })

	history := c.State().History()
	if len(history) != 2 || history[1] != session.CounterpartPrefix+advice.ManualTrigger {
		t.Fatalf("unexpected history: %#v", history)
	}
}

func TestCopilotCaptureRetriesAfterFailures(t *testing.T) {
	t.Parallel()

	source := newFakeSource(
		sourceStep{err: errors.New("socket closed")},
		sourceStep{panic: "decoder exploded"},
		sourceStep{text: "   "},
		sourceStep{text: "hello there"},
	)
	panels := &fakePanels{}
	startCopilot(t, Deps{Source: source, Engine: &fakeEngine{}, Panels: panels}, Config{})

	waitFor(t, "utterance after failures", func() bool {
		return containsString(panels.snapshotTranscript(), "hello there")
	})
	if got := panels.snapshotTranscript(); len(got) != 1 {
		t.Fatalf("blank utterances must be skipped, got %#v", got)
	}
	if calls := source.snapshotCalls(); calls < 4 {
		t.Fatalf("expected at least 4 fetches, got %d", calls)
	}
}

func TestCopilotReportsMissingEngine(t *testing.T) {
	t.Parallel()

	panels := &fakePanels{}
	startCopilot(t, Deps{Missions: testMissions(), Panels: panels}, Config{})

	waitFor(t, "missing key cue", func() bool {
		return containsString(panels.snapshotCues(), advice.MissingKeyError)
	})
}

func TestCopilotMissionGateBeforeMissingEngine(t *testing.T) {
	t.Parallel()

	panels := &fakePanels{}
	c := startCopilot(t, Deps{Missions: testMissions(), Panels: panels}, Config{})
	c.RequestAdvice(context.Background())

	waitFor(t, "no mission cue", func() bool {
		return containsString(panels.snapshotCues(), "PLEASE SELECT A MISSION FROM THE MENU.")
	})
}

func TestDrainAppliesEventsInOrder(t *testing.T) {
	t.Parallel()

	panels := &fakePanels{}
	c := NewCopilot(Deps{Engine: &fakeEngine{}, Panels: panels}, Config{}, zap.NewNop())

	c.mailbox.Publish(domain.Utterance{Text: "one"})
	c.mailbox.Publish(domain.Advisory{Raw: "[CUE]: reply"})
	c.mailbox.Publish(domain.Utterance{Text: "two"})
	c.drainOnce()

	if got := panels.snapshotTranscript(); len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Fatalf("unexpected transcript order: %#v", got)
	}
	if got := panels.snapshotCues(); len(got) != 1 || got[0] != "reply" {
		t.Fatalf("unexpected cues: %#v", got)
	}
	if c.mailbox.Len() != 0 {
		t.Fatalf("mailbox should be empty after drain")
	}
}

func TestApplyAdvisoryDeduplicatesNotes(t *testing.T) {
	t.Parallel()

	panels := &fakePanels{}
	c := NewCopilot(Deps{Engine: &fakeEngine{}, Panels: panels}, Config{}, zap.NewNop())

	c.applyAdvisory(domain.Advisory{Raw: "[NOTE]: Budget: 5k\n[CUE]: Ask timing."})
	c.applyAdvisory(domain.Advisory{Raw: "[NOTE]: budget 5K\n[NOTE]: Timeline: spring"})

	notes := c.State().NoteLines()
	if len(notes) != 2 || notes[0] != "Budget: 5k" || notes[1] != "Timeline: spring" {
		t.Fatalf("unexpected notes: %#v", notes)
	}
	if len(c.board.notes) != 2 {
		t.Fatalf("duplicate note must not be displayed twice")
	}
}

func TestApplyAdvisoryStaleDrop(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name      string
		dropStale bool
		wantCues  int
	}{
		{name: "disabled keeps arrival order", dropStale: false, wantCues: 2},
		{name: "enabled drops older result", dropStale: true, wantCues: 1},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			panels := &fakePanels{}
			c := NewCopilot(Deps{Engine: &fakeEngine{}, Panels: panels}, Config{DropStale: tc.dropStale}, zap.NewNop())
			c.applyAdvisory(domain.Advisory{Raw: "[CUE]: newer", Seq: 2})
			c.applyAdvisory(domain.Advisory{Raw: "[CUE]: older", Seq: 1})

			if got := panels.snapshotCues(); len(got) != tc.wantCues || got[0] != "newer" {
				t.Fatalf("unexpected cues: %#v", got)
			}
		})
	}
}

func TestCopilotLoadMissionOpeners(t *testing.T) {
	t.Parallel()

	panels := &fakePanels{}
	c := startCopilot(t, Deps{Engine: &fakeEngine{}, Missions: testMissions(), Panels: panels}, Config{})
	ctx := context.Background()

	if err := c.LoadMission(ctx, "mission_blank.txt"); err != nil {
		t.Fatalf("load mission failed: %v", err)
	}
	if got := panels.snapshotCues(); len(got) != 1 || got[0] != defaultOpener {
		t.Fatalf("expected default opener, got %#v", got)
	}

	present, err := c.SetDossier(ctx, "  Jane Doe runs 400 acres near Ames.  ")
	if err != nil || !present {
		t.Fatalf("set dossier failed: present=%v err=%v", present, err)
	}
	if err := c.LoadMission(ctx, sellDrones.Key); err != nil {
		t.Fatalf("load mission failed: %v", err)
	}
	if got := panels.snapshotCues(); len(got) != 1 || got[0] != dossierOpener {
		t.Fatalf("expected dossier opener, got %#v", got)
	}
	if c.Dossier() != "Jane Doe runs 400 acres near Ames." {
		t.Fatalf("load must keep the dossier, got %q", c.Dossier())
	}
	if history := c.State().History(); len(history) != 1 || history[0] != session.OperatorPrefix+dossierOpener {
		t.Fatalf("unexpected seeded history: %#v", history)
	}
	if panels.lastStatus() != "ACTIVE: SELL DRONES" {
		t.Fatalf("unexpected status: %q", panels.lastStatus())
	}
}

func TestCopilotLoadUnknownMission(t *testing.T) {
	t.Parallel()

	panels := &fakePanels{}
	c := startCopilot(t, Deps{Engine: &fakeEngine{}, Missions: testMissions(), Panels: panels}, Config{})

	if err := c.LoadMission(context.Background(), "missing.txt"); err == nil {
		t.Fatalf("expected load error")
	}
	errs := panels.snapshotErrors()
	if len(errs) != 1 || errs[0].code != domain.ErrorCodeMission {
		t.Fatalf("expected mission error, got %#v", errs)
	}
	if c.State().HasMission() {
		t.Fatalf("failed load must not activate a mission")
	}
}

func TestCopilotResetClearsEverything(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	engine := &fakeEngine{respond: func(domain.Prompt) (string, error) {
		return "[NOTE]: Budget: 5k\n[CUE]: Ask timing.", nil
	}}
	panels := &fakePanels{}
	c := startCopilot(t, Deps{Source: source, Engine: engine, Missions: testMissions(), Panels: panels}, Config{})
	ctx := context.Background()

	if _, err := c.SetDossier(ctx, "Jane Doe"); err != nil {
		t.Fatalf("set dossier failed: %v", err)
	}
	if err := c.LoadMission(ctx, sellDrones.Key); err != nil {
		t.Fatalf("load mission failed: %v", err)
	}
	if _, err := c.ToggleMode(ctx); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	source.feed <- "What does it cost?"
	waitFor(t, "advisory cue", func() bool { return containsString(panels.snapshotCues(), "Ask timing.") })

	if err := c.Reset(ctx); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	view, err := c.View(ctx)
	if err != nil {
		t.Fatalf("view failed: %v", err)
	}
	if len(view.Transcript) != 0 || len(view.Notes) != 0 || len(view.Cues) != 0 {
		t.Fatalf("panels not cleared: %#v", view)
	}
	if view.Status != statusIdle || view.Dossier || view.Mode != domain.CueModeScript {
		t.Fatalf("unexpected view after reset: %#v", view)
	}

	state := c.State()
	if state.HasMission() || state.Dossier() != "" || len(state.History()) != 0 || len(state.NoteLines()) != 0 {
		t.Fatalf("session state not cleared")
	}
}

func TestCopilotIgnoresAdviceFromPreviousCall(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name      string
		startCall func(ctx context.Context, c *Copilot) error
	}{
		{name: "reset", startCall: func(ctx context.Context, c *Copilot) error { return c.Reset(ctx) }},
		{name: "load mission", startCall: func(ctx context.Context, c *Copilot) error {
			return c.LoadMission(ctx, "mission_blank.txt")
		}},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			release := make(chan struct{})
			var once sync.Once
			unblock := func() { once.Do(func() { close(release) }) }

			source := newFakeSource()
			engine := &fakeEngine{respond: func(domain.Prompt) (string, error) {
				<-release
				return "[NOTE]: Budget: 5k\n[CUE]: Old cue", nil
			}}
			panels := &fakePanels{}
			c := startCopilot(t, Deps{Source: source, Engine: engine, Missions: testMissions(), Panels: panels}, Config{})
			t.Cleanup(unblock)
			ctx := context.Background()

			if err := c.LoadMission(ctx, sellDrones.Key); err != nil {
				t.Fatalf("load mission failed: %v", err)
			}
			source.feed <- "What does it cost?"
			waitFor(t, "engine call", func() bool { return len(engine.snapshotPrompts()) == 1 })

			if err := tc.startCall(ctx, c); err != nil {
				t.Fatalf("starting a new call failed: %v", err)
			}
			unblock()
			c.WaitTasks()
			if err := c.do(ctx, func() error { c.drainOnce(); return nil }); err != nil {
				t.Fatalf("drain failed: %v", err)
			}

			view, err := c.View(ctx)
			if err != nil {
				t.Fatalf("view failed: %v", err)
			}
			if len(view.Notes) != 0 || len(c.State().NoteLines()) != 0 {
				t.Fatalf("notes from the previous call leaked: view=%#v state=%#v", view.Notes, c.State().NoteLines())
			}
			if len(view.Transcript) != 0 {
				t.Fatalf("transcript from the previous call leaked: %#v", view.Transcript)
			}
			if containsString(panels.snapshotCues(), "Old cue") {
				t.Fatalf("cue from the previous call leaked: %#v", panels.snapshotCues())
			}
		})
	}
}

func TestResetFencesEarlierAdvisories(t *testing.T) {
	t.Parallel()

	panels := &fakePanels{}
	c := NewCopilot(Deps{Engine: &fakeEngine{}, Panels: panels}, Config{}, zap.NewNop())
	c.seq.Store(2)
	c.mailbox.Publish(domain.Utterance{Text: "old"})
	c.mailbox.Publish(domain.Advisory{Raw: "[NOTE]: Old: yes", Seq: 2})
	c.mailbox.Publish(domain.Advisory{Raw: "[CUE]: startup error"})

	c.reset()
	c.applyAdvisory(domain.Advisory{Raw: "[NOTE]: Late: yes", Seq: 1})
	c.applyAdvisory(domain.Advisory{Raw: "[CUE]: fresh", Seq: 3})
	c.drainOnce()

	if notes := c.State().NoteLines(); len(notes) != 0 {
		t.Fatalf("fenced advisories must not add notes: %#v", notes)
	}
	if got := panels.snapshotTranscript(); len(got) != 0 {
		t.Fatalf("queued utterance must be discarded: %#v", got)
	}
	if got := panels.snapshotCues(); len(got) != 2 || got[0] != "fresh" || got[1] != "startup error" {
		t.Fatalf("unexpected cues: %#v", got)
	}
}

func TestCopilotToggleModeSelectsPersona(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{respond: func(domain.Prompt) (string, error) { return "[CUE]: Pivot to ROI.", nil }}
	panels := &fakePanels{}
	temps := advice.Temperatures{domain.CueModeStrategy: 0.3}
	c := startCopilot(t, Deps{Engine: engine, Missions: testMissions(), Panels: panels}, Config{Temperatures: temps})
	ctx := context.Background()

	if err := c.LoadMission(ctx, sellDrones.Key); err != nil {
		t.Fatalf("load mission failed: %v", err)
	}
	mode, err := c.ToggleMode(ctx)
	if err != nil || mode != domain.CueModeStrategy {
		t.Fatalf("expected strategy mode, got %s err=%v", mode, err)
	}
	c.RequestAdvice(ctx)
	waitFor(t, "strategy cue", func() bool { return containsString(panels.snapshotCues(), "Pivot to ROI.") })

	prompts := engine.snapshotPrompts()
	if !strings.HasPrefix(prompts[0].Instruction, advice.Persona(domain.CueModeStrategy)) {
		t.Fatalf("strategy persona expected")
	}
	if prompts[0].Temperature != 0.3 {
		t.Fatalf("unexpected temperature: %v", prompts[0].Temperature)
	}
}

func TestCopilotSaveCall(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	engine := &fakeEngine{respond: func(domain.Prompt) (string, error) {
		return "[NOTE]: Name: Jane Doe\n[NOTE]: Email: jane@farm.com\n[CUE]: Offer a demo.", nil
	}}
	store := &fakeStore{}
	panels := &fakePanels{}
	var revert func()
	c := startCopilot(t, Deps{Source: source, Engine: engine, Store: store, Missions: testMissions(), Panels: panels}, Config{},
		func(c *Copilot) {
			c.afterFunc = func(_ time.Duration, fn func()) { revert = fn }
		})
	ctx := context.Background()

	if err := c.LoadMission(ctx, sellDrones.Key); err != nil {
		t.Fatalf("load mission failed: %v", err)
	}
	source.feed <- "I'm Jane, reach me at jane@farm.com"
	waitFor(t, "advisory cue", func() bool { return containsString(panels.snapshotCues(), "Offer a demo.") })

	draft, err := c.SaveDraft(ctx)
	if err != nil {
		t.Fatalf("save draft failed: %v", err)
	}
	if draft.Name != "Jane Doe" || draft.Email != "jane@farm.com" {
		t.Fatalf("unexpected draft: %#v", draft)
	}

	req := domain.SaveRequest{Name: draft.Name, Email: draft.Email, Disposition: domain.DispositionCallback}
	if err := c.SaveCall(ctx, req); err != nil {
		t.Fatalf("save call failed: %v", err)
	}

	records := store.snapshotRecords()
	if len(records) != 1 {
		t.Fatalf("expected one saved record, got %d", len(records))
	}
	got := records[0]
	if got.MissionName != "SELL DRONES" || got.Transcript != "I'm Jane, reach me at jane@farm.com" {
		t.Fatalf("unexpected record: %#v", got)
	}
	if len(got.Notes) != 2 || got.Disposition != domain.DispositionCallback {
		t.Fatalf("unexpected record notes or disposition: %#v", got)
	}
	if panels.lastStatus() != "SAVED: Jane Doe" {
		t.Fatalf("unexpected status: %q", panels.lastStatus())
	}

	if revert == nil {
		t.Fatalf("expected status revert to be scheduled")
	}
	revert()
	waitFor(t, "status revert", func() bool { return panels.lastStatus() == "ACTIVE: SELL DRONES" })
}

func TestCopilotSaveCallFailures(t *testing.T) {
	t.Parallel()

	t.Run("nothing to save", func(t *testing.T) {
		t.Parallel()
		c := startCopilot(t, Deps{Engine: &fakeEngine{}, Store: &fakeStore{}, Panels: &fakePanels{}}, Config{})
		if err := c.SaveCall(context.Background(), domain.SaveRequest{}); !errors.Is(err, ErrNothingToSave) {
			t.Fatalf("expected ErrNothingToSave, got %v", err)
		}
		if _, err := c.SaveDraft(context.Background()); !errors.Is(err, ErrNothingToSave) {
			t.Fatalf("expected ErrNothingToSave from draft, got %v", err)
		}
	})

	t.Run("store error", func(t *testing.T) {
		t.Parallel()
		source := newFakeSource(sourceStep{text: "hello"})
		panels := &fakePanels{}
		store := &fakeStore{err: errors.New("connection refused")}
		c := startCopilot(t, Deps{Source: source, Engine: &fakeEngine{}, Store: store, Panels: panels}, Config{})
		waitFor(t, "transcript", func() bool { return len(panels.snapshotTranscript()) == 1 })

		err := c.SaveCall(context.Background(), domain.SaveRequest{Name: "Jane"})
		if err == nil || !strings.Contains(err.Error(), "connection refused") {
			t.Fatalf("expected store error, got %v", err)
		}
		errs := panels.snapshotErrors()
		if len(errs) != 1 || errs[0].code != domain.ErrorCodePersistence {
			t.Fatalf("expected persistence error, got %#v", errs)
		}
		if strings.HasPrefix(panels.lastStatus(), "SAVED") {
			t.Fatalf("failed save must not report success")
		}
	})

	t.Run("unknown disposition", func(t *testing.T) {
		t.Parallel()
		source := newFakeSource(sourceStep{text: "hello"})
		panels := &fakePanels{}
		store := &fakeStore{}
		c := startCopilot(t, Deps{Source: source, Engine: &fakeEngine{}, Store: store, Panels: panels}, Config{},
			func(c *Copilot) { c.afterFunc = func(time.Duration, func()) {} })
		waitFor(t, "transcript", func() bool { return len(panels.snapshotTranscript()) == 1 })

		if err := c.SaveCall(context.Background(), domain.SaveRequest{Disposition: "MAYBE"}); err == nil {
			t.Fatalf("expected unknown disposition error")
		}
		if err := c.SaveCall(context.Background(), domain.SaveRequest{Disposition: "not interested"}); err != nil {
			t.Fatalf("label form should be accepted: %v", err)
		}
		records := store.snapshotRecords()
		if len(records) != 1 || records[0].Disposition != domain.DispositionNotInterested {
			t.Fatalf("unexpected records: %#v", records)
		}
	})

	t.Run("store disabled", func(t *testing.T) {
		t.Parallel()
		source := newFakeSource(sourceStep{text: "hello"})
		panels := &fakePanels{}
		c := startCopilot(t, Deps{Source: source, Engine: &fakeEngine{}, Panels: panels}, Config{})
		waitFor(t, "transcript", func() bool { return len(panels.snapshotTranscript()) == 1 })

		if err := c.SaveCall(context.Background(), domain.SaveRequest{}); !errors.Is(err, ErrStoreDisabled) {
			t.Fatalf("expected ErrStoreDisabled, got %v", err)
		}
	})
}

func TestDraftFromNotes(t *testing.T) {
	t.Parallel()

	draft := draftFromNotes([]string{
		"Mission Name: Sell drones",
		"Name: Jane Doe",
		"Budget 5k",
		"Email: jane@farm.com",
	})
	if draft.Name != "Jane Doe" || draft.Email != "jane@farm.com" {
		t.Fatalf("unexpected draft: %#v", draft)
	}
}

func TestCopilotCommandPanicIsRecovered(t *testing.T) {
	t.Parallel()

	panels := &fakePanels{}
	c := startCopilot(t, Deps{Engine: &fakeEngine{}, Panels: panels}, Config{})

	err := c.do(context.Background(), func() error { panic("bad command") })
	if err == nil || !strings.Contains(err.Error(), "bad command") {
		t.Fatalf("expected recovered panic error, got %v", err)
	}
	errs := panels.snapshotErrors()
	if len(errs) != 1 || errs[0].code != domain.ErrorCodeInternal {
		t.Fatalf("expected internal error, got %#v", errs)
	}
	if _, err := c.View(context.Background()); err != nil {
		t.Fatalf("ui loop should survive panic: %v", err)
	}
}

func TestCopilotCommandRespectsContext(t *testing.T) {
	t.Parallel()

	c := NewCopilot(Deps{Engine: &fakeEngine{}, Panels: &fakePanels{}}, Config{}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.View(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
