package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"callcopilot/internal/domain"
)

type sourceStep struct {
	text  string
	err   error
	panic string
}

type fakeSource struct {
	mu    sync.Mutex
	steps []sourceStep
	calls int
	feed  chan string
}

func newFakeSource(steps ...sourceStep) *fakeSource {
	return &fakeSource{steps: steps, feed: make(chan string, 16)}
}

func (s *fakeSource) Next(ctx context.Context) (string, error) {
	s.mu.Lock()
	s.calls++
	if len(s.steps) > 0 {
		step := s.steps[0]
		s.steps = s.steps[1:]
		s.mu.Unlock()
		if step.panic != "" {
			panic(step.panic)
		}
		return step.text, step.err
	}
	s.mu.Unlock()

	select {
	case text := <-s.feed:
		return text, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *fakeSource) snapshotCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeEngine struct {
	mu      sync.Mutex
	respond func(prompt domain.Prompt) (string, error)
	prompts []domain.Prompt
}

func (e *fakeEngine) Complete(_ context.Context, prompt domain.Prompt) (string, error) {
	e.mu.Lock()
	e.prompts = append(e.prompts, prompt)
	respond := e.respond
	e.mu.Unlock()
	if respond == nil {
		return "", nil
	}
	return respond(prompt)
}

func (e *fakeEngine) snapshotPrompts() []domain.Prompt {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.Prompt(nil), e.prompts...)
}

type fakeStore struct {
	mu      sync.Mutex
	err     error
	records []domain.CallRecord
}

func (s *fakeStore) SaveCall(_ context.Context, record domain.CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, record)
	return nil
}

func (s *fakeStore) snapshotRecords() []domain.CallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.CallRecord(nil), s.records...)
}

type fakeMissions struct {
	missions map[string]domain.Mission
}

func (m fakeMissions) List() []domain.MissionEntry {
	out := make([]domain.MissionEntry, 0, len(m.missions))
	for key, mission := range m.missions {
		out = append(out, domain.MissionEntry{Key: key, Label: mission.Name})
	}
	return out
}

func (m fakeMissions) Load(key string) (domain.Mission, error) {
	mission, ok := m.missions[key]
	if !ok {
		return domain.Mission{}, errors.New("mission not found: " + key)
	}
	return mission, nil
}

type panelError struct {
	code   domain.ErrorCode
	detail string
}

type fakePanels struct {
	mu         sync.Mutex
	transcript []string
	notes      []domain.NoteLine
	cues       []domain.CueLine
	statuses   []string
	modes      []domain.CueMode
	dossier    []bool
	errors     []panelError
	resets     int
}

func (p *fakePanels) TranscriptAppended(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transcript = append(p.transcript, text)
}

func (p *fakePanels) NoteAdded(note domain.NoteLine) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notes = append(p.notes, note)
}

func (p *fakePanels) CueAppended(cue domain.CueLine) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cues = append(p.cues, cue)
}

func (p *fakePanels) PanelsReset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resets++
	p.transcript = nil
	p.notes = nil
	p.cues = nil
}

func (p *fakePanels) StatusChanged(status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, status)
}

func (p *fakePanels) ModeChanged(mode domain.CueMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.modes = append(p.modes, mode)
}

func (p *fakePanels) DossierChanged(present bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dossier = append(p.dossier, present)
}

func (p *fakePanels) Error(code domain.ErrorCode, detail string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errors = append(p.errors, panelError{code: code, detail: detail})
}

func (p *fakePanels) snapshotCues() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.cues))
	for _, cue := range p.cues {
		out = append(out, cue.Text)
	}
	return out
}

func (p *fakePanels) snapshotTranscript() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.transcript...)
}

func (p *fakePanels) snapshotErrors() []panelError {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]panelError(nil), p.errors...)
}

func (p *fakePanels) lastStatus() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.statuses) == 0 {
		return ""
	}
	return p.statuses[len(p.statuses)-1]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
