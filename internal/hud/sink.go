package hud

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"callcopilot/internal/domain"
)

type (
	transcriptMsg string
	noteMsg       domain.NoteLine
	cueMsg        domain.CueLine
	resetMsg      struct{}
	statusMsg     string
	modeMsg       domain.CueMode
	dossierMsg    bool
	missionsMsg   []domain.MissionEntry
)

type errorMsg struct {
	code   domain.ErrorCode
	detail string
}

// Sink forwards panel updates from the copilot's UI loop into a running
// tea.Program. Updates sent before Attach are dropped.
type Sink struct {
	mu   sync.RWMutex
	send func(tea.Msg)
}

func NewSink() *Sink {
	return &Sink{}
}

// Attach starts delivering updates through send, normally program.Send.
func (s *Sink) Attach(send func(tea.Msg)) {
	s.mu.Lock()
	s.send = send
	s.mu.Unlock()
}

func (s *Sink) deliver(msg tea.Msg) {
	s.mu.RLock()
	send := s.send
	s.mu.RUnlock()
	if send != nil {
		send(msg)
	}
}

func (s *Sink) TranscriptAppended(text string)  { s.deliver(transcriptMsg(text)) }
func (s *Sink) NoteAdded(note domain.NoteLine)  { s.deliver(noteMsg(note)) }
func (s *Sink) CueAppended(cue domain.CueLine)  { s.deliver(cueMsg(cue)) }
func (s *Sink) PanelsReset()                    { s.deliver(resetMsg{}) }
func (s *Sink) StatusChanged(status string)     { s.deliver(statusMsg(status)) }
func (s *Sink) ModeChanged(mode domain.CueMode) { s.deliver(modeMsg(mode)) }
func (s *Sink) DossierChanged(present bool)     { s.deliver(dossierMsg(present)) }

func (s *Sink) MissionsChanged(missions []domain.MissionEntry) {
	s.deliver(missionsMsg(missions))
}

func (s *Sink) Error(code domain.ErrorCode, detail string) {
	s.deliver(errorMsg{code: code, detail: detail})
}
