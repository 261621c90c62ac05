package ports

import (
	"context"
	"io"

	"callcopilot/internal/domain"
)

// TranscriptSource yields finalized utterances. Next blocks until one is
// available; an error is transient and the caller may retry.
type TranscriptSource interface {
	Next(ctx context.Context) (string, error)
}

// AdvisoryEngine completes one advisory prompt.
type AdvisoryEngine interface {
	Complete(ctx context.Context, prompt domain.Prompt) (string, error)
}

// LeadStore upserts a lead by email and records the call.
type LeadStore interface {
	SaveCall(ctx context.Context, record domain.CallRecord) error
}

// MissionCatalog is the fixed mission menu.
type MissionCatalog interface {
	List() []domain.MissionEntry
	Load(key string) (domain.Mission, error)
}

// Panels receives visible-state changes from the UI loop. Every call is
// made from the single goroutine that owns the board.
type Panels interface {
	TranscriptAppended(text string)
	NoteAdded(note domain.NoteLine)
	CueAppended(cue domain.CueLine)
	PanelsReset()
	StatusChanged(status string)
	ModeChanged(mode domain.CueMode)
	DossierChanged(present bool)
	Error(code domain.ErrorCode, detail string)
}

// AudioConfig describes how call audio should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	InterimResults bool
}

// StreamingSession is an active provider websocket session.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan domain.TranscriptEvent
	Wait() error
	Close() error
}

// TranscriptionProvider starts streaming transcription sessions.
type TranscriptionProvider interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}
