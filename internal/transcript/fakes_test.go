package transcript

import (
	"context"
	"errors"
	"io"
	"sync"

	"callcopilot/internal/domain"
	"callcopilot/internal/ports"
)

type fakeAudioSession struct {
	mu      sync.Mutex
	chunks  [][]byte
	stopped chan struct{}
	once    sync.Once
}

func newFakeAudioSession(chunks ...[]byte) *fakeAudioSession {
	return &fakeAudioSession{chunks: chunks, stopped: make(chan struct{})}
}

func (a *fakeAudioSession) Read(p []byte) (int, error) {
	a.mu.Lock()
	if len(a.chunks) > 0 {
		chunk := a.chunks[0]
		a.chunks = a.chunks[1:]
		a.mu.Unlock()
		return copy(p, chunk), nil
	}
	a.mu.Unlock()
	<-a.stopped
	return 0, io.EOF
}

func (a *fakeAudioSession) Stop() error {
	a.once.Do(func() { close(a.stopped) })
	return nil
}

func (a *fakeAudioSession) Close() error {
	return a.Stop()
}

func (a *fakeAudioSession) isStopped() bool {
	select {
	case <-a.stopped:
		return true
	default:
		return false
	}
}

type fakeAudioCapture struct {
	mu       sync.Mutex
	sessions []*fakeAudioSession
	started  int
}

func (c *fakeAudioCapture) Start(context.Context, ports.AudioConfig) (ports.AudioSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sessions) == 0 {
		return nil, errors.New("no audio device")
	}
	s := c.sessions[0]
	c.sessions = c.sessions[1:]
	c.started++
	return s, nil
}

func (c *fakeAudioCapture) startCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

type fakeStreamingSession struct {
	events chan domain.TranscriptEvent
	done   chan struct{}
	once   sync.Once

	mu   sync.Mutex
	sent [][]byte
	err  error
}

func newFakeStreamingSession(events ...domain.TranscriptEvent) *fakeStreamingSession {
	s := &fakeStreamingSession{
		events: make(chan domain.TranscriptEvent, 64),
		done:   make(chan struct{}),
	}
	for _, ev := range events {
		s.events <- ev
	}
	return s
}

// finish ends the session the way a provider does: no more events, then
// Wait returns err.
func (s *fakeStreamingSession) finish(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.events)
		close(s.done)
	})
}

func (s *fakeStreamingSession) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errors.New("session closed")
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, append([]byte(nil), chunk...))
	return nil
}

func (s *fakeStreamingSession) CloseSend() error {
	s.finish(nil)
	return nil
}

func (s *fakeStreamingSession) Events() <-chan domain.TranscriptEvent {
	return s.events
}

func (s *fakeStreamingSession) Wait() error {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeStreamingSession) Close() error {
	s.finish(nil)
	return s.Wait()
}

func (s *fakeStreamingSession) sentBytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, chunk := range s.sent {
		total += len(chunk)
	}
	return total
}

type fakeProvider struct {
	mu       sync.Mutex
	sessions []*fakeStreamingSession
	err      error
}

func (p *fakeProvider) StartStreaming(context.Context, ports.StreamingConfig) (ports.StreamingSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	if len(p.sessions) == 0 {
		return nil, errors.New("no streaming session")
	}
	s := p.sessions[0]
	p.sessions = p.sessions[1:]
	return s, nil
}
