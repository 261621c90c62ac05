// Package transcript turns live call audio, or plain text lines, into the
// finalized utterances the copilot reacts to.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"callcopilot/internal/ports"
)

var (
	ErrSourceClosed = errors.New("transcript source closed")
	ErrStreamEnded  = errors.New("transcription stream ended")
)

// StreamConfig controls the live audio to transcription pipeline.
type StreamConfig struct {
	Audio     ports.AudioConfig
	Streaming ports.StreamingConfig
	ChunkSize int
	StopGrace time.Duration
}

// StreamSource captures audio, streams it to a transcription provider and
// yields one string per finished utterance. A failed stream is torn down and
// the next call to Next starts a fresh one.
type StreamSource struct {
	capture  ports.AudioCapture
	provider ports.TranscriptionProvider
	cfg      StreamConfig
	log      *zap.Logger

	mu     sync.Mutex
	live   *liveStream
	closed bool
}

func NewStreamSource(capture ports.AudioCapture, provider ports.TranscriptionProvider, cfg StreamConfig, log *zap.Logger) *StreamSource {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = 2 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &StreamSource{
		capture:  capture,
		provider: provider,
		cfg:      cfg,
		log:      log.Named("transcript"),
	}
}

func (s *StreamSource) Next(ctx context.Context) (string, error) {
	live, err := s.current(ctx)
	if err != nil {
		return "", err
	}

	select {
	case text, ok := <-live.utterances:
		if ok {
			return text, nil
		}
		err := live.stop()
		s.discard(live)
		if err == nil {
			err = ErrStreamEnded
		}
		s.log.Warn("transcription stream ended", zap.Error(err))
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close stops the live stream, if any. Next fails with ErrSourceClosed
// afterwards.
func (s *StreamSource) Close() error {
	s.mu.Lock()
	s.closed = true
	live := s.live
	s.live = nil
	s.mu.Unlock()

	if live == nil {
		return nil
	}
	return live.stop()
}

func (s *StreamSource) current(ctx context.Context) (*liveStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSourceClosed
	}
	if s.live != nil {
		return s.live, nil
	}

	audio, err := s.capture.Start(ctx, s.cfg.Audio)
	if err != nil {
		return nil, fmt.Errorf("start audio capture: %w", err)
	}
	stream, err := s.provider.StartStreaming(ctx, s.cfg.Streaming)
	if err != nil {
		_ = audio.Stop()
		return nil, fmt.Errorf("start transcription stream: %w", err)
	}

	s.live = startLiveStream(audio, stream, s.cfg, s.log)
	s.log.Info("transcription stream started")
	return s.live, nil
}

func (s *StreamSource) discard(live *liveStream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live == live {
		s.live = nil
	}
}

// liveStream is one audio session paired with one provider session.
type liveStream struct {
	audio     ports.AudioSession
	stream    ports.StreamingSession
	stopGrace time.Duration
	log       *zap.Logger

	utterances  chan string
	quit        chan struct{}
	pumpDone    chan struct{}
	consumeDone chan struct{}

	pumpErr error

	stopOnce sync.Once
	stopErr  error
}

func startLiveStream(audio ports.AudioSession, stream ports.StreamingSession, cfg StreamConfig, log *zap.Logger) *liveStream {
	l := &liveStream{
		audio:       audio,
		stream:      stream,
		stopGrace:   cfg.StopGrace,
		log:         log,
		utterances:  make(chan string, 16),
		quit:        make(chan struct{}),
		pumpDone:    make(chan struct{}),
		consumeDone: make(chan struct{}),
	}
	go l.pump(cfg.ChunkSize)
	go l.consume()
	return l
}

// pump copies audio into the provider session. When audio ends it closes
// the send side so the provider flushes its last results.
func (l *liveStream) pump(chunkSize int) {
	defer close(l.pumpDone)
	defer func() { _ = l.stream.CloseSend() }()

	buf := make([]byte, chunkSize)
	for {
		n, err := l.audio.Read(buf)
		if n > 0 {
			if sendErr := l.stream.SendAudio(buf[:n]); sendErr != nil {
				l.pumpErr = fmt.Errorf("failed to stream audio: %w", sendErr)
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !l.stopping() {
				l.pumpErr = fmt.Errorf("audio capture error: %w", err)
			}
			return
		}
	}
}

func (l *liveStream) consume() {
	defer close(l.consumeDone)
	defer close(l.utterances)

	var assembler utteranceAssembler
	for ev := range l.stream.Events() {
		if text, ok := assembler.Add(ev); ok {
			if !l.deliver(text) {
				return
			}
		}
	}
	if text, ok := assembler.Drain(); ok {
		l.deliver(text)
	}
}

func (l *liveStream) deliver(text string) bool {
	select {
	case l.utterances <- text:
		return true
	case <-l.quit:
		l.log.Debug("dropping utterance after stop", zap.String("text", text))
		return false
	}
}

func (l *liveStream) stopping() bool {
	select {
	case <-l.quit:
		return true
	default:
		return false
	}
}

// stop tears the pipeline down once and reports the first real failure.
func (l *liveStream) stop() error {
	l.stopOnce.Do(func() {
		close(l.quit)
		audioErr := l.audio.Stop()
		<-l.pumpDone
		streamErr := waitForStream(l.stream, l.stopGrace)
		<-l.consumeDone
		l.stopErr = errors.Join(l.pumpErr, streamErr, audioErr)
	})
	return l.stopErr
}

// waitForStream waits for the provider to finish, closing it after timeout.
func waitForStream(session ports.StreamingSession, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		_ = session.Close()
		return <-done
	}
}
