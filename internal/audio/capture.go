// Package audio captures call audio as raw PCM by running ffmpeg.
package audio

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"callcopilot/internal/ports"
)

const (
	defaultStartupWindow = 250 * time.Millisecond
	defaultStopGrace     = 1200 * time.Millisecond
)

// FFMPEGCapture streams s16le PCM from an input device through ffmpeg's
// stdout.
type FFMPEGCapture struct {
	command       string
	startupWindow time.Duration
	stopGrace     time.Duration
	log           *zap.Logger
}

func NewFFMPEGCapture(command string, log *zap.Logger) *FFMPEGCapture {
	if command == "" {
		command = "ffmpeg"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FFMPEGCapture{
		command:       command,
		startupWindow: defaultStartupWindow,
		stopGrace:     defaultStopGrace,
		log:           log,
	}
}

// Start launches ffmpeg and waits a short window so a missing device or bad
// input format fails here rather than on the first read.
func (c *FFMPEGCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	args := captureArgs(cfg)
	cmd := exec.CommandContext(ctx, c.command, args...)
	stderr := newTailBuffer(4096)
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		detail := stderr.String()
		if err != nil {
			return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, detail)
		}
		return nil, fmt.Errorf("ffmpeg exited before capture started: %s", detail)
	case <-time.After(c.startupWindow):
	}

	c.log.Info("audio capture started",
		zap.String("format", args[5]),
		zap.String("device", args[7]),
		zap.Int("pid", cmd.Process.Pid),
	)
	return &ffmpegSession{
		stdout:    stdout,
		stderr:    stderr,
		process:   cmd.Process,
		waitErr:   waitErr,
		stopGrace: c.stopGrace,
	}, nil
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
