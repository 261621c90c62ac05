package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"callcopilot/internal/domain"
)

// RunCapture pulls utterances from the transcript source until ctx ends.
// Fetch errors and panics are logged and retried after the backoff; they
// never end the loop.
func (c *Copilot) RunCapture(ctx context.Context) error {
	log := c.log.Named("capture")
	log.Info("capture loop started")
	defer log.Info("capture loop stopped")

	for ctx.Err() == nil {
		text, err := c.fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Debug("transcript fetch failed", zap.Error(err))
			if !sleepContext(ctx, c.cfg.CaptureBackoff) {
				return nil
			}
			continue
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		log.Debug("utterance", zap.String("text", text))
		c.mailbox.Publish(domain.Utterance{Text: text})
		c.spawnAdvice(ctx, text)
	}
	return nil
}

func (c *Copilot) fetch(ctx context.Context) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transcript source panic: %v", r)
		}
	}()
	return c.source.Next(ctx)
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
