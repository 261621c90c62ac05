package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"callcopilot/internal/advice"
	"callcopilot/internal/domain"
)

// RequestAdvice spawns a manual advisory task.
func (c *Copilot) RequestAdvice(ctx context.Context) {
	c.spawnAdvice(ctx, advice.ManualTrigger)
}

// spawnAdvice starts one advisory task for trigger. The task is not
// cancelled with ctx; it runs until the engine answers or fails.
func (c *Copilot) spawnAdvice(ctx context.Context, trigger string) {
	seq := c.seq.Add(1)
	taskCtx := context.WithoutCancel(ctx)
	id := uuid.NewString()
	c.tasks.Go(id, func() {
		c.runAdvice(taskCtx, id, trigger, seq)
	}, func(recovered any) {
		c.mailbox.Publish(adviceEvent(fmt.Sprintf("ERROR: advisory task panic: %v", recovered), seq))
	})
}

func (c *Copilot) runAdvice(ctx context.Context, id, trigger string, seq uint64) {
	log := c.log.Named("advisory").With(zap.String("task", id), zap.Uint64("seq", seq))

	if !c.state.HasMission() {
		log.Info("advice ignored, no mission selected")
		c.mailbox.Publish(adviceEvent(advice.NoMissionCue, seq))
		return
	}
	if c.engine == nil {
		log.Debug("advisory engine disabled")
		return
	}

	snap, ok := c.state.BeginAdvice(trigger)
	if !ok {
		c.mailbox.Publish(adviceEvent(advice.NoMissionCue, seq))
		return
	}

	prompt := advice.BuildPrompt(snap, trigger, c.cfg.Temperatures)
	log.Debug("calling advisory engine", zap.String("input", trigger), zap.String("mode", string(snap.Mode)))
	response, err := c.engine.Complete(ctx, prompt)
	if err != nil {
		log.Warn("advisory engine failed", zap.Error(err))
		c.mailbox.Publish(adviceEvent("ERROR: "+err.Error(), seq))
		return
	}
	log.Debug("advisory response", zap.String("response", response))
	c.mailbox.Publish(adviceEvent(strings.TrimSpace(response), seq))
}

func adviceEvent(raw string, seq uint64) domain.Advisory {
	return domain.Advisory{Raw: raw, Seq: seq}
}

// taskGroup supervises fire-and-forget goroutines. A panic is recovered and
// handed to the task's onPanic instead of killing the process.
type taskGroup struct {
	wg  sync.WaitGroup
	log *zap.Logger
}

func newTaskGroup(log *zap.Logger) *taskGroup {
	return &taskGroup{log: log}
}

func (g *taskGroup) Go(id string, fn func(), onPanic func(recovered any)) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				g.log.Error("task panicked", zap.String("task", id), zap.Any("panic", r), zap.Stack("stack"))
				if onPanic != nil {
					onPanic(r)
				}
			}
		}()
		fn()
	}()
}

func (g *taskGroup) Wait() {
	g.wg.Wait()
}
