package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"callcopilot/internal/advice"
	"callcopilot/internal/mailbox"
	"callcopilot/internal/ports"
	"callcopilot/internal/session"
)

var (
	ErrNothingToSave  = errors.New("nothing to save yet")
	ErrStoreDisabled  = errors.New("lead store is not configured")
	ErrUnknownMission = errors.New("unknown mission")
)

// Config controls loop timing and advisory behavior.
type Config struct {
	HistorySize    int
	DrainInterval  time.Duration
	CaptureBackoff time.Duration
	SaveTimeout    time.Duration
	StatusRevert   time.Duration
	DropStale      bool
	Temperatures   advice.Temperatures
}

func (c Config) withDefaults() Config {
	if c.HistorySize <= 0 {
		c.HistorySize = session.DefaultHistorySize
	}
	if c.DrainInterval <= 0 {
		c.DrainInterval = 50 * time.Millisecond
	}
	if c.CaptureBackoff <= 0 {
		c.CaptureBackoff = 100 * time.Millisecond
	}
	if c.SaveTimeout <= 0 {
		c.SaveTimeout = 15 * time.Second
	}
	if c.StatusRevert <= 0 {
		c.StatusRevert = 3 * time.Second
	}
	return c
}

// Deps are the collaborators of a Copilot. Engine and Store may be nil:
// a nil engine disables advisory calls, a nil store disables saving.
type Deps struct {
	Source   ports.TranscriptSource
	Engine   ports.AdvisoryEngine
	Store    ports.LeadStore
	Missions ports.MissionCatalog
	Panels   ports.Panels
}

// Copilot coordinates the capture loop, advisory tasks and the UI loop.
// Everything in board is owned by the UI goroutine; other goroutines reach
// it only through the mailbox or posted commands.
type Copilot struct {
	source   ports.TranscriptSource
	engine   ports.AdvisoryEngine
	store    ports.LeadStore
	missions ports.MissionCatalog
	panels   ports.Panels
	log      *zap.Logger
	cfg      Config

	state   *session.State
	mailbox *mailbox.Mailbox
	tasks   *taskGroup
	seq     atomic.Uint64
	now     func() time.Time

	// afterFunc schedules the status revert after a save.
	afterFunc func(time.Duration, func())

	commands chan command
	board    board

	// fence is the highest advisory sequence spawned before the last reset
	// or mission load. Only the UI goroutine touches it.
	fence uint64
}

func NewCopilot(deps Deps, cfg Config, log *zap.Logger) *Copilot {
	if log == nil {
		log = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	c := &Copilot{
		source:   deps.Source,
		engine:   deps.Engine,
		store:    deps.Store,
		missions: deps.Missions,
		panels:   deps.Panels,
		log:      log,
		cfg:      cfg,
		state:    session.New(cfg.HistorySize),
		mailbox:  mailbox.New(),
		now:      time.Now,
		commands: make(chan command, 16),
	}
	c.afterFunc = func(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
	c.tasks = newTaskGroup(log.Named("advisory"))
	c.board.reset()
	if c.engine == nil {
		c.mailbox.Publish(adviceEvent(advice.MissingKeyError, 0))
	}
	return c
}

// Run starts the capture loop and the UI loop and blocks until ctx ends.
func (c *Copilot) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.RunUI(gctx) })
	if c.source != nil {
		g.Go(func() error { return c.RunCapture(gctx) })
	}
	return g.Wait()
}

// WaitTasks blocks until every advisory task has published its result.
func (c *Copilot) WaitTasks() {
	c.tasks.Wait()
}

// State exposes the session for read-only inspection.
func (c *Copilot) State() *session.State {
	return c.state
}

type command struct {
	run  func() error
	done chan error
}

// do runs fn on the UI goroutine and waits for its result.
func (c *Copilot) do(ctx context.Context, fn func() error) error {
	cmd := command{run: fn, done: make(chan error, 1)}
	select {
	case c.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post queues fn for the UI goroutine without waiting. It is dropped when
// the command queue is full.
func (c *Copilot) post(fn func()) bool {
	cmd := command{run: func() error { fn(); return nil }}
	select {
	case c.commands <- cmd:
		return true
	default:
		c.log.Warn("ui command queue full, dropping command")
		return false
	}
}
