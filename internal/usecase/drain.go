package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"callcopilot/internal/advice"
	"callcopilot/internal/domain"
	"callcopilot/internal/session"
)

const (
	cuePlaceholder   = "Select a Mission to start..."
	notesPlaceholder = "• Notes will appear here..."
	statusIdle       = "SELECT MISSION"
)

// board is the visible state. Only the UI goroutine touches it.
type board struct {
	transcript []string
	notes      []domain.NoteLine
	cues       []domain.CueLine
	status     string
	dossier    bool
	lastSeq    uint64
}

func (b *board) reset() {
	b.transcript = nil
	b.notes = nil
	b.cues = nil
	b.status = statusIdle
	b.lastSeq = 0
}

func (b *board) transcriptText() string {
	return strings.TrimSpace(strings.Join(b.transcript, "\n"))
}

// RunUI drains the mailbox every DrainInterval and runs posted commands,
// all on the calling goroutine, until ctx ends.
func (c *Copilot) RunUI(ctx context.Context) error {
	log := c.log.Named("ui")
	log.Info("ui loop started", zap.Duration("interval", c.cfg.DrainInterval))
	defer log.Info("ui loop stopped")

	c.panels.PanelsReset()
	c.panels.StatusChanged(c.board.status)

	ticker := time.NewTicker(c.cfg.DrainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.safely("drain", func() error {
				c.drainOnce()
				return nil
			})
		case cmd := <-c.commands:
			err := c.safely("command", cmd.run)
			if cmd.done != nil {
				cmd.done <- err
			}
		}
	}
}

// safely keeps a panic in a drain or command from ending the UI loop.
func (c *Copilot) safely(what string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("ui "+what+" panicked", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("ui %s panic: %v", what, r)
			c.panels.Error(domain.ErrorCodeInternal, err.Error())
		}
	}()
	return fn()
}

// drainOnce applies every queued event in enqueue order.
func (c *Copilot) drainOnce() {
	for _, ev := range c.mailbox.Drain() {
		switch ev := ev.(type) {
		case domain.Utterance:
			c.appendTranscript(ev.Text)
		case domain.Advisory:
			c.applyAdvisory(ev)
		default:
			c.log.Error("unknown mailbox event", zap.String("type", fmt.Sprintf("%T", ev)))
		}
	}
}

func (c *Copilot) appendTranscript(text string) {
	c.board.transcript = append(c.board.transcript, text)
	c.panels.TranscriptAppended(text)
}

func (c *Copilot) applyAdvisory(ev domain.Advisory) {
	if ev.Seq != 0 && ev.Seq <= c.fence {
		c.log.Debug("dropping advisory from previous call", zap.Uint64("seq", ev.Seq), zap.Uint64("fence", c.fence))
		return
	}
	if c.cfg.DropStale && ev.Seq != 0 {
		if ev.Seq < c.board.lastSeq {
			c.log.Debug("dropping stale advisory", zap.Uint64("seq", ev.Seq), zap.Uint64("latest", c.board.lastSeq))
			return
		}
		c.board.lastSeq = ev.Seq
	}

	var instructions []advice.Instruction
	now := c.now()
	c.state.UpdateNotes(func(notes *session.Notes) {
		instructions = advice.Parse(ev.Raw, notes, now)
	})

	for _, in := range instructions {
		switch in := in.(type) {
		case advice.NoteKeyValue:
			c.addNote(domain.NoteLine{Key: in.Key, Value: in.Value, Text: in.Text})
		case advice.NoteBullet:
			c.addNote(domain.NoteLine{Text: in.Text})
		case advice.Cue:
			c.appendCue(domain.CueLine{Text: in.Text, At: in.At})
		}
	}
}

func (c *Copilot) addNote(note domain.NoteLine) {
	c.board.notes = append(c.board.notes, note)
	c.panels.NoteAdded(note)
}

func (c *Copilot) appendCue(cue domain.CueLine) {
	c.board.cues = append(c.board.cues, cue)
	c.panels.CueAppended(cue)
}

func (c *Copilot) setStatus(status string) {
	c.board.status = status
	c.panels.StatusChanged(status)
}

// View returns a copy of the visible panels.
func (c *Copilot) View(ctx context.Context) (domain.BoardView, error) {
	var view domain.BoardView
	err := c.do(ctx, func() error {
		view = domain.BoardView{
			Transcript: append([]string(nil), c.board.transcript...),
			Notes:      append([]domain.NoteLine(nil), c.board.notes...),
			Cues:       append([]domain.CueLine(nil), c.board.cues...),
			Status:     c.board.status,
			Mode:       c.state.Mode(),
			Dossier:    c.board.dossier,
		}
		return nil
	})
	return view, err
}

// Placeholders returns the text shown by empty cue and notes panels.
func Placeholders() (cue string, notes string) {
	return cuePlaceholder, notesPlaceholder
}
