// Package mailbox carries events from background goroutines to the UI loop.
package mailbox

import (
	"sync"

	"callcopilot/internal/domain"
)

// Mailbox is an unbounded FIFO queue safe for many producers and one
// consumer. Publish never blocks.
type Mailbox struct {
	mu    sync.Mutex
	queue []domain.Event
}

func New() *Mailbox {
	return &Mailbox{}
}

// Publish enqueues ev behind everything already queued.
func (m *Mailbox) Publish(ev domain.Event) {
	m.mu.Lock()
	m.queue = append(m.queue, ev)
	m.mu.Unlock()
}

// Drain removes and returns every queued event in enqueue order. It returns
// nil immediately when the queue is empty.
func (m *Mailbox) Drain() []domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil
	}
	events := m.queue
	m.queue = nil
	return events
}

func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}
