// Package runtime holds the single control thread of the chat core
// and the lifecycle of live subscriptions.
// It contains no chat rule: projections live in services and projection.
package runtime

import (
	"context"
	"kuro/contract"
	"log/slog"
	"sync"
)

var (
	_ contract.Worker     = (*Loop)(nil)
	_ contract.Dispatcher = (*Loop)(nil)
)

// Loop executes dispatched functions one at a time, in FIFO order.
// Store feeds post their snapshot handlers here, which makes every
// handler an atomic step of a single logical thread.
type Loop struct {
	log      *slog.Logger
	mailbox  chan func()
	quit     chan struct{}
	stopOnce sync.Once
}

func NewLoop(log *slog.Logger, mailboxSize int) *Loop {
	return &Loop{
		log:     log,
		mailbox: make(chan func(), mailboxSize),
		quit:    make(chan struct{}),
	}
}

// Dispatch blocks while the mailbox is full, slowing the calling feed down.
// After Close it drops fn.
func (l *Loop) Dispatch(fn func()) {
	select {
	case <-l.quit:
		l.log.Debug("Loop closed, dropping dispatched event")
	case l.mailbox <- fn:
	}
}

// Run drains the mailbox until ctx is done. A panic in a handler escapes
// to the supervisor, which restarts Run with the mailbox intact.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.log.Debug("Context done, stopping loop")
			return ctx.Err()
		case <-l.quit:
			return nil
		case fn := <-l.mailbox:
			fn()
		}
	}
}

// Len is the number of events waiting in the mailbox.
func (l *Loop) Len() int {
	return len(l.mailbox)
}

func (l *Loop) Cap() int {
	return cap(l.mailbox)
}

// Close releases blocked dispatchers and ends Run.
func (l *Loop) Close() {
	l.stopOnce.Do(func() {
		close(l.quit)
	})
}
