package runtime

import (
	"context"
	"fmt"
	"kuro/contract"
	"kuro/errors"
	"log/slog"
	"sync"
)

type State int

const (
	Unsubscribed State = iota
	Subscribing
	Active
)

func (s State) String() string {
	switch s {
	case Subscribing:
		return "subscribing"
	case Active:
		return "active"
	default:
		return "unsubscribed"
	}
}

// Slot holds at most one live subscription at a time.
// Every Open bumps the generation; a delivery tagged with an older generation,
// or arriving after Close, is dropped without reaching the handler.
//
// Slot is not safe for concurrent use by itself. Its owner passes the lock that
// guards its own projection: the owner holds it around Open and Close, and the
// slot takes it around every delivery.
type Slot struct {
	log        *slog.Logger
	store      contract.ILiveStore
	dispatcher contract.Dispatcher
	guard      sync.Locker

	target      string
	state       State
	generation  uint64
	unsubscribe contract.Unsubscribe
}

func NewSlot(log *slog.Logger, store contract.ILiveStore, dispatcher contract.Dispatcher, guard sync.Locker) *Slot {
	return &Slot{
		log:        log,
		store:      store,
		dispatcher: dispatcher,
		guard:      guard,
	}
}

// Open closes the current subscription, then subscribes to target.
// onSnapshot runs on the dispatcher with the guard held.
func (s *Slot) Open(ctx context.Context, target string, onSnapshot contract.SnapshotFunc) error {
	s.Close()

	s.generation++
	generation := s.generation
	s.target = target
	s.state = Subscribing

	unsubscribe, err := s.store.Subscribe(ctx, target, func(snapshot contract.Snapshot) {
		s.dispatcher.Dispatch(func() {
			s.deliver(generation, snapshot, onSnapshot)
		})
	})
	if err != nil {
		s.state = Unsubscribed
		s.target = ""
		return fmt.Errorf("%w: %s: %w", errors.ErrSubscriptionFailure, target, err)
	}
	s.unsubscribe = unsubscribe
	return nil
}

func (s *Slot) deliver(generation uint64, snapshot contract.Snapshot, onSnapshot contract.SnapshotFunc) {
	s.guard.Lock()
	defer s.guard.Unlock()

	if generation != s.generation || s.state == Unsubscribed {
		s.log.Debug("Dropping superseded snapshot",
			"path", snapshot.Path, "generation", generation, "current", s.generation)
		return
	}
	if snapshot.Err == nil {
		s.state = Active
	}
	onSnapshot(snapshot)
}

// Close cancels the feed. Calling it on a closed slot does nothing.
func (s *Slot) Close() {
	if s.state == Unsubscribed {
		return
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.state = Unsubscribed
	s.target = ""
}

func (s *Slot) State() State {
	return s.state
}

func (s *Slot) Target() string {
	return s.target
}

func (s *Slot) Generation() uint64 {
	return s.generation
}
