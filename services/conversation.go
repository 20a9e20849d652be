package services

import (
	"context"
	"kuro/contract"
	"kuro/domain"
	"kuro/projection"
	"kuro/runtime"
	"log/slog"
	"sync"
)

// Conversation is the live ordered view of the one conversation currently selected.
type Conversation struct {
	mu          sync.RWMutex
	log         *slog.Logger
	slot        *runtime.Slot
	counterpart string
	key         domain.ConversationKey
	messages    []domain.Message
	stale       error
	onChange    func()
}

func NewConversation(log *slog.Logger, store contract.ILiveStore, dispatcher contract.Dispatcher) *Conversation {
	c := &Conversation{
		log:      log,
		messages: make([]domain.Message, 0),
	}
	c.slot = runtime.NewSlot(log, store, dispatcher, &c.mu)
	return c
}

// OnChange registers fn, called on the dispatcher after every applied snapshot.
// fn runs with the conversation locked and must not call back into it.
func (c *Conversation) OnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Select closes the current conversation, if any, and opens the one shared
// by selfID and counterpartID. The visible sequence is empty until its first snapshot.
func (c *Conversation) Select(ctx context.Context, selfID, counterpartID string) error {
	key, err := domain.DeriveKey(selfID, counterpartID)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counterpart = counterpartID
	c.key = key
	c.messages = make([]domain.Message, 0)
	c.stale = nil
	if err = c.slot.Open(ctx, domain.MessagesPath(key), c.apply); err != nil {
		c.counterpart = ""
		c.key = ""
		return err
	}
	c.log.Debug("Conversation selected", "key", key, "generation", c.slot.Generation())
	return nil
}

// apply runs with c.mu held.
func (c *Conversation) apply(snapshot contract.Snapshot) {
	if snapshot.Err != nil {
		c.stale = snapshot.Err
		c.log.Warn("Conversation feed failed, keeping last messages", "key", c.key, "error", snapshot.Err)
		c.changed()
		return
	}
	c.stale = nil
	c.messages = projection.Timeline(snapshot)
	c.changed()
}

func (c *Conversation) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}

// Deselect closes the conversation feed and empties the view. Safe to call twice.
func (c *Conversation) Deselect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slot.Close()
	c.counterpart = ""
	c.key = ""
	c.messages = make([]domain.Message, 0)
	c.stale = nil
}

// Messages returns a copy of the visible sequence in insertion order.
func (c *Conversation) Messages() []domain.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	messages := make([]domain.Message, len(c.messages))
	copy(messages, c.messages)
	return messages
}

// Counterpart returns the selected counterpart id, empty when nothing is selected.
func (c *Conversation) Counterpart() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counterpart
}

func (c *Conversation) Key() domain.ConversationKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.key
}

func (c *Conversation) State() runtime.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.slot.State()
}

func (c *Conversation) Stale() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stale
}
