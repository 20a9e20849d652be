package services

import (
	"context"
	"fmt"
	"kuro/contract"
	"kuro/domain"
	"kuro/errors"
	"kuro/store"
	"log/slog"
	"strings"
)

// Publisher appends outgoing messages to conversation logs. It keeps no local
// copy: the sender sees its own message through the conversation feed.
type Publisher struct {
	log   *slog.Logger
	store contract.ILiveStore
}

func NewPublisher(log *slog.Logger, store contract.ILiveStore) *Publisher {
	return &Publisher{log: log, store: store}
}

// Send returns once the store acknowledged the write. The message timestamp
// is assigned by the store, never by the caller.
func (p *Publisher) Send(ctx context.Context, selfID, counterpartID, text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.ErrEmptyMessage
	}
	if counterpartID == "" {
		return errors.ErrNoCounterpart
	}
	key, err := domain.DeriveKey(selfID, counterpartID)
	if err != nil {
		return err
	}
	id, err := p.store.Append(ctx, domain.MessagesPath(key), store.MessageDocument(text, selfID))
	if err != nil {
		p.log.Warn("Message not published", "key", key, "error", err)
		return fmt.Errorf("%w: %w", errors.ErrPublishFailure, err)
	}
	p.log.Debug("Message published", "key", key, "id", id)
	return nil
}
