package services

import (
	"context"
	"kuro/contract"
	"kuro/errors"
	"kuro/runtime"
	"log/slog"
	"sync"
)

type IChatService interface {
	Enter(ctx context.Context) error
	SelectContact(ctx context.Context, counterpartID string) error
	Send(ctx context.Context, text string) error
	Leave()
}

// ChatService drives the three live views on behalf of the current user.
// Leaving happens either explicitly or when the session ends.
type ChatService struct {
	log          *slog.Logger
	current      contract.ICurrentUser
	directory    *Directory
	conversation *Conversation
	publisher    *Publisher

	mu      sync.Mutex
	entered bool
}

func NewChatService(log *slog.Logger, store contract.ILiveStore, dispatcher contract.Dispatcher,
	registry *runtime.Registry, current contract.ICurrentUser) *ChatService {
	return &ChatService{
		log:          log,
		current:      current,
		directory:    NewDirectory(log, store, dispatcher, registry),
		conversation: NewConversation(log, store, dispatcher),
		publisher:    NewPublisher(log, store),
	}
}

// Enter opens the contact directory of the current user.
func (s *ChatService) Enter(ctx context.Context) error {
	selfID, ok := s.current.CurrentUserID()
	if !ok {
		return errors.ErrNotLoggedIn
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.directory.Open(ctx, selfID); err != nil {
		return err
	}
	if !s.entered {
		s.entered = true
		s.current.OnTeardown(s.Leave)
	}
	s.log.Info("Entered chat", "user", selfID)
	return nil
}

func (s *ChatService) SelectContact(ctx context.Context, counterpartID string) error {
	selfID, ok := s.current.CurrentUserID()
	if !ok {
		return errors.ErrNotLoggedIn
	}
	return s.conversation.Select(ctx, selfID, counterpartID)
}

// Send publishes text to the selected counterpart.
func (s *ChatService) Send(ctx context.Context, text string) error {
	selfID, ok := s.current.CurrentUserID()
	if !ok {
		return errors.ErrNotLoggedIn
	}
	return s.publisher.Send(ctx, selfID, s.conversation.Counterpart(), text)
}

// Leave closes every live view. Safe to call twice.
func (s *ChatService) Leave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversation.Deselect()
	s.directory.Close()
	if s.entered {
		s.entered = false
		s.log.Info("Left chat")
	}
}

func (s *ChatService) Directory() *Directory {
	return s.directory
}

func (s *ChatService) Conversation() *Conversation {
	return s.conversation
}
