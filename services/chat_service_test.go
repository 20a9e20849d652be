package services

import (
	"context"
	"kuro/domain"
	"kuro/errors"
	"kuro/mocks"
	"kuro/runtime"
	"kuro/store"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestChatService_Requires_A_Session(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	chat := NewChatService(testLogger(t), mocks.NewMockILiveStore(ctrl), inline{}, runtime.NewRegistry(), NewSession())
	ctx := context.Background()

	req.ErrorIs(chat.Enter(ctx), errors.ErrNotLoggedIn)
	req.ErrorIs(chat.SelectContact(ctx, "u2"), errors.ErrNotLoggedIn)
	req.ErrorIs(chat.Send(ctx, "hi"), errors.ErrNotLoggedIn)
}

func TestChatService_Send_Without_Selection(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	current := mocks.NewMockICurrentUser(ctrl)
	current.EXPECT().CurrentUserID().Return("u1", true).AnyTimes()
	chat := NewChatService(testLogger(t), mocks.NewMockILiveStore(ctrl), inline{}, runtime.NewRegistry(), current)

	req.ErrorIs(chat.Send(context.Background(), "hi"), errors.ErrNoCounterpart)
}

func TestChatService_Enter_Registers_Teardown_Once(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	mockStore := mocks.NewMockILiveStore(ctrl)
	f := newFeeds()
	f.expect(mockStore)
	session := NewSession()
	session.Start("u1", "alice@example.com", "token")
	chat := NewChatService(testLogger(t), mockStore, inline{}, runtime.NewRegistry(), session)
	ctx := context.Background()

	req.NoError(chat.Enter(ctx))
	req.NoError(chat.Enter(ctx))
	req.Equal(1, f.closed["users"])
	f.emit("users", 1, children(userChild("u2", "bob@example.com")))
	req.NoError(chat.SelectContact(ctx, "u2"))

	// When the session ends
	req.True(session.End())

	// Then every feed is closed, the directory's and the conversation's
	req.Equal(2, f.closed["users"])
	req.Equal(2, f.closed["messages/u1_u2"])
	req.Empty(chat.Directory().Contacts())
	req.Empty(chat.Conversation().Counterpart())
}

// The whole path, on a real store and a running loop:
// alice (u1) writes to bob (u2), both see it confirmed by the store.
func TestChat_Alice_Writes_To_Bob(t *testing.T) {
	req := require.New(t)
	log := testLogger(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	liveStore := store.NewBadgerStore(db, log)
	t.Cleanup(func() {
		liveStore.Close()
		_ = db.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop := runtime.NewLoop(log, 64)
	defer loop.Close()
	go func() { _ = loop.Run(ctx) }()

	for _, p := range []domain.Participant{{ID: "u1", Email: "alice@example.com"}, {ID: "u2", Email: "bob@example.com"}} {
		req.NoError(liveStore.Write(ctx, domain.UserPath(p.ID), store.ParticipantDocument(p)))
	}

	registry := runtime.NewRegistry()
	bob := NewDirectory(log, liveStore, loop, registry)
	defer bob.Close()
	alice := NewConversation(log, liveStore, loop)
	defer alice.Deselect()

	// Given bob in the chat and alice on her conversation with bob
	req.NoError(bob.Open(ctx, "u2"))
	req.NoError(alice.Select(ctx, "u1", "u2"))
	req.Eventually(func() bool {
		_, ok := bob.Summary("u1")
		return ok && alice.State() == runtime.Active
	}, 2*time.Second, 10*time.Millisecond)
	req.Empty(alice.Messages())

	// When alice sends "hi"
	req.NoError(NewPublisher(log, liveStore).Send(ctx, "u1", "u2", "hi"))

	// Then alice sees it once, timestamped by the store
	req.Eventually(func() bool { return len(alice.Messages()) == 1 }, 2*time.Second, 10*time.Millisecond)
	message := alice.Messages()[0]
	req.Equal("hi", message.Text)
	req.True(message.IsFrom("u1"))
	req.False(message.Pending())

	// And bob's directory shows it as the last message from alice
	req.Eventually(func() bool {
		summary, ok := bob.Summary("u1")
		return ok && summary.LastMessage != nil && summary.LastMessage.Text == "hi"
	}, 2*time.Second, 10*time.Millisecond)
	req.NotContains(bob.Contacts(), "u2")
	req.Equal([]string{"messages/u1_u2"}, registry.Targets("u2"))
}

func TestChat_Switching_Conversation_Never_Shows_The_Previous_Log(t *testing.T) {
	req := require.New(t)
	log := testLogger(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	liveStore := store.NewBadgerStore(db, log)
	t.Cleanup(func() {
		liveStore.Close()
		_ = db.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop := runtime.NewLoop(log, 64)
	defer loop.Close()
	go func() { _ = loop.Run(ctx) }()

	publisher := NewPublisher(log, liveStore)
	req.NoError(publisher.Send(ctx, "u1", "u2", "for bob"))
	req.NoError(publisher.Send(ctx, "u1", "u3", "for carol"))

	conversation := NewConversation(log, liveStore, loop)
	defer conversation.Deselect()
	req.NoError(conversation.Select(ctx, "u1", "u2"))
	req.NoError(conversation.Select(ctx, "u1", "u3"))

	req.Eventually(func() bool {
		messages := conversation.Messages()
		return len(messages) == 1 && messages[0].Text == "for carol"
	}, 2*time.Second, 10*time.Millisecond)

	// Let any late delivery of the first feed drain through the loop
	time.Sleep(50 * time.Millisecond)
	messages := conversation.Messages()
	req.Len(messages, 1)
	req.Equal("for carol", messages[0].Text)
	req.Equal(domain.ConversationKey("u1_u3"), conversation.Key())
}
