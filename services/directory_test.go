package services

import (
	"context"
	"fmt"
	"kuro/contract"
	"kuro/errors"
	"kuro/mocks"
	"kuro/runtime"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestDirectory(t *testing.T) (*Directory, *feeds, *runtime.Registry) {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockILiveStore(ctrl)
	f := newFeeds()
	f.expect(store)
	registry := runtime.NewRegistry()
	return NewDirectory(testLogger(t), store, inline{}, registry), f, registry
}

func TestDirectory_Excludes_Self_And_Opens_One_Nested_Feed_Per_Contact(t *testing.T) {
	req := require.New(t)
	directory, f, registry := newTestDirectory(t)

	// Given bob entering the chat
	req.NoError(directory.Open(context.Background(), "u2"))
	req.Equal(1, f.opened("users"))

	// When the participant set holds alice, bob and carol
	f.emit("users", 0, children(
		userChild("u1", "alice@example.com"),
		userChild("u2", "bob@example.com"),
		userChild("u3", "carol@example.com"),
	))

	// Then bob sees alice and carol, each with its own log feed
	contacts := directory.Contacts()
	req.Len(contacts, 2)
	req.Contains(contacts, "u1")
	req.Contains(contacts, "u3")
	req.NotContains(contacts, "u2")
	req.Equal(1, f.opened("messages/u1_u2"))
	req.Equal(1, f.opened("messages/u2_u3"))
	req.Equal([]string{"messages/u1_u2", "messages/u2_u3"}, registry.Targets("u2"))

	// And no summary carries a last message yet
	summary, ok := directory.Summary("u1")
	req.True(ok)
	req.Nil(summary.LastMessage)
	req.Equal("alice@example.com", summary.Counterpart.Email)
}

func TestDirectory_Summary_Takes_Last_Message_In_Arrival_Order(t *testing.T) {
	req := require.New(t)
	directory, f, _ := newTestDirectory(t)
	req.NoError(directory.Open(context.Background(), "u2"))
	f.emit("users", 0, children(userChild("u1", "alice@example.com"), userChild("u2", "bob@example.com")))

	// When the log holds two messages, the later one carrying an earlier timestamp
	f.emit("messages/u1_u2", 0, children(
		messageChild("m1", "hi", "u1", 2000),
		messageChild("m2", "hey", "u2", 1000),
	))

	// Then the position wins
	summary, _ := directory.Summary("u1")
	req.NotNil(summary.LastMessage)
	req.Equal("hey", summary.LastMessage.Text)
}

func TestDirectory_Empty_Log_Has_No_Last_Message(t *testing.T) {
	req := require.New(t)
	directory, f, _ := newTestDirectory(t)
	req.NoError(directory.Open(context.Background(), "u1"))
	f.emit("users", 0, children(userChild("u2", "bob@example.com")))

	f.emit("messages/u1_u2", 0, children())

	summary, ok := directory.Summary("u2")
	req.True(ok)
	req.Nil(summary.LastMessage)
}

func TestDirectory_Gone_Contact_Closes_Its_Nested_Feed(t *testing.T) {
	req := require.New(t)
	directory, f, registry := newTestDirectory(t)
	req.NoError(directory.Open(context.Background(), "u1"))
	f.emit("users", 0, children(userChild("u2", "bob@example.com"), userChild("u3", "carol@example.com")))
	f.emit("messages/u1_u3", 0, children(messageChild("m1", "yo", "u3", 1000)))

	// When carol leaves the participant set
	f.emit("users", 0, children(userChild("u2", "bob@example.com")))

	// Then her feed is closed and her late deliveries change nothing
	req.Equal(1, f.closed["messages/u1_u3"])
	req.Equal([]string{"messages/u1_u2"}, registry.Targets("u1"))
	_, ok := directory.Summary("u3")
	req.False(ok)
	f.emit("messages/u1_u3", 0, children(messageChild("m2", "late", "u3", 2000)))
	_, ok = directory.Summary("u3")
	req.False(ok)

	// And bob's feed stays open, never reopened
	req.Equal(0, f.closed["messages/u1_u2"])
	req.Equal(1, f.opened("messages/u1_u2"))
}

func TestDirectory_Failure_Keeps_Last_Contacts_And_Marks_Stale(t *testing.T) {
	req := require.New(t)
	directory, f, _ := newTestDirectory(t)
	req.NoError(directory.Open(context.Background(), "u1"))
	f.emit("users", 0, children(userChild("u2", "bob@example.com")))
	f.emit("messages/u1_u2", 0, children(messageChild("m1", "hi", "u1", 1000)))

	f.emit("users", 0, contract.Snapshot{Err: fmt.Errorf("%w: users", errors.ErrSubscriptionFailure)})

	req.ErrorIs(directory.Stale(), errors.ErrSubscriptionFailure)
	req.Len(directory.Contacts(), 1)
	summary, _ := directory.Summary("u2")
	req.Equal("hi", summary.LastMessage.Text)

	// A nested failure keeps the summary too
	f.emit("users", 0, children(userChild("u2", "bob@example.com")))
	req.NoError(directory.Stale())
	f.emit("messages/u1_u2", 0, contract.Snapshot{Err: fmt.Errorf("%w: log", errors.ErrSubscriptionFailure)})
	req.Error(directory.Stale())
	summary, _ = directory.Summary("u2")
	req.Equal("hi", summary.LastMessage.Text)
}

func TestDirectory_Close_Tears_Down_Every_Feed_Once(t *testing.T) {
	req := require.New(t)
	directory, f, registry := newTestDirectory(t)
	changes := 0
	directory.OnChange(func() { changes++ })
	req.NoError(directory.Open(context.Background(), "u1"))
	f.emit("users", 0, children(userChild("u2", "bob@example.com"), userChild("u3", "carol@example.com")))
	req.Equal(1, changes)

	directory.Close()
	directory.Close()

	req.Equal(1, f.closed["users"])
	req.Equal(1, f.closed["messages/u1_u2"])
	req.Equal(1, f.closed["messages/u1_u3"])
	req.Empty(registry.Targets("u1"))
	req.Empty(directory.Contacts())

	// Deliveries after close are dropped
	f.emit("users", 0, children(userChild("u4", "dave@example.com")))
	req.Empty(directory.Contacts())
	req.Equal(1, changes)
}

func TestDirectory_Open_Rejects_Invalid_Self(t *testing.T) {
	req := require.New(t)
	directory, f, _ := newTestDirectory(t)

	req.ErrorIs(directory.Open(context.Background(), ""), errors.ErrInvalidIdentifier)
	req.Equal(0, f.opened("users"))
}

func TestDirectory_Skips_Contact_With_Invalid_Identifier(t *testing.T) {
	req := require.New(t)
	directory, f, _ := newTestDirectory(t)
	req.NoError(directory.Open(context.Background(), "u1"))

	f.emit("users", 0, children(userChild("u_2", "broken@example.com"), userChild("u3", "carol@example.com")))

	contacts := directory.Contacts()
	req.Len(contacts, 1)
	req.Contains(contacts, "u3")
}

func TestDirectory_Log_Failure_Survives_A_Good_Participant_Snapshot(t *testing.T) {
	req := require.New(t)
	directory, f, _ := newTestDirectory(t)
	req.NoError(directory.Open(context.Background(), "u1"))
	f.emit("users", 0, children(userChild("u2", "bob@example.com")))
	f.emit("messages/u1_u2", 0, children(messageChild("m1", "hi", "u2", 1000)))

	// Given the log with bob failing
	f.emit("messages/u1_u2", 0, contract.Snapshot{Err: fmt.Errorf("%w: log", errors.ErrSubscriptionFailure)})

	// When the participant feed delivers the same set again
	f.emit("users", 0, children(userChild("u2", "bob@example.com")))

	// Then the log failure is still reported
	req.ErrorIs(directory.Stale(), errors.ErrSubscriptionFailure)
	req.ErrorIs(directory.ContactStale("u2"), errors.ErrSubscriptionFailure)
	summary, _ := directory.Summary("u2")
	req.Equal("hi", summary.LastMessage.Text)

	// And only the next good log snapshot clears it
	f.emit("messages/u1_u2", 0, children(messageChild("m1", "hi", "u2", 1000), messageChild("m2", "back", "u2", 2000)))
	req.NoError(directory.Stale())
	req.NoError(directory.ContactStale("u2"))
	summary, _ = directory.Summary("u2")
	req.Equal("back", summary.LastMessage.Text)
}

func TestDirectory_Keeps_Contact_When_Its_Log_Cannot_Be_Opened(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockILiveStore(ctrl)
	// The first subscription on the log fails, later ones go through
	store.EXPECT().
		Subscribe(gomock.Any(), "messages/u1_u2", gomock.Any()).
		Return(nil, errors.ErrStoreClosed)
	f := newFeeds()
	f.expect(store)
	registry := runtime.NewRegistry()
	directory := NewDirectory(testLogger(t), store, inline{}, registry)
	req.NoError(directory.Open(context.Background(), "u1"))

	// When the participant set holds alice and bob
	f.emit("users", 0, children(userChild("u1", "alice@example.com"), userChild("u2", "bob@example.com")))

	// Then bob is listed without summary and the failure is surfaced
	req.Contains(directory.Contacts(), "u2")
	_, ok := directory.Summary("u2")
	req.False(ok)
	req.ErrorIs(directory.Stale(), errors.ErrStoreClosed)
	req.ErrorIs(directory.ContactStale("u2"), errors.ErrSubscriptionFailure)
	req.Empty(registry.Targets("u1"))

	// When the next participant snapshot arrives, the log feed is opened again
	f.emit("users", 0, children(userChild("u1", "alice@example.com"), userChild("u2", "bob@example.com")))
	req.Equal(1, f.opened("messages/u1_u2"))
	req.Equal([]string{"messages/u1_u2"}, registry.Targets("u1"))
	summary, ok := directory.Summary("u2")
	req.True(ok)
	req.Nil(summary.LastMessage)

	// And its first good snapshot clears the failure
	f.emit("messages/u1_u2", 0, children(messageChild("m1", "hi", "u1", 1000)))
	req.NoError(directory.Stale())
	summary, _ = directory.Summary("u2")
	req.Equal("hi", summary.LastMessage.Text)
}

func TestDirectory_Close_Forgets_Self_And_Failures(t *testing.T) {
	req := require.New(t)
	directory, f, registry := newTestDirectory(t)
	req.NoError(directory.Open(context.Background(), "u1"))
	f.emit("users", 0, children(userChild("u2", "bob@example.com")))
	f.emit("messages/u1_u2", 0, contract.Snapshot{Err: fmt.Errorf("%w: log", errors.ErrSubscriptionFailure)})
	req.Error(directory.Stale())

	directory.Close()

	req.NoError(directory.Stale())
	req.Empty(directory.selfID)
	req.Empty(registry.Targets("u1"))

	// Reopening for another participant starts clean
	req.NoError(directory.Open(context.Background(), "u3"))
	f.emit("users", 1, children(userChild("u2", "bob@example.com")))
	req.Equal(1, f.opened("messages/u2_u3"))
	req.NoError(directory.Stale())
}
