package main

import (
	"kuro/domain"
	"kuro/errors"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestFormatMessage(t *testing.T) {
	req := require.New(t)
	color.Disable()
	contacts := map[string]domain.Participant{"u2": {ID: "u2", Email: "bob@example.com", DisplayName: "Bob"}}

	// A message not yet timestamped by the store
	pending := domain.Message{ID: "m1", Text: "hi", SenderID: "u1"}
	req.Equal("[Sending...] you: hi", formatMessage(pending, "u1", contacts))

	// A confirmed message from a contact
	at := time.Date(2026, 1, 2, 15, 4, 0, 0, time.Local)
	confirmed := domain.Message{ID: "m2", Text: "hello", SenderID: "u2", SentAt: lo.ToPtr(at)}
	req.Equal("[15:04] Bob: hello", formatMessage(confirmed, "u1", contacts))

	// An unknown sender falls back to its id
	stranger := domain.Message{ID: "m3", Text: "yo", SenderID: "u9", SentAt: lo.ToPtr(at)}
	req.Equal("[15:04] u9: yo", formatMessage(stranger, "u1", contacts))
}

func TestLastMessage(t *testing.T) {
	req := require.New(t)
	summaries := map[string]domain.ConversationSummary{
		"u2": {Counterpart: domain.Participant{ID: "u2"}, LastMessage: &domain.Message{ID: "m1", Text: "hi"}},
		"u3": {Counterpart: domain.Participant{ID: "u3"}},
	}

	req.Equal("hi (Sending...)", lastMessage(summaries, "u2", nil))
	req.Equal("hi (Sending...) (offline)", lastMessage(summaries, "u2", errors.ErrSubscriptionFailure))
	req.Equal("-", lastMessage(summaries, "u3", nil))

	// A contact whose log feed never opened has no summary
	req.Equal("(unavailable)", lastMessage(summaries, "u4", errors.ErrStoreClosed))
}
