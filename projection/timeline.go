// Package projection builds the views shown to a participant from store snapshots.
// Every function is pure: it never mutates its input and never talks to the store.
package projection

import (
	"kuro/contract"
	"kuro/domain"
	"kuro/store"

	"github.com/samber/lo"
)

// Timeline is the visible message sequence of a conversation, in log order.
func Timeline(snapshot contract.Snapshot) []domain.Message {
	return store.DecodeMessages(snapshot)
}

// Contacts keys every participant but self by id.
func Contacts(participants []domain.Participant, selfID string) map[string]domain.Participant {
	others := lo.Filter(participants, func(p domain.Participant, _ int) bool {
		return p.ID != selfID
	})
	return lo.KeyBy(others, func(p domain.Participant) string {
		return p.ID
	})
}

// Summarize takes the last element of the log in arrival order as last message,
// whatever its timestamp says.
func Summarize(contact domain.Participant, log []domain.Message) domain.ConversationSummary {
	summary := domain.ConversationSummary{Counterpart: contact}
	if len(log) > 0 {
		summary.LastMessage = lo.ToPtr(log[len(log)-1])
	}
	return summary
}
