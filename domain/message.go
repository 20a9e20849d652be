// Package domain contains core concepts of the chat system.
// This file defines Message events and related rules.
// Messages are immutable once appended to a conversation log.
package domain

import "time"

// Message is one entry of a conversation log stored at messages/{key}/{ID}.
type Message struct {
	ID       string // store push id
	Text     string
	SenderID string
	// SentAt is assigned by the store. Nil while the write is still pending.
	SentAt *time.Time
}

func (m Message) Pending() bool {
	return m.SentAt == nil
}

func (m Message) IsFrom(participantID string) bool {
	return m.SenderID == participantID
}

// ConversationSummary is derived from a contact and its conversation log, never stored.
type ConversationSummary struct {
	Counterpart Participant
	LastMessage *Message
}
