// Package domain contains core concepts of the chat system.
// This file defines the Participant entity.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"strings"
	"time"
)

// Participant is the public profile of a registered user, stored at users/{ID}.
// Only its owner mutates it, through a profile update.
type Participant struct {
	ID          string
	Email       string
	DisplayName string
	AvatarURL   string
	LastOnline  *time.Time
}

// Name returns the display name, falling back to the email address.
func (p Participant) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Email
}

// Initial is the upper-cased first letter shown as avatar placeholder.
func (p Participant) Initial() string {
	name := p.Name()
	if name == "" {
		return "?"
	}
	return strings.ToUpper(string([]rune(name)[0]))
}
