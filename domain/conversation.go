package domain

import (
	"fmt"
	"sort"
	"strings"

	"kuro/errors"
)

// KeySeparator joins the two sorted participant ids of a conversation key.
// Participant ids must never contain it.
const KeySeparator = "_"

// ConversationKey identifies the conversation shared by exactly two participants.
type ConversationKey string

func (k ConversationKey) String() string {
	return string(k)
}

// ValidateID rejects ids that would make conversation keys ambiguous.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", errors.ErrInvalidIdentifier)
	}
	if strings.Contains(id, KeySeparator) {
		return fmt.Errorf("%w: %q contains %q", errors.ErrInvalidIdentifier, id, KeySeparator)
	}
	return nil
}

// DeriveKey returns the same key for (a, b) and (b, a).
func DeriveKey(idA, idB string) (ConversationKey, error) {
	if err := ValidateID(idA); err != nil {
		return "", err
	}
	if err := ValidateID(idB); err != nil {
		return "", err
	}
	ids := []string{idA, idB}
	sort.Strings(ids)
	return ConversationKey(strings.Join(ids, KeySeparator)), nil
}
