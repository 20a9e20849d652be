package store

import (
	"kuro/contract"
	"kuro/domain"
	"time"

	"github.com/samber/lo"
)

// Field names of the persisted users/{id} and messages/{key}/{id} records.
const (
	fieldUID         = "uid"
	fieldEmail       = "email"
	fieldDisplayName = "displayName"
	fieldPhotoURL    = "photoURL"
	fieldLastOnline  = "lastOnline"

	fieldText      = "text"
	fieldSenderID  = "senderId"
	fieldTimestamp = "timestamp"
)

func ParticipantDocument(p domain.Participant) contract.Document {
	doc := contract.Document{
		fieldUID:   p.ID,
		fieldEmail: p.Email,
	}
	if p.DisplayName != "" {
		doc[fieldDisplayName] = p.DisplayName
	}
	if p.AvatarURL != "" {
		doc[fieldPhotoURL] = p.AvatarURL
	}
	if p.LastOnline != nil {
		doc[fieldLastOnline] = p.LastOnline.UnixMilli()
	} else {
		doc[fieldLastOnline] = contract.ServerTimestamp()
	}
	return doc
}

// MessageDocument builds an outgoing message whose timestamp is left to the store.
func MessageDocument(text, senderID string) contract.Document {
	return contract.Document{
		fieldText:      text,
		fieldSenderID:  senderID,
		fieldTimestamp: contract.ServerTimestamp(),
	}
}

// DecodeParticipant falls back to the child key when the record carries no uid.
func DecodeParticipant(child contract.Child) domain.Participant {
	id := stringField(child.Doc, fieldUID)
	if id == "" {
		id = child.ID
	}
	return domain.Participant{
		ID:          id,
		Email:       stringField(child.Doc, fieldEmail),
		DisplayName: stringField(child.Doc, fieldDisplayName),
		AvatarURL:   stringField(child.Doc, fieldPhotoURL),
		LastOnline:  timeField(child.Doc, fieldLastOnline),
	}
}

func DecodeMessage(child contract.Child) domain.Message {
	return domain.Message{
		ID:       child.ID,
		Text:     stringField(child.Doc, fieldText),
		SenderID: stringField(child.Doc, fieldSenderID),
		SentAt:   timeField(child.Doc, fieldTimestamp),
	}
}

func DecodeParticipants(snapshot contract.Snapshot) []domain.Participant {
	return lo.Map(snapshot.Children, func(child contract.Child, _ int) domain.Participant {
		return DecodeParticipant(child)
	})
}

// DecodeMessages keeps the arrival order of the snapshot.
func DecodeMessages(snapshot contract.Snapshot) []domain.Message {
	messages := lo.Map(snapshot.Children, func(child contract.Child, _ int) domain.Message {
		return DecodeMessage(child)
	})
	if messages == nil {
		return []domain.Message{}
	}
	return messages
}

func stringField(doc contract.Document, field string) string {
	value, _ := doc[field].(string)
	return value
}

// timeField reads a millisecond timestamp. A placeholder that was never
// resolved, or any non numeric value, reads as pending.
func timeField(doc contract.Document, field string) *time.Time {
	var millis int64
	switch v := doc[field].(type) {
	case float64:
		millis = int64(v)
	case int64:
		millis = v
	case int:
		millis = int64(v)
	default:
		return nil
	}
	return lo.ToPtr(time.UnixMilli(millis).UTC())
}

// MergeProfile returns a copy of doc with the non empty profile fields applied.
func MergeProfile(doc contract.Document, displayName, avatarURL string) contract.Document {
	merged := lo.Assign(doc)
	if displayName != "" {
		merged[fieldDisplayName] = displayName
	}
	if avatarURL != "" {
		merged[fieldPhotoURL] = avatarURL
	}
	return merged
}

// TouchPresence returns a copy of doc whose lastOnline is left to the store clock.
func TouchPresence(doc contract.Document) contract.Document {
	touched := lo.Assign(doc)
	touched[fieldLastOnline] = contract.ServerTimestamp()
	return touched
}
