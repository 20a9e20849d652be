package domain

// Persisted layout of the live store.
const (
	UsersCollection    = "users"
	MessagesCollection = "messages"
)

func UserPath(participantID string) string {
	return UsersCollection + "/" + participantID
}

func MessagesPath(key ConversationKey) string {
	return MessagesCollection + "/" + key.String()
}
