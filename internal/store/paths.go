package store

import "github.com/mindnest/MindNestBack/internal/models"

// All application documents live under one namespace, mirroring the mobile
// app's database layout.
const rootNamespace = "MindNest"

func MessagesRoot() string {
	return rootNamespace + "/messages"
}

// ConversationPath holds the canonical conversation metadata record.
func ConversationPath(id models.ConversationID) string {
	return MessagesRoot() + "/" + string(id)
}

// MessageListPath is the parent of a conversation's message documents.
func MessageListPath(id models.ConversationID) string {
	return ConversationPath(id) + "/messages"
}

func MessagePath(id models.ConversationID, messageID string) string {
	return MessageListPath(id) + "/" + messageID
}

func UserChatsPath(client models.ClientID) string {
	return rootNamespace + "/userChats/" + string(client)
}

func UserChatPath(client models.ClientID, id models.ConversationID) string {
	return UserChatsPath(client) + "/" + string(id)
}

func TherapistChatsPath(therapist models.TherapistID) string {
	return rootNamespace + "/therapistChats/" + string(therapist)
}

func TherapistChatPath(therapist models.TherapistID, id models.ConversationID) string {
	return TherapistChatsPath(therapist) + "/" + string(id)
}

func TherapistsPath() string {
	return rootNamespace + "/therapists"
}

func TherapistPath(therapist models.TherapistID) string {
	return TherapistsPath() + "/" + string(therapist)
}

func UserPath(client models.ClientID) string {
	return rootNamespace + "/users/" + string(client)
}
