package models

import (
	"errors"
	"strings"
)

// ClientID is a client's phone number, the key under which their profile and
// chat index live. Distinct from TherapistID so the two cannot be swapped when
// building a conversation id.
type ClientID string

// TherapistID is the store-assigned key of a therapist profile.
type TherapistID string

// ConversationID identifies the conversation between one client and one
// therapist. The same pair always yields the same id.
type ConversationID string

var ErrInvalidParticipant = errors.New("invalid participant id")

// NewConversationID is the only way to build a ConversationID. The client id
// always comes first.
func NewConversationID(client ClientID, therapist TherapistID) (ConversationID, error) {
	c := strings.TrimSpace(string(client))
	t := strings.TrimSpace(string(therapist))
	if c == "" || t == "" {
		return "", ErrInvalidParticipant
	}
	if strings.ContainsAny(c, "_/") || strings.Contains(t, "/") {
		return "", ErrInvalidParticipant
	}
	return ConversationID(c + "_" + t), nil
}

// Participants splits a conversation id back into its parties. Client ids
// never contain an underscore, so the first one is the separator.
func (id ConversationID) Participants() (ClientID, TherapistID, error) {
	idx := strings.Index(string(id), "_")
	if idx <= 0 || idx == len(id)-1 {
		return "", "", ErrInvalidParticipant
	}
	return ClientID(id[:idx]), TherapistID(id[idx+1:]), nil
}
