package services

import (
	"sort"

	"github.com/mindnest/MindNestBack/internal/models"
)

// SessionState tracks where a client is in the consultation flow.
type SessionState string

const (
	StateNoSelection        SessionState = "no_selection"
	StateTherapistBrowsing  SessionState = "therapist_browsing"
	StateActiveConversation SessionState = "active_conversation"
)

// ConsultationSession is the per-client session a connected device holds:
// which therapist is selected and the locally merged message list. It is not
// safe for concurrent use; each connection owns its own.
type ConsultationSession struct {
	state        SessionState
	client       models.ClientID
	therapist    models.TherapistID
	conversation models.ConversationID
	messages     []models.Message
}

func NewConsultationSession(client models.ClientID) *ConsultationSession {
	return &ConsultationSession{
		state:  StateNoSelection,
		client: client,
	}
}

func (s *ConsultationSession) State() SessionState {
	return s.state
}

func (s *ConsultationSession) Conversation() models.ConversationID {
	return s.conversation
}

// Browse moves to therapist browsing, either from the initial state or from
// an active conversation ("change therapist").
func (s *ConsultationSession) Browse() error {
	if s.state != StateNoSelection && s.state != StateActiveConversation {
		return ErrInvalidStateTransition
	}
	s.state = StateTherapistBrowsing
	return nil
}

// Activate selects a therapist and enters the conversation.
func (s *ConsultationSession) Activate(therapist models.TherapistID) error {
	if s.state != StateTherapistBrowsing {
		return ErrInvalidStateTransition
	}
	conversationID, err := models.NewConversationID(s.client, therapist)
	if err != nil {
		return ErrValidation
	}
	s.therapist = therapist
	s.conversation = conversationID
	s.state = StateActiveConversation
	return nil
}

// RecordSend keeps the session in the active conversation after a confirmed
// send.
func (s *ConsultationSession) RecordSend(message models.Message) error {
	if s.state != StateActiveConversation {
		return ErrInvalidStateTransition
	}
	s.messages = MergeMessages(s.messages, []models.Message{message})
	return nil
}

// Receive merges pushed messages into the local list, deduplicating by id.
func (s *ConsultationSession) Receive(incoming []models.Message) error {
	if s.state != StateActiveConversation {
		return ErrInvalidStateTransition
	}
	s.messages = MergeMessages(s.messages, incoming)
	return nil
}

// Leave resets to the initial state on navigate-away.
func (s *ConsultationSession) Leave() {
	s.state = StateNoSelection
	s.therapist = ""
	s.conversation = ""
	s.messages = nil
}

func (s *ConsultationSession) Messages() []models.Message {
	return s.messages
}

// MergeMessages combines two message lists into one ascending-timestamp list
// with push-id tie-break, dropping duplicates by id. Existing copies win so a
// locally confirmed message is not replaced by a stale echo.
func MergeMessages(existing, incoming []models.Message) []models.Message {
	seen := make(map[string]struct{}, len(existing))
	merged := make([]models.Message, 0, len(existing)+len(incoming))

	for _, message := range existing {
		seen[message.ID] = struct{}{}
		merged = append(merged, message)
	}
	for _, message := range incoming {
		if _, dup := seen[message.ID]; dup {
			continue
		}
		seen[message.ID] = struct{}{}
		merged = append(merged, message)
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Timestamp != merged[j].Timestamp {
			return merged[i].Timestamp < merged[j].Timestamp
		}
		return merged[i].ID < merged[j].ID
	})
	return merged
}
