package models

import "errors"

// Role identifies which side of a consultation authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleTherapist Role = "therapist"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleTherapist
}

func (r Role) Counterpart() Role {
	if r == RoleUser {
		return RoleTherapist
	}
	return RoleUser
}

// Message is one chat turn. Read flags only ever move false -> true.
type Message struct {
	ID              string `json:"id,omitempty"`
	Text            string `json:"text"`
	Sender          Role   `json:"sender"`
	SenderName      string `json:"senderName"`
	Timestamp       int64  `json:"timestamp"`
	ReadByUser      bool   `json:"readByUser"`
	ReadByTherapist bool   `json:"readByTherapist"`
	SendKey         string `json:"sendKey,omitempty"`
}

var ErrInvalidMessage = errors.New("invalid message record")

func (m *Message) ReadBy(role Role) bool {
	if role == RoleUser {
		return m.ReadByUser
	}
	return m.ReadByTherapist
}

func (m *Message) MarkReadBy(role Role) {
	if role == RoleUser {
		m.ReadByUser = true
		return
	}
	m.ReadByTherapist = true
}

// Validate checks a record decoded from the store.
func (m *Message) Validate() error {
	if m.Text == "" || !m.Sender.Valid() || m.Timestamp <= 0 {
		return ErrInvalidMessage
	}
	return nil
}

// Conversation is the canonical metadata record at messages/{conversationId}.
// lastMessage/lastMessageTime/lastMessageSender must track the max-timestamp
// message of the conversation's log.
type Conversation struct {
	User              ClientID    `json:"user"`
	Therapist         TherapistID `json:"therapist"`
	LastMessage       string      `json:"lastMessage"`
	LastMessageTime   int64       `json:"lastMessageTime"`
	LastMessageSender Role        `json:"lastMessageSender"`
}

// UserChatEntry is the client-side index entry for one conversation.
type UserChatEntry struct {
	TherapistID     TherapistID `json:"therapistId"`
	TherapistName   string      `json:"therapistName"`
	LastMessage     string      `json:"lastMessage"`
	LastMessageTime int64       `json:"lastMessageTime"`
	Unread          bool        `json:"unread"`
}

// TherapistChatEntry is the therapist-side index entry. Unread is a
// conversation-level flag cleared when the therapist opens the conversation,
// independent of per-message read flags.
type TherapistChatEntry struct {
	UserID          ClientID `json:"userId"`
	UserName        string   `json:"userName"`
	LastMessage     string   `json:"lastMessage"`
	LastMessageTime int64    `json:"lastMessageTime"`
	Unread          bool     `json:"unread"`
	Notes           string   `json:"notes,omitempty"`
}

// DashboardStats are recomputed from the message log on every request, never
// cached.
type DashboardStats struct {
	TotalClients        int `json:"totalClients"`
	ActiveConversations int `json:"activeConversations"`
	UnreadMessages      int `json:"unreadMessages"`
	WeeklyVolume        int `json:"weeklyVolume"`
}

// ClientSummary is one row of the therapist's client list.
type ClientSummary struct {
	UserID          ClientID       `json:"userId"`
	ConversationID  ConversationID `json:"conversationId"`
	Name            string         `json:"name"`
	LastMessage     string         `json:"lastMessage"`
	LastMessageTime int64          `json:"lastMessageTime"`
	Unread          bool           `json:"unread"`
	Notes           string         `json:"notes,omitempty"`
}
