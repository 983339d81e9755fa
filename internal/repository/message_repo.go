package repository

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/mindnest/MindNestBack/internal/models"
	"github.com/mindnest/MindNestBack/internal/store"
)

// MessageRepository owns the append-only message log of each conversation and
// the canonical conversation metadata record that must track it.
type MessageRepository struct {
	store store.Store
	now   func() time.Time
}

func NewMessageRepository(st store.Store) *MessageRepository {
	return &MessageRepository{store: st, now: time.Now}
}

type AppendInput struct {
	Client             models.ClientID
	Therapist          models.TherapistID
	Sender             models.Role
	SenderName         string
	Text               string
	SendKey            string
	ReadByBothOnCreate bool
}

// Append stores one message and updates the conversation metadata in the same
// logical operation. The sender's own read flag is set at creation. A
// non-empty SendKey makes retries safe: if a message with the same key is
// already in the log, it is returned instead of appending a duplicate.
// ListByConversation rejects records that fail Message.Validate, so a record
// that would not validate must never reach the log.
func (r *MessageRepository) Append(
	ctx context.Context,
	conversationID models.ConversationID,
	input AppendInput,
) (*models.Message, error) {
	if strings.TrimSpace(input.Text) == "" || !input.Sender.Valid() {
		return nil, models.ErrInvalidMessage
	}

	if input.SendKey != "" {
		existing, err := r.findBySendKey(ctx, conversationID, input.SendKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	message := models.Message{
		Text:       strings.TrimSpace(input.Text),
		Sender:     input.Sender,
		SenderName: input.SenderName,
		Timestamp:  r.now().UnixMilli(),
		SendKey:    input.SendKey,
	}
	message.MarkReadBy(input.Sender)
	if input.ReadByBothOnCreate {
		message.MarkReadBy(input.Sender.Counterpart())
	}

	id, err := r.store.Push(ctx, store.MessageListPath(conversationID), message)
	if err != nil {
		return nil, err
	}
	message.ID = id

	err = r.store.Update(ctx, store.ConversationPath(conversationID), map[string]any{
		"user":              input.Client,
		"therapist":         input.Therapist,
		"lastMessage":       message.Text,
		"lastMessageTime":   message.Timestamp,
		"lastMessageSender": message.Sender,
	})
	if err != nil {
		return nil, err
	}

	return &message, nil
}

// MarkConversationRead flips the reader's read flag on every counterpart
// message that still has it unset. Idempotent; an absent conversation is a
// no-op.
func (r *MessageRepository) MarkConversationRead(
	ctx context.Context,
	conversationID models.ConversationID,
	reader models.Role,
) error {
	messages, err := r.ListByConversation(ctx, conversationID)
	if err != nil {
		return err
	}

	field := "readByTherapist"
	if reader == models.RoleUser {
		field = "readByUser"
	}

	for _, message := range messages {
		if message.Sender == reader || message.ReadBy(reader) {
			continue
		}
		err := r.store.Update(ctx, store.MessagePath(conversationID, message.ID), map[string]any{
			field: true,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ListByConversation returns the conversation's messages ascending by
// timestamp, with the push id breaking ties so the order stays stable when
// client clocks collide at millisecond resolution.
func (r *MessageRepository) ListByConversation(
	ctx context.Context,
	conversationID models.ConversationID,
) ([]models.Message, error) {
	children, err := r.store.Children(ctx, store.MessageListPath(conversationID))
	if err != nil {
		return nil, err
	}

	messages := make([]models.Message, 0, len(children))
	for id, doc := range children {
		var message models.Message
		if err := json.Unmarshal(doc, &message); err != nil {
			return nil, err
		}
		message.ID = id
		if err := message.Validate(); err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}

	sort.Slice(messages, func(i, j int) bool {
		if messages[i].Timestamp != messages[j].Timestamp {
			return messages[i].Timestamp < messages[j].Timestamp
		}
		return messages[i].ID < messages[j].ID
	})
	return messages, nil
}

// GetConversation reads the canonical metadata record.
func (r *MessageRepository) GetConversation(
	ctx context.Context,
	conversationID models.ConversationID,
) (*models.Conversation, error) {
	doc, err := r.store.Read(ctx, store.ConversationPath(conversationID))
	if err != nil {
		return nil, err
	}
	var conversation models.Conversation
	if err := json.Unmarshal(doc, &conversation); err != nil {
		return nil, err
	}
	return &conversation, nil
}

// ListConversations enumerates every canonical conversation record, keyed by
// conversation id. Dashboard statistics scan these.
func (r *MessageRepository) ListConversations(
	ctx context.Context,
) (map[models.ConversationID]models.Conversation, error) {
	children, err := r.store.Children(ctx, store.MessagesRoot())
	if err != nil {
		return nil, err
	}

	conversations := make(map[models.ConversationID]models.Conversation, len(children))
	for id, doc := range children {
		var conversation models.Conversation
		if err := json.Unmarshal(doc, &conversation); err != nil {
			return nil, err
		}
		conversations[models.ConversationID(id)] = conversation
	}
	return conversations, nil
}

func (r *MessageRepository) findBySendKey(
	ctx context.Context,
	conversationID models.ConversationID,
	key string,
) (*models.Message, error) {
	messages, err := r.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	for i := range messages {
		if messages[i].SendKey == key {
			return &messages[i], nil
		}
	}
	return nil, nil
}
