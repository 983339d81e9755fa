package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/mindnest/MindNestBack/internal/models"
	"github.com/mindnest/MindNestBack/internal/store"
)

// ChatIndexRepository maintains the two denormalized per-conversation index
// views. Both are rebuildable caches of the message log; the log is the
// source of truth whenever they disagree.
type ChatIndexRepository struct {
	store store.Store
	log   *logrus.Logger
}

func NewChatIndexRepository(st store.Store, log *logrus.Logger) *ChatIndexRepository {
	return &ChatIndexRepository{store: st, log: log}
}

// Participants carries the display names needed to project index entries.
type Participants struct {
	Client        models.ClientID
	ClientName    string
	Therapist     models.TherapistID
	TherapistName string
}

// Project updates both index entries for a just-appended message. An entry's
// unread flag is set only when the counterpart authored the message and its
// read flag for the entry owner is still unset, so a welcome message the
// client has implicitly read does not light up their index.
func (r *ChatIndexRepository) Project(
	ctx context.Context,
	conversationID models.ConversationID,
	p Participants,
	message *models.Message,
) error {
	err := r.store.Update(ctx, store.UserChatPath(p.Client, conversationID), map[string]any{
		"therapistId":     p.Therapist,
		"therapistName":   p.TherapistName,
		"lastMessage":     message.Text,
		"lastMessageTime": message.Timestamp,
		"unread":          message.Sender == models.RoleTherapist && !message.ReadByUser,
	})
	if err != nil {
		return err
	}

	return r.store.Update(ctx, store.TherapistChatPath(p.Therapist, conversationID), map[string]any{
		"userId":          p.Client,
		"userName":        p.ClientName,
		"lastMessage":     message.Text,
		"lastMessageTime": message.Timestamp,
		"unread":          message.Sender == models.RoleUser && !message.ReadByTherapist,
	})
}

// ClearTherapistUnread drops the conversation-level unread flag when the
// therapist opens the conversation. No-op if the entry does not exist.
func (r *ChatIndexRepository) ClearTherapistUnread(
	ctx context.Context,
	therapist models.TherapistID,
	conversationID models.ConversationID,
) error {
	path := store.TherapistChatPath(therapist, conversationID)
	if _, err := r.store.Read(ctx, path); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	return r.store.Update(ctx, path, map[string]any{"unread": false})
}

// ClearUserUnread is the client-side counterpart.
func (r *ChatIndexRepository) ClearUserUnread(
	ctx context.Context,
	client models.ClientID,
	conversationID models.ConversationID,
) error {
	path := store.UserChatPath(client, conversationID)
	if _, err := r.store.Read(ctx, path); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	return r.store.Update(ctx, path, map[string]any{"unread": false})
}

func (r *ChatIndexRepository) GetUserEntries(
	ctx context.Context,
	client models.ClientID,
) (map[models.ConversationID]models.UserChatEntry, error) {
	children, err := r.store.Children(ctx, store.UserChatsPath(client))
	if err != nil {
		return nil, err
	}

	entries := make(map[models.ConversationID]models.UserChatEntry, len(children))
	for id, doc := range children {
		var entry models.UserChatEntry
		if err := json.Unmarshal(doc, &entry); err != nil {
			return nil, err
		}
		entries[models.ConversationID(id)] = entry
	}
	return entries, nil
}

func (r *ChatIndexRepository) GetTherapistEntries(
	ctx context.Context,
	therapist models.TherapistID,
) (map[models.ConversationID]models.TherapistChatEntry, error) {
	children, err := r.store.Children(ctx, store.TherapistChatsPath(therapist))
	if err != nil {
		return nil, err
	}

	entries := make(map[models.ConversationID]models.TherapistChatEntry, len(children))
	for id, doc := range children {
		var entry models.TherapistChatEntry
		if err := json.Unmarshal(doc, &entry); err != nil {
			return nil, err
		}
		entries[models.ConversationID(id)] = entry
	}
	return entries, nil
}

// SaveNotes stores the therapist's private notes on their index entry.
func (r *ChatIndexRepository) SaveNotes(
	ctx context.Context,
	therapist models.TherapistID,
	conversationID models.ConversationID,
	notes string,
) error {
	return r.store.Update(ctx, store.TherapistChatPath(therapist, conversationID), map[string]any{
		"notes": notes,
	})
}

func (r *ChatIndexRepository) GetNotes(
	ctx context.Context,
	therapist models.TherapistID,
	conversationID models.ConversationID,
) (string, error) {
	doc, err := r.store.Read(ctx, store.TherapistChatPath(therapist, conversationID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	var entry models.TherapistChatEntry
	if err := json.Unmarshal(doc, &entry); err != nil {
		return "", err
	}
	return entry.Notes, nil
}

// Reconcile repairs both index entries from the latest log message. A stale
// entry is logged as an inconsistency and overwritten; an entry already ahead
// of the log is left alone so reconciliation never moves a lastMessageTime
// backward. Same-timestamp entries with different text are stale too: two
// projections racing within one millisecond can leave the loser's text
// behind.
func (r *ChatIndexRepository) Reconcile(
	ctx context.Context,
	conversationID models.ConversationID,
	p Participants,
	latest *models.Message,
) error {
	userEntry, err := r.readUserEntry(ctx, p.Client, conversationID)
	if err != nil {
		return err
	}
	if userEntry == nil || staleEntry(userEntry.LastMessageTime, userEntry.LastMessage, latest) {
		r.warnDrift(conversationID, "userChats", userEntry != nil, entryTime(userEntry), latest.Timestamp)
		err := r.store.Update(ctx, store.UserChatPath(p.Client, conversationID), map[string]any{
			"therapistId":     p.Therapist,
			"therapistName":   p.TherapistName,
			"lastMessage":     latest.Text,
			"lastMessageTime": latest.Timestamp,
		})
		if err != nil {
			return err
		}
	}

	therapistEntry, err := r.readTherapistEntry(ctx, p.Therapist, conversationID)
	if err != nil {
		return err
	}
	if therapistEntry == nil || staleEntry(therapistEntry.LastMessageTime, therapistEntry.LastMessage, latest) {
		r.warnDrift(conversationID, "therapistChats", therapistEntry != nil, therapistEntryTime(therapistEntry), latest.Timestamp)
		err := r.store.Update(ctx, store.TherapistChatPath(p.Therapist, conversationID), map[string]any{
			"userId":          p.Client,
			"userName":        p.ClientName,
			"lastMessage":     latest.Text,
			"lastMessageTime": latest.Timestamp,
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func staleEntry(entryTime int64, entryText string, latest *models.Message) bool {
	if entryTime < latest.Timestamp {
		return true
	}
	return entryTime == latest.Timestamp && entryText != latest.Text
}

func (r *ChatIndexRepository) readUserEntry(
	ctx context.Context,
	client models.ClientID,
	conversationID models.ConversationID,
) (*models.UserChatEntry, error) {
	doc, err := r.store.Read(ctx, store.UserChatPath(client, conversationID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var entry models.UserChatEntry
	if err := json.Unmarshal(doc, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *ChatIndexRepository) readTherapistEntry(
	ctx context.Context,
	therapist models.TherapistID,
	conversationID models.ConversationID,
) (*models.TherapistChatEntry, error) {
	doc, err := r.store.Read(ctx, store.TherapistChatPath(therapist, conversationID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var entry models.TherapistChatEntry
	if err := json.Unmarshal(doc, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *ChatIndexRepository) warnDrift(
	conversationID models.ConversationID,
	view string,
	existed bool,
	entryTime int64,
	logTime int64,
) {
	if r.log == nil || !existed {
		return
	}
	r.log.WithFields(logrus.Fields{
		"conversation": conversationID,
		"view":         view,
		"entryTime":    entryTime,
		"logTime":      logTime,
	}).Warn("chat index behind message log, repairing")
}

func entryTime(entry *models.UserChatEntry) int64 {
	if entry == nil {
		return 0
	}
	return entry.LastMessageTime
}

func therapistEntryTime(entry *models.TherapistChatEntry) int64 {
	if entry == nil {
		return 0
	}
	return entry.LastMessageTime
}
