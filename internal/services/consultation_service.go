package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mindnest/MindNestBack/internal/models"
	"github.com/mindnest/MindNestBack/internal/repository"
	"github.com/mindnest/MindNestBack/internal/store"
)

const activityWindow = 7 * 24 * time.Hour

type userReader interface {
	GetByPhone(ctx context.Context, phone models.ClientID) (*models.User, error)
}

type therapistReader interface {
	GetByID(ctx context.Context, id models.TherapistID) (*models.TherapistProfile, error)
	ListAll(ctx context.Context) ([]models.TherapistProfile, error)
}

// ConsultationService is the component screens talk to: therapist selection,
// session bootstrap, send/receive, mark-as-read, and the therapist dashboard.
// Appending a message and projecting the index entries happen inside one call
// so the three views never drift for longer than a single write.
type ConsultationService struct {
	store         store.Store
	messageRepo   *repository.MessageRepository
	indexRepo     *repository.ChatIndexRepository
	therapistRepo therapistReader
	userRepo      userReader
	log           *logrus.Logger
	now           func() time.Time

	mu         sync.Mutex
	bootstraps map[models.ConversationID]*sync.Mutex
}

func NewConsultationService(
	st store.Store,
	messageRepo *repository.MessageRepository,
	indexRepo *repository.ChatIndexRepository,
	therapistRepo therapistReader,
	userRepo userReader,
	log *logrus.Logger,
) *ConsultationService {
	return &ConsultationService{
		store:         st,
		messageRepo:   messageRepo,
		indexRepo:     indexRepo,
		therapistRepo: therapistRepo,
		userRepo:      userRepo,
		log:           log,
		now:           time.Now,
		bootstraps:    make(map[models.ConversationID]*sync.Mutex),
	}
}

func (s *ConsultationService) ListTherapists(ctx context.Context) ([]models.TherapistProfile, error) {
	return s.therapistRepo.ListAll(ctx)
}

// ActiveTherapist returns the therapist of the client's most recently active
// conversation, or ErrNotFound if the client has none.
func (s *ConsultationService) ActiveTherapist(
	ctx context.Context,
	client models.ClientID,
) (*models.TherapistProfile, error) {
	entries, err := s.indexRepo.GetUserEntries(ctx, client)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}

	var latest models.UserChatEntry
	var found bool
	for _, entry := range entries {
		if !found || entry.LastMessageTime > latest.LastMessageTime {
			latest = entry
			found = true
		}
	}

	profile, err := s.therapistRepo.GetByID(ctx, latest.TherapistID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return profile, nil
}

// SelectTherapist opens (or reopens) the conversation between client and
// therapist. On first contact it appends a therapist-authored welcome message
// and projects both index entries with unread unset on both sides. The
// bootstrap runs at most once per pair within this process: the log-emptiness
// check is guarded by a per-conversation mutex so a double tap cannot inject
// two greetings.
func (s *ConsultationService) SelectTherapist(
	ctx context.Context,
	client models.ClientID,
	therapistID models.TherapistID,
) (models.ConversationID, *models.Message, error) {
	therapist, err := s.therapistRepo.GetByID(ctx, therapistID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, ErrTherapistNotFound
		}
		return "", nil, err
	}

	conversationID, err := models.NewConversationID(client, therapist.ID)
	if err != nil {
		return "", nil, ErrValidation
	}

	guard := s.bootstrapGuard(conversationID)
	guard.Lock()
	defer guard.Unlock()

	existing, err := s.messageRepo.ListByConversation(ctx, conversationID)
	if err != nil {
		return "", nil, err
	}
	if len(existing) > 0 {
		return conversationID, nil, nil
	}

	clientName := s.clientName(ctx, client)
	welcome, err := s.messageRepo.Append(ctx, conversationID, repository.AppendInput{
		Client:             client,
		Therapist:          therapist.ID,
		Sender:             models.RoleTherapist,
		SenderName:         therapist.Name,
		Text:               fmt.Sprintf("Hello! I'm %s. How can I help you today?", therapist.Name),
		SendKey:            uuid.NewString(),
		ReadByBothOnCreate: true,
	})
	if err != nil {
		return "", nil, err
	}

	err = s.indexRepo.Project(ctx, conversationID, repository.Participants{
		Client:        client,
		ClientName:    clientName,
		Therapist:     therapist.ID,
		TherapistName: therapist.Name,
	}, welcome)
	if err != nil {
		return "", nil, err
	}

	return conversationID, welcome, nil
}

// SendMessage validates, appends to the log, and projects both index entries.
// On failure nothing is reported as sent; the caller keeps its input and may
// retry, which is safe because each call carries a fresh idempotency key only
// for its own append.
func (s *ConsultationService) SendMessage(
	ctx context.Context,
	conversationID models.ConversationID,
	sender models.Role,
	text string,
) (*models.Message, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || !sender.Valid() {
		return nil, ErrValidation
	}

	client, therapistID, err := conversationID.Participants()
	if err != nil {
		return nil, ErrValidation
	}

	therapist, err := s.therapistRepo.GetByID(ctx, therapistID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTherapistNotFound
		}
		return nil, err
	}
	clientName := s.clientName(ctx, client)

	senderName := clientName
	if sender == models.RoleTherapist {
		senderName = therapist.Name
	}

	message, err := s.messageRepo.Append(ctx, conversationID, repository.AppendInput{
		Client:     client,
		Therapist:  therapist.ID,
		Sender:     sender,
		SenderName: senderName,
		Text:       trimmed,
		SendKey:    uuid.NewString(),
	})
	if err != nil {
		return nil, err
	}

	err = s.indexRepo.Project(ctx, conversationID, repository.Participants{
		Client:        client,
		ClientName:    clientName,
		Therapist:     therapist.ID,
		TherapistName: therapist.Name,
	}, message)
	if err != nil {
		return nil, err
	}

	return message, nil
}

// MarkConversationRead marks all counterpart messages read for the reader and,
// for the therapist, clears the conversation-level unread flag on their index
// entry. Safe to call repeatedly.
func (s *ConsultationService) MarkConversationRead(
	ctx context.Context,
	conversationID models.ConversationID,
	reader models.Role,
) error {
	if !reader.Valid() {
		return ErrValidation
	}

	if err := s.messageRepo.MarkConversationRead(ctx, conversationID, reader); err != nil {
		return err
	}

	client, therapistID, err := conversationID.Participants()
	if err != nil {
		return ErrValidation
	}
	if reader == models.RoleTherapist {
		return s.indexRepo.ClearTherapistUnread(ctx, therapistID, conversationID)
	}
	return s.indexRepo.ClearUserUnread(ctx, client, conversationID)
}

func (s *ConsultationService) ListMessages(
	ctx context.Context,
	conversationID models.ConversationID,
) ([]models.Message, error) {
	return s.messageRepo.ListByConversation(ctx, conversationID)
}

func (s *ConsultationService) UserChats(
	ctx context.Context,
	client models.ClientID,
) (map[models.ConversationID]models.UserChatEntry, error) {
	return s.indexRepo.GetUserEntries(ctx, client)
}

// SubscribeToConversation delivers the full ordered message list on every
// change beneath the conversation. The returned func cancels the
// subscription.
func (s *ConsultationService) SubscribeToConversation(
	conversationID models.ConversationID,
	callback func([]models.Message),
) func() {
	return s.store.Subscribe(store.MessageListPath(conversationID), func(store.Event) {
		messages, err := s.messageRepo.ListByConversation(context.Background(), conversationID)
		if err != nil {
			s.log.WithError(err).WithField("conversation", conversationID).
				Warn("failed to load messages for subscriber")
			return
		}
		callback(messages)
	})
}

// GetTherapistDashboardStats scans every conversation of the therapist. The
// stats are derived on demand rather than maintained as counters, trading a
// full scan for freedom from drift; per-therapist conversation counts are
// small.
func (s *ConsultationService) GetTherapistDashboardStats(
	ctx context.Context,
	therapistID models.TherapistID,
) (*models.DashboardStats, error) {
	conversations, err := s.messageRepo.ListConversations(ctx)
	if err != nil {
		return nil, err
	}

	weekAgo := s.now().Add(-activityWindow).UnixMilli()
	stats := &models.DashboardStats{}
	clients := make(map[models.ClientID]struct{})

	for conversationID, conversation := range conversations {
		if conversation.Therapist != therapistID {
			continue
		}
		clients[conversation.User] = struct{}{}

		if conversation.LastMessageTime > weekAgo {
			stats.ActiveConversations++
		}

		messages, err := s.messageRepo.ListByConversation(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		for _, message := range messages {
			if message.Sender == models.RoleUser && !message.ReadByTherapist {
				stats.UnreadMessages++
			}
			if message.Timestamp > weekAgo {
				stats.WeeklyVolume++
			}
		}
	}

	stats.TotalClients = len(clients)
	return stats, nil
}

// ListClients builds the therapist's client list from their index entries,
// newest activity first.
func (s *ConsultationService) ListClients(
	ctx context.Context,
	therapistID models.TherapistID,
) ([]models.ClientSummary, error) {
	entries, err := s.indexRepo.GetTherapistEntries(ctx, therapistID)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.ClientSummary, 0, len(entries))
	for conversationID, entry := range entries {
		name := entry.UserName
		if user, err := s.userRepo.GetByPhone(ctx, entry.UserID); err == nil && user.Username != "" {
			name = user.Username
		}
		summaries = append(summaries, models.ClientSummary{
			UserID:          entry.UserID,
			ConversationID:  conversationID,
			Name:            name,
			LastMessage:     entry.LastMessage,
			LastMessageTime: entry.LastMessageTime,
			Unread:          entry.Unread,
			Notes:           entry.Notes,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastMessageTime > summaries[j].LastMessageTime
	})
	return summaries, nil
}

// Reconcile recomputes both index entries from the conversation's log. The
// log is the source of truth; stale entries are repaired, newer ones left
// alone. An empty log is a no-op.
func (s *ConsultationService) Reconcile(
	ctx context.Context,
	conversationID models.ConversationID,
) error {
	messages, err := s.messageRepo.ListByConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}
	latest := messages[len(messages)-1]

	client, therapistID, err := conversationID.Participants()
	if err != nil {
		return ErrValidation
	}

	therapistName := ""
	if therapist, err := s.therapistRepo.GetByID(ctx, therapistID); err == nil {
		therapistName = therapist.Name
	}

	return s.indexRepo.Reconcile(ctx, conversationID, repository.Participants{
		Client:        client,
		ClientName:    s.clientName(ctx, client),
		Therapist:     therapistID,
		TherapistName: therapistName,
	}, &latest)
}

func (s *ConsultationService) bootstrapGuard(conversationID models.ConversationID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	guard, ok := s.bootstraps[conversationID]
	if !ok {
		guard = &sync.Mutex{}
		s.bootstraps[conversationID] = guard
	}
	return guard
}

func (s *ConsultationService) clientName(ctx context.Context, client models.ClientID) string {
	user, err := s.userRepo.GetByPhone(ctx, client)
	if err != nil || user.Username == "" {
		return "User"
	}
	return user.Username
}
