package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mindnest/MindNestBack/internal/models"
	"github.com/mindnest/MindNestBack/internal/store"
)

type therapistWriter interface {
	therapistReader
	GetByPhone(ctx context.Context, phone string) (*models.TherapistProfile, error)
	Create(ctx context.Context, profile *models.TherapistProfile) (models.TherapistID, error)
	UpdateStatus(ctx context.Context, id models.TherapistID, status string) error
}

// PresenceService owns the therapist online flag and the lazy creation of
// therapist profiles on first therapist-role access.
type PresenceService struct {
	therapistRepo therapistWriter
	userRepo      userReader
	log           *logrus.Logger
	now           func() time.Time
}

func NewPresenceService(
	therapistRepo therapistWriter,
	userRepo userReader,
	log *logrus.Logger,
) *PresenceService {
	return &PresenceService{
		therapistRepo: therapistRepo,
		userRepo:      userRepo,
		log:           log,
		now:           time.Now,
	}
}

// SetPresence updates only the status field; conversations are untouched.
func (s *PresenceService) SetPresence(
	ctx context.Context,
	id models.TherapistID,
	online bool,
) error {
	if _, err := s.therapistRepo.GetByID(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrTherapistNotFound
		}
		return err
	}

	status := models.StatusOffline
	if online {
		status = models.StatusOnline
	}
	return s.therapistRepo.UpdateStatus(ctx, id, status)
}

// EnsureTherapistProfile returns the profile registered for phone, creating
// one from the matching client profile if none exists. Phone is the dedup
// key: the lookup happens before any create, so two devices opening the
// therapist screen at once resolve to the same profile.
func (s *PresenceService) EnsureTherapistProfile(
	ctx context.Context,
	phone string,
) (*models.TherapistProfile, error) {
	if phone == "" {
		return nil, ErrValidation
	}

	existing, err := s.therapistRepo.GetByPhone(ctx, phone)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	name := ""
	if user, err := s.userRepo.GetByPhone(ctx, models.ClientID(phone)); err == nil {
		name = user.Username
	}
	if name == "" {
		prefix := phone
		if len(prefix) > 4 {
			prefix = prefix[:4]
		}
		name = "Dr. " + prefix
	}

	profile := &models.TherapistProfile{
		Name:      name,
		Phone:     phone,
		Status:    models.StatusOnline,
		Specialty: "General Mental Health",
		Bio:       "Licensed Mental Health Professional",
		Rating:    5.0,
		CreatedAt: s.now().UnixMilli(),
	}

	id, err := s.therapistRepo.Create(ctx, profile)
	if err != nil {
		return nil, err
	}
	profile.ID = id

	s.log.WithFields(logrus.Fields{
		"therapist": id,
		"phone":     phone,
	}).Info("created therapist profile")
	return profile, nil
}
