package repository

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/mindnest/MindNestBack/internal/models"
	"github.com/mindnest/MindNestBack/internal/store"
)

type TherapistRepository struct {
	store store.Store
}

func NewTherapistRepository(st store.Store) *TherapistRepository {
	return &TherapistRepository{store: st}
}

func (r *TherapistRepository) GetByID(
	ctx context.Context,
	id models.TherapistID,
) (*models.TherapistProfile, error) {
	doc, err := r.store.Read(ctx, store.TherapistPath(id))
	if err != nil {
		return nil, err
	}
	var profile models.TherapistProfile
	if err := json.Unmarshal(doc, &profile); err != nil {
		return nil, err
	}
	profile.ID = id
	return &profile, nil
}

// GetByPhone scans all profiles; phone is the natural dedup key for lazy
// profile creation. Returns store.ErrNotFound when no profile matches.
func (r *TherapistRepository) GetByPhone(
	ctx context.Context,
	phone string,
) (*models.TherapistProfile, error) {
	profiles, err := r.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range profiles {
		if profiles[i].Phone == phone {
			return &profiles[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *TherapistRepository) ListAll(ctx context.Context) ([]models.TherapistProfile, error) {
	children, err := r.store.Children(ctx, store.TherapistsPath())
	if err != nil {
		return nil, err
	}

	profiles := make([]models.TherapistProfile, 0, len(children))
	for id, doc := range children {
		var profile models.TherapistProfile
		if err := json.Unmarshal(doc, &profile); err != nil {
			return nil, err
		}
		profile.ID = models.TherapistID(id)
		profiles = append(profiles, profile)
	}

	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].ID < profiles[j].ID
	})
	return profiles, nil
}

func (r *TherapistRepository) Create(
	ctx context.Context,
	profile *models.TherapistProfile,
) (models.TherapistID, error) {
	id, err := r.store.Push(ctx, store.TherapistsPath(), profile)
	if err != nil {
		return "", err
	}
	return models.TherapistID(id), nil
}

func (r *TherapistRepository) UpdateStatus(
	ctx context.Context,
	id models.TherapistID,
	status string,
) error {
	return r.store.Update(ctx, store.TherapistPath(id), map[string]any{
		"status": status,
	})
}
