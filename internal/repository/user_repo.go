package repository

import (
	"context"
	"encoding/json"

	"github.com/mindnest/MindNestBack/internal/models"
	"github.com/mindnest/MindNestBack/internal/store"
)

type UserRepository struct {
	store store.Store
}

func NewUserRepository(st store.Store) *UserRepository {
	return &UserRepository{store: st}
}

func (r *UserRepository) GetByPhone(ctx context.Context, phone models.ClientID) (*models.User, error) {
	doc, err := r.store.Read(ctx, store.UserPath(phone))
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := json.Unmarshal(doc, &user); err != nil {
		return nil, err
	}
	user.Phone = string(phone)
	return &user, nil
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return r.store.Write(ctx, store.UserPath(models.ClientID(user.Phone)), user)
}
