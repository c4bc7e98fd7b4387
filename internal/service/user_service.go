package service

import (
	"context"

	"cryptosim/internal/core/domain"
	"cryptosim/internal/core/ports"
	"cryptosim/pkg/apperror"

	"github.com/google/uuid"
)

type userService struct {
	userRepo ports.UserRepository
}

// NewUserService creates the user profile service.
func NewUserService(userRepo ports.UserRepository) ports.UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) GetProfile(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("get user", err)
	}
	if user == nil {
		return nil, apperror.ErrNotFound("user")
	}
	return user, nil
}

// List returns every registered user except the market system account.
func (s *userService) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, storeError("list users", err)
	}
	out := users[:0]
	for _, u := range users {
		if u.Username != domain.MarketUsername {
			out = append(out, u)
		}
	}
	return out, nil
}
