package service

import (
	"context"
	"fmt"
	"time"

	apperrors "support-relay-bot/internal/common/errors"
	"support-relay-bot/internal/features/user/models"
	"support-relay-bot/internal/features/user/repository"
)

// Service is the user directory: the single place that reads and mutates
// durable user records. All mutations go through read-modify-write on a
// snapshot; callers must not assume a returned record stays current.
type Service struct {
	repo repository.UserRepository
}

func NewService(repo repository.UserRepository) *Service {
	return &Service{repo: repo}
}

// GetOrCreate returns the record for id, creating it with defaults on first
// contact. CreatedAt is set only on creation. Name fields are refreshed on
// every call so the staff view follows profile renames.
func (s *Service) GetOrCreate(ctx context.Context, id int64, fullName, username string) (*models.User, error) {
	now := time.Now().UTC()
	fresh := &models.User{
		ID:        id,
		FullName:  fullName,
		Username:  username,
		State:     models.StateActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := s.repo.Create(ctx, fresh)
	if err != nil {
		return nil, err
	}
	if created {
		return fresh, nil
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if fullName != "" && (user.FullName != fullName || user.Username != username) {
		user.FullName = fullName
		user.Username = username
		if err := s.repo.Update(ctx, user); err != nil {
			return nil, err
		}
	}
	return user, nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) SetLanguage(ctx context.Context, id int64, code string) error {
	return s.mutate(ctx, id, func(u *models.User) {
		u.LanguageCode = code
	})
}

func (s *Service) SetBanned(ctx context.Context, id int64, banned bool) error {
	return s.mutate(ctx, id, func(u *models.User) {
		u.IsBanned = banned
	})
}

func (s *Service) SetSilent(ctx context.Context, id int64, silent bool) error {
	return s.mutate(ctx, id, func(u *models.User) {
		u.IsSilent = silent
	})
}

func (s *Service) MarkState(ctx context.Context, id int64, state models.State) error {
	return s.mutate(ctx, id, func(u *models.User) {
		u.State = state
	})
}

// BindTopic binds topicID to the user and returns the authoritative topic id.
// Losing the bind to a different topic id returns ALREADY_BOUND together with
// the id that won; the caller decides whether to adopt it.
func (s *Service) BindTopic(ctx context.Context, id int64, topicID int) (int, error) {
	bound, won, err := s.repo.BindTopic(ctx, id, topicID)
	if err != nil {
		return 0, err
	}
	if !won && bound != topicID {
		return bound, apperrors.New(
			apperrors.ErrCodeAlreadyBound,
			fmt.Sprintf("user %d already bound to topic %d", id, bound),
		).WithUserID(id)
	}
	return bound, nil
}

func (s *Service) UserIDByTopic(ctx context.Context, topicID int) (int64, error) {
	return s.repo.UserIDByTopic(ctx, topicID)
}

func (s *Service) ListIDs(ctx context.Context) ([]int64, error) {
	return s.repo.ListIDs(ctx)
}

func (s *Service) mutate(ctx context.Context, id int64, apply func(*models.User)) error {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	apply(user)
	return s.repo.Update(ctx, user)
}
