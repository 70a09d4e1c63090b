package notifications

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("notification not found")
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

// Notify crea una notificación no leída para userID.
func (s *Service) Notify(ctx context.Context, userID, title, message string) error {
	userID = strings.TrimSpace(userID)
	title = strings.TrimSpace(title)
	if userID == "" || title == "" {
		return ErrInvalidInput
	}

	return s.repo.Create(ctx, Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Message:   strings.TrimSpace(message),
		CreatedAt: s.now().UTC(),
	})
}

func (s *Service) List(ctx context.Context, userID string, unreadOnly bool) ([]Notification, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByUser(ctx, userID, unreadOnly)
}

func (s *Service) MarkRead(ctx context.Context, id, userID string) error {
	if strings.TrimSpace(id) == "" || strings.TrimSpace(userID) == "" {
		return ErrInvalidInput
	}
	return s.repo.MarkRead(ctx, id, userID)
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, ErrInvalidInput
	}
	return s.repo.MarkAllRead(ctx, userID)
}
