package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"projectnest/internal/models"
)

// NotificationService stores in-app notifications and pushes them to any
// open realtime stream of the receiver.
type NotificationService struct {
	db     *gorm.DB
	broker *Broker
	log    *zap.Logger
}

func NewNotificationService(db *gorm.DB, broker *Broker, log *zap.Logger) *NotificationService {
	return &NotificationService{db: db, broker: broker, log: log}
}

// Notify stores n. Notifying yourself is a no-op.
func (s *NotificationService) Notify(ctx context.Context, n models.Notification) error {
	if n.ActorID != nil && *n.ActorID == n.UserID {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&n).Error; err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	s.broker.Publish(n.UserID, EventNotificationCreated, n)
	return nil
}

// notifyAsync is used from mutation paths where a failed notification must
// not fail the mutation itself.
func (s *NotificationService) notifyAsync(n models.Notification) {
	go func() {
		if err := s.Notify(context.Background(), n); err != nil {
			s.log.Error("notification failed", zap.Uint("user_id", n.UserID), zap.String("type", string(n.Type)), zap.Error(err))
		}
	}()
}

func (s *NotificationService) List(ctx context.Context, actor *models.User) ([]models.Notification, error) {
	var notifications []models.Notification
	err := s.db.WithContext(ctx).Preload("Actor").
		Where("user_id = ?", actor.ID).
		Order("created_at DESC, id DESC").
		Limit(50).
		Find(&notifications).Error
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, actor *models.User, id uint) error {
	n, err := s.owned(ctx, actor, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(n).Update("is_read", true).Error
}

func (s *NotificationService) MarkAllRead(ctx context.Context, actor *models.User) error {
	return s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", actor.ID, false).
		Update("is_read", true).Error
}

func (s *NotificationService) Delete(ctx context.Context, actor *models.User, id uint) error {
	n, err := s.owned(ctx, actor, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(n).Error
}

func (s *NotificationService) owned(ctx context.Context, actor *models.User, id uint) (*models.Notification, error) {
	var n models.Notification
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, actor.ID).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("notification %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load notification: %w", err)
	}
	return &n, nil
}
