package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"projectnest/internal/models"
)

type BookmarkService struct {
	db         *gorm.DB
	popularity *PopularityService
	log        *zap.Logger
}

func NewBookmarkService(db *gorm.DB, popularity *PopularityService, log *zap.Logger) *BookmarkService {
	return &BookmarkService{db: db, popularity: popularity, log: log}
}

// Toggle bookmarks the project for actor, or removes an existing bookmark.
// It reports whether the project is bookmarked afterwards.
func (s *BookmarkService) Toggle(ctx context.Context, actor *models.User, projectID uint) (bool, error) {
	if _, err := findProject(ctx, s.db, projectID); err != nil {
		return false, err
	}

	var bookmarked bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Bookmark
		err := tx.Where("user_id = ? AND project_id = ?", actor.ID, projectID).First(&existing).Error
		switch {
		case err == nil:
			bookmarked = false
			return tx.Delete(&existing).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			bookmarked = true
			return tx.Create(&models.Bookmark{UserID: actor.ID, ProjectID: projectID}).Error
		default:
			return err
		}
	})
	if err != nil {
		return false, fmt.Errorf("toggle bookmark: %w", err)
	}
	s.popularity.Schedule(projectID)
	return bookmarked, nil
}

func (s *BookmarkService) IsBookmarked(ctx context.Context, userID, projectID uint) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Bookmark{}).
		Where("user_id = ? AND project_id = ?", userID, projectID).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check bookmark: %w", err)
	}
	return n > 0, nil
}

// ListMine returns actor's bookmarks, newest first, with their projects.
func (s *BookmarkService) ListMine(ctx context.Context, actor *models.User) ([]models.Bookmark, error) {
	var bookmarks []models.Bookmark
	err := s.db.WithContext(ctx).
		Preload("Project").Preload("Project.Owner").Preload("Project.Category").Preload("Project.Tags").
		Where("user_id = ?", actor.ID).
		Order("created_at DESC, id DESC").
		Find(&bookmarks).Error
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	return bookmarks, nil
}
