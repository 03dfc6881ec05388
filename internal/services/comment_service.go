package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"projectnest/internal/models"
	"projectnest/internal/utils"
)

const (
	maxCommentLength      = 5000
	deletedCommentContent = "This comment was deleted."
)

type CommentService struct {
	db            *gorm.DB
	cache         *utils.QueryCache
	notifications *NotificationService
	popularity    *PopularityService
	policy        OrphanPolicy
	log           *zap.Logger
}

func NewCommentService(db *gorm.DB, cache *utils.QueryCache, notifications *NotificationService, popularity *PopularityService, policy OrphanPolicy, log *zap.Logger) *CommentService {
	return &CommentService{
		db:            db,
		cache:         cache,
		notifications: notifications,
		popularity:    popularity,
		policy:        policy,
		log:           log,
	}
}

// List returns the comment forest of a project. A failed fetch is returned
// as is and the builder never runs.
func (s *CommentService) List(ctx context.Context, projectID uint) ([]*ThreadNode, error) {
	return utils.Fetch(ctx, s.cache, commentsKey(projectID), func(ctx context.Context) ([]*ThreadNode, error) {
		tx := s.db.WithContext(ctx)

		var exists int64
		if err := tx.Model(&models.Project{}).Where("id = ?", projectID).Count(&exists).Error; err != nil {
			return nil, fmt.Errorf("check project %d: %w", projectID, err)
		}
		if exists == 0 {
			return nil, fmt.Errorf("project %d: %w", projectID, ErrNotFound)
		}

		var comments []models.Comment
		err := tx.Preload("Author", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "username", "full_name", "avatar_url")
		}).
			Where("project_id = ?", projectID).
			Order("created_at ASC, id ASC").
			Find(&comments).Error
		if err != nil {
			return nil, fmt.Errorf("fetch comments of project %d: %w", projectID, err)
		}

		if err := ValidateComments(projectID, comments); err != nil {
			s.log.Error("rejecting comment rows", zap.Uint("project_id", projectID), zap.Error(err))
			return nil, err
		}
		forest, err := BuildThreads(comments, s.policy)
		if err != nil {
			s.log.Error("build comment threads", zap.Uint("project_id", projectID), zap.Error(err))
			return nil, err
		}
		return forest, nil
	})
}

// Create adds a comment, or a reply when parentID is set. The parent must
// be a comment on the same project.
func (s *CommentService) Create(ctx context.Context, actor *models.User, projectID uint, content string, parentID *uint) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: comment is empty", ErrInvalidInput)
	}
	if utf8.RuneCountInString(content) > maxCommentLength {
		return nil, fmt.Errorf("%w: comment exceeds %d characters", ErrInvalidInput, maxCommentLength)
	}

	tx := s.db.WithContext(ctx)

	var project models.Project
	if err := tx.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("project %d: %w", projectID, ErrNotFound)
		}
		return nil, fmt.Errorf("load project: %w", err)
	}

	var parent *models.Comment
	if parentID != nil {
		var p models.Comment
		err := tx.Where("id = ? AND project_id = ?", *parentID, projectID).First(&p).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: parent comment %d is not on this project", ErrInvalidInput, *parentID)
		}
		if err != nil {
			return nil, fmt.Errorf("load parent comment: %w", err)
		}
		parent = &p
	}

	comment := models.Comment{
		ProjectID: projectID,
		AuthorID:  actor.ID,
		ParentID:  parentID,
		Content:   content,
	}
	if err := tx.Create(&comment).Error; err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	comment.Author = *actor

	s.cache.Delete(commentsKey(projectID), projectKey(project.Slug))
	s.popularity.Schedule(projectID)

	actorID := actor.ID
	if parent != nil {
		s.notifications.notifyAsync(models.Notification{
			UserID:    parent.AuthorID,
			ActorID:   &actorID,
			Type:      models.NotificationReplyComment,
			ProjectID: &project.ID,
			Body:      fmt.Sprintf("%s replied to your comment on %s", actor.Username, project.Title),
		})
	} else {
		s.notifications.notifyAsync(models.Notification{
			UserID:    project.OwnerID,
			ActorID:   &actorID,
			Type:      models.NotificationCommentProject,
			ProjectID: &project.ID,
			Body:      fmt.Sprintf("%s commented on %s", actor.Username, project.Title),
		})
	}
	return &comment, nil
}

// Delete blanks a comment's content. The row stays so replies keep their
// parent.
func (s *CommentService) Delete(ctx context.Context, actor *models.User, commentID uint) error {
	tx := s.db.WithContext(ctx)

	var comment models.Comment
	if err := tx.First(&comment, commentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("comment %d: %w", commentID, ErrNotFound)
		}
		return fmt.Errorf("load comment: %w", err)
	}
	if comment.AuthorID != actor.ID {
		return fmt.Errorf("comment %d: %w", commentID, ErrForbidden)
	}

	if err := tx.Model(&comment).Update("content", deletedCommentContent).Error; err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	s.cache.Delete(commentsKey(comment.ProjectID))
	return nil
}
