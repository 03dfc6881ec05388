package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"projectnest/internal/models"
	"projectnest/internal/utils"
)

const maxApplicationMessage = 2000

// Decision is an owner's answer to a pending application.
type Decision string

const (
	Approve Decision = "approve"
	Reject  Decision = "reject"
)

type ApplicationService struct {
	db            *gorm.DB
	cache         *utils.QueryCache
	notifications *NotificationService
	popularity    *PopularityService
	mailer        Mailer
	siteURL       string
	log           *zap.Logger
}

func NewApplicationService(db *gorm.DB, cache *utils.QueryCache, notifications *NotificationService, popularity *PopularityService, mailer Mailer, siteURL string, log *zap.Logger) *ApplicationService {
	return &ApplicationService{
		db:            db,
		cache:         cache,
		notifications: notifications,
		popularity:    popularity,
		mailer:        mailer,
		siteURL:       strings.TrimSuffix(siteURL, "/"),
		log:           log,
	}
}

func (s *ApplicationService) projectLink(p *models.Project) string {
	return s.siteURL + "/projects/" + p.Slug
}

func (s *ApplicationService) isMember(tx *gorm.DB, projectID, userID uint) (bool, error) {
	var n int64
	err := tx.Model(&models.Membership{}).Where("project_id = ? AND user_id = ?", projectID, userID).Count(&n).Error
	return n > 0, err
}

// Apply files a pending application from actor.
func (s *ApplicationService) Apply(ctx context.Context, actor *models.User, projectID uint, message string) (*models.Application, error) {
	message = strings.TrimSpace(message)
	if len([]rune(message)) > maxApplicationMessage {
		return nil, fmt.Errorf("%w: message exceeds %d characters", ErrInvalidInput, maxApplicationMessage)
	}

	tx := s.db.WithContext(ctx)
	var project models.Project
	if err := tx.Preload("Owner").First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("project %d: %w", projectID, ErrNotFound)
		}
		return nil, fmt.Errorf("load project: %w", err)
	}
	if project.OwnerID == actor.ID {
		return nil, fmt.Errorf("%w: owners cannot apply to their own project", ErrInvalidInput)
	}
	if project.Status != models.ProjectOpen {
		return nil, ErrProjectClosed
	}

	member, err := s.isMember(tx, projectID, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if member {
		return nil, fmt.Errorf("%w: already a member", ErrConflict)
	}

	app := models.Application{
		ProjectID:   projectID,
		ApplicantID: actor.ID,
		Message:     message,
		Status:      models.ApplicationPending,
	}
	// a unique index allows one pending row per applicant and project
	if err := tx.Create(&app).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: application already pending", ErrConflict)
		}
		return nil, fmt.Errorf("create application: %w", err)
	}

	s.popularity.Schedule(projectID)
	actorID := actor.ID
	s.notifications.notifyAsync(models.Notification{
		UserID:    project.OwnerID,
		ActorID:   &actorID,
		Type:      models.NotificationApplicationReceived,
		ProjectID: &project.ID,
		Body:      fmt.Sprintf("%s applied to join %s", actor.Username, project.Title),
	})
	s.mailer.SendApplicationReceived(project.Owner.Email, actor.Username, project.Title, s.projectLink(&project))

	app.Project = project
	app.Applicant = *actor
	return &app, nil
}

func (s *ApplicationService) loadApplication(ctx context.Context, id uint) (*models.Application, error) {
	var app models.Application
	err := s.db.WithContext(ctx).Preload("Project").Preload("Applicant").First(&app, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("application %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load application: %w", err)
	}
	return &app, nil
}

// Review approves or rejects a pending application. Owner only. Approval
// adds the applicant as a member unless the project is full.
func (s *ApplicationService) Review(ctx context.Context, actor *models.User, applicationID uint, decision Decision) (*models.Application, error) {
	if decision != Approve && decision != Reject {
		return nil, fmt.Errorf("%w: unknown decision %q", ErrInvalidInput, decision)
	}
	app, err := s.loadApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Project.OwnerID != actor.ID {
		return nil, fmt.Errorf("application %d: %w", applicationID, ErrForbidden)
	}
	if app.Status != models.ApplicationPending {
		return nil, fmt.Errorf("%w: application is %s", ErrConflict, app.Status)
	}

	now := time.Now()
	status := models.ApplicationRejected
	if decision == Approve {
		status = models.ApplicationApproved
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if decision == Approve {
			// approvals of one project queue on its row
			var project models.Project
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Select("id, max_members").First(&project, app.ProjectID).Error
			if err != nil {
				return err
			}
			if project.MaxMembers > 0 {
				var members int64
				if err := tx.Model(&models.Membership{}).Where("project_id = ?", app.ProjectID).Count(&members).Error; err != nil {
					return err
				}
				if int(members) >= project.MaxMembers {
					return ErrProjectFull
				}
			}
			err = tx.Create(&models.Membership{
				ProjectID: app.ProjectID,
				UserID:    app.ApplicantID,
				Role:      models.RoleMember,
			}).Error
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: applicant is already a member", ErrConflict)
			}
			if err != nil {
				return err
			}
		}
		res := tx.Model(&models.Application{}).
			Where("id = ? AND status = ?", app.ID, models.ApplicationPending).
			Updates(map[string]any{"status": status, "reviewed_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: application was reviewed concurrently", ErrConflict)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrProjectFull) || errors.Is(err, ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("review application: %w", err)
	}

	app.Status = status
	app.ReviewedAt = &now

	s.cache.Invalidate(projectKeyPrefix)
	s.popularity.Schedule(app.ProjectID)

	kind := models.NotificationApplicationRejected
	body := fmt.Sprintf("Your application to %s was declined", app.Project.Title)
	if decision == Approve {
		kind = models.NotificationApplicationApproved
		body = fmt.Sprintf("Your application to %s was approved", app.Project.Title)
	}
	actorID := actor.ID
	s.notifications.notifyAsync(models.Notification{
		UserID:    app.ApplicantID,
		ActorID:   &actorID,
		Type:      kind,
		ProjectID: &app.ProjectID,
		Body:      body,
	})
	s.mailer.SendApplicationDecision(app.Applicant.Email, app.Project.Title, decision == Approve, s.projectLink(&app.Project))
	return app, nil
}

// Withdraw cancels actor's own pending application.
func (s *ApplicationService) Withdraw(ctx context.Context, actor *models.User, applicationID uint) error {
	app, err := s.loadApplication(ctx, applicationID)
	if err != nil {
		return err
	}
	if app.ApplicantID != actor.ID {
		return fmt.Errorf("application %d: %w", applicationID, ErrForbidden)
	}
	if app.Status != models.ApplicationPending {
		return fmt.Errorf("%w: application is %s", ErrConflict, app.Status)
	}
	if err := s.db.WithContext(ctx).Model(app).Update("status", models.ApplicationWithdrawn).Error; err != nil {
		return fmt.Errorf("withdraw application: %w", err)
	}
	s.popularity.Schedule(app.ProjectID)
	return nil
}

// ListForProject returns a project's applications, newest first. Owner only.
// An empty status returns all of them.
func (s *ApplicationService) ListForProject(ctx context.Context, actor *models.User, projectID uint, status models.ApplicationStatus) ([]models.Application, error) {
	project, err := findProject(ctx, s.db, projectID)
	if err != nil {
		return nil, err
	}
	if project.OwnerID != actor.ID {
		return nil, fmt.Errorf("project %d: %w", projectID, ErrForbidden)
	}

	q := s.db.WithContext(ctx).Preload("Applicant").Where("project_id = ?", projectID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var apps []models.Application
	if err := q.Order("created_at DESC, id DESC").Find(&apps).Error; err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

// ListMine returns actor's applications with their projects.
func (s *ApplicationService) ListMine(ctx context.Context, actor *models.User) ([]models.Application, error) {
	var apps []models.Application
	err := s.db.WithContext(ctx).Preload("Project").Preload("Project.Owner").
		Where("applicant_id = ?", actor.ID).
		Order("created_at DESC, id DESC").
		Find(&apps).Error
	if err != nil {
		return nil, fmt.Errorf("list my applications: %w", err)
	}
	return apps, nil
}

func (s *ApplicationService) Members(ctx context.Context, projectID uint) ([]models.Membership, error) {
	if _, err := findProject(ctx, s.db, projectID); err != nil {
		return nil, err
	}
	var members []models.Membership
	err := s.db.WithContext(ctx).Preload("User").
		Where("project_id = ?", projectID).
		Order("created_at ASC, id ASC").
		Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

// Leave removes actor from a project. The owner cannot leave.
func (s *ApplicationService) Leave(ctx context.Context, actor *models.User, projectID uint) error {
	project, err := findProject(ctx, s.db, projectID)
	if err != nil {
		return err
	}
	if project.OwnerID == actor.ID {
		return fmt.Errorf("%w: the owner cannot leave the project", ErrInvalidInput)
	}
	res := s.db.WithContext(ctx).Where("project_id = ? AND user_id = ?", projectID, actor.ID).Delete(&models.Membership{})
	if res.Error != nil {
		return fmt.Errorf("leave project: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("membership: %w", ErrNotFound)
	}
	s.cache.Invalidate(projectKeyPrefix)
	s.popularity.Schedule(projectID)
	return nil
}
