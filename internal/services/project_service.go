package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"projectnest/internal/models"
	"projectnest/internal/utils"
)

const (
	defaultPerPage  = 20
	maxPerPage      = 100
	maxTitleLength  = 120
	maxTags         = 10
	maxTagLength    = 40
	defaultCategory = "other"
)

// Browse sort orders.
const (
	SortNew     = "new"
	SortPopular = "popular"
	SortUpdated = "updated"
)

// ProjectFilter describes a browse or search request. Every set field
// narrows the result; fields combine with AND.
type ProjectFilter struct {
	Query    string
	Category string
	Tags     []string // project must carry all of them
	Statuses []models.ProjectStatus
	OwnerID  uint
	MemberID uint
	Sort     string
	Page     int
	PerPage  int
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Normalize trims and bounds the filter so equal requests share a cache key.
func (f ProjectFilter) Normalize() ProjectFilter {
	f.Query = strings.TrimSpace(f.Query)
	f.Category = strings.ToLower(strings.TrimSpace(f.Category))
	f.Tags = normalizeTags(f.Tags)

	statuses := make([]models.ProjectStatus, 0, len(f.Statuses))
	for _, s := range f.Statuses {
		if s.Valid() {
			statuses = append(statuses, s)
		}
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i] < statuses[j] })
	f.Statuses = statuses

	switch f.Sort {
	case SortNew, SortPopular, SortUpdated:
	default:
		f.Sort = SortNew
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = defaultPerPage
	}
	if f.PerPage > maxPerPage {
		f.PerPage = maxPerPage
	}
	return f
}

func (f ProjectFilter) cacheKey() string {
	return fmt.Sprintf("%sq=%s|c=%s|t=%s|s=%v|o=%d|m=%d|sort=%s|p=%d|pp=%d",
		browseKeyPrefix, strings.ToLower(f.Query), f.Category, strings.Join(f.Tags, ","),
		f.Statuses, f.OwnerID, f.MemberID, f.Sort, f.Page, f.PerPage)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// apply composes the filter into q without pagination or ordering.
func (f ProjectFilter) apply(q *gorm.DB) *gorm.DB {
	if f.Query != "" {
		pattern := "%" + escapeLike(strings.ToLower(f.Query)) + "%"
		q = q.Where(`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	if f.Category != "" {
		q = q.Where("category_id IN (SELECT id FROM categories WHERE name = ?)", f.Category)
	}
	if len(f.Tags) > 0 {
		q = q.Where("id IN (SELECT project_id FROM project_tags WHERE name IN ? GROUP BY project_id HAVING COUNT(DISTINCT name) = ?)",
			f.Tags, len(f.Tags))
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.OwnerID != 0 {
		q = q.Where("owner_id = ?", f.OwnerID)
	}
	if f.MemberID != 0 {
		q = q.Where("id IN (SELECT project_id FROM memberships WHERE user_id = ?)", f.MemberID)
	}
	return q
}

func (f ProjectFilter) order() string {
	switch f.Sort {
	case SortPopular:
		return "popularity DESC, created_at DESC, id DESC"
	case SortUpdated:
		return "updated_at DESC, id DESC"
	}
	return "created_at DESC, id DESC"
}

type ProjectPage struct {
	Items      []models.Project `json:"items"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	PerPage    int              `json:"per_page"`
	TotalPages int              `json:"total_pages"`
}

// ProjectInput carries the editable fields of a project.
type ProjectInput struct {
	Title       string
	Description string
	Category    string
	Tags        []string
	MaxMembers  int
	Status      models.ProjectStatus // ignored on create
}

type ProjectService struct {
	db         *gorm.DB
	cache      *utils.QueryCache
	popularity *PopularityService
	log        *zap.Logger
}

func NewProjectService(db *gorm.DB, cache *utils.QueryCache, popularity *PopularityService, log *zap.Logger) *ProjectService {
	return &ProjectService{db: db, cache: cache, popularity: popularity, log: log}
}

func (s *ProjectService) Browse(ctx context.Context, filter ProjectFilter) (*ProjectPage, error) {
	f := filter.Normalize()
	return utils.Fetch(ctx, s.cache, f.cacheKey(), func(ctx context.Context) (*ProjectPage, error) {
		tx := s.db.WithContext(ctx)

		var total int64
		if err := f.apply(tx.Model(&models.Project{})).Count(&total).Error; err != nil {
			return nil, fmt.Errorf("count projects: %w", err)
		}

		var projects []models.Project
		err := f.apply(tx.Model(&models.Project{})).
			Preload("Owner").Preload("Category").Preload("Tags").
			Order(f.order()).
			Limit(f.PerPage).
			Offset((f.Page - 1) * f.PerPage).
			Find(&projects).Error
		if err != nil {
			return nil, fmt.Errorf("browse projects: %w", err)
		}
		if err := s.fillMemberCounts(ctx, projects); err != nil {
			return nil, err
		}

		pages := int(math.Ceil(float64(total) / float64(f.PerPage)))
		if pages == 0 {
			pages = 1
		}
		return &ProjectPage{
			Items:      projects,
			Total:      total,
			Page:       f.Page,
			PerPage:    f.PerPage,
			TotalPages: pages,
		}, nil
	})
}

// fillMemberCounts sets MemberCount on each project with one grouped query.
func (s *ProjectService) fillMemberCounts(ctx context.Context, projects []models.Project) error {
	if len(projects) == 0 {
		return nil
	}
	ids := make([]uint, len(projects))
	for i, p := range projects {
		ids[i] = p.ID
	}

	type countResult struct {
		ProjectID uint
		Count     int
	}
	var results []countResult
	err := s.db.WithContext(ctx).Model(&models.Membership{}).
		Select("project_id, COUNT(*) as count").
		Where("project_id IN ?", ids).
		Group("project_id").
		Scan(&results).Error
	if err != nil {
		return fmt.Errorf("count members: %w", err)
	}

	counts := make(map[uint]int, len(results))
	for _, r := range results {
		counts[r.ProjectID] = r.Count
	}
	for i := range projects {
		projects[i].MemberCount = counts[projects[i].ID]
	}
	return nil
}

// Get returns one project by slug and records a view.
func (s *ProjectService) Get(ctx context.Context, slug string) (*models.Project, error) {
	project, err := utils.Fetch(ctx, s.cache, projectKey(slug), func(ctx context.Context) (*models.Project, error) {
		p, err := s.load(ctx, slug)
		if err != nil {
			return nil, err
		}
		one := []models.Project{*p}
		if err := s.fillMemberCounts(ctx, one); err != nil {
			return nil, err
		}
		return &one[0], nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", project.ID).
		UpdateColumn("views", gorm.Expr("views + 1")).Error; err != nil {
		s.log.Warn("count project view", zap.Uint("project_id", project.ID), zap.Error(err))
	}
	s.popularity.Schedule(project.ID)
	return project, nil
}

// Lookup returns a project by slug without counting a view.
func (s *ProjectService) Lookup(ctx context.Context, slug string) (*models.Project, error) {
	return s.load(ctx, slug)
}

func (s *ProjectService) load(ctx context.Context, slug string) (*models.Project, error) {
	var p models.Project
	err := s.db.WithContext(ctx).Preload("Owner").Preload("Category").Preload("Tags").
		Where("slug = ?", slug).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("project %q: %w", slug, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	return &p, nil
}

func (s *ProjectService) validate(ctx context.Context, in *ProjectInput) (uint, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return 0, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if len([]rune(in.Title)) > maxTitleLength {
		return 0, fmt.Errorf("%w: title exceeds %d characters", ErrInvalidInput, maxTitleLength)
	}
	if strings.IndexFunc(in.Title, unicode.IsControl) >= 0 {
		return 0, fmt.Errorf("%w: title contains control characters", ErrInvalidInput)
	}
	if in.MaxMembers < 0 {
		return 0, fmt.Errorf("%w: max members cannot be negative", ErrInvalidInput)
	}
	in.Tags = normalizeTags(in.Tags)
	if len(in.Tags) > maxTags {
		return 0, fmt.Errorf("%w: at most %d tags", ErrInvalidInput, maxTags)
	}
	for _, t := range in.Tags {
		if len(t) > maxTagLength {
			return 0, fmt.Errorf("%w: tag %q is too long", ErrInvalidInput, t)
		}
	}

	name := strings.ToLower(strings.TrimSpace(in.Category))
	if name == "" {
		name = defaultCategory
	}
	var category models.Category
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&category).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, name)
	}
	if err != nil {
		return 0, fmt.Errorf("load category: %w", err)
	}
	return category.ID, nil
}

func tagRows(names []string) []models.ProjectTag {
	tags := make([]models.ProjectTag, len(names))
	for i, n := range names {
		tags[i] = models.ProjectTag{Name: n}
	}
	return tags
}

// Create stores a new open project owned by actor and makes actor its
// first member.
func (s *ProjectService) Create(ctx context.Context, actor *models.User, in ProjectInput) (*models.Project, error) {
	categoryID, err := s.validate(ctx, &in)
	if err != nil {
		return nil, err
	}

	project := models.Project{
		Slug:        uuid.NewString(),
		OwnerID:     actor.ID,
		CategoryID:  categoryID,
		Title:       in.Title,
		Description: in.Description,
		Status:      models.ProjectOpen,
		MaxMembers:  in.MaxMembers,
		Tags:        tagRows(in.Tags),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&project).Error; err != nil {
			return err
		}
		return tx.Create(&models.Membership{
			ProjectID: project.ID,
			UserID:    actor.ID,
			Role:      models.RoleOwner,
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	s.cache.Invalidate(browseKeyPrefix)
	return s.load(ctx, project.Slug)
}

// Update replaces the editable fields. Owner only.
func (s *ProjectService) Update(ctx context.Context, actor *models.User, slug string, in ProjectInput) (*models.Project, error) {
	project, err := s.load(ctx, slug)
	if err != nil {
		return nil, err
	}
	if project.OwnerID != actor.ID {
		return nil, fmt.Errorf("project %q: %w", slug, ErrForbidden)
	}
	categoryID, err := s.validate(ctx, &in)
	if err != nil {
		return nil, err
	}
	status := project.Status
	if in.Status != "" {
		if !in.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, in.Status)
		}
		status = in.Status
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Project{}).Where("id = ?", project.ID).Updates(map[string]any{
			"title":       in.Title,
			"description": in.Description,
			"category_id": categoryID,
			"max_members": in.MaxMembers,
			"status":      status,
		}).Error
		if err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", project.ID).Delete(&models.ProjectTag{}).Error; err != nil {
			return err
		}
		if len(in.Tags) == 0 {
			return nil
		}
		tags := tagRows(in.Tags)
		for i := range tags {
			tags[i].ProjectID = project.ID
		}
		return tx.Create(&tags).Error
	})
	if err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}

	s.cache.Invalidate(projectKeyPrefix)
	return s.load(ctx, slug)
}

// Delete removes a project and everything hanging off it. Owner only.
func (s *ProjectService) Delete(ctx context.Context, actor *models.User, slug string) error {
	project, err := s.load(ctx, slug)
	if err != nil {
		return err
	}
	if project.OwnerID != actor.ID {
		return fmt.Errorf("project %q: %w", slug, ErrForbidden)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []any{&models.ProjectTag{}, &models.Membership{}, &models.Application{}, &models.Comment{}, &models.Bookmark{}} {
			if err := tx.Where("project_id = ?", project.ID).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Project{}, project.ID).Error
	})
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}

	s.cache.Invalidate(projectKeyPrefix, commentsKey(project.ID))
	return nil
}

func (s *ProjectService) ListCategories(ctx context.Context) ([]models.Category, error) {
	return utils.Fetch(ctx, s.cache, "categories", func(ctx context.Context) ([]models.Category, error) {
		var categories []models.Category
		if err := s.db.WithContext(ctx).Order("id ASC").Find(&categories).Error; err != nil {
			return nil, fmt.Errorf("list categories: %w", err)
		}
		return categories, nil
	})
}

// findProject loads a project by id for the other services.
func findProject(ctx context.Context, db *gorm.DB, projectID uint) (*models.Project, error) {
	var p models.Project
	err := db.WithContext(ctx).First(&p, projectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("project %d: %w", projectID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	return &p, nil
}
