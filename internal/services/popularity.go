package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"projectnest/internal/models"
	"projectnest/internal/utils"
)

const popularityBatchSize = 50

// PopularityService recomputes project popularity in the background.
// Updates are queued with de-duplication and processed in batches.
type PopularityService struct {
	db       *gorm.DB
	cache    *utils.QueryCache
	log      *zap.Logger
	interval time.Duration
	now      func() time.Time

	queue   chan uint
	mu      sync.Mutex
	pending map[uint]bool
}

func NewPopularityService(db *gorm.DB, cache *utils.QueryCache, log *zap.Logger, interval time.Duration) *PopularityService {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &PopularityService{
		db:       db,
		cache:    cache,
		log:      log,
		interval: interval,
		now:      time.Now,
		queue:    make(chan uint, 1000),
		pending:  make(map[uint]bool),
	}
}

// Schedule queues a recompute for projectID unless one is already queued.
// It never blocks; when the queue is full the update is skipped.
func (s *PopularityService) Schedule(projectID uint) {
	s.mu.Lock()
	if s.pending[projectID] {
		s.mu.Unlock()
		return
	}
	s.pending[projectID] = true
	s.mu.Unlock()

	select {
	case s.queue <- projectID:
	default:
		s.mu.Lock()
		delete(s.pending, projectID)
		s.mu.Unlock()
		s.log.Warn("popularity queue full, skipping project", zap.Uint("project_id", projectID))
	}
}

// Run processes the queue until ctx is cancelled.
func (s *PopularityService) Run(ctx context.Context) {
	batch := make([]uint, 0, popularityBatchSize)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case id := <-s.queue:
			batch = append(batch, id)
			if len(batch) >= popularityBatchSize {
				s.processBatch(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.processBatch(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *PopularityService) processBatch(ctx context.Context, ids []uint) {
	for _, id := range ids {
		if err := s.Recompute(ctx, id); err != nil {
			s.log.Error("recompute popularity", zap.Uint("project_id", id), zap.Error(err))
		}
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}
	s.cache.Invalidate(browseKeyPrefix)
}

// Recompute stores a fresh popularity score for one project.
func (s *PopularityService) Recompute(ctx context.Context, projectID uint) error {
	tx := s.db.WithContext(ctx)

	var project models.Project
	if err := tx.Select("id, created_at, views").First(&project, projectID).Error; err != nil {
		return fmt.Errorf("load project %d: %w", projectID, err)
	}

	var counts struct {
		Members    int
		Applicants int
		Comments   int
		Bookmarks  int
	}
	err := tx.Raw(`SELECT
		(SELECT COUNT(*) FROM memberships WHERE project_id = @id) AS members,
		(SELECT COUNT(*) FROM applications WHERE project_id = @id AND status = @pending) AS applicants,
		(SELECT COUNT(*) FROM comments WHERE project_id = @id) AS comments,
		(SELECT COUNT(*) FROM bookmarks WHERE project_id = @id) AS bookmarks`,
		sql.Named("id", projectID), sql.Named("pending", models.ApplicationPending)).
		Scan(&counts).Error
	if err != nil {
		// keep the stored score rather than overwrite it with partial signals
		return fmt.Errorf("count activity of project %d: %w", projectID, err)
	}

	score := utils.CalculatePopularity(project.CreatedAt, s.now(), utils.PopularitySignals{
		Members:    counts.Members,
		Applicants: counts.Applicants,
		Comments:   counts.Comments,
		Bookmarks:  counts.Bookmarks,
		Views:      project.Views,
	})

	if err := tx.Model(&models.Project{}).Where("id = ?", projectID).UpdateColumn("popularity", int(score)).Error; err != nil {
		return fmt.Errorf("update popularity of project %d: %w", projectID, err)
	}
	return nil
}
