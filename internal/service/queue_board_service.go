package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/meal-queue-api/internal/models"
	"github.com/noah-isme/meal-queue-api/pkg/jobs"
)

type boardStore interface {
	TodayRegistrations(ctx context.Context) ([]models.MealRegistration, error)
}

type boardStatsPublisher interface {
	SetBoardStats(stats BoardStats)
}

// BoardSnapshot is the latest derived view of the meal queue.
type BoardSnapshot struct {
	Entries     []BoardEntry `json:"entries"`
	Stats       BoardStats   `json:"stats"`
	RefreshedAt time.Time    `json:"refreshedAt"`
	DerivedAt   time.Time    `json:"derivedAt"`
}

// QueueBoardService keeps a periodically refreshed copy of today's queue.
// Refresh re-reads the store; Tick re-derives statuses from the cached rows.
type QueueBoardService struct {
	store     boardStore
	groups    groupCatalogProvider
	engine    StatusEngine
	publisher boardStatsPublisher
	logger    *zap.Logger

	mu          sync.RWMutex
	regs        []models.MealRegistration
	catalog     models.GroupCatalog
	refreshedAt time.Time
	snapshot    BoardSnapshot
}

// NewQueueBoardService constructs the board. publisher may be nil.
func NewQueueBoardService(store boardStore, groups groupCatalogProvider, engine StatusEngine, publisher boardStatsPublisher, logger *zap.Logger) *QueueBoardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueBoardService{
		store:     store,
		groups:    groups,
		engine:    engine,
		publisher: publisher,
		logger:    logger,
		catalog:   models.NewGroupCatalog(nil),
		snapshot:  BoardSnapshot{Entries: []BoardEntry{}},
	}
}

// BoardSchedule sets the board cadences. Timeout bounds each refresh.
type BoardSchedule struct {
	RefreshEvery time.Duration
	TickEvery    time.Duration
	Timeout      time.Duration
}

// Register schedules Refresh and Tick on the scheduler.
func (s *QueueBoardService) Register(scheduler *jobs.Scheduler, schedule BoardSchedule) error {
	refresh := s.Refresh
	if schedule.Timeout > 0 {
		refresh = func(ctx context.Context, now time.Time) error {
			ctx, cancel := context.WithTimeout(ctx, schedule.Timeout)
			defer cancel()
			return s.Refresh(ctx, now)
		}
	}
	if err := scheduler.Every("meal-board-refresh", schedule.RefreshEvery, true, refresh); err != nil {
		return err
	}
	return scheduler.Every("meal-board-tick", schedule.TickEvery, false, s.Tick)
}

// Refresh reloads registrations and the group catalog, then re-derives.
// On failure the previous rows are kept.
func (s *QueueBoardService) Refresh(ctx context.Context, now time.Time) error {
	regs, err := s.store.TodayRegistrations(ctx)
	if err != nil {
		return storeError(err, "meal registrations")
	}
	catalog, err := s.groups.Catalog(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.regs = regs
	s.catalog = catalog
	s.refreshedAt = now.UTC()
	s.mu.Unlock()

	return s.Tick(ctx, now)
}

// Tick re-derives every status against now without touching the store.
func (s *QueueBoardService) Tick(_ context.Context, now time.Time) error {
	s.mu.Lock()
	entries, stats := s.engine.Annotate(s.regs, s.catalog, now)
	s.snapshot = BoardSnapshot{
		Entries:     entries,
		Stats:       stats,
		RefreshedAt: s.refreshedAt,
		DerivedAt:   now.UTC(),
	}
	s.mu.Unlock()

	if s.publisher != nil {
		s.publisher.SetBoardStats(stats)
	}
	return nil
}

// Snapshot returns the latest board.
func (s *QueueBoardService) Snapshot() BoardSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}
